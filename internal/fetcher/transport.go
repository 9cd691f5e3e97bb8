package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// NewHTTPClient builds an HTTP client for crawling.
//
// proxyURL may be empty (use the environment's HTTP_PROXY settings), an
// http/https proxy URL, or a socks5/socks5h URL. The returned client has no
// overall timeout; Client applies a deadline per attempt.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if strings.TrimSpace(proxyURL) != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}

		switch strings.ToLower(parsed.Scheme) {
		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)
		case "socks5", "socks5h":
			socks, err := proxy.FromURL(parsed, dialer)
			if err != nil {
				return nil, fmt.Errorf("configure socks proxy: %w", err)
			}
			transport.Proxy = nil
			transport.DialContext = contextDialer(socks)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxy, parsed.Scheme)
		}
	}

	return &http.Client{Transport: transport}, nil
}

// contextDialer adapts a proxy.Dialer to the DialContext signature.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
