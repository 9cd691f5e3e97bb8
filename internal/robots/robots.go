package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// DefaultTimeout bounds the single robots.txt request.
const DefaultTimeout = 10 * time.Second

// maxRobotsSize caps how much of robots.txt is read. Larger files are
// treated as unavailable.
const maxRobotsSize = 512 * 1024

// ErrUnavailable is wrapped by Load when robots.txt could not be used.
var ErrUnavailable = errors.New("robots.txt unavailable")

// Policy answers whether a URL may be fetched.
// A Policy is immutable after Load returns and safe for concurrent use.
type Policy struct {
	// group holds the rules for the crawler's user agent.
	// nil means every URL is allowed.
	group *robotstxt.Group

	// source is the robots.txt URL the policy was built from.
	source string
}

// AllowAll returns a policy that permits every URL.
func AllowAll() *Policy {
	return &Policy{}
}

// Load fetches robots.txt from the scheme and host of rootURL and returns
// the rules that apply to userAgent.
//
// Load never returns a nil Policy. When robots.txt cannot be used the
// returned policy allows everything and the error, wrapping
// ErrUnavailable, explains why. Callers are expected to log the error and
// carry on.
func Load(ctx context.Context, client *http.Client, rootURL, userAgent string) (*Policy, error) {
	root, err := url.Parse(rootURL)
	if err != nil || root.Host == "" {
		return AllowAll(), fmt.Errorf("%w: invalid root url %q", ErrUnavailable, rootURL)
	}
	if client == nil {
		client = http.DefaultClient
	}

	scheme := root.Scheme
	if scheme == "" {
		scheme = "http"
	}
	robotsURL := scheme + "://" + root.Host + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return AllowAll(), fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return AllowAll(), fmt.Errorf("%w: fetch %s: %w", ErrUnavailable, robotsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AllowAll(), fmt.Errorf("%w: %s returned status %d", ErrUnavailable, robotsURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize+1))
	if err != nil {
		return AllowAll(), fmt.Errorf("%w: read %s: %w", ErrUnavailable, robotsURL, err)
	}
	if len(body) > maxRobotsSize {
		return AllowAll(), fmt.Errorf("%w: %s exceeds %d bytes", ErrUnavailable, robotsURL, maxRobotsSize)
	}

	return Parse(body, userAgent, robotsURL)
}

// Parse builds a policy from raw robots.txt content.
// Unparseable content yields an allow-all policy and an error.
func Parse(body []byte, userAgent, source string) (*Policy, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return AllowAll(), fmt.Errorf("%w: parse %s: %w", ErrUnavailable, source, err)
	}
	return &Policy{
		group:  data.FindGroup(userAgent),
		source: source,
	}, nil
}

// CanFetch reports whether rawURL is allowed. Only the path and query of
// the URL are matched against the rules.
func (p *Policy) CanFetch(rawURL string) bool {
	if p == nil || p.group == nil {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return p.group.Test(target)
}

// Source returns the robots.txt URL the policy was loaded from, or an
// empty string for an allow-all policy.
func (p *Policy) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// CrawlDelay returns the Crawl-delay declared for the matched group.
func (p *Policy) CrawlDelay() time.Duration {
	if p == nil || p.group == nil {
		return 0
	}
	return p.group.CrawlDelay
}
