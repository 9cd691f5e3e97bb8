package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// ErrInvalidURL is returned when a string cannot be interpreted as a URL
// with a hostname.
var ErrInvalidURL = errors.New("invalid url")

// trackingPrefix marks query parameters that only carry campaign tracking
// data and never change the page that is served.
const trackingPrefix = "utm_"

// hostFlags normalizes the authority part of a URL for comparison keys.
// purell only removes default ports for http and https, which is exactly
// the set of schemes the crawler deals with.
const hostFlags = purell.FlagLowercaseHost | purell.FlagRemoveDefaultPort

// Canonicalize returns the canonical fetch form of raw: the fragment is
// dropped and every query parameter whose key starts with "utm_"
// (case-insensitive) is removed. Path, scheme, host, port and the order of
// the remaining query parameters are preserved.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty string", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripTracking(u.RawQuery)
	if u.RawQuery == "" {
		u.ForceQuery = false
	}

	return u.String(), nil
}

// stripTracking removes utm_* parameters from a raw query string while
// keeping the remaining parameters byte-for-byte and in order.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if strings.HasPrefix(strings.ToLower(key), trackingPrefix) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

// ComparisonKey returns the deduplication key for raw.
//
// The key is host[:port]path[?query] where the host is lowercased, the
// default port for the scheme is dropped, IPv6 literals are bracketed,
// trailing slashes are trimmed from the path (the root path becomes empty)
// and the fragment is discarded. The query string is kept verbatim.
//
// A schemeless input such as "example.com/path" is treated as http.
func ComparisonKey(raw string) (string, error) {
	u, err := parseLenient(raw)
	if err != nil {
		return "", err
	}

	host, port, err := normalizeAuthority(u)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(host)
	if port != "" {
		b.WriteString(":")
		b.WriteString(port)
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		b.WriteString("/")
	}
	b.WriteString(path)

	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}

	return b.String(), nil
}

// Hostname returns the lowercased hostname of raw, accepting schemeless
// input the same way ComparisonKey does. It returns an empty string when
// no hostname can be extracted.
func Hostname(raw string) string {
	u, err := parseLenient(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// EnsureScheme prefixes raw with "http://" when it carries no scheme, so
// that "example.com/docs" can be used as a crawl root.
func EnsureScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "//") {
		return raw
	}
	return "http://" + raw
}

// parseLenient parses raw and retries with an http scheme when the input
// looks like a bare host/path.
func parseLenient(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	bare := !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//")
	if bare && (err != nil || u.Scheme == "" || startsWithDigit(u.Opaque)) {
		u, err = url.Parse("http://" + raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing hostname in %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// startsWithDigit reports whether s begins with an ASCII digit. A bare
// "host:8080/path" parses as scheme "host" with opaque data "8080/path".
func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// normalizeAuthority lowercases the host and strips the scheme's default
// port, returning the host (bracketed when it is an IPv6 literal) and the
// remaining port, if any.
func normalizeAuthority(u *url.URL) (string, string, error) {
	authority := &url.URL{Scheme: strings.ToLower(u.Scheme), Host: u.Host}
	normalized, err := url.Parse(purell.NormalizeURL(authority, hostFlags))
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	host := strings.ToLower(normalized.Hostname())
	if host == "" {
		return "", "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host, normalized.Port(), nil
}
