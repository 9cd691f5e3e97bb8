package urlnorm

import (
	"errors"
	"testing"
)

// TestCanonicalize tests fragment and tracking parameter removal.
func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips utm parameters and fragment",
			in:   "https://x.com/p?a=1&utm_source=y&b=2#frag",
			want: "https://x.com/p?a=1&b=2",
		},
		{
			name: "utm prefix is case insensitive",
			in:   "https://x.com/p?UTM_Campaign=z&keep=1",
			want: "https://x.com/p?keep=1",
		},
		{
			name: "drops question mark when only tracking parameters remain",
			in:   "https://x.com/p?utm_medium=email",
			want: "https://x.com/p",
		},
		{
			name: "keeps parameter order",
			in:   "https://x.com/search?z=1&a=2&m=3",
			want: "https://x.com/search?z=1&a=2&m=3",
		},
		{
			name: "keeps trailing slash and host case",
			in:   "https://Example.COM/docs/",
			want: "https://Example.COM/docs/",
		},
		{
			name: "leaves url without query untouched",
			in:   "http://x.com/a/b",
			want: "http://x.com/a/b",
		},
		{
			name: "keeps parameters that merely contain utm",
			in:   "https://x.com/?autm_x=1&xutm_=2",
			want: "https://x.com/?autm_x=1&xutm_=2",
		},
		{
			name: "non-http schemes pass through",
			in:   "mailto:someone@example.com",
			want: "mailto:someone@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Canonicalize(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		first, err := Canonicalize("https://x.com/p?a=1&utm_source=y#top")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := Canonicalize(first)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first != second {
			t.Errorf("expected %q, got %q", first, second)
		}
	})

	t.Run("rejects unparseable input", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{"", "   ", "http://[::1", "://missing-scheme"} {
			if _, err := Canonicalize(in); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("Canonicalize(%q): expected ErrInvalidURL, got %v", in, err)
			}
		}
	})
}

// TestComparisonKey tests deduplication key derivation.
func TestComparisonKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "https with trailing slash", in: "https://x.com/a/", want: "x.com/a"},
		{name: "http without trailing slash", in: "http://x.com/a", want: "x.com/a"},
		{name: "lowercases host but not path", in: "https://EXAMPLE.com/Path?x=1", want: "example.com/Path?x=1"},
		{name: "removes default http port", in: "http://x.com:80/", want: "x.com"},
		{name: "removes default https port", in: "https://x.com:443/docs", want: "x.com/docs"},
		{name: "keeps non default port", in: "https://x.com:8443/", want: "x.com:8443"},
		{name: "keeps https port on http", in: "http://x.com:443/", want: "x.com:443"},
		{name: "brackets ipv6 literal", in: "http://[::1]:80/a", want: "[::1]/a"},
		{name: "keeps ipv6 port", in: "http://[2001:db8::1]:8080/", want: "[2001:db8::1]:8080"},
		{name: "root path becomes empty", in: "https://x.com", want: "x.com"},
		{name: "drops fragment", in: "https://x.com/a#section", want: "x.com/a"},
		{name: "trims repeated trailing slashes", in: "https://x.com/a///", want: "x.com/a"},
		{name: "keeps query verbatim", in: "https://x.com/a/?b=2&a=1", want: "x.com/a?b=2&a=1"},
		{name: "schemeless input", in: "example.com/path/", want: "example.com/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ComparisonKey(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("scheme does not affect key", func(t *testing.T) {
		t.Parallel()

		a, err := ComparisonKey("https://x.com/a/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := ComparisonKey("http://x.com/a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a != b {
			t.Errorf("expected equal keys, got %q and %q", a, b)
		}
	})

	t.Run("rejects inputs without hostname", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{"", "http://", "file:///etc/passwd", "http://[::1"} {
			if _, err := ComparisonKey(in); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("ComparisonKey(%q): expected ErrInvalidURL, got %v", in, err)
			}
		}
	})
}

// TestHostname tests lenient hostname extraction.
func TestHostname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "https://Example.com/a", want: "example.com"},
		{in: "example.com/a", want: "example.com"},
		{in: "http://[::1]:8080/", want: "::1"},
		{in: "", want: ""},
		{in: "mailto:someone", want: ""},
	}

	for _, tt := range tests {
		if got := Hostname(tt.in); got != tt.want {
			t.Errorf("Hostname(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// TestEnsureScheme tests scheme defaulting for crawl roots.
func TestEnsureScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "example.com", want: "http://example.com"},
		{in: " https://example.com ", want: "https://example.com"},
		{in: "//example.com/x", want: "//example.com/x"},
	}

	for _, tt := range tests {
		if got := EnsureScheme(tt.in); got != tt.want {
			t.Errorf("EnsureScheme(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// TestHostnameBareHostPort tests that a bare host:port is not mistaken for a scheme.
func TestHostnameBareHostPort(t *testing.T) {
	t.Parallel()

	if got := Hostname("localhost:8080/path"); got != "localhost" {
		t.Errorf("expected %q, got %q", "localhost", got)
	}
	if got := Hostname("mailto:someone@example.com"); got != "" {
		t.Errorf("expected empty hostname for mailto, got %q", got)
	}
}
