package filter

import (
	"errors"
	"testing"

	"github.com/nao1215/sitecrawler/internal/urlnorm"
)

// TestAdmit tests the ordered admission checks.
func TestAdmit(t *testing.T) {
	t.Parallel()

	const root = "example.com"

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{name: "same host https", url: "https://example.com/about", wantErr: nil},
		{name: "same host http", url: "http://example.com/", wantErr: nil},
		{name: "host case ignored", url: "https://EXAMPLE.com/a", wantErr: nil},
		{name: "port ignored", url: "https://example.com:8443/a", wantErr: nil},
		{name: "html extension allowed", url: "https://example.com/index.html", wantErr: nil},
		{name: "subdomain rejected", url: "https://blog.example.com/a", wantErr: ErrOffDomain},
		{name: "other host rejected", url: "https://other.org/", wantErr: ErrOffDomain},
		{name: "mailto rejected", url: "mailto:someone@example.com", wantErr: ErrSchemeNotAllowed},
		{name: "javascript rejected", url: "javascript:void(0)", wantErr: ErrSchemeNotAllowed},
		{name: "ftp rejected", url: "ftp://example.com/file", wantErr: ErrSchemeNotAllowed},
		{name: "pdf rejected", url: "https://example.com/file.pdf", wantErr: ErrExtensionRejected},
		{name: "uppercase image rejected", url: "https://example.com/logo.PNG", wantErr: ErrExtensionRejected},
		{name: "zip rejected", url: "https://example.com/dist/app.zip", wantErr: ErrExtensionRejected},
		{name: "parse failure", url: "http://[::1", wantErr: urlnorm.ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Admit(tt.url, root)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected admission, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("scheme is checked before extension and domain", func(t *testing.T) {
		t.Parallel()

		err := Admit("ftp://other.org/file.zip", root)
		if !errors.Is(err, ErrSchemeNotAllowed) {
			t.Errorf("expected ErrSchemeNotAllowed, got %v", err)
		}
	})

	t.Run("extension is checked before domain", func(t *testing.T) {
		t.Parallel()

		err := Admit("https://other.org/file.zip", root)
		if !errors.Is(err, ErrExtensionRejected) {
			t.Errorf("expected ErrExtensionRejected, got %v", err)
		}
	})
}

// TestIsInternal tests link classification.
func TestIsInternal(t *testing.T) {
	t.Parallel()

	if !IsInternal("https://example.com/a", "example.com") {
		t.Error("expected same host to be internal")
	}
	if IsInternal("https://cdn.example.com/a", "example.com") {
		t.Error("expected subdomain to be external")
	}
	if IsInternal("mailto:someone@example.com", "example.com") {
		t.Error("expected mailto link to be external")
	}
}
