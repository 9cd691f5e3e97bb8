package filter

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/sitecrawler/internal/urlnorm"
)

var (
	// ErrSchemeNotAllowed is returned for schemes other than http and https.
	ErrSchemeNotAllowed = errors.New("scheme not allowed")

	// ErrExtensionRejected is returned for URLs pointing at non-document assets.
	ErrExtensionRejected = errors.New("non-document extension")

	// ErrOffDomain is returned when the URL's host differs from the root host.
	ErrOffDomain = errors.New("host outside crawl domain")
)

// rejectedExtensions lists path extensions that never lead to HTML pages.
var rejectedExtensions = map[string]struct{}{
	// archives
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".7z": {}, ".rar": {},
	// images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".svg": {}, ".webp": {},
	".ico": {}, ".tif": {}, ".tiff": {}, ".avif": {},
	// audio and video
	".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".aac": {}, ".m4a": {},
	".mp4": {}, ".m4v": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".webm": {}, ".wmv": {}, ".flv": {},
	// executables and installers
	".exe": {}, ".msi": {}, ".dmg": {}, ".pkg": {}, ".deb": {}, ".rpm": {}, ".apk": {}, ".bin": {}, ".iso": {},
	// office documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".odt": {}, ".ods": {}, ".odp": {}, ".rtf": {},
	// fonts, styles and scripts
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {}, ".css": {}, ".js": {},
}

// Admit reports whether rawURL may be crawled for a site rooted at
// rootHost. It returns nil on admission, or an error wrapping one of the
// package sentinels (or urlnorm.ErrInvalidURL) describing the first check
// that failed.
func Admit(rawURL, rootHost string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %w", urlnorm.ErrInvalidURL, err)
	}

	if err := CheckScheme(u); err != nil {
		return err
	}
	if err := CheckExtension(u); err != nil {
		return err
	}
	return CheckDomain(rawURL, rootHost)
}

// CheckScheme accepts http, https and scheme-relative URLs.
func CheckScheme(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrSchemeNotAllowed, u.Scheme)
	}
}

// CheckExtension rejects URLs whose last path segment has a known asset
// extension. Matching is case-insensitive.
func CheckExtension(u *url.URL) error {
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return nil
	}
	if _, rejected := rejectedExtensions[ext]; rejected {
		return fmt.Errorf("%w: %s", ErrExtensionRejected, ext)
	}
	return nil
}

// CheckDomain accepts rawURL only when its hostname equals rootHost,
// ignoring case and port.
func CheckDomain(rawURL, rootHost string) error {
	host := urlnorm.Hostname(rawURL)
	if host == "" || host != strings.ToLower(rootHost) {
		return fmt.Errorf("%w: %q", ErrOffDomain, host)
	}
	return nil
}

// IsInternal reports whether rawURL belongs to the site rooted at rootHost.
func IsInternal(rawURL, rootHost string) bool {
	return CheckDomain(rawURL, rootHost) == nil
}
