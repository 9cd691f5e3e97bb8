// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - Masking of passwords and token parameters embedded in URLs
//   - Configurable log levels with verbose mode support
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Session identifiers and authentication tokens
//   - URL userinfo passwords and query parameters such as access_token
//
// Even in verbose mode, sensitive values are masked. Crawl logs print every
// fetched URL, and sites sometimes put session tokens in links.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("request sent",
//	    "cookie", "session=abc123",  // sanitized to "***REDACTED***"
//	    "url", "https://example.com/?token=abc", // token value masked
//	)
//
//	slog.SetDefault(logger)
package log
