package fetcher

import (
	"errors"
	"fmt"
)

// Sentinel errors for fetch failures.
var (
	// ErrHTTPStatus indicates a non-retryable response status of 400 or above.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrRetryableStatusExhausted indicates that a retryable status (429 or
	// 503) was still returned after the last permitted attempt.
	ErrRetryableStatusExhausted = errors.New("retryable status persisted after all retries")

	// ErrUnexpectedContentType indicates a successful response whose media
	// type is not text/html.
	ErrUnexpectedContentType = errors.New("unexpected content type")

	// ErrCancelled indicates that the fetch was abandoned because its
	// context was cancelled. It is not a failure of the target.
	ErrCancelled = errors.New("fetch cancelled")

	// ErrBodyTooLarge indicates that the response body exceeded the
	// configured limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrUnsupportedProxy indicates a proxy URL with a scheme the client
	// cannot dial through.
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme")
)

// StatusError describes a response rejected because of its status code.
// It wraps ErrHTTPStatus or ErrRetryableStatusExhausted.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the status of the last response.
	StatusCode int

	// Attempts is the number of attempts made, including the first.
	Attempts int

	// Err is the sentinel describing the failure class.
	Err error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s: status %d after %d attempt(s)", e.Err, e.URL, e.StatusCode, e.Attempts)
}

// Unwrap returns the sentinel error.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// ContentTypeError describes a response with a non-HTML media type.
// It wraps ErrUnexpectedContentType.
type ContentTypeError struct {
	URL         string
	ContentType string
}

// Error implements the error interface.
func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("%s: %s: %q", ErrUnexpectedContentType, e.URL, e.ContentType)
}

// Unwrap returns ErrUnexpectedContentType.
func (e *ContentTypeError) Unwrap() error {
	return ErrUnexpectedContentType
}
