package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultUserAgent identifies the crawler to servers.
	DefaultUserAgent = "BootCrawler/1.0"

	// DefaultTimeout bounds each individual attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of extra attempts after the first.
	DefaultMaxRetries = 3

	// DefaultMaxConcurrency is the size of the permit pool.
	DefaultMaxConcurrency = 3

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultBackoffBase is the sleep before the first retry.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultMaxJitter is the exclusive upper bound of the random jitter
	// added to every backoff sleep.
	DefaultMaxJitter = 250 * time.Millisecond

	// maxBackoffShift keeps the exponential backoff from overflowing.
	maxBackoffShift = 20
)

// RetryInfo describes a retry that is about to happen.
type RetryInfo struct {
	// URL is the URL being fetched.
	URL string

	// Attempt is the zero-based index of the attempt that failed.
	Attempt int

	// Delay is how long the client will sleep before the next attempt.
	Delay time.Duration

	// Err is the retryable failure.
	Err error
}

// Client fetches HTML pages.
// A Client is safe for concurrent use; all callers share its permit pool.
type Client struct {
	// httpClient performs the requests. Its own Timeout is not relied on;
	// every attempt gets a context deadline instead.
	httpClient *http.Client

	// userAgent is sent with every request.
	userAgent string

	// headers are extra request headers (for example a Cookie from site config).
	headers map[string]string

	// timeout bounds a single attempt including the body read.
	timeout time.Duration

	// maxRetries is the number of extra attempts after the first.
	maxRetries int

	// maxBodySize limits the decoded response body.
	maxBodySize int64

	// permits bounds the number of in-flight requests.
	permits *semaphore.Weighted

	// backoffBase and maxJitter shape the sleep between attempts.
	backoffBase time.Duration
	maxJitter   time.Duration

	// onRetry is called before every backoff sleep.
	onRetry func(RetryInfo)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHeaders adds request headers. User-Agent is always taken from
// WithUserAgent.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets the number of extra attempts after the first.
// Negative values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = max(n, 0)
	}
}

// WithMaxConcurrency creates a fresh permit pool of size n.
func WithMaxConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.permits = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMaxBodySize sets the maximum decoded body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithBackoff overrides the backoff base and jitter bound.
// A zero jitter disables jitter.
func WithBackoff(base, jitter time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = max(base, 0)
		c.maxJitter = max(jitter, 0)
	}
}

// WithRetryHook registers a callback invoked before every backoff sleep.
func WithRetryHook(fn func(RetryInfo)) Option {
	return func(c *Client) {
		c.onRetry = fn
	}
}

// New creates a Client with the given options applied over the defaults.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:  http.DefaultClient,
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
		maxBodySize: DefaultMaxBodySize,
		permits:     semaphore.NewWeighted(DefaultMaxConcurrency),
		backoffBase: DefaultBackoffBase,
		maxJitter:   DefaultMaxJitter,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch retrieves rawURL and returns its body decoded to UTF-8.
//
// Errors:
//   - *StatusError wrapping ErrHTTPStatus for a non-retryable status >= 400.
//   - *StatusError wrapping ErrRetryableStatusExhausted when 429/503
//     persisted through the last attempt.
//   - *ContentTypeError wrapping ErrUnexpectedContentType.
//   - an error wrapping ErrCancelled when ctx was done.
//   - the last transport error when transport failures exhausted retries.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	for attempt := 0; ; attempt++ {
		body, retryable, err := c.attempt(ctx, rawURL, attempt)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", cancelled(ctx, rawURL)
		}
		if !retryable {
			return "", err
		}
		if attempt >= c.maxRetries {
			return "", exhausted(err, attempt+1)
		}

		delay := c.backoff(attempt)
		if c.onRetry != nil {
			c.onRetry(RetryInfo{URL: rawURL, Attempt: attempt, Delay: delay, Err: err})
		}
		if err := sleep(ctx, delay); err != nil {
			return "", cancelled(ctx, rawURL)
		}
	}
}

// attempt performs a single request. A permit is held from sending the
// request until the response headers arrive or the attempt times out; the
// body is read after the permit is released.
// The returned bool reports whether the failure may be retried.
func (c *Client) attempt(ctx context.Context, rawURL string, attempt int) (string, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", c.userAgent)

	if err := c.permits.Acquire(ctx, 1); err != nil {
		return "", false, err
	}
	resp, err := c.httpClient.Do(req)
	c.permits.Release(1)
	if err != nil {
		return "", true, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if isRetryableStatus(resp.StatusCode) {
		return "", true, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Attempts: attempt + 1, Err: ErrHTTPStatus}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", false, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Attempts: attempt + 1, Err: ErrHTTPStatus}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return "", false, &ContentTypeError{URL: rawURL, ContentType: contentType}
	}

	body, err := readBody(resp, c.maxBodySize)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return "", false, fmt.Errorf("read %s: %w", rawURL, err)
		}
		return "", true, fmt.Errorf("read %s: %w", rawURL, err)
	}

	return body, false, nil
}

// backoff returns base·2^attempt plus jitter.
func (c *Client) backoff(attempt int) time.Duration {
	shift := min(attempt, maxBackoffShift)
	d := c.backoffBase << shift
	if c.maxJitter > 0 {
		d += time.Duration(rand.Int64N(int64(c.maxJitter)))
	}
	return d
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// exhausted converts the last retryable failure into the final error.
func exhausted(err error, attempts int) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return &StatusError{
			URL:        statusErr.URL,
			StatusCode: statusErr.StatusCode,
			Attempts:   attempts,
			Err:        ErrRetryableStatusExhausted,
		}
	}
	return fmt.Errorf("giving up after %d attempt(s): %w", attempts, err)
}

func cancelled(ctx context.Context, rawURL string) error {
	return fmt.Errorf("%w: %s: %w", ErrCancelled, rawURL, ctx.Err())
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// isHTML reports whether a Content-Type header names text/html,
// ignoring case and parameters.
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.EqualFold(strings.TrimSpace(mediaType), "text/html")
}
