// Package fetcher retrieves HTML pages with bounded retries.
//
// # Retry policy
//
// A fetch makes at most 1 + maxRetries attempts. Status 429 and 503 and
// transport failures (connection errors, per-attempt timeouts) are
// retryable. Any other status of 400 or above fails immediately. Before
// retry n (counting from zero) the client sleeps 0.5·2^n seconds plus a
// random jitter in [0, 0.25) seconds.
//
// # Concurrency
//
// All in-flight requests of a crawl draw from one weighted semaphore. A
// permit is held from sending the request until the body has been read,
// and is released before any backoff sleep so that a waiting fetch never
// blocks other work.
//
// # Cancellation
//
// Every attempt and every backoff sleep observes the caller's context.
// Once the context is done Fetch returns an error wrapping ErrCancelled,
// which callers must not treat as a fetch failure.
package fetcher
