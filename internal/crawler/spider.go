package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/filter"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/robots"
	"github.com/nao1215/sitecrawler/internal/urlnorm"
)

const (
	// DefaultMaxPages is the page budget when none is configured.
	DefaultMaxPages = 10

	// DefaultMaxConcurrency is the number of fetches allowed in flight.
	DefaultMaxConcurrency = 3
)

// PageFetcher retrieves the HTML of a URL.
// *fetcher.Client is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Spider crawls a single website.
// It follows same-domain links from a root URL until the link graph is
// exhausted or the page budget is reached.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
//
// A Spider holds configuration only. All state of a crawl lives in a
// per-call run, so one Spider may run several crawls concurrently.
type Spider struct {
	// client performs HTTP requests, including the robots.txt request.
	client *http.Client

	// maxPages limits the total number of pages admitted.
	maxPages int

	// maxConcurrency limits the number of fetches in flight.
	maxConcurrency int

	// maxRetries is the number of extra attempts for transient failures.
	maxRetries int

	// timeout bounds each fetch attempt.
	timeout time.Duration

	// userAgent is sent with every request and used for robots.txt matching.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// headers are extra request headers (cookies, authorization).
	headers map[string]string

	// respectRobots enables the robots.txt policy.
	respectRobots bool

	// observer receives crawl events.
	observer Observer

	// pageFetcher replaces the built-in fetch client when set.
	pageFetcher PageFetcher

	// fetchOptions are applied after the Spider's own fetch client options.
	fetchOptions []fetcher.Option
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the maximum number of pages to crawl.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithMaxConcurrency sets how many fetches may be in flight at once.
func WithMaxConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.maxConcurrency = n
	}
}

// WithMaxRetries sets the number of extra attempts after a transient failure.
func WithMaxRetries(n int) SpiderOption {
	return func(s *Spider) {
		s.maxRetries = n
	}
}

// WithTimeout sets the per-attempt fetch timeout.
func WithTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeout = d
	}
}

// WithSpiderUserAgent sets a custom User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithSpiderMaxBodySize sets the maximum response body size.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithHeaders sets extra request headers, for example a Cookie.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		s.headers = headers
	}
}

// WithRespectRobots enables or disables the robots.txt policy.
func WithRespectRobots(respect bool) SpiderOption {
	return func(s *Spider) {
		s.respectRobots = respect
	}
}

// WithObserver sets the receiver of crawl events.
func WithObserver(o Observer) SpiderOption {
	return func(s *Spider) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithPageFetcher replaces the built-in fetch client.
// The fetcher is then responsible for bounding concurrency and retries.
func WithPageFetcher(f PageFetcher) SpiderOption {
	return func(s *Spider) {
		s.pageFetcher = f
	}
}

// WithFetchOptions passes extra options to the built-in fetch client.
func WithFetchOptions(opts ...fetcher.Option) SpiderOption {
	return func(s *Spider) {
		s.fetchOptions = append(s.fetchOptions, opts...)
	}
}

// NewSpider creates a new Spider with the given HTTP client.
// A nil client means http.DefaultClient.
//
// Design decision: We accept an external client because:
//  1. Proxy configuration is handled by fetcher.NewHTTPClient
//  2. robots.txt and pages share one connection pool
//  3. Allows for different configurations in tests
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	if client == nil {
		client = http.DefaultClient
	}

	s := &Spider{
		client:         client,
		maxPages:       DefaultMaxPages,
		maxConcurrency: DefaultMaxConcurrency,
		maxRetries:     fetcher.DefaultMaxRetries,
		timeout:        fetcher.DefaultTimeout,
		userAgent:      fetcher.DefaultUserAgent,
		maxBodySize:    fetcher.DefaultMaxBodySize,
		respectRobots:  true,
		observer:       nopObserver{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl crawls the site rooted at rootURL and returns every page that was
// fetched and extracted successfully, in admission order.
//
// A schemeless root such as "example.com" is crawled over http. Crawl
// returns ErrInvalidConfiguration before any request when a bound is out of
// range or the root has no hostname. Page-level failures never fail the
// crawl; they are reported to the Observer and counted in the report's
// Stats. If ctx is cancelled, Crawl waits for all tasks to unwind and
// returns the partial report together with ctx.Err().
//
// Design decision: We return the whole report rather than streaming pages
// because:
//  1. Report writers need the complete page set anyway
//  2. Admission order is only final once every task has finished
//  3. Progress is available through the Observer while crawling
func (s *Spider) Crawl(ctx context.Context, rootURL string) (*model.CrawlReport, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	root, rootHost, err := ResolveRoot(rootURL)
	if err != nil {
		return nil, err
	}

	report := model.NewCrawlReport(root, rootHost)
	report.MaxPages = s.maxPages
	report.MaxConcurrency = s.maxConcurrency
	report.MaxRetries = s.maxRetries

	policy := robots.AllowAll()
	if s.respectRobots {
		loaded, err := robots.Load(ctx, s.client, root, s.userAgent)
		if err != nil {
			s.observer.Observe(Event{Kind: EventRobotsUnavailable, URL: root, Err: err})
		}
		policy = loaded
		report.RobotsURL = loaded.Source()
		report.CrawlDelay = loaded.CrawlDelay()
	}

	r := newRun(ctx, runConfig{
		fetcher:  s.newPageFetcher(),
		robots:   policy,
		observer: s.observer,
		rootHost: rootHost,
		maxPages: s.maxPages,
	})
	defer r.cancel()

	var g errgroup.Group
	r.spawn(&g, root)
	_ = g.Wait()

	r.fill(report)
	report.FinishedAt = time.Now()

	return report, ctx.Err()
}

// validate checks the crawl bounds.
func (s *Spider) validate() error {
	switch {
	case s.maxPages < 1:
		return fmt.Errorf("%w: max pages must be at least 1, got %d", ErrInvalidConfiguration, s.maxPages)
	case s.maxConcurrency < 1:
		return fmt.Errorf("%w: max concurrency must be at least 1, got %d", ErrInvalidConfiguration, s.maxConcurrency)
	case s.maxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative, got %d", ErrInvalidConfiguration, s.maxRetries)
	case s.timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfiguration, s.timeout)
	}
	return nil
}

// ResolveRoot returns the canonical root URL and its lowercased hostname,
// the same way Crawl does before its first request. Callers use it to
// reject a bad root early.
func ResolveRoot(rootURL string) (string, string, error) {
	root, err := urlnorm.Canonicalize(urlnorm.EnsureScheme(rootURL))
	if err != nil {
		return "", "", fmt.Errorf("%w: root url: %w", ErrInvalidConfiguration, err)
	}

	rootHost := urlnorm.Hostname(root)
	if rootHost == "" {
		return "", "", fmt.Errorf("%w: root url %q has no hostname", ErrInvalidConfiguration, rootURL)
	}

	if err := filter.Admit(root, rootHost); err != nil {
		return "", "", fmt.Errorf("%w: root url: %w", ErrInvalidConfiguration, err)
	}

	return root, rootHost, nil
}

// newPageFetcher returns the injected fetcher or builds a fetch client with
// a permit pool sized to this crawl.
func (s *Spider) newPageFetcher() PageFetcher {
	if s.pageFetcher != nil {
		return s.pageFetcher
	}

	opts := []fetcher.Option{
		fetcher.WithHTTPClient(s.client),
		fetcher.WithUserAgent(s.userAgent),
		fetcher.WithTimeout(s.timeout),
		fetcher.WithMaxRetries(s.maxRetries),
		fetcher.WithMaxConcurrency(s.maxConcurrency),
		fetcher.WithMaxBodySize(s.maxBodySize),
		fetcher.WithHeaders(s.headers),
		fetcher.WithRetryHook(func(info fetcher.RetryInfo) {
			s.observer.Observe(Event{
				Kind:    EventFetchRetry,
				URL:     info.URL,
				Err:     info.Err,
				Attempt: info.Attempt,
				Delay:   info.Delay,
			})
		}),
	}
	return fetcher.New(append(opts, s.fetchOptions...)...)
}
