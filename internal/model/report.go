package model

import (
	"time"
)

// CrawlReport is the result of one crawl run.
//
// Design decision: Pages is an ordered slice rather than a map because:
//  1. Admission order gives deterministic CSV and DOT output
//  2. The database stores pages in the same order
//  3. Lookup by key is still available through ByKey
type CrawlReport struct {
	// RootURL is the canonical fetch form of the seed URL.
	RootURL string `json:"root_url"`

	// RootHost is the lowercased hostname every crawled page shares.
	RootHost string `json:"root_host"`

	// StartedAt and FinishedAt bracket the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// MaxPages, MaxConcurrency and MaxRetries are the bounds the crawl ran with.
	MaxPages       int `json:"max_pages"`
	MaxConcurrency int `json:"max_concurrency"`
	MaxRetries     int `json:"max_retries"`

	// RobotsURL is the robots.txt the crawl obeyed. Empty when robots.txt
	// was ignored or unavailable.
	RobotsURL string `json:"robots_url,omitempty"`

	// CrawlDelay is the Crawl-delay robots.txt declared for the crawler.
	// It is reported but not enforced.
	CrawlDelay time.Duration `json:"crawl_delay,omitempty"`

	// Pages holds every successfully extracted page in admission order.
	Pages []*Page `json:"pages"`

	// Stats summarizes what happened during the crawl.
	Stats CrawlStats `json:"stats"`
}

// CrawlStats counts the outcomes of a crawl.
type CrawlStats struct {
	// Admitted is the number of canonical keys reserved in the result map.
	Admitted int `json:"admitted"`

	// Crawled is the number of pages fetched and extracted successfully.
	Crawled int `json:"crawled"`

	// Failed is the number of admitted pages whose fetch or extraction failed.
	Failed int `json:"failed"`

	// Cancelled is the number of admitted pages abandoned by cancellation.
	Cancelled int `json:"cancelled"`

	// Skipped is the number of candidate URLs rejected before admission
	// (invalid, filtered or disallowed by robots.txt). Duplicates are not
	// counted.
	Skipped int `json:"skipped"`

	// BudgetReached reports whether the crawl stopped at MaxPages.
	BudgetReached bool `json:"budget_reached"`
}

// NewCrawlReport creates an empty report for rootURL.
func NewCrawlReport(rootURL, rootHost string) *CrawlReport {
	return &CrawlReport{
		RootURL:   rootURL,
		RootHost:  rootHost,
		StartedAt: time.Now(),
		Pages:     make([]*Page, 0),
	}
}

// Duration returns how long the crawl ran.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ByKey returns the pages indexed by canonical key.
func (r *CrawlReport) ByKey() map[string]*Page {
	pages := make(map[string]*Page, len(r.Pages))
	for _, p := range r.Pages {
		pages[p.CanonicalKey] = p
	}
	return pages
}

// GetPage returns the page with the given canonical key, or nil.
func (r *CrawlReport) GetPage(key string) *Page {
	for _, p := range r.Pages {
		if p.CanonicalKey == key {
			return p
		}
	}
	return nil
}

// LinkTotals returns the number of internal and external outgoing links
// across all pages.
func (r *CrawlReport) LinkTotals() (internal, external int) {
	for _, p := range r.Pages {
		internal += len(p.InternalLinks(r.RootHost))
		external += len(p.ExternalLinks(r.RootHost))
	}
	return internal, external
}
