// Package crawler provides the same-domain crawl engine.
//
// # Architecture
//
// The crawler package is designed around the Spider type, which holds the
// crawl configuration. Each call to Spider.Crawl creates a run that owns
// the result map, the stop flag and the registry of live tasks.
//
// Every URL is processed by its own task. A task walks the URL through
// canonicalization, the admission filter, the robots.txt policy and
// deduplication, fetches and extracts the page, then spawns one child task
// per admissible outgoing link and waits for all of them. The crawl is over
// when the root task's subtree has finished.
//
// # Components
//
//   - Spider: configuration and the Crawl entry point
//   - Parser: HTML extraction of heading, first paragraph, links and images
//   - Observer: structured events (page admitted, fetch failed, budget
//     reached, ...) in place of printed progress
//
// # Budget and cancellation
//
// The result map never holds more than maxPages keys. The first candidate
// that finds the map full sets the stop flag and cancels every live task.
// Cancelled fetches return promptly, including those sleeping between
// retries, and are not reported as failures. Crawl waits for every task to
// unwind before it returns.
//
// # Usage
//
//	spider := crawler.NewSpider(httpClient, crawler.WithMaxPages(50))
//	report, err := spider.Crawl(ctx, "https://example.com")
package crawler
