// Package model defines the data structures shared by the crawler, the
// report writers and the crawl history database.
//
// This package contains the following main types:
//   - Page: one successfully crawled page (heading, first paragraph,
//     outgoing links and images)
//   - CrawlReport: the result of one crawl run, pages in admission order
//     plus run statistics
//   - Diff: the difference between two crawl runs of the same site
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, report, database and pipeline packages all use
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
