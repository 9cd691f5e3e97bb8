// Package database provides SQLite-based crawl history for sitecrawler.
//
// This package implements the CrawlDB, which stores:
//   - One crawl_runs row per crawl, with its bounds and statistics
//   - One crawl_pages row per crawled page, in admission order
//
// Stored runs can be listed per host and loaded back into a
// model.CrawlReport, which lets two crawls of the same site be compared.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
