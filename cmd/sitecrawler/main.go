// Package main provides the entry point for the sitecrawler CLI.
//
// sitecrawler crawls one website from a root URL, follows same-domain links
// up to a page budget, and writes a CSV report of every page it saw.
//
// Usage:
//
//	sitecrawler crawl <url> [max-concurrency max-pages]
//	sitecrawler history [host]
//	sitecrawler compare <host>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
