// Package robots loads and evaluates the robots.txt policy of the crawl root.
//
// The policy is fetched once per crawl, before any page is requested, and
// is read-only afterwards. Loading is best effort: a network failure, a
// non-2xx status, an oversized body or unparseable content all yield a
// policy that allows every URL.
package robots
