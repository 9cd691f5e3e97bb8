// Package filter decides whether a discovered URL is eligible for crawling.
//
// A URL is admitted only when it passes three checks, evaluated in order
// and short-circuiting on the first failure:
//
//  1. Scheme: http, https or no scheme at all.
//  2. Extension: the last path segment does not carry a known
//     non-document extension (archives, images, media, executables,
//     office documents and similar assets).
//  3. Domain: the lowercased hostname equals the crawl root's hostname.
//     Subdomains are different sites.
//
// Each rejection is reported with a distinct sentinel error so that
// callers can log or count the reason.
package filter
