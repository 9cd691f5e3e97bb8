package model

import (
	"slices"
	"time"

	"github.com/nao1215/sitecrawler/internal/filter"
	"github.com/nao1215/sitecrawler/internal/urlnorm"
)

// Page represents one successfully crawled page.
//
// Design decision: A Page holds only what was extracted from the markup,
// not the raw body, because:
//  1. Reports and history only ever need the extracted fields
//  2. Memory stays proportional to the link graph, not to page sizes
//  3. ContentHash still allows change detection between runs
type Page struct {
	// CanonicalKey is the scheme-free comparison key that identifies the
	// page within a crawl (see urlnorm.ComparisonKey).
	CanonicalKey string `json:"canonical_key"`

	// URL is the canonical fetch form of the page URL.
	URL string `json:"url"`

	// Heading is the text of the first <h1>, or empty.
	Heading string `json:"heading"`

	// FirstParagraph is the text of the first <p> (preferring one inside
	// <main>), or empty.
	FirstParagraph string `json:"first_paragraph"`

	// OutgoingLinks are the page's link targets in canonical fetch form,
	// deduplicated, in document order. Off-site links are included.
	OutgoingLinks []string `json:"outgoing_links"`

	// ImageURLs are the page's image sources in canonical fetch form,
	// in document order.
	ImageURLs []string `json:"image_urls"`

	// ContentHash is the hex SHA3-256 of the decoded body.
	ContentHash string `json:"content_hash,omitempty"`

	// FetchedAt is when the body finished downloading.
	FetchedAt time.Time `json:"fetched_at"`
}

// InternalLinks returns the outgoing links whose host equals rootHost,
// using the same domain check that admits pages.
func (p *Page) InternalLinks(rootHost string) []string {
	links := make([]string, 0, len(p.OutgoingLinks))
	for _, link := range p.OutgoingLinks {
		if filter.IsInternal(link, rootHost) {
			links = append(links, link)
		}
	}
	return links
}

// ExternalLinks returns the outgoing links that are not internal, including
// host-less links such as mailto: targets.
func (p *Page) ExternalLinks(rootHost string) []string {
	links := make([]string, 0, len(p.OutgoingLinks))
	for _, link := range p.OutgoingLinks {
		if !filter.IsInternal(link, rootHost) {
			links = append(links, link)
		}
	}
	return links
}

// ExternalDomains returns the sorted, distinct, lowercased hostnames of the
// external links. Links without a hostname are ignored.
func (p *Page) ExternalDomains(rootHost string) []string {
	seen := make(map[string]struct{})
	for _, link := range p.ExternalLinks(rootHost) {
		if host := urlnorm.Hostname(link); host != "" {
			seen[host] = struct{}{}
		}
	}

	domains := make([]string, 0, len(seen))
	for host := range seen {
		domains = append(domains, host)
	}
	slices.Sort(domains)
	return domains
}
