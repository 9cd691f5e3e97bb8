package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parser extracts the heading, first paragraph, links and images of a page.
//
// Design decision: We use goquery on top of golang.org/x/net/html rather
// than regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. CSS selectors express "first <p> inside <main>" directly
//  3. Text is still collected from the underlying html.Node tree
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains all information extracted from an HTML page.
// Missing elements yield empty strings and empty slices, never nil.
type ParseResult struct {
	// Heading is the text of the first <h1>.
	Heading string

	// FirstParagraph is the text of the first <p> inside the first <main>,
	// falling back to the first <p> of the document.
	FirstParagraph string

	// Links are the absolute targets of every <a href>, in document order.
	Links []string

	// Images are the absolute sources of every <img src>, in document order.
	Images []string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts all relevant information.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &ParseResult{
		Heading:        selectionText(doc.Find("h1").First()),
		FirstParagraph: p.firstParagraph(doc),
		Links:          p.collect(doc.Find("a[href]"), "href"),
		Images:         p.collect(doc.Find("img[src]"), "src"),
	}
	return result, nil
}

// firstParagraph prefers the main content area, so that navigation or
// banner paragraphs before <main> are not picked up.
func (p *Parser) firstParagraph(doc *goquery.Document) string {
	if main := doc.Find("main").First(); main.Length() > 0 {
		if para := main.Find("p").First(); para.Length() > 0 {
			return selectionText(para)
		}
	}
	return selectionText(doc.Find("p").First())
}

// collect resolves the given attribute of every selected element.
// Empty attributes and unresolvable references are skipped.
func (p *Parser) collect(sel *goquery.Selection, attr string) []string {
	urls := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr(attr)
		if resolved := p.resolveURL(value); resolved != "" {
			urls = append(urls, resolved)
		}
	})
	return urls
}

// resolveURL resolves a relative URL against the base URL.
// Non-HTTP references such as mailto: are returned as-is; the admission
// filter decides what is crawlable.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// selectionText returns the whitespace-normalized text of the first node in
// sel: every text fragment is trimmed and non-empty fragments are joined
// with a single space.
func selectionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel.Get(0))

	return strings.Join(parts, " ")
}
