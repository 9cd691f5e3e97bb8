package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/sitecrawler/internal/model"
)

// csvHeader lists the CSV columns in order.
var csvHeader = []string{
	"page_url",
	"h1",
	"first_paragraph",
	"internal_links_count",
	"external_links_count",
	"external_domains",
	"outgoing_link_urls",
	"image_urls",
}

// listSeparator joins multi-valued cells.
const listSeparator = ";"

// CSVWriter outputs one row per crawled page, in admission order.
// Link classification is relative to the report's root host.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report as CSV with a header row.
func (w *CSVWriter) Write(report *model.CrawlReport) (int, error) {
	counter := &countingWriter{w: w.output}
	cw := csv.NewWriter(counter)

	if err := cw.Write(csvHeader); err != nil {
		return counter.n, fmt.Errorf("write csv header: %w", err)
	}

	for _, page := range report.Pages {
		if err := cw.Write(csvRow(page, report.RootHost)); err != nil {
			return counter.n, fmt.Errorf("write csv row for %s: %w", page.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return counter.n, fmt.Errorf("flush csv: %w", err)
	}
	return counter.n, nil
}

func csvRow(page *model.Page, rootHost string) []string {
	return []string{
		page.URL,
		page.Heading,
		page.FirstParagraph,
		strconv.Itoa(len(page.InternalLinks(rootHost))),
		strconv.Itoa(len(page.ExternalLinks(rootHost))),
		strings.Join(page.ExternalDomains(rootHost), listSeparator),
		strings.Join(page.OutgoingLinks, listSeparator),
		strings.Join(page.ImageURLs, listSeparator),
	}
}
