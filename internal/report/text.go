package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// TextWriter outputs a short plain-text summary for terminal display.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary.
func (w *TextWriter) Write(report *model.CrawlReport) (int, error) {
	var b strings.Builder
	internal, external := report.LinkTotals()
	stats := report.Stats

	fmt.Fprintf(&b, "crawl of %s finished in %s\n", report.RootURL, report.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "  pages crawled:  %d (budget %d)\n", len(report.Pages), report.MaxPages)
	fmt.Fprintf(&b, "  failed:         %d\n", stats.Failed)
	fmt.Fprintf(&b, "  cancelled:      %d\n", stats.Cancelled)
	fmt.Fprintf(&b, "  skipped urls:   %d\n", stats.Skipped)
	fmt.Fprintf(&b, "  links:          %d internal, %d external\n", internal, external)
	if report.CrawlDelay > 0 {
		fmt.Fprintf(&b, "  robots.txt asks for a crawl delay of %s\n", report.CrawlDelay)
	}
	if stats.BudgetReached {
		b.WriteString("  page budget reached\n")
	}

	return io.WriteString(w.output, b.String())
}
