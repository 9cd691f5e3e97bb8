package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitecrawler/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStats(md, report)
	w.writeLinkChart(md, report)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root URL", "`" + report.RootURL + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Max Pages", strconv.Itoa(report.MaxPages)},
			{"Max Concurrency", strconv.Itoa(report.MaxConcurrency)},
			{"Pages Crawled", strconv.Itoa(len(report.Pages))},
		},
	})
	md.PlainText("")
}

// writeStats writes the crawl statistics and an alert for notable outcomes.
func (w *MarkdownWriter) writeStats(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Crawl Statistics")
	md.PlainText("")

	stats := report.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Admitted", strconv.Itoa(stats.Admitted)},
			{"Crawled", strconv.Itoa(stats.Crawled)},
			{"Failed", strconv.Itoa(stats.Failed)},
			{"Cancelled", strconv.Itoa(stats.Cancelled)},
			{"Skipped", strconv.Itoa(stats.Skipped)},
		},
	})
	md.PlainText("")

	switch {
	case stats.Failed > 0:
		md.Warningf("%d page(s) could not be fetched or parsed.", stats.Failed)
	case stats.BudgetReached:
		md.Note(fmt.Sprintf("The crawl stopped at the page budget of %d pages.", report.MaxPages))
	default:
		md.Tip("Every reachable page was crawled.")
	}
	md.PlainText("")
}

// writeLinkChart writes a mermaid pie chart of internal versus external links.
func (w *MarkdownWriter) writeLinkChart(md *markdown.Markdown, report *model.CrawlReport) {
	internal, external := report.LinkTotals()
	if internal+external == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Outgoing Links"),
		piechart.WithShowData(true),
	)
	if internal > 0 {
		chart.LabelAndIntValue("Internal Links", uint64(internal))
	}
	if external > 0 {
		chart.LabelAndIntValue("External Links", uint64(external))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePages writes one table row per crawled page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, page := range report.Pages {
		heading := page.Heading
		if heading == "" {
			heading = "-"
		}
		domains := strings.Join(page.ExternalDomains(report.RootHost), ", ")
		if domains == "" {
			domains = "-"
		}
		rows[i] = []string{
			page.URL,
			truncateString(heading, 60),
			strconv.Itoa(len(page.InternalLinks(report.RootHost))),
			strconv.Itoa(len(page.ExternalLinks(report.RootHost))),
			truncateString(domains, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Heading", "Internal", "External", "External Domains"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawler](https://github.com/nao1215/sitecrawler)*")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
