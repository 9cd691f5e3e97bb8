package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// newTestReport creates a report with two pages for testing.
func newTestReport() *model.CrawlReport {
	return &model.CrawlReport{
		RootURL:        "https://example.com",
		RootHost:       "example.com",
		StartedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt:     time.Date(2026, 1, 2, 3, 4, 7, 0, time.UTC),
		MaxPages:       10,
		MaxConcurrency: 3,
		Pages: []*model.Page{
			{
				CanonicalKey:   "example.com",
				URL:            "https://example.com",
				Heading:        "Home, sweet \"home\"",
				FirstParagraph: "Welcome",
				OutgoingLinks: []string{
					"https://example.com/about",
					"https://other.org/x",
					"https://cdn.example.com/y",
				},
				ImageURLs: []string{"https://example.com/a.png", "https://example.com/b.png"},
			},
			{
				CanonicalKey:  "example.com/about",
				URL:           "https://example.com/about",
				Heading:       "About",
				OutgoingLinks: []string{"https://example.com"},
			},
		},
		Stats: model.CrawlStats{Admitted: 3, Crawled: 2, Failed: 1},
	}
}

// TestCSVWriter tests CSV report output.
func TestCSVWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := NewCSVWriter(&buf).Write(newTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != buf.Len() {
		t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d records", len(records))
	}

	wantHeader := "page_url,h1,first_paragraph,internal_links_count,external_links_count,external_domains,outgoing_link_urls,image_urls"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("unexpected header %q", got)
	}

	row := records[1]
	if row[0] != "https://example.com" || row[1] != "Home, sweet \"home\"" || row[2] != "Welcome" {
		t.Errorf("unexpected leading columns: %v", row[:3])
	}
	if row[3] != "1" || row[4] != "2" {
		t.Errorf("expected 1 internal and 2 external links, got %s and %s", row[3], row[4])
	}
	if row[5] != "cdn.example.com;other.org" {
		t.Errorf("unexpected external domains %q", row[5])
	}
	if row[6] != "https://example.com/about;https://other.org/x;https://cdn.example.com/y" {
		t.Errorf("unexpected outgoing links %q", row[6])
	}
	if row[7] != "https://example.com/a.png;https://example.com/b.png" {
		t.Errorf("unexpected images %q", row[7])
	}

	if records[2][0] != "https://example.com/about" {
		t.Errorf("rows not in admission order: %v", records[2][0])
	}

	t.Run("empty report writes only the header", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if _, err := NewCSVWriter(&out).Write(&model.CrawlReport{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(out.String(), "\n") != 1 {
			t.Errorf("expected a single header line, got %q", out.String())
		}
	})
}

// TestDOTWriter tests graph output.
func TestDOTWriter(t *testing.T) {
	t.Parallel()

	t.Run("internal edges only by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewDOTWriter(&buf).Write(newTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "digraph site {\n" +
			"  rankdir=LR;\n" +
			"  \"https://example.com\" -> \"https://example.com/about\";\n" +
			"  \"https://example.com/about\" -> \"https://example.com\";\n" +
			"}\n"
		if buf.String() != want {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})

	t.Run("external edges when requested", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewDOTWriter(&buf, WithExternalEdges(true)).Write(newTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"https://example.com" -> "https://other.org/x";`) {
			t.Errorf("expected external edge, got:\n%s", buf.String())
		}
	})

	t.Run("escapes quotes and backslashes", func(t *testing.T) {
		t.Parallel()

		if got := quoteDOT(`a"b\c`); got != `"a\"b\\c"` {
			t.Errorf("unexpected quoting %s", got)
		}
	})
}

// TestMarkdownWriter tests markdown output.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := NewMarkdownWriter(&buf).Write(newTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == 0 {
		t.Error("expected non-zero byte count")
	}

	out := buf.String()
	for _, want := range []string{
		"# Crawl Report",
		"## Crawl Statistics",
		"## Pages",
		"https://example.com/about",
		"mermaid",
		"Internal Links",
		"External Links",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}

	t.Run("empty report", func(t *testing.T) {
		t.Parallel()

		var empty bytes.Buffer
		if _, err := NewMarkdownWriter(&empty).Write(&model.CrawlReport{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(empty.String(), "No pages were crawled.") {
			t.Error("expected empty report message")
		}
	})
}

// TestJSONWriter tests JSON output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("compact output round trips pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(newTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded.Pages) != 2 || decoded.Stats.Failed != 1 {
			t.Errorf("unexpected decoded report: %+v", decoded)
		}
		if strings.Contains(strings.TrimSpace(buf.String()), "\n") {
			t.Error("compact output should be a single line")
		}
	})

	t.Run("pretty print with version wrapper", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint(), WithVersion("v1.2.3")).Write(newTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version != "v1.2.3" || decoded.Report == nil {
			t.Errorf("unexpected wrapper: %+v", decoded)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output")
		}
	})
}

// TestTextWriter tests the terminal summary.
func TestTextWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewTextWriter(&buf).Write(newTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "pages crawled:  2 (budget 10)") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "2 internal, 2 external") {
		t.Errorf("unexpected link totals:\n%s", out)
	}
}

// failingWriter always fails.
type failingWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failingWriter) Write(*model.CrawlReport) (int, error) {
	return 0, errWriteFailed
}

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var csvBuf, dotBuf bytes.Buffer
	multi := NewMultiWriter(NewCSVWriter(&csvBuf), NewDOTWriter(&dotBuf))

	n, err := multi.Write(newTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != csvBuf.Len()+dotBuf.Len() {
		t.Errorf("expected total of %d bytes, got %d", csvBuf.Len()+dotBuf.Len(), n)
	}

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		_, err := NewMultiWriter(failingWriter{}, NewCSVWriter(&after)).Write(newTestReport())
		if !errors.Is(err, errWriteFailed) {
			t.Errorf("expected errWriteFailed, got %v", err)
		}
		if after.Len() != 0 {
			t.Error("writers after the failing one should not run")
		}
	})
}
