package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/urlnorm"
)

// DOTWriter outputs a Graphviz directed graph with one edge per
// page-to-link relation. Only same-domain edges are written unless
// WithExternalEdges is set.
type DOTWriter struct {
	baseWriter

	// includeExternal also writes edges to off-site targets.
	includeExternal bool
}

// DOTWriterOption configures a DOTWriter.
type DOTWriterOption func(*DOTWriter)

// WithExternalEdges includes edges whose target is on another host.
func WithExternalEdges(include bool) DOTWriterOption {
	return func(w *DOTWriter) {
		w.includeExternal = include
	}
}

// NewDOTWriter creates a DOTWriter that outputs to the given writer.
func NewDOTWriter(output io.Writer, opts ...DOTWriterOption) *DOTWriter {
	w := &DOTWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the link graph in DOT format.
func (w *DOTWriter) Write(report *model.CrawlReport) (int, error) {
	counter := &countingWriter{w: w.output}
	bw := bufio.NewWriter(counter)

	_, _ = bw.WriteString("digraph site {\n")
	_, _ = bw.WriteString("  rankdir=LR;\n")

	rootHost := strings.ToLower(report.RootHost)
	for _, page := range report.Pages {
		if page.URL == "" {
			continue
		}
		for _, target := range page.OutgoingLinks {
			if !w.includeExternal && rootHost != "" && urlnorm.Hostname(target) != rootHost {
				continue
			}
			_, _ = fmt.Fprintf(bw, "  %s -> %s;\n", quoteDOT(page.URL), quoteDOT(target))
		}
	}

	_, _ = bw.WriteString("}\n")
	if err := bw.Flush(); err != nil {
		return counter.n, fmt.Errorf("write dot graph: %w", err)
	}
	return counter.n, nil
}

// quoteDOT returns s as a DOT quoted identifier.
func quoteDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
