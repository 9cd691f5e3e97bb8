// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - CSVWriter: one row per crawled page, the primary report
//   - DOTWriter: a Graphviz digraph of page-to-page links
//   - MarkdownWriter: a human-readable summary for sharing
//   - JSONWriter: structured JSON output for tool integration
//   - TextWriter: a short summary for terminal display
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the core data structures.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
