package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// This command compares crawl results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <host>",
		Short: "Compare crawl results with historical data",
		Long: `Compare displays differences between the latest and a previous crawl of a host.

Pages are matched by their canonical URL and reported as:
- Added pages that were not found by the previous crawl
- Removed pages that are no longer reachable
- Changed pages whose heading or content differs

The comparison requires at least two runs in the database for the host.
Use 'sitecrawler history <host>' to see the stored runs.

Examples:
  # Compare the latest two crawls of a site
  sitecrawler compare example.com

  # Compare with a specific run by ID
  sitecrawler compare --with-run-id 5 example.com

  # Compare with the first run after a date
  sitecrawler compare --since "2026-01-01" example.com

  # Output comparison in JSON format
  sitecrawler compare --json example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use 'history <host>' to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// compareOptions holds the parsed compare flags.
type compareOptions struct {
	withRunID int64
	since     string
	json      bool
	markdown  bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	var (
		opts compareOptions
		err  error
	)
	if opts.withRunID, err = cmd.Flags().GetInt64("with-run-id"); err != nil {
		return err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return errors.New("--json and --markdown cannot be used together")
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening database
	host := hostArg(args[0])
	if host == "" {
		return errors.New("host is required")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	result, err := runComparison(cmd.Context(), db, host, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case opts.json:
		return outputComparisonJSON(out, result)
	case opts.markdown:
		outputComparisonMarkdown(out, result)
	default:
		outputComparisonText(out, result)
	}
	return nil
}

// runComparison picks the two runs to compare and diffs their pages.
func runComparison(ctx context.Context, db *database.CrawlDB, host string, opts compareOptions) (*ComparisonResult, error) {
	runs, err := db.ListRuns(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", host)
	}
	if len(runs) < 2 && opts.withRunID == 0 && opts.since == "" {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	// Latest run is always the current one
	current := runs[0]
	var previousID int64

	switch {
	case opts.withRunID > 0:
		previousID = opts.withRunID
	case opts.since != "":
		sinceDate, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Runs are sorted newest first, so iterate in reverse to find the
		// oldest run at or after the date.
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].StartedAt.Before(sinceDate) {
				previousID = runs[i].ID
				break
			}
		}
		if previousID == 0 {
			return nil, fmt.Errorf("no runs found since %s", opts.since)
		}
		if previousID == current.ID {
			return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since)
		}
	default:
		previousID = runs[1].ID
	}

	previousReport, err := db.GetReport(ctx, previousID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run with ID %d: %w", previousID, err)
	}
	if previousReport.RootHost != host {
		return nil, fmt.Errorf("run ID %d belongs to %s, not %s", previousID, previousReport.RootHost, host)
	}
	currentReport, err := db.GetLatestReport(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return compareReports(host, previousID, previousReport, current.ID, currentReport), nil
}

// ComparisonResult holds the result of comparing two crawl runs.
type ComparisonResult struct {
	// Host is the crawled host.
	Host string `json:"host"`

	// PreviousRun contains metadata about the older run.
	PreviousRun RunSummary `json:"previous_run"`

	// CurrentRun contains metadata about the newer run.
	CurrentRun RunSummary `json:"current_run"`

	// AddedPages are URLs only found by the current run.
	AddedPages []string `json:"added_pages,omitempty"`

	// RemovedPages are URLs only found by the previous run.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// ChangedPages are pages found by both runs whose content differs.
	ChangedPages []ChangedPage `json:"changed_pages,omitempty"`

	// UnchangedCount is the number of pages that remain unchanged.
	UnchangedCount int `json:"unchanged_count"`
}

// RunSummary contains metadata about a run for comparison display.
type RunSummary struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Pages     int       `json:"pages"`
	Failed    int       `json:"failed"`
	Links     int       `json:"links"`
}

// ChangedPage describes one changed page.
type ChangedPage struct {
	URL        string `json:"url"`
	OldHeading string `json:"old_heading"`
	NewHeading string `json:"new_heading"`
}

// HasChanges reports whether any page was added, removed or changed.
func (r *ComparisonResult) HasChanges() bool {
	return len(r.AddedPages) > 0 || len(r.RemovedPages) > 0 || len(r.ChangedPages) > 0
}

// compareReports compares two crawl reports and generates a comparison result.
func compareReports(host string, previousID int64, previous *model.CrawlReport, currentID int64, current *model.CrawlReport) *ComparisonResult {
	diff := model.ComparePages(previous.Pages, current.Pages)

	result := &ComparisonResult{
		Host:           host,
		PreviousRun:    summarizeRun(previousID, previous),
		CurrentRun:     summarizeRun(currentID, current),
		UnchangedCount: len(current.Pages) - len(diff.Added) - len(diff.Changed),
	}
	for _, p := range diff.Added {
		result.AddedPages = append(result.AddedPages, p.URL)
	}
	for _, p := range diff.Removed {
		result.RemovedPages = append(result.RemovedPages, p.URL)
	}
	for _, c := range diff.Changed {
		result.ChangedPages = append(result.ChangedPages, ChangedPage{
			URL:        c.New.URL,
			OldHeading: c.Old.Heading,
			NewHeading: c.New.Heading,
		})
	}
	return result
}

func summarizeRun(id int64, r *model.CrawlReport) RunSummary {
	internal, external := r.LinkTotals()
	return RunSummary{
		ID:        id,
		StartedAt: r.StartedAt,
		Pages:     len(r.Pages),
		Failed:    r.Stats.Failed,
		Links:     internal + external,
	}
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "# Crawl Comparison: %s\n\n", result.Host)

	fmt.Fprintln(out, "## Summary")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "| Metric | Previous | Current | Change |")
	fmt.Fprintln(out, "|--------|----------|---------|--------|")
	fmt.Fprintf(out, "| Run | %d | %d | - |\n", result.PreviousRun.ID, result.CurrentRun.ID)
	fmt.Fprintf(out, "| Date | %s | %s | - |\n",
		result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04"),
		result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "| Pages | %d | %d | %s |\n",
		result.PreviousRun.Pages, result.CurrentRun.Pages,
		formatDelta(result.CurrentRun.Pages-result.PreviousRun.Pages))
	fmt.Fprintf(out, "| Failed | %d | %d | %s |\n",
		result.PreviousRun.Failed, result.CurrentRun.Failed,
		formatDelta(result.CurrentRun.Failed-result.PreviousRun.Failed))
	fmt.Fprintf(out, "| Links | %d | %d | %s |\n",
		result.PreviousRun.Links, result.CurrentRun.Links,
		formatDelta(result.CurrentRun.Links-result.PreviousRun.Links))

	if len(result.AddedPages) > 0 {
		fmt.Fprintf(out, "\n## Added Pages (%d)\n\n", len(result.AddedPages))
		for _, u := range result.AddedPages {
			fmt.Fprintf(out, "- %s\n", u)
		}
	}

	if len(result.RemovedPages) > 0 {
		fmt.Fprintf(out, "\n## Removed Pages (%d)\n\n", len(result.RemovedPages))
		for _, u := range result.RemovedPages {
			fmt.Fprintf(out, "- ~~%s~~\n", u)
		}
	}

	if len(result.ChangedPages) > 0 {
		fmt.Fprintf(out, "\n## Changed Pages (%d)\n\n", len(result.ChangedPages))
		for _, c := range result.ChangedPages {
			fmt.Fprintf(out, "- %s\n", c.URL)
			if c.OldHeading != c.NewHeading {
				fmt.Fprintf(out, "  - Heading: `%s` → `%s`\n", c.OldHeading, c.NewHeading)
			}
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\n---\n\n*%d pages unchanged*\n", result.UnchangedCount)
	}
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", result.Host)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: #%-4d %s\n", result.PreviousRun.ID,
		result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current run:  #%-4d %s\n", result.CurrentRun.ID,
		result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Pages",
		result.PreviousRun.Pages, result.CurrentRun.Pages,
		formatDelta(result.CurrentRun.Pages-result.PreviousRun.Pages))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Failed",
		result.PreviousRun.Failed, result.CurrentRun.Failed,
		formatDelta(result.CurrentRun.Failed-result.PreviousRun.Failed))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Links",
		result.PreviousRun.Links, result.CurrentRun.Links,
		formatDelta(result.CurrentRun.Links-result.PreviousRun.Links))

	if !result.HasChanges() {
		fmt.Fprintln(out, "\nNo page changes.")
		return
	}

	if len(result.AddedPages) > 0 {
		fmt.Fprintf(out, "\nAdded Pages (%d):\n", len(result.AddedPages))
		for _, u := range result.AddedPages {
			fmt.Fprintf(out, "  + %s\n", u)
		}
	}
	if len(result.RemovedPages) > 0 {
		fmt.Fprintf(out, "\nRemoved Pages (%d):\n", len(result.RemovedPages))
		for _, u := range result.RemovedPages {
			fmt.Fprintf(out, "  - %s\n", u)
		}
	}
	if len(result.ChangedPages) > 0 {
		fmt.Fprintf(out, "\nChanged Pages (%d):\n", len(result.ChangedPages))
		for _, c := range result.ChangedPages {
			fmt.Fprintf(out, "  ~ %s\n", c.URL)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\n%d pages unchanged\n", result.UnchangedCount)
	}
}

// formatDelta formats a numeric delta with a sign prefix.
func formatDelta(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("+%d", delta)
	case delta < 0:
		return fmt.Sprintf("%d", delta)
	default:
		return "0"
	}
}
