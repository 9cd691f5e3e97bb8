package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/urlnorm"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "List stored crawl runs",
		Long: `History lists the crawl runs saved in the history database.

Without a host, every crawled host is listed. With a host, its runs are
listed newest first.

Examples:
  # List crawled hosts
  sitecrawler history

  # List runs of one host
  sitecrawler history example.com

  # Delete a run
  sitecrawler history --delete 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().Int64("delete", 0,
		"Delete the run with this ID")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	deleteID, err := cmd.Flags().GetInt64("delete")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if deleteID > 0 {
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted run %d\n", deleteID)
		return nil
	}

	if len(args) == 0 {
		return listHosts(cmd, db)
	}
	return listRuns(cmd, db, hostArg(args[0]))
}

// hostArg accepts either a bare host or a URL and returns the lowercased host.
func hostArg(arg string) string {
	if host := urlnorm.Hostname(arg); host != "" {
		return host
	}
	return strings.ToLower(arg)
}

// listHosts prints every host with stored runs.
func listHosts(cmd *cobra.Command, db *database.CrawlDB) error {
	hosts, err := db.ListHosts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No crawled hosts found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecrawler crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled hosts (%d):\n\n", len(hosts))
	for _, host := range hosts {
		fmt.Fprintf(out, "  • %s\n", host)
	}
	fmt.Fprintln(out, "\nUse 'sitecrawler history <host>' to see the runs of a host.")
	return nil
}

// listRuns prints the runs of host, newest first.
func listRuns(cmd *cobra.Command, db *database.CrawlDB, host string) error {
	runs, err := db.ListRuns(cmd.Context(), host)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", host)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d runs):\n\n", host, len(runs))
	writeRunTable(out, runs)
	fmt.Fprintln(out, "\nUse 'sitecrawler compare <host>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'sitecrawler compare --with-run-id <id> <host>' to compare with a specific run.")
	return nil
}

func writeRunTable(out io.Writer, runs []database.RunMetadata) {
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %-6s  %s\n", "ID", "Date", "Pages", "Failed", "Budget")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	for _, run := range runs {
		budget := "-"
		if run.Stats.BudgetReached {
			budget = "reached"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-6d  %-6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.PagesCrawled,
			run.Stats.Failed,
			budget,
		)
	}
}
