package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/pipeline"
	"github.com/nao1215/sitecrawler/internal/report"
	"github.com/spf13/cobra"
)

// Positional argument errors.
var (
	errPositionalPair     = errors.New("max-concurrency and max-pages must be given together")
	errPositionalNotInt   = errors.New("max-concurrency and max-pages must be integers")
	errPositionalTooSmall = errors.New("max-concurrency and max-pages must be >= 1")
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [max-concurrency max-pages]",
		Short: "Crawl a website and write a report",
		Long: `Crawl fetches the root URL, follows every link on the same host, and stops
when no new pages are found or the page budget is reached.

Pages are fetched concurrently. 429 and 503 responses and network errors are
retried with exponential backoff. robots.txt is obeyed unless --ignore-robots
is given.

Examples:
  # Crawl with the defaults (3 concurrent fetches, 10 pages)
  sitecrawler crawl https://example.com

  # Positional concurrency and page budget
  sitecrawler crawl https://example.com 5 50

  # Also write a Graphviz link graph and a Markdown report
  sitecrawler crawl --dot site.dot --markdown report.md https://example.com

  # Crawl every site listed in a file, two at a time
  sitecrawler crawl --list sites.txt --batch 2

Settings are resolved in this order: built-in defaults, then the
configuration file, then flags and positional bounds given on the command
line. maxRetries: 0 in the file disables retries.

Configuration file (.sitecrawler) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      maxPages: 50`,
		Args: cobra.MaximumNArgs(3),
		RunE: runCrawlCmd,
	}

	// Crawl bounds
	cmd.Flags().IntP("max-concurrency", "n", config.DefaultMaxConcurrency,
		"Number of pages fetched at the same time")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl")
	cmd.Flags().IntP("max-retries", "r", config.DefaultMaxRetries,
		"Retries for 429, 503 and network errors")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each fetch attempt")

	// Request behavior
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Bool("ignore-robots", false,
		"Do not fetch or obey robots.txt")
	cmd.Flags().String("proxy", "",
		"Proxy URL (http://, https://, socks5:// or socks5h://)")

	// Targets
	cmd.Flags().StringP("list", "l", "",
		"File with one root URL per line")
	cmd.Flags().IntP("batch", "b", 1,
		"Number of sites crawled at the same time with --list")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawler in current or home directory)")

	// Reports
	cmd.Flags().String("csv", config.DefaultCSVFile,
		"CSV report path (empty to disable)")
	cmd.Flags().String("dot", "",
		"Graphviz DOT link graph path")
	cmd.Flags().Bool("dot-external", false,
		"Include edges to other domains in the DOT graph")
	cmd.Flags().StringP("markdown", "m", "",
		"Markdown report path")
	cmd.Flags().StringP("json", "j", "",
		"JSON report path")

	// History
	cmd.Flags().Bool("no-db", false,
		"Do not save the crawl to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, targets, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	for _, target := range targets {
		if _, _, err := crawler.ResolveRoot(target); err != nil {
			return err
		}
	}

	batch, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd, cfg, targets, batch)
}

// buildConfig creates a Config and the list of root URLs from flags and
// positional arguments.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, []string, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	flags := cmd.Flags()

	if cfg.MaxConcurrency, err = flags.GetInt("max-concurrency"); err != nil {
		return nil, nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, nil, err
	}
	if cfg.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
		return nil, nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, nil, err
	}
	ignoreRobots, err := flags.GetBool("ignore-robots")
	if err != nil {
		return nil, nil, err
	}
	cfg.RespectRobots = !ignoreRobots
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, nil, err
	}
	if cfg.CSVFile, err = flags.GetString("csv"); err != nil {
		return nil, nil, err
	}
	if cfg.DOTFile, err = flags.GetString("dot"); err != nil {
		return nil, nil, err
	}
	if cfg.DOTExternal, err = flags.GetBool("dot-external"); err != nil {
		return nil, nil, err
	}
	if cfg.MarkdownFile, err = flags.GetString("markdown"); err != nil {
		return nil, nil, err
	}
	if cfg.JSONFile, err = flags.GetString("json"); err != nil {
		return nil, nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, nil, err
	}

	for flag, setting := range map[string]config.Setting{
		"max-concurrency": config.SettingMaxConcurrency,
		"max-pages":       config.SettingMaxPages,
		"max-retries":     config.SettingMaxRetries,
		"user-agent":      config.SettingUserAgent,
	} {
		if flags.Changed(flag) {
			cfg.MarkExplicit(setting)
		}
	}

	// Positional form: <url> [max-concurrency max-pages]
	switch len(args) {
	case 2:
		return nil, nil, errPositionalPair
	case 3:
		concurrency, err1 := strconv.Atoi(args[1])
		pages, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil {
			return nil, nil, errPositionalNotInt
		}
		if concurrency < 1 || pages < 1 {
			return nil, nil, errPositionalTooSmall
		}
		cfg.MaxConcurrency = concurrency
		cfg.MaxPages = pages
		cfg.MarkExplicit(config.SettingMaxConcurrency)
		cfg.MarkExplicit(config.SettingMaxPages)
	}

	var targets []string
	if len(args) > 0 {
		targets = append(targets, args[0])
	}
	listPath, err := flags.GetString("list")
	if err != nil {
		return nil, nil, err
	}
	if listPath != "" {
		listed, err := readTargetList(listPath)
		if err != nil {
			return nil, nil, err
		}
		targets = append(targets, listed...)
	}
	if len(targets) > 0 {
		cfg.Target = targets[0]
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, nil, err
	}
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	return cfg, targets, nil
}

// readTargetList reads root URLs from path, one per line. Blank lines and
// lines starting with # are ignored.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return targets, nil
}

// siteConfig returns a copy of cfg with the configuration file entry for
// the target's host applied.
func siteConfig(cfg *config.Config, host string) *config.Config {
	site := *cfg
	site.Headers = maps.Clone(cfg.Headers)
	site.ApplySiteConfig(host)
	return &site
}

// newSpider builds a Spider from the crawl configuration.
func newSpider(client *http.Client, cfg *config.Config, observer crawler.Observer) *crawler.Spider {
	return crawler.NewSpider(client,
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxConcurrency(cfg.MaxConcurrency),
		crawler.WithMaxRetries(cfg.MaxRetries),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithSpiderUserAgent(cfg.UserAgent),
		crawler.WithSpiderMaxBodySize(cfg.MaxBodySize),
		crawler.WithHeaders(cfg.Headers),
		crawler.WithRespectRobots(cfg.RespectRobots),
		crawler.WithObserver(observer),
	)
}

// reportOutputs lists the report files enabled in cfg. With several sites
// in one run, the host is added to each file name.
func reportOutputs(cfg *config.Config, host string, perSite bool) []pipeline.Output {
	path := func(p string) string {
		if !perSite {
			return p
		}
		ext := filepath.Ext(p)
		return strings.TrimSuffix(p, ext) + "-" + host + ext
	}

	var outputs []pipeline.Output
	if cfg.CSVFile != "" {
		outputs = append(outputs, pipeline.Output{
			Path:      path(cfg.CSVFile),
			NewWriter: func(w io.Writer) report.Writer { return report.NewCSVWriter(w) },
		})
	}
	if cfg.DOTFile != "" {
		external := cfg.DOTExternal
		outputs = append(outputs, pipeline.Output{
			Path: path(cfg.DOTFile),
			NewWriter: func(w io.Writer) report.Writer {
				return report.NewDOTWriter(w, report.WithExternalEdges(external))
			},
		})
	}
	if cfg.MarkdownFile != "" {
		outputs = append(outputs, pipeline.Output{
			Path:      path(cfg.MarkdownFile),
			NewWriter: func(w io.Writer) report.Writer { return report.NewMarkdownWriter(w) },
		})
	}
	if cfg.JSONFile != "" {
		outputs = append(outputs, pipeline.Output{
			Path: path(cfg.JSONFile),
			NewWriter: func(w io.Writer) report.Writer {
				return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
			},
		})
	}
	return outputs
}

// runCrawl crawls every target through the standard pipeline.
func runCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, targets []string, batch int) error {
	logger := setupLogger(cmd)
	out := cmd.OutOrStdout()
	progress := newProgressObserver(out)

	client, err := fetcher.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return fmt.Errorf("failed to create http client: %w", err)
	}

	// store stays a nil interface when history is disabled.
	var store pipeline.ReportStore
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		store = db
	}

	observer := crawler.MultiObserver(progress, crawler.NewLogObserver(logger))
	perSite := len(targets) > 1

	factory := func(root string) *pipeline.Pipeline {
		_, host, _ := crawler.ResolveRoot(root) // validated in runCrawlCmd
		site := siteConfig(cfg, host)

		progress.println("starting crawl of: " + root)
		return pipeline.NewCrawlPipeline(pipeline.CrawlPipelineConfig{
			Crawler: newSpider(client, site, observer),
			Store:   store,
			Outputs: reportOutputs(site, host, perSite),
			OnSaved: func(runID int64) {
				progress.println(fmt.Sprintf("saved crawl of %s as run %d", host, runID))
			},
			OnWritten: func(path string, pages int) {
				progress.println(fmt.Sprintf("wrote %s with %d pages", path, pages))
			},
		}, pipeline.WithLogger(logger), pipeline.WithContinueOnError(true))
	}

	if !perSite {
		crawlReport := model.NewCrawlReport(targets[0], "")
		err := factory(targets[0]).Execute(ctx, crawlReport)
		if crawlReport.RootHost != "" {
			_, _ = report.NewTextWriter(out).Write(crawlReport)
		}
		return err
	}

	var failed atomic.Int32
	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(batch),
		pipeline.WithBatchLogger(logger),
	)
	err = bp.ProcessBatchWithCallback(ctx, targets, func(r *model.CrawlReport, _ int, crawlErr error) {
		if crawlErr != nil {
			progress.println(fmt.Sprintf("crawl of %s failed: %v", r.RootURL, crawlErr))
			failed.Add(1)
		}
	})
	if err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d crawls failed", n, len(targets))
	}
	return nil
}
