package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/report"
)

// Crawler produces a report for a root URL. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, rootURL string) (*model.CrawlReport, error)
}

// ReportStore persists finished reports. *database.CrawlDB implements it.
type ReportStore interface {
	SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// CrawlStep crawls report.RootURL and replaces the report with the result.
//
// Design decision: Crawling is separate from persistence and reporting
// because:
// 1. It is the only step that talks to the network
// 2. A partial result after cancellation is still handed to the pipeline
// 3. Tests can substitute a fake Crawler
type CrawlStep struct {
	// crawler performs the crawl.
	crawler Crawler

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawling step.
func NewCrawlStep(crawler Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: crawler,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, r *model.CrawlReport) error {
	result, err := s.crawler.Crawl(ctx, r.RootURL)
	if result != nil {
		*r = *result
	}
	if err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"root", r.RootURL,
		"pages", len(r.Pages),
		"admitted", r.Stats.Admitted,
		"failed", r.Stats.Failed,
		"budget_reached", r.Stats.BudgetReached,
	)
	return nil
}

// SaveStep stores the report in the crawl history.
type SaveStep struct {
	// store receives the report.
	store ReportStore

	// onSaved is called with the new run ID.
	onSaved func(runID int64)

	// logger for structured logging.
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// WithSavedHook registers a function called after a successful save.
func WithSavedHook(fn func(runID int64)) SaveStepOption {
	return func(s *SaveStep) {
		s.onSaved = fn
	}
}

// NewSaveStep creates a new persistence step.
func NewSaveStep(store ReportStore, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		store:  store,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do executes the save step.
func (s *SaveStep) Do(ctx context.Context, r *model.CrawlReport) error {
	if r.RootHost == "" {
		return ErrNoCrawlResult
	}

	runID, err := s.store.SaveReport(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to save crawl report: %w", err)
	}

	s.logger.Info("crawl report saved to database", "root", r.RootURL, "run_id", runID)
	if s.onSaved != nil {
		s.onSaved(runID)
	}
	return nil
}

// Output is one report file produced by a ReportStep.
type Output struct {
	// Path is the destination file. Parent directories are created.
	Path string

	// NewWriter builds the report writer for the opened file.
	NewWriter func(w io.Writer) report.Writer
}

// ReportStep writes the report to every configured Output.
type ReportStep struct {
	// outputs are written in order.
	outputs []Output

	// onWritten is called after each file is complete.
	onWritten func(path string, pages int)

	// logger for structured logging.
	logger *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// WithWrittenHook registers a function called after each report file is written.
func WithWrittenHook(fn func(path string, pages int)) ReportStepOption {
	return func(s *ReportStep) {
		s.onWritten = fn
	}
}

// NewReportStep creates a new report generation step.
func NewReportStep(outputs []Output, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		outputs: outputs,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes every output. A failing output does not stop the others; all
// failures are returned joined.
func (s *ReportStep) Do(_ context.Context, r *model.CrawlReport) error {
	if r.RootHost == "" {
		return ErrNoCrawlResult
	}

	var errs []error
	for _, out := range s.outputs {
		n, err := writeReportFile(out, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s: %w", out.Path, err))
			continue
		}

		s.logger.Debug("report written", "path", out.Path, "bytes", n)
		if s.onWritten != nil {
			s.onWritten(out.Path, len(r.Pages))
		}
	}
	return errors.Join(errs...)
}

// writeReportFile creates out.Path and writes the report into it.
func writeReportFile(out Output, r *model.CrawlReport) (n int, err error) {
	dir := filepath.Dir(out.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain URLs with session data, keep them owner-readable only.
	f, err := os.OpenFile(out.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return out.NewWriter(f).Write(r)
}

// CrawlPipelineConfig holds the parts of the standard crawl pipeline.
type CrawlPipelineConfig struct {
	// Crawler performs the crawl. Required.
	Crawler Crawler

	// Store receives the finished report. Nil skips persistence.
	Store ReportStore

	// Outputs are the report files to write. Empty skips reporting.
	Outputs []Output

	// OnSaved is called with the run ID after persistence.
	OnSaved func(runID int64)

	// OnWritten is called after each report file is written.
	OnWritten func(path string, pages int)
}

// NewCrawlPipeline creates the standard pipeline: crawl, save, report.
//
// Design decision: We provide a standard pipeline because:
// 1. The CLI crawl and batch modes share it
// 2. It ensures consistent ordering
func NewCrawlPipeline(cfg CrawlPipelineConfig, opts ...Option) *Pipeline {
	p := New(opts...)

	p.AddStep(NewCrawlStep(cfg.Crawler, WithCrawlLogger(p.logger)))
	if cfg.Store != nil {
		p.AddStep(NewSaveStep(cfg.Store,
			WithSaveLogger(p.logger),
			WithSavedHook(cfg.OnSaved),
		))
	}
	if len(cfg.Outputs) > 0 {
		p.AddStep(NewReportStep(cfg.Outputs,
			WithReportLogger(p.logger),
			WithWrittenHook(cfg.OnWritten),
		))
	}

	return p
}
