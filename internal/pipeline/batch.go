package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor crawls several root URLs concurrently, one pipeline each.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on a single crawl
// 2. Each site keeps its own Spider, so budgets never leak between sites
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each root URL.
	pipelineFactory func(rootURL string) *Pipeline

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each root URL to create a
// fresh pipeline. This allows per-site configuration such as cookies.
func NewBatchProcessor(pipelineFactory func(rootURL string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every root URL and returns the reports in input order.
// Failed crawls still yield a report (possibly empty); their errors are
// logged and do not stop the other crawls. Roots not started before ctx
// was cancelled have a nil report, and the returned error is ctx.Err().
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, roots []string) ([]*model.CrawlReport, error) {
	results := make([]*model.CrawlReport, len(roots))
	err := bp.ProcessBatchWithCallback(ctx, roots, func(report *model.CrawlReport, index int, _ error) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback crawls every root URL and calls callback for each
// finished one with its pipeline error. The callback is called from the
// goroutine that completed the crawl, so it must be safe for concurrent use.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	roots []string,
	callback func(report *model.CrawlReport, index int, err error),
) error {
	bp.logger.Info("starting batch processing",
		"total_sites", len(roots),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			report := model.NewCrawlReport(root, "")
			err := bp.pipelineFactory(root).Execute(ctx, report)
			if err != nil {
				bp.logger.Warn("crawl failed", "root", root, "error", err)
			}
			callback(report, i, err)
			return nil
		})
	}
	_ = g.Wait()

	bp.logger.Info("batch processing complete",
		"total_sites", len(roots),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
