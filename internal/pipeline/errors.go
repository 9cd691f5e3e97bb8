package pipeline

import "errors"

// ErrNoCrawlResult is returned by steps that need a finished crawl when the
// report was never filled, usually because the crawl step failed.
var ErrNoCrawlResult = errors.New("no crawl result to process")
