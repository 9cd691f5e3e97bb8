package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/nao1215/sitecrawler/internal/crawler"
)

// progressObserver prints crawl progress lines for humans.
// Events arrive from many crawl tasks, so writes are serialized.
type progressObserver struct {
	mu  sync.Mutex
	out io.Writer
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

// Observe implements crawler.Observer.
func (p *progressObserver) Observe(e crawler.Event) {
	var line string
	switch e.Kind {
	case crawler.EventPageAdmitted:
		line = "crawling: " + e.URL
	case crawler.EventFetchFailed:
		line = fmt.Sprintf("error fetching %s: %v", e.URL, e.Err)
	case crawler.EventBudgetReached:
		line = fmt.Sprintf("reached max pages (%d), stopping crawl", e.MaxPages)
	default:
		return
	}
	p.println(line)
}

// println writes a status line that is not tied to a crawl event.
func (p *progressObserver) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}
