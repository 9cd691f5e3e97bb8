package crawler

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/filter"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/robots"
	"github.com/nao1215/sitecrawler/internal/urlnorm"
)

// slotState tracks what happened to a reserved key.
type slotState int

const (
	slotPending slotState = iota
	slotDone
	slotFailed
	slotCancelled
)

// slot is one entry of the result map. A slot is never removed during a
// run: failed and cancelled slots keep their key claimed and count toward
// the page budget, but are left out of the final report.
type slot struct {
	page  *model.Page
	state slotState
}

// reservation is the outcome of trying to admit a key.
type reservation int

const (
	reserved reservation = iota
	reserveDuplicate
	reserveStopped
	reserveBudgetReached
)

type runConfig struct {
	fetcher  PageFetcher
	robots   *robots.Policy
	observer Observer
	rootHost string
	maxPages int
}

// run is the state of one crawl.
//
// The result map, the stopped flag and the task registry are guarded by a
// single mutex. Admission checks the flag, the key and the budget and
// inserts the placeholder in one critical section.
type run struct {
	cfg runConfig

	// ctx is the parent of every task context; cancel tears down the run.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	slots   map[string]*slot
	order   []string
	stopped bool
	tasks   map[uint64]context.CancelFunc
	nextID  uint64
	stats   model.CrawlStats
}

func newRun(ctx context.Context, cfg runConfig) *run {
	ctx, cancel := context.WithCancel(ctx)
	return &run{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		slots:  make(map[string]*slot),
		tasks:  make(map[uint64]context.CancelFunc),
	}
}

// spawn registers a task for rawURL and starts it in g.
// Nothing is started once the run has stopped.
func (r *run) spawn(g *errgroup.Group, rawURL string) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	id := r.nextID
	r.nextID++
	r.tasks[id] = cancel
	r.mu.Unlock()

	g.Go(func() error {
		defer r.unregister(id)
		r.process(ctx, rawURL)
		return nil
	})
}

func (r *run) unregister(id uint64) {
	r.mu.Lock()
	cancel := r.tasks[id]
	delete(r.tasks, id)
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// process drives one URL from discovery to the completion of its subtree.
func (r *run) process(ctx context.Context, rawURL string) {
	if r.isStopped() || ctx.Err() != nil {
		return
	}

	canonical, err := urlnorm.Canonicalize(rawURL)
	if err != nil {
		r.skip(rawURL, err)
		return
	}
	if err := filter.Admit(canonical, r.cfg.rootHost); err != nil {
		r.skip(canonical, err)
		return
	}
	if !r.cfg.robots.CanFetch(canonical) {
		r.skip(canonical, errDisallowedByRobots)
		return
	}
	key, err := urlnorm.ComparisonKey(canonical)
	if err != nil {
		r.skip(canonical, err)
		return
	}

	switch outcome, pages := r.reserve(key, canonical); outcome {
	case reserved:
		r.emit(Event{Kind: EventPageAdmitted, URL: canonical, Key: key, Pages: pages})
	case reserveBudgetReached:
		r.emit(Event{Kind: EventBudgetReached, URL: canonical, Key: key, Pages: pages})
		return
	default:
		return
	}

	body, err := r.cfg.fetcher.Fetch(ctx, canonical)
	if err != nil {
		if errors.Is(err, fetcher.ErrCancelled) || ctx.Err() != nil {
			r.settle(key, nil, slotCancelled)
			r.emit(Event{Kind: EventPageCancelled, URL: canonical, Key: key})
			return
		}
		r.settle(key, nil, slotFailed)
		r.emit(Event{Kind: EventFetchFailed, URL: canonical, Key: key, Err: err})
		return
	}

	page, err := extract(key, canonical, body)
	if err != nil {
		r.settle(key, nil, slotFailed)
		r.emit(Event{Kind: EventFetchFailed, URL: canonical, Key: key, Err: err})
		return
	}
	r.settle(key, page, slotDone)
	r.emit(Event{Kind: EventPageCrawled, URL: canonical, Key: key, Page: page})

	var children errgroup.Group
	for _, link := range page.OutgoingLinks {
		if r.isStopped() {
			break
		}
		if filter.Admit(link, r.cfg.rootHost) != nil {
			continue
		}
		r.spawn(&children, link)
	}
	_ = children.Wait()
}

// errDisallowedByRobots is the skip reason for robots.txt rejections.
var errDisallowedByRobots = errors.New("disallowed by robots.txt")

// reserve atomically admits key unless the run has stopped, the key is
// already claimed or the budget is exhausted. The call that finds the
// budget exhausted stops the run and cancels every registered task; any
// later call reports reserveStopped. The returned count is the number of
// claimed keys after the call.
func (r *run) reserve(key, canonical string) (reservation, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return reserveStopped, len(r.slots)
	}
	if _, ok := r.slots[key]; ok {
		return reserveDuplicate, len(r.slots)
	}
	if len(r.slots) >= r.cfg.maxPages {
		r.stopped = true
		r.stats.BudgetReached = true
		for _, cancel := range r.tasks {
			cancel()
		}
		return reserveBudgetReached, len(r.slots)
	}

	r.slots[key] = &slot{
		page:  &model.Page{CanonicalKey: key, URL: canonical},
		state: slotPending,
	}
	r.order = append(r.order, key)
	r.stats.Admitted++
	return reserved, len(r.slots)
}

// settle records the final state of a reserved key.
func (r *run) settle(key string, page *model.Page, state slotState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[key]
	if !ok {
		return
	}
	s.state = state
	switch state {
	case slotDone:
		s.page = page
		r.stats.Crawled++
	case slotFailed:
		r.stats.Failed++
	case slotCancelled:
		r.stats.Cancelled++
	}
}

func (r *run) skip(rawURL string, reason error) {
	r.mu.Lock()
	r.stats.Skipped++
	r.mu.Unlock()

	r.emit(Event{Kind: EventURLSkipped, URL: rawURL, Err: reason})
}

func (r *run) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *run) emit(e Event) {
	e.MaxPages = r.cfg.maxPages
	r.cfg.observer.Observe(e)
}

// fill copies the completed pages and statistics into report.
// It must only be called after every task has finished.
func (r *run) fill(report *model.CrawlReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range r.order {
		if s := r.slots[key]; s.state == slotDone {
			report.Pages = append(report.Pages, s.page)
		}
	}
	report.Stats = r.stats
}

// extract parses body and builds the page for key. Links and images are
// converted to canonical fetch form; links are deduplicated keeping the
// first occurrence.
func extract(key, pageURL, body string) (*model.Page, error) {
	parser, err := NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	result, err := parser.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", pageURL, err)
	}

	links := make([]string, 0, len(result.Links))
	seen := make(map[string]struct{}, len(result.Links))
	for _, link := range result.Links {
		canonical, err := urlnorm.Canonicalize(link)
		if err != nil {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		links = append(links, canonical)
	}

	images := make([]string, 0, len(result.Images))
	for _, src := range result.Images {
		if canonical, err := urlnorm.Canonicalize(src); err == nil {
			images = append(images, canonical)
		}
	}

	sum := sha3.Sum256([]byte(body))

	return &model.Page{
		CanonicalKey:   key,
		URL:            pageURL,
		Heading:        result.Heading,
		FirstParagraph: result.FirstParagraph,
		OutgoingLinks:  links,
		ImageURLs:      images,
		ContentHash:    hex.EncodeToString(sum[:]),
		FetchedAt:      time.Now(),
	}, nil
}
