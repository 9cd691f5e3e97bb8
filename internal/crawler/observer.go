package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// EventKind identifies what happened during a crawl.
type EventKind int

const (
	// EventPageAdmitted fires when a URL reserves its slot in the result map.
	EventPageAdmitted EventKind = iota
	// EventPageCrawled fires when a page has been fetched and extracted.
	EventPageCrawled
	// EventFetchFailed fires when an admitted page could not be fetched or
	// parsed. Cancellation never produces this event.
	EventFetchFailed
	// EventFetchRetry fires before the fetch client sleeps between attempts.
	EventFetchRetry
	// EventPageCancelled fires when an admitted page is abandoned because
	// the crawl stopped.
	EventPageCancelled
	// EventBudgetReached fires exactly once, when the page budget stops the crawl.
	EventBudgetReached
	// EventURLSkipped fires when a candidate URL is rejected before admission.
	EventURLSkipped
	// EventRobotsUnavailable fires when robots.txt could not be used and
	// the crawl proceeds with an allow-all policy.
	EventRobotsUnavailable
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventPageAdmitted:
		return "page admitted"
	case EventPageCrawled:
		return "page crawled"
	case EventFetchFailed:
		return "fetch failed"
	case EventFetchRetry:
		return "fetch retry"
	case EventPageCancelled:
		return "page cancelled"
	case EventBudgetReached:
		return "budget reached"
	case EventURLSkipped:
		return "url skipped"
	case EventRobotsUnavailable:
		return "robots unavailable"
	default:
		return "unknown"
	}
}

// Event is a structured notification emitted by the Spider.
type Event struct {
	// Kind identifies the event.
	Kind EventKind

	// URL is the URL the event is about, in canonical fetch form when
	// available.
	URL string

	// Key is the canonical comparison key, set once a URL has one.
	Key string

	// Err carries the failure or rejection reason.
	Err error

	// Page is the extracted page for EventPageCrawled.
	Page *model.Page

	// Pages is the number of keys in the result map when the event fired.
	Pages int

	// MaxPages is the crawl's page budget.
	MaxPages int

	// Attempt and Delay describe an EventFetchRetry.
	Attempt int
	Delay   time.Duration
}

// Observer receives crawl events.
// Observe is called concurrently from many crawl tasks and must not block
// for long or call back into the Spider.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// nopObserver discards every event.
type nopObserver struct{}

func (nopObserver) Observe(Event) {}

// MultiObserver fans events out to several observers in order.
func MultiObserver(observers ...Observer) Observer {
	return ObserverFunc(func(e Event) {
		for _, o := range observers {
			if o != nil {
				o.Observe(e)
			}
		}
	})
}

// NewLogObserver returns an Observer that writes events to logger.
// Failures are logged at Warn, progress at Info and per-URL decisions at Debug.
func NewLogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		return nopObserver{}
	}

	return ObserverFunc(func(e Event) {
		attrs := []slog.Attr{slog.String("event", e.Kind.String())}
		if e.URL != "" {
			attrs = append(attrs, slog.String("url", e.URL))
		}
		if e.Key != "" {
			attrs = append(attrs, slog.String("key", e.Key))
		}
		if e.Err != nil {
			attrs = append(attrs, slog.String("error", e.Err.Error()))
		}

		level := slog.LevelDebug
		msg := e.Kind.String()
		switch e.Kind {
		case EventPageCrawled:
			level = slog.LevelInfo
			if e.Page != nil {
				attrs = append(attrs,
					slog.Int("links", len(e.Page.OutgoingLinks)),
					slog.Int("images", len(e.Page.ImageURLs)),
				)
			}
		case EventFetchFailed:
			level = slog.LevelWarn
		case EventFetchRetry:
			attrs = append(attrs, slog.Int("attempt", e.Attempt), slog.Duration("delay", e.Delay))
		case EventBudgetReached:
			level = slog.LevelInfo
			attrs = append(attrs, slog.Int("max_pages", e.MaxPages))
		case EventRobotsUnavailable:
			level = slog.LevelInfo
			msg = "robots.txt unavailable, allowing all URLs"
		}

		logger.LogAttrs(context.Background(), level, msg, attrs...)
	})
}
