// Package accounting is the single consumer of the pipeline's event stream.
// It turns transient lifecycle events into counters and a final summary.
package accounting

import (
	"sync"

	"github.com/mediamirror/mediamirror/internal/domain"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
	"github.com/mediamirror/mediamirror/internal/metrics"
)

// Counters is the accounting state the sink accumulates. total should equal
// completed+failed once all in-flight work has drained, but that is checked,
// not enforced: an item that dies without a terminal event under-accounts.
type Counters struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Ledger persists terminal outcomes. Optional.
type Ledger interface {
	Record(subject, outcome string, httpStatus int) error
}

type Options struct {
	Metrics *metrics.Metrics // optional
	Ledger  Ledger           // optional
}

// Sink receives lifecycle events until Summarize. All counter mutation
// happens on the receive loop; the mutex only serves Snapshot readers.
type Sink struct {
	log     *logger.Logger
	metrics *metrics.Metrics
	ledger  Ledger

	mu       sync.Mutex
	counters Counters

	done chan struct{}
}

func NewSink(log *logger.Logger, opts Options) *Sink {
	return &Sink{
		log:     log,
		metrics: opts.Metrics,
		ledger:  opts.Ledger,
		done:    make(chan struct{}),
	}
}

// Run consumes events until Summarize is observed, then reports the final
// summary and returns. It keeps receiving even while the counters are
// imbalanced; imbalance at Summarize time is logged, never fatal.
func (s *Sink) Run(events <-chan domain.Event) {
	defer close(s.done)

	for ev := range events {
		if s.metrics != nil {
			s.metrics.ObserveEvent(ev.Type)
		}

		switch ev.Type {
		case domain.EventStarted:
			s.update(func(c *Counters) { c.Total++ })

		case domain.EventRetrying:
			s.log.Warn("Retried %s %d times ...", ev.Subject, ev.Attempts)

		case domain.EventRetryScheduled:
			s.log.Warn("GET %s...timeout, retry in %2.2fs", shorten(ev.Subject), ev.Delay.Seconds())

		case domain.EventFailed:
			s.update(func(c *Counters) { c.Failed++ })
			s.log.Error("Givin' up on %s ...", ev.Subject)
			s.record(ev.Subject, "failed", 0)

		case domain.EventFailedHTTP:
			s.update(func(c *Counters) { c.Failed++ })
			s.log.Error("Givin' up on %s (HTTP %d)", ev.Subject, ev.Status)
			s.record(ev.Subject, "failed", ev.Status)

		case domain.EventCompleted:
			s.update(func(c *Counters) { c.Completed++ })
			s.record(ev.Subject, "completed", 0)

		case domain.EventSummarize:
			c := s.Snapshot()
			if c.Total != c.Completed+c.Failed {
				s.log.Warn("Accounting imbalance: total %d != completed %d + failed %d",
					c.Total, c.Completed, c.Failed)
			}
			s.log.Info("Processed: total %d, completed %d, failed %d",
				c.Total, c.Completed, c.Failed)
			return
		}
	}
}

// Snapshot returns the current counters. Safe to call from other goroutines
// (the status API reads it while the run is in flight).
func (s *Sink) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Done closes once the sink has processed Summarize.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) update(f func(*Counters)) {
	s.mu.Lock()
	f(&s.counters)
	s.mu.Unlock()
}

func (s *Sink) record(subject, outcome string, httpStatus int) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Record(subject, outcome, httpStatus); err != nil {
		s.log.Warn("Ledger write for %s failed: %v", subject, err)
	}
}

func shorten(url string) string {
	if len(url) > 48 {
		return url[:48]
	}
	return url
}
