package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/mediamirror/mediamirror/internal/domain"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
)

type Discipline string

const (
	// DisciplineEager starts a goroutine per request as it arrives and joins
	// them all at the end. Concurrency is bounded only by what the queue
	// feeds in.
	DisciplineEager Discipline = "eager"

	// DisciplinePool drains the queue fully, then runs the set through a
	// fixed-size worker pool, starting the next item as soon as a slot
	// frees. Trades memory for a strict in-flight ceiling.
	DisciplinePool Discipline = "pool"
)

const DefaultConcurrency = 20

// Fetcher is what the scheduler fans requests out to.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.DownloadRequest, outDir string) error
}

type Options struct {
	Discipline  Discipline
	Concurrency int // pool discipline only
	OutDir      string

	// DryRun skips the transport entirely and records the resolved target
	// path instead, while still exercising the same queue-draining and
	// scheduling plumbing.
	DryRun bool
}

type Scheduler struct {
	fetcher Fetcher
	events  chan<- domain.Event
	log     *logger.Logger
	opts    Options
}

func New(fetcher Fetcher, events chan<- domain.Event, log *logger.Logger, opts Options) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Discipline == "" {
		opts.Discipline = DisciplinePool
	}
	return &Scheduler{
		fetcher: fetcher,
		events:  events,
		log:     log,
		opts:    opts,
	}
}

// Run consumes requests until the queue closes and returns once every
// request has reached a terminal outcome. Item-level failures are absorbed
// into events and never surface here; only infrastructure-level failures
// (context cancellation) produce an error.
func (s *Scheduler) Run(ctx context.Context, requests <-chan domain.DownloadRequest) error {
	switch s.opts.Discipline {
	case DisciplineEager:
		return s.runEager(ctx, requests)
	default:
		return s.runPool(ctx, requests)
	}
}

func (s *Scheduler) runEager(ctx context.Context, requests <-chan domain.DownloadRequest) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for req := range requests {
		wg.Add(1)
		go func(req domain.DownloadRequest) {
			defer wg.Done()
			if err := s.process(ctx, req); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(req)
	}

	wg.Wait()
	return firstErr
}

func (s *Scheduler) runPool(ctx context.Context, requests <-chan domain.DownloadRequest) error {
	// Drain first: the pool holds the full request list in memory in
	// exchange for a hard cap on in-flight fetches.
	var pending []domain.DownloadRequest
	for req := range requests {
		pending = append(pending, req)
	}

	jobs := make(chan domain.DownloadRequest)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < s.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				if err := s.process(ctx, req); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}

	for _, req := range pending {
		jobs <- req
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

// process drives one request to its terminal outcome. The fetcher reports
// item failures through the event stream itself; the error return is only
// consulted for infrastructure-level conditions.
func (s *Scheduler) process(ctx context.Context, req domain.DownloadRequest) error {
	target := req.TargetPath(s.opts.OutDir)

	if s.opts.DryRun {
		s.log.Info("dry_run,%q,%s", timestampFor(req), target)
		return nil
	}

	s.events <- domain.Started(target)
	if err := s.fetcher.Fetch(ctx, req, s.opts.OutDir); err != nil {
		s.log.Debug("Terminal failure for %s: %v", req.Name, err)
	}

	return ctx.Err()
}

func timestampFor(req domain.DownloadRequest) string {
	if req.CreatedAt.IsZero() {
		return ""
	}
	return req.CreatedAt.Format(time.RFC3339)
}
