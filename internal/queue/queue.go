package queue

import (
	"context"
	"sync"

	"github.com/mediamirror/mediamirror/internal/domain"
)

// DefaultCapacity matches the depth the pipeline was tuned with: deep enough
// to keep the scheduler busy, shallow enough that a slow disk stalls the
// selector instead of growing memory.
const DefaultCapacity = 10

// Queue is the bounded FIFO hand-off between the selector and the scheduler.
// Enqueue blocking on a full queue is the system's only backpressure
// mechanism.
type Queue struct {
	ch        chan domain.DownloadRequest
	closeOnce sync.Once
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan domain.DownloadRequest, capacity)}
}

// Enqueue blocks while the queue is full. It returns the context error if
// the caller is cancelled before a slot frees.
func (q *Queue) Enqueue(ctx context.Context, req domain.DownloadRequest) error {
	select {
	case q.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals end-of-stream. Items already enqueued remain receivable;
// the consumer observes end-of-stream only after draining them. Safe to
// call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Requests exposes the receive side for the scheduler.
func (q *Queue) Requests() <-chan domain.DownloadRequest {
	return q.ch
}
