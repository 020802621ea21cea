// Package manifest is the selector collaborator for the CLI: it reads a
// JSON Lines manifest of media records and feeds the request queue. The
// catalog that produced the manifest (and its pagination, auth, and
// filtering policy) is somebody else's problem; the contract here is just
// "produce a stream of download requests and close the queue".
package manifest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mediamirror/mediamirror/internal/domain"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
	"github.com/mediamirror/mediamirror/internal/queue"
)

// Entry is one manifest line.
type Entry struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // "image" or "video"
	Width     int64     `json:"width,omitempty"`
	Height    int64     `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (e Entry) toRequest() (domain.DownloadRequest, error) {
	if e.URL == "" || e.Name == "" {
		return domain.DownloadRequest{}, fmt.Errorf("entry needs url and name")
	}

	switch e.Kind {
	case "image", "":
		return domain.NewImageRequest(e.URL, e.Name, e.Width, e.Height, e.CreatedAt), nil
	case "video":
		return domain.NewVideoRequest(e.URL, e.Name, e.CreatedAt), nil
	default:
		return domain.DownloadRequest{}, fmt.Errorf("unknown kind %q", e.Kind)
	}
}

type Selector struct {
	log  *logger.Logger
	from time.Time // zero means open-ended
	to   time.Time
}

func NewSelector(log *logger.Logger, from, to time.Time) *Selector {
	return &Selector{log: log, from: from, to: to}
}

// SendAll parses r line by line and enqueues every selected entry in
// manifest order, blocking on the queue's backpressure. It closes the queue
// when done, including on error, so the scheduler always observes
// end-of-stream.
func (s *Selector) SendAll(ctx context.Context, r io.Reader, q *queue.Queue) error {
	defer q.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var line, selected, skipped, rejected int

	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.log.Warn("Manifest line %d: %v", line, err)
			rejected++
			continue
		}

		req, err := entry.toRequest()
		if err != nil {
			s.log.Warn("Manifest line %d: %v", line, err)
			rejected++
			continue
		}

		if !s.inWindow(entry.CreatedAt) {
			skipped++
			continue
		}

		if err := q.Enqueue(ctx, req); err != nil {
			return err
		}
		selected++
	}

	s.log.Info("Manifest: %d selected, %d skipped by date, %d rejected", selected, skipped, rejected)
	return sc.Err()
}

// inWindow applies the optional creation-date window. Entries without a
// timestamp are only selected when no window is set.
func (s *Selector) inWindow(created time.Time) bool {
	if s.from.IsZero() && s.to.IsZero() {
		return true
	}
	if created.IsZero() {
		return false
	}
	if !s.from.IsZero() && created.Before(s.from) {
		return false
	}
	if !s.to.IsZero() && created.After(s.to) {
		return false
	}
	return true
}
