package manifest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediamirror/mediamirror/internal/domain"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
	"github.com/mediamirror/mediamirror/internal/queue"
)

func collect(t *testing.T, s *Selector, input string) []domain.DownloadRequest {
	t.Helper()

	q := queue.New(64)
	err := s.SendAll(context.Background(), strings.NewReader(input), q)
	require.NoError(t, err)

	var reqs []domain.DownloadRequest
	for req := range q.Requests() {
		reqs = append(reqs, req)
	}
	return reqs
}

func TestSendAllParsesEntriesInOrder(t *testing.T) {
	input := `{"url":"http://m.test/a","name":"a.jpg","kind":"image","width":640,"height":480}
{"url":"http://m.test/b","name":"b.mp4","kind":"video"}
{"url":"http://m.test/c","name":"c.jpg"}
`
	reqs := collect(t, NewSelector(logger.Silent(), time.Time{}, time.Time{}), input)
	require.Len(t, reqs, 3)

	assert.Equal(t, domain.KindImage, reqs[0].Kind)
	assert.Equal(t, "a.jpg", reqs[0].Name)
	assert.Equal(t, int64(640), reqs[0].Width)

	assert.Equal(t, domain.KindVideo, reqs[1].Kind)
	assert.Equal(t, "http://m.test/b=dv", reqs[1].ResolveLocator())

	// Missing kind defaults to image.
	assert.Equal(t, domain.KindImage, reqs[2].Kind)
}

func TestSendAllSkipsBadLinesAndBlanks(t *testing.T) {
	input := `{"url":"http://m.test/a","name":"a.jpg"}

not json at all
{"url":"","name":"no-url.jpg"}
{"url":"http://m.test/x","name":"x.bin","kind":"archive"}
{"url":"http://m.test/b","name":"b.jpg"}
`
	reqs := collect(t, NewSelector(logger.Silent(), time.Time{}, time.Time{}), input)
	require.Len(t, reqs, 2)
	assert.Equal(t, "a.jpg", reqs[0].Name)
	assert.Equal(t, "b.jpg", reqs[1].Name)
}

func TestDateWindowInclusiveBounds(t *testing.T) {
	input := `{"url":"http://m.test/old","name":"old.jpg","created_at":"2023-01-01T10:00:00Z"}
{"url":"http://m.test/lo","name":"lo.jpg","created_at":"2024-03-01T00:00:00Z"}
{"url":"http://m.test/mid","name":"mid.jpg","created_at":"2024-03-15T12:00:00Z"}
{"url":"http://m.test/hi","name":"hi.jpg","created_at":"2024-03-31T00:00:00Z"}
{"url":"http://m.test/new","name":"new.jpg","created_at":"2024-04-02T00:00:00Z"}
{"url":"http://m.test/undated","name":"undated.jpg"}
`
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	reqs := collect(t, NewSelector(logger.Silent(), from, to), input)
	require.Len(t, reqs, 3)
	assert.Equal(t, "lo.jpg", reqs[0].Name)
	assert.Equal(t, "mid.jpg", reqs[1].Name)
	assert.Equal(t, "hi.jpg", reqs[2].Name)
}

func TestNoWindowSelectsUndatedEntries(t *testing.T) {
	input := `{"url":"http://m.test/undated","name":"undated.jpg"}
`
	reqs := collect(t, NewSelector(logger.Silent(), time.Time{}, time.Time{}), input)
	assert.Len(t, reqs, 1)
}

func TestSendAllClosesQueueOnCancel(t *testing.T) {
	// A capacity-1 queue with no consumer forces Enqueue to block; the
	// cancelled context unblocks it and SendAll still closes the queue.
	input := `{"url":"http://m.test/a","name":"a.jpg"}
{"url":"http://m.test/b","name":"b.jpg"}
`
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := queue.New(1)
	err := NewSelector(logger.Silent(), time.Time{}, time.Time{}).
		SendAll(ctx, strings.NewReader(input), q)
	require.ErrorIs(t, err, context.Canceled)

	drained := 0
	for range q.Requests() {
		drained++
	}
	assert.LessOrEqual(t, drained, 1)
}
