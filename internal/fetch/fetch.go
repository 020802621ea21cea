package fetch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/mediamirror/mediamirror/internal/domain"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
)

// PartialSuffix marks an in-progress download on disk. The artifact is
// renamed to the final name only on confirmed end-of-body and is otherwise
// left behind for the reconcile pass to find.
const PartialSuffix = ".partial"

var errConnectTimeout = errors.New("connect attempt timed out")

// Doer is the transport seam. The production client comes from
// NewHTTPClient; tests inject fault-injecting stand-ins.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// ConnectTimeout bounds each individual connect attempt (GET issued to
	// response headers received).
	ConnectTimeout time.Duration

	// ChunkTimeout bounds each body chunk read. One elapsed timeout is one
	// stall tick.
	ChunkTimeout time.Duration

	// StallWarnEvery and StallAbandonAt are tick counts against the per-fetch
	// stall counter: a warning event every StallWarnEvery ticks, giving up at
	// StallAbandonAt ticks. Counted modulo, so both must fit in a byte.
	StallWarnEvery uint8
	StallAbandonAt uint8

	// MaxConnectAttempts caps the connect-retry loop. The backoff keeps
	// doubling below the cap; past it the item fails terminally.
	MaxConnectAttempts int

	// MaxRedirectHops caps 302 following for one item.
	MaxRedirectHops int
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 3000 * time.Millisecond
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = 5000 * time.Millisecond
	}
	if c.StallWarnEvery == 0 {
		c.StallWarnEvery = 20
	}
	if c.StallAbandonAt == 0 {
		c.StallAbandonAt = 60
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = 10
	}
	if c.MaxRedirectHops <= 0 {
		c.MaxRedirectHops = 5
	}
	return c
}

// Fetcher drives one DownloadRequest at a time through connect, transfer and
// atomic materialization. It is safe for concurrent use; all per-item state
// lives on the stack of Fetch.
type Fetcher struct {
	client Doer
	events chan<- domain.Event
	log    *logger.Logger
	cfg    Config
}

func New(client Doer, events chan<- domain.Event, log *logger.Logger, cfg Config) *Fetcher {
	return &Fetcher{
		client: client,
		events: events,
		log:    log,
		cfg:    cfg.withDefaults(),
	}
}

// NewHTTPClient returns a transport suitable for the fetcher: no client-side
// redirect following (302 handling carries backoff state across hops, so it
// lives in the state machine) and no global deadline (timeouts here are
// strictly per-operation).
func NewHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Fetch resolves the request to its final locator and drives it to a
// terminal outcome. Every failure path emits exactly one Failed/FailedHTTP
// event; success emits Completed. The returned error is diagnostic for the
// caller's logs and never aborts sibling fetches.
func (f *Fetcher) Fetch(ctx context.Context, req domain.DownloadRequest, outDir string) error {
	locator := req.ResolveLocator()
	finalPath := req.TargetPath(outDir)

	// Randomized per-item backoff seed in [T, 1.5T) so concurrently started
	// fetches don't retry in lockstep.
	pause := f.cfg.ConnectTimeout + rand.N(f.cfg.ConnectTimeout/2)

	for hop := 0; ; hop++ {
		if hop > f.cfg.MaxRedirectHops {
			f.log.Warn("Redirect chain for %s exceeded %d hops", req.Name, f.cfg.MaxRedirectHops)
			f.events <- domain.Failed(finalPath)
			return domain.ErrTooManyRedirects
		}

		resp, release, err := f.connect(ctx, locator, &pause)
		if err != nil {
			f.events <- domain.Failed(finalPath)
			return err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := f.stream(ctx, resp.Body, finalPath)
			release()
			return err

		case http.StatusFound:
			location := resp.Header.Get("Location")
			resp.Body.Close()
			release()
			if location == "" {
				f.events <- domain.Failed(finalPath)
				return domain.ErrRedirectMissingLocation
			}
			// Re-enter with the new locator; the current pause value carries
			// forward rather than resetting.
			locator = location

		default:
			status := resp.StatusCode
			resp.Body.Close()
			release()
			f.events <- domain.FailedHTTP(finalPath, status)
			return &domain.UnexpectedStatusError{Status: status}
		}
	}
}

// connect issues the GET with a hard per-attempt timeout, retrying with
// exponential backoff. Transport-level errors share the timeout path: both
// mean "the endpoint didn't produce headers in time". The pause pointer is
// shared with the redirect loop so backoff survives 302 hops.
func (f *Fetcher) connect(ctx context.Context, locator string, pause *time.Duration) (*http.Response, func(), error) {
	for attempt := 1; ; attempt++ {
		resp, release, err := f.tryConnect(ctx, locator)
		if err == nil {
			return resp, release, nil
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if attempt >= f.cfg.MaxConnectAttempts {
			f.log.Error("Giving up connecting to %s after %d attempts: %v", truncateLocator(locator), attempt, err)
			return nil, nil, domain.ErrConnectAttemptsExhausted
		}

		f.events <- domain.RetryScheduled(locator, *pause)
		select {
		case <-time.After(*pause):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		*pause *= 2
	}
}

// tryConnect runs one attempt under the connect timeout. On success the
// returned release func must be called once the body is no longer needed;
// it cancels the request context backing the response.
func (f *Fetcher) tryConnect(ctx context.Context, locator string) (*http.Response, func(), error) {
	attemptCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, locator, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := f.client.Do(req)
		done <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(f.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			cancel()
			return nil, nil, res.err
		}
		return res.resp, cancel, nil
	case <-timer.C:
		cancel()
		// Reap the aborted attempt so its response, if any, is closed.
		go func() {
			if res := <-done; res.resp != nil {
				res.resp.Body.Close()
			}
		}()
		return nil, nil, errConnectTimeout
	}
}

type chunk struct {
	data []byte
	err  error // io.EOF marks clean end-of-body
}

// stream copies the body into <finalPath>.partial chunk by chunk, each read
// bounded by the chunk timeout. Elapsed timeouts tick the stall counter:
// every StallWarnEvery-th tick warns, the StallAbandonAt-th tick gives up
// and leaves the partial file behind. Clean end-of-body flushes and renames.
func (f *Fetcher) stream(ctx context.Context, body io.ReadCloser, finalPath string) error {
	partialPath := finalPath + PartialSuffix

	out, err := os.Create(partialPath)
	if err != nil {
		body.Close()
		f.events <- domain.Failed(finalPath)
		return err
	}
	w := bufio.NewWriter(out)

	chunks := make(chan chunk)
	go readChunks(body, chunks)

	// The reader goroutine blocks sending into chunks; closing the body makes
	// its pending read fail, then draining unblocks it.
	abort := func() {
		body.Close()
		for range chunks {
		}
	}

	var stalls uint8
	var terminal error

receive:
	for {
		select {
		case c := <-chunks:
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					break receive // confirmed end-of-body
				}
				f.events <- domain.Failed(partialPath)
				terminal = c.err
				break receive
			}
			if _, err := w.Write(c.data); err != nil {
				abort()
				out.Close()
				f.events <- domain.Failed(partialPath)
				return err
			}

		case <-time.After(f.cfg.ChunkTimeout):
			stalls++
			if stalls%f.cfg.StallAbandonAt == 0 {
				f.events <- domain.Failed(partialPath)
				terminal = domain.ErrStallAbandoned
				abort()
				break receive
			}
			if stalls%f.cfg.StallWarnEvery == 0 {
				f.events <- domain.Retrying(partialPath, stalls)
			}

		case <-ctx.Done():
			f.events <- domain.Failed(partialPath)
			terminal = ctx.Err()
			abort()
			break receive
		}
	}
	body.Close()

	if err := w.Flush(); err != nil && terminal == nil {
		out.Close()
		f.events <- domain.Failed(partialPath)
		return err
	}
	if err := out.Close(); err != nil && terminal == nil {
		f.events <- domain.Failed(partialPath)
		return err
	}

	if terminal != nil {
		// The partial artifact stays on disk on purpose; reconcile handles it.
		return terminal
	}

	if err := os.Rename(partialPath, finalPath); err != nil {
		f.events <- domain.Failed(partialPath)
		return err
	}
	f.events <- domain.Completed(finalPath)
	return nil
}

// readChunks feeds body reads into the channel until the body errors or
// ends. It owns nothing: the consumer closes the body to stop it early.
func readChunks(body io.Reader, chunks chan<- chunk) {
	defer close(chunks)
	for {
		buf := make([]byte, 32*1024)
		n, err := body.Read(buf)
		if n > 0 {
			chunks <- chunk{data: buf[:n]}
		}
		if err != nil {
			chunks <- chunk{err: err}
			return
		}
	}
}

func truncateLocator(locator string) string {
	if len(locator) > 48 {
		return locator[:48] + "..."
	}
	return locator
}
