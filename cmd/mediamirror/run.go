package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/mediamirror/mediamirror/internal/accounting"
	"github.com/mediamirror/mediamirror/internal/api"
	"github.com/mediamirror/mediamirror/internal/domain"
	"github.com/mediamirror/mediamirror/internal/fetch"
	"github.com/mediamirror/mediamirror/internal/infra/config"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
	"github.com/mediamirror/mediamirror/internal/manifest"
	"github.com/mediamirror/mediamirror/internal/metrics"
	"github.com/mediamirror/mediamirror/internal/queue"
	"github.com/mediamirror/mediamirror/internal/scheduler"
	"github.com/mediamirror/mediamirror/internal/store"
)

var (
	runManifest   string
	runOutDir     string
	runDryRun     bool
	runFrom       string
	runTo         string
	runDiscipline string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download everything the manifest selects",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runManifest, "manifest", "m", "", "JSON Lines manifest of media records (required)")
	_ = runCmd.MarkFlagRequired("manifest")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "download directory (overrides config)")
	runCmd.Flags().BoolVarP(&runDryRun, "dry-run", "d", false, "only show what would be written")
	runCmd.Flags().StringVarP(&runFrom, "from", "f", "", "skip entries created earlier (YYYY-MM-DD)")
	runCmd.Flags().StringVarP(&runTo, "to", "t", "", "skip entries created later (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runDiscipline, "discipline", "", "scheduling discipline: eager or pool (overrides config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if runOutDir != "" {
		cfg.Download.OutDir = runOutDir
	}
	if runDiscipline != "" {
		cfg.Download.Discipline = runDiscipline
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}

	from, to, err := parseWindow(runFrom, runTo)
	if err != nil {
		return err
	}

	manifestFile, err := os.Open(runManifest)
	if err != nil {
		return fmt.Errorf("could not open manifest: %w", err)
	}
	defer manifestFile.Close()

	if !runDryRun {
		if err := os.MkdirAll(cfg.Download.OutDir, 0755); err != nil {
			return fmt.Errorf("failed to create out_dir: %w", err)
		}
	}

	// Graceful shutdown: stop producing new requests, let in-flight fetches
	// reach their terminal state.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan domain.Event, 128)

	var sinkOpts accounting.Options
	if cfg.Ledger.Path != "" {
		ledger, err := store.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer ledger.Close()
		sinkOpts.Ledger = ledger
	}
	if cfg.Status.Addr != "" {
		sinkOpts.Metrics = metrics.New(nil)
	}

	sink := accounting.NewSink(log, sinkOpts)
	go sink.Run(events)

	if cfg.Status.Addr != "" {
		e := echo.New()
		api.RegisterRoutes(e, sink, log)
		srv := &http.Server{Addr: cfg.Status.Addr, Handler: e}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Status server: %v", err)
			}
		}()
		defer srv.Close()
		log.Info("Status server listening on %s", cfg.Status.Addr)
	}

	q := queue.New(cfg.Download.QueueCapacity)

	fetcher := fetch.New(fetch.NewHTTPClient(), events, log, fetch.Config{
		ConnectTimeout:     time.Duration(cfg.Fetch.ConnectTimeoutMS) * time.Millisecond,
		ChunkTimeout:       time.Duration(cfg.Fetch.ChunkTimeoutMS) * time.Millisecond,
		StallWarnEvery:     uint8(cfg.Fetch.StallWarnEvery),
		StallAbandonAt:     uint8(cfg.Fetch.StallAbandonAt),
		MaxConnectAttempts: cfg.Fetch.MaxConnectAttempts,
		MaxRedirectHops:    cfg.Fetch.MaxRedirectHops,
	})

	sched := scheduler.New(fetcher, events, log, scheduler.Options{
		Discipline:  scheduler.Discipline(cfg.Download.Discipline),
		Concurrency: cfg.Download.Concurrency,
		OutDir:      cfg.Download.OutDir,
		DryRun:      runDryRun,
	})

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(ctx, q.Requests())
	}()

	// The selector runs on this goroutine, blocking on queue backpressure,
	// and closes the queue when the manifest is exhausted.
	sel := manifest.NewSelector(log, from, to)
	if err := sel.SendAll(ctx, manifestFile, q); err != nil {
		log.Error("Selector stopped early: %v", err)
	}

	runErr := <-schedDone

	// Everything is terminal now; ask for the summary and wait for it.
	events <- domain.Summarize()
	<-sink.Done()

	return runErr
}

// parseWindow turns the from/to date flags into an inclusive window.
func parseWindow(fromArg, toArg string) (time.Time, time.Time, error) {
	var from, to time.Time

	if fromArg != "" {
		t, err := time.Parse("2006-01-02", fromArg)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from date: %w", err)
		}
		from = t
	}
	if toArg != "" {
		t, err := time.Parse("2006-01-02", toArg)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to date: %w", err)
		}
		// Inclusive: anything created on the --to day still counts.
		to = t.Add(24*time.Hour - time.Nanosecond)
	}

	return from, to, nil
}
