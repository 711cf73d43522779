// Package main implements a mock greeting service for e2e testing.
// It serves the receiver (POST /greeting) and the log API (GET /log/last,
// GET /log) from memory, so greeting-e2e can be exercised without the real
// service. Faults are injected by send count.
//
// Usage:
//
//	mock-greeting -port 8080 -fail-every 10 -drop-every 25 -foreign 2
//
// /health and /stats are served for test assertions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/c360studio/greeting-e2e/mockservice"
)

type options struct {
	port           int
	failEvery      int
	dropEvery      int
	duplicateEvery int
	foreign        int
	logDelay       time.Duration
	seed           int
	debug          bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("mock-greeting", flag.ContinueOnError)
	fs.IntVar(&opts.port, "port", 8080, "port to listen on")
	fs.IntVar(&opts.failEvery, "fail-every", 0, "fail every nth send with 503 (0 = never)")
	fs.IntVar(&opts.dropEvery, "drop-every", 0, "never log every nth accepted greeting (0 = never)")
	fs.IntVar(&opts.duplicateEvery, "duplicate-every", 0, "reuse the previous message id for every nth accepted greeting (0 = never)")
	fs.IntVar(&opts.foreign, "foreign", 0, "foreign log entries written before each greeting")
	fs.DurationVar(&opts.logDelay, "log-delay", 0, "delay before a log entry becomes visible")
	fs.IntVar(&opts.seed, "seed", 0, "foreign entries present at startup")
	fs.BoolVar(&opts.debug, "debug", false, "log every request")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Allow env var override
	if env := os.Getenv("MOCK_GREETING_PORT"); env != "" && !flagSet(fs, "port") {
		port, err := strconv.Atoi(env)
		if err != nil {
			return nil, fmt.Errorf("MOCK_GREETING_PORT: %w", err)
		}
		opts.port = port
	}

	for name, v := range map[string]int{
		"fail-every": opts.failEvery, "drop-every": opts.dropEvery,
		"duplicate-every": opts.duplicateEvery, "foreign": opts.foreign, "seed": opts.seed,
	} {
		if v < 0 {
			return nil, fmt.Errorf("-%s must not be negative", name)
		}
	}
	return opts, nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newService(opts *options, logger *slog.Logger) *mockservice.Service {
	svc := mockservice.New(
		mockservice.WithLogger(logger),
		mockservice.WithFailEvery(opts.failEvery),
		mockservice.WithDropEvery(opts.dropEvery),
		mockservice.WithDuplicateEvery(opts.duplicateEvery),
		mockservice.WithForeignTraffic(opts.foreign),
		mockservice.WithLogDelay(opts.logDelay),
	)
	svc.AppendForeign(opts.seed)
	return svc
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.port),
		Handler:           newService(opts, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Mock greeting service listening",
		"addr", srv.Addr,
		"fail_every", opts.failEvery,
		"drop_every", opts.dropEvery,
		"duplicate_every", opts.duplicateEvery,
		"foreign", opts.foreign,
		"log_delay", opts.logDelay)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
