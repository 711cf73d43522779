package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/c360studio/greeting-e2e/client"
	"github.com/c360studio/greeting-e2e/config"
	"github.com/c360studio/greeting-e2e/generator"
	"github.com/c360studio/greeting-e2e/logging"
	"github.com/c360studio/greeting-e2e/metrics"
	"github.com/c360studio/greeting-e2e/progress"
	"github.com/c360studio/greeting-e2e/report"
	"github.com/c360studio/greeting-e2e/verify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// sinkTimeout bounds result delivery after the run, even when it was interrupted.
const sinkTimeout = 10 * time.Second

// runOptions holds the flags of the run command.
type runOptions struct {
	*rootOptions
	iterations      int
	receiverURL     string
	logAPIURL       string
	timeout         time.Duration
	failOnSendError bool
	noProgress      bool
}

func runCmd(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send greetings and verify they reach the log",
		Long: `Run one verification: discover the log offset, generate and send
run.iterations greetings, then poll the log until all of them are observed.

Example:
  greeting-e2e run -c greeting-e2e.yaml
  greeting-e2e run --iterations 100 --receiver-url http://receiver:8080 --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.execute(cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.iterations, "iterations", "n", 0, "Number of greetings to send (overrides run.iterations)")
	cmd.Flags().StringVar(&o.receiverURL, "receiver-url", "", "Receiver base URL (overrides receiver.url)")
	cmd.Flags().StringVar(&o.logAPIURL, "log-api-url", "", "Log API base URL (overrides log_api.url)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Verification timeout (overrides verify.timeout)")
	cmd.Flags().BoolVar(&o.failOnSendError, "fail-on-send-error", false, "Fail the run when any send fails")
	cmd.Flags().BoolVar(&o.noProgress, "no-progress", false, "Disable progress bars")
}

// overrides collects the command line settings that take precedence over the
// config file and the environment.
func (o *runOptions) overrides() *config.Config {
	cfg := &config.Config{}
	cfg.Logging.Level = o.logLevel
	cfg.Run.Iterations = o.iterations
	cfg.Run.FailOnSendError = o.failOnSendError
	cfg.Receiver.URL = o.receiverURL
	cfg.LogAPI.URL = o.logAPIURL
	cfg.Verify.Timeout = o.timeout
	if o.json {
		cfg.Report.Format = "json"
	}
	return cfg
}

func (o *runOptions) execute(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	// Merge treats a zero count as unset, so an explicit zero is caught here.
	if cmd.Flags().Changed("iterations") && o.iterations < 1 {
		return wrapExitError(ExitConfigError, "failed to load config",
			&config.ValidationError{Field: "run.iterations", Message: fmt.Sprintf("must be at least 1, got %d", o.iterations)})
	}

	cfg, err := config.NewLoader(bootstrapLogger(stderr, o.logLevel)).Load(o.configPath, o.overrides())
	if err != nil {
		return wrapExitError(ExitConfigError, "failed to load config", err)
	}

	logger, closer, err := logging.Init(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, stderr)
	if err != nil {
		return wrapExitError(ExitConfigError, "failed to initialize logging", err)
	}
	defer closer.Close()

	return runHarness(ctx, cfg, logger, stdout, stderr, o.verbose, !o.noProgress)
}

// runHarness executes one run with a loaded config and delivers its result.
func runHarness(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer, verbose, allowProgress bool) error {
	logAPI, err := client.NewLogAPIClient(cfg.LogAPI.URL,
		client.WithTimeout(cfg.HTTP.Timeout), client.WithLogger(logger))
	if err != nil {
		return wrapExitError(ExitConfigError, "invalid log API URL", err)
	}
	receiver, err := client.NewReceiverClient(cfg.Receiver.URL,
		client.WithTimeout(cfg.HTTP.Timeout), client.WithLogger(logger))
	if err != nil {
		return wrapExitError(ExitConfigError, "invalid receiver URL", err)
	}

	gen, err := generator.New(cfg.Generator, logger)
	if err != nil {
		return wrapExitError(ExitConfigError, "failed to create generator", err)
	}

	recorder := metrics.NewRecorder()
	engineOpts := []verify.Option{
		verify.WithLogger(logger),
		verify.WithRecorder(recorder),
		verify.WithPollInterval(cfg.Verify.PollInterval),
		verify.WithGenerateConcurrency(cfg.Generation.Concurrency),
		verify.WithDispatchConcurrency(cfg.Dispatch.Concurrency),
	}
	if allowProgress && showProgress(cfg, stderr) {
		engineOpts = append(engineOpts, verify.WithProgress(progress.NewBars(stderr)))
	}
	engine := verify.NewEngine(logAPI, receiver, gen, engineOpts...)

	runID, err := uuid.NewV7()
	if err != nil {
		return wrapExitError(ExitFailed, "failed to create run id", err)
	}
	meta := report.Meta{
		RunID:           runID.String(),
		ReceiverURL:     cfg.Receiver.URL,
		LogAPIURL:       cfg.LogAPI.URL,
		Generator:       string(cfg.Generator.Kind),
		Iterations:      cfg.Run.Iterations,
		FailOnSendError: cfg.Run.FailOnSendError,
		StartTime:       time.Now(),
	}
	logger.Info("Starting run",
		"run_id", meta.RunID,
		"iterations", meta.Iterations,
		"receiver", meta.ReceiverURL,
		"log_api", meta.LogAPIURL)

	out, runErr := engine.Run(ctx, verify.Params{
		Iterations: cfg.Run.Iterations,
		PageLimit:  cfg.Verify.PageLimit,
		Timeout:    cfg.Verify.Timeout,
	})
	result := report.Build(meta, out, runErr, time.Now())
	recorder.ObserveRun(result.Success, result.Duration, result.EndTime)

	if err := writeResult(stdout, cfg.Report.Format, result, verbose); err != nil {
		return wrapExitError(ExitFailed, "failed to write result", err)
	}
	report.LogSummary(ctx, logger, result)

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	deliver(sinkCtx, cfg, logger, recorder, result)

	switch {
	case runErr != nil:
		return classifyRunError(runErr)
	case !result.Success:
		return newExitError(ExitFailed, fmt.Sprintf("verification failed: %d/%d verified, %d send failure(s)",
			result.Counts.Verified, result.Counts.Verified+result.Counts.Unverified, result.Counts.SendFailures))
	}
	return nil
}

func writeResult(w io.Writer, format string, r *report.Result, verbose bool) error {
	if format == "json" {
		return report.WriteJSON(w, r)
	}
	return report.WriteText(w, r, verbose)
}

// deliver hands the result to every configured sink. Sink failures are logged
// and never change the verdict.
func deliver(ctx context.Context, cfg *config.Config, logger *slog.Logger, recorder *metrics.Recorder, r *report.Result) {
	if path := cfg.Report.HistoryDB; path != "" {
		if err := archive(ctx, path, r); err != nil {
			logger.Warn("Failed to archive run", "path", path, "error", err)
		} else {
			logger.Debug("Archived run", "path", path, "run_id", r.RunID)
		}
	}

	if url := cfg.Report.NATS.URL; url != "" {
		if err := publish(ctx, cfg.Report.NATS, r); err != nil {
			logger.Warn("Failed to publish result", "url", url, "subject", cfg.Report.NATS.Subject, "error", err)
		} else {
			logger.Debug("Published result", "subject", cfg.Report.NATS.Subject, "run_id", r.RunID)
		}
	}

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		grouping := map[string]string{"receiver": cfg.Receiver.URL}
		if err := recorder.Push(ctx, url, cfg.Metrics.Job, grouping); err != nil {
			logger.Warn("Failed to push metrics", "url", url, "error", err)
		} else {
			logger.Debug("Pushed metrics", "url", url, "job", cfg.Metrics.Job)
		}
	}
}

func archive(ctx context.Context, path string, r *report.Result) error {
	history, err := report.OpenHistory(path)
	if err != nil {
		return err
	}
	defer history.Close()
	return history.Record(ctx, r)
}

func publish(ctx context.Context, cfg config.NATSConfig, r *report.Result) error {
	publisher, err := report.NewNATSPublisher(ctx, cfg.URL, cfg.Subject, cfg.KVBucket)
	if err != nil {
		return err
	}
	defer publisher.Close()
	return publisher.Publish(ctx, r)
}

// showProgress reports whether bars should be drawn on w.
func showProgress(cfg *config.Config, w io.Writer) bool {
	if !cfg.Report.Progress || cfg.Report.Format == "json" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// bootstrapLogger is used until the configured logger exists.
func bootstrapLogger(w io.Writer, level string) *slog.Logger {
	if level == "" {
		level = os.Getenv(config.EnvLogLevel)
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
