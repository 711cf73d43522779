package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/c360studio/greeting-e2e/config"
	"github.com/c360studio/greeting-e2e/report"
	"github.com/spf13/cobra"
)

type historyOptions struct {
	*rootOptions
	db    string
	limit int
}

func historyCmd(rootOpts *rootOptions) *cobra.Command {
	opts := &historyOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		Long: `List the most recent runs archived in report.history_db.

Example:
  greeting-e2e history -l 20
  greeting-e2e history show 0190a1b2-0000-7000-8000-000000000001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withHistory(cmd, func(ctx context.Context, h *report.History) error {
				records, err := h.Recent(ctx, opts.limit)
				if err != nil {
					return wrapExitError(ExitFailed, "failed to list runs", err)
				}
				return writeRecords(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.PersistentFlags().StringVar(&opts.db, "db", "", "History database (overrides report.history_db)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 10, "Number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the archived result of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHistory(cmd, func(ctx context.Context, h *report.History) error {
				r, err := h.Get(ctx, args[0])
				if errors.Is(err, sql.ErrNoRows) {
					return newExitError(ExitFailed, fmt.Sprintf("run %s not found", args[0]))
				}
				if err != nil {
					return wrapExitError(ExitFailed, "failed to read run", err)
				}
				return writeResult(cmd.OutOrStdout(), formatFor(opts.json), r, opts.verbose)
			})
		},
	})

	return cmd
}

// withHistory resolves the database path and opens it for fn.
func (o *historyOptions) withHistory(cmd *cobra.Command, fn func(context.Context, *report.History) error) error {
	path := o.db
	if path == "" {
		cfg, err := config.LoadFromFile(o.configPath)
		if err != nil {
			return wrapExitError(ExitConfigError, "failed to load config", err)
		}
		path = cfg.Report.HistoryDB
	}
	if path == "" {
		return newExitError(ExitConfigError, "no history database configured (set report.history_db or --db)")
	}

	h, err := report.OpenHistory(path)
	if err != nil {
		return wrapExitError(ExitConfigError, "failed to open history", err)
	}
	defer h.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, h)
}

func writeRecords(w io.Writer, records []report.RunRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tVERIFIED\tSEND FAILURES\tDURATION")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			rec.RunID,
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Status,
			rec.Verified, rec.Verified+rec.Unverified,
			rec.SendFailures,
			rec.Duration)
	}
	return tw.Flush()
}

func formatFor(json bool) string {
	if json {
		return "json"
	}
	return "text"
}
