package main

import (
	"fmt"

	"github.com/c360studio/greeting-e2e/config"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	json       bool
	verbose    bool
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}
	run := &runOptions{rootOptions: opts}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "End-to-end verification of the greeting service",
		Long: `greeting-e2e discovers the current end of the greeting log, sends a batch
of synthetic greetings to the receiver and polls the log until every accepted
greeting has been observed or the verification timeout expires.

Without a subcommand it behaves like "greeting-e2e run".

Exit codes:
  0  every sent greeting was verified
  1  verification failed (timeout, or send failures with run.fail_on_send_error)
  2  invalid configuration or parameters
  3  a service could not be reached or answered badly`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run.execute(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigFile, "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Write the result as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "List every unverified greeting")
	run.addFlags(cmd)

	cmd.AddCommand(
		runCmd(opts),
		initConfigCmd(opts),
		historyCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func initConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a config template with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := bootstrapLogger(cmd.ErrOrStderr(), opts.logLevel)
			created, err := config.NewLoader(logger).EnsureFile(opts.configPath)
			if err != nil {
				return wrapExitError(ExitConfigError, "failed to write config", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", opts.configPath)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", opts.configPath)
			}
			return nil
		},
	}
}
