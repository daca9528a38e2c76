package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/logger"
	"github.com/shamu4life/helper-scripts/internal/service/updater"
	"github.com/shamu4life/helper-scripts/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd runs one update cycle when invoked without a subcommand.
	rootCmd = &cobra.Command{
		Use:   "helper-updater",
		Short: "Keep a service binary up to date",
		Long: "helper-updater checks a release source for a newer build of one binary, " +
			"installs it atomically, restarts its service and rolls back if the new build does not start.\n\n" +
			"Exit codes: 0 up to date or updated, 1 failed, 2 failed and rollback failed.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if logLevel != "" {
				logger.Configure(logLevel, "")
			}
		},
		RunE: runCycle,
	}

	runCmd = &cobra.Command{
		Use:          "run",
		Short:        "Run one update cycle",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runCycle,
	}

	statusCmd = &cobra.Command{
		Use:          "status",
		Short:        "Show the last recorded update cycle",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return updater.Status(cmd.Context(), &updater.StatusOptions{
				ConfigPath: configPath,
				Output:     cmd.OutOrStdout(),
			})
		},
	}
)

func runCycle(cmd *cobra.Command, _ []string) error {
	return updater.Run(cmd.Context(), &updater.Options{
		ConfigPath: configPath,
		LogLevel:   logLevel,
	})
}

// Execute runs the helper-updater CLI and exits with the status of the cycle.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(updater.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, statusCmd, newPublishCommand())
}
