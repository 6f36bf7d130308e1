package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"unshub/internal/app"

	"github.com/spf13/cobra"
)

// serveCmd starts the broker and blocks until it is signaled to stop.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the unshub broker",
	Long: `Starts the broker: opens the storage backend, wires the ingestion
pipeline, auto-mapper and connection manager, brings up the configured
connections and serves until interrupted (SIGINT/SIGTERM).

Configuration is read from config.yaml in the configuration directory;
a missing file starts the broker with the built-in defaults.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(flagDebug, flagLogLevel, flagConfigPath, rootCmd.Version)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
