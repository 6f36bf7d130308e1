package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Persistent flags shared by every subcommand.
var (
	flagConfigPath string
	flagLogLevel   string
	flagDebug      bool
)

// rootCmd is the base command of the unshub broker.
var rootCmd = &cobra.Command{
	Use:   "unshub",
	Short: "Unified namespace broker for industrial telemetry",
	Long: `unshub ingests datapoints from pluggable data connections, persists them
in realtime and historical stores, and folds every discovered topic into a
single hierarchical namespace.

Connections, the namespace tree, and topic mappings are managed at runtime
and persisted in the configured storage backend.`,
	// SilenceUsage keeps handled runtime errors from echoing the usage text.
	SilenceUsage: true,
}

// SetVersion injects the build version from main.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "unshub version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "configuration directory (default: ~/.config/unshub)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "force debug logging")
}
