// Package cli wires configuration, storage and transports into the cobra
// commands of the seat service binary.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string // --log, overrides LOG_LEVEL

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "seats",
	Short: "Study room seat allocation service and occupancy simulator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "", "Log level (trace, debug, info, warn, error); defaults to LOG_LEVEL or info")
	rootCmd.AddCommand(serveCmd, simulateCmd, tokenCmd, seedCmd)
}

// setupLogging applies level, falling back to LOG_LEVEL and then info.
func setupLogging(level string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", level)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
