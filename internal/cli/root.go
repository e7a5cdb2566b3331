// Package cli provides the command-line interface for ember.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/embershare/ember/internal/logging"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	jsonLogs bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - set by main package at startup
// The actual version is defined in:
// 1. Makefile (source of truth for releases, injected via LDFLAGS)
// 2. cmd/ember/main.go (fallback for non-Makefile builds)
var (
	Version   = "v0.1.0"
	BuildTime = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ember",
		Short: "Ephemeral encrypted file sharing",
		Long: `Ember ` + Version + ` - Built: ` + BuildTime + `
Self-destructing file sharing service.

Uploads are encrypted at rest, addressed by a speakable three-word
identifier, and destroyed when their download limit or time limit is
reached, whichever comes first. Metadata lives in Redis with a TTL;
blobs are overwritten before removal.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			mode := "console"
			if jsonLogs {
				mode = "json"
			}
			logger = logging.NewLogger(mode)
			logging.SetGlobalLevel(logging.ParseLevel(logLevel))
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON logs instead of console output")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so a second Ctrl+C during shutdown is absorbed instead of
	// killing the drain.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				GetLogger().Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	// Clean up signal handler
	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHealthcheckCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultConsoleLogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}
