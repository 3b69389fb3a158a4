// Package cli provides the command-line interface of the Data Hub File
// Service.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghga-de/datahub-file-service/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dhfs",
		Short: "Data Hub File Service - interrogates and re-encrypts uploaded files",
		Long: `Data Hub File Service

Worker that inspects Crypt4GH files arriving in the S3 inbox, verifies the
declared content checksum, re-encrypts each file under a fresh secret, stages
the result in the interrogation bucket, and reports the outcome to GHGA
Central.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.AddCommand(newInterrogateCmd())
	rootCmd.AddCommand(newCleanupCmd())
	return rootCmd
}

// Execute runs the CLI. It returns a process exit code: 0 on success,
// non-zero on fatal errors.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// loadConfig reads the configuration honoring the --config and --verbose
// flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
