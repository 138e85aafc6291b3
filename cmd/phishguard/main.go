package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikey/phish-guard/internal/di"
)

// Version is set via ldflags at build time.
var Version = "dev"

var flags di.CLIFlags

var rootCmd = &cobra.Command{
	Use:          "phishguard",
	Short:        "phishguard - phishing detection for your inbox",
	Long:         "Scans a mailbox with heuristic rules, tracks flagged messages and asks a remote classifier for a verdict on demand.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "phishguard version %s\n", Version)
	},
}

// invoke builds the engine container and calls fn with its dependencies
func invoke(fn interface{}) error {
	container, err := di.BuildContainer(&flags)
	if err != nil {
		return fmt.Errorf("build dependency container: %w", err)
	}
	return container.Invoke(fn)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "", "Config file (default: search /etc/phish-guard, ~/.phish-guard, ./configs, .)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
