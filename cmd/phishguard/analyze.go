package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/analyzer"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze MESSAGE_ID",
	Short: "Ask the remote classifier for a verdict on one message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(a *analyzer.Analyzer, logger *zap.Logger) error {
			defer logger.Sync()

			if payload := a.Analyze(cmd.Context(), args[0]); payload.Failed() {
				return errors.New("analysis failed")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
