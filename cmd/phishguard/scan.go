package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/render"
	"github.com/mikey/phish-guard/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the mailbox once and report flagged messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(o *scan.Orchestrator, term *render.Terminal, logger *zap.Logger) error {
			defer logger.Sync()

			res, err := o.ScanNow(cmd.Context())
			if err != nil {
				return err
			}
			term.Status(res.Status())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
