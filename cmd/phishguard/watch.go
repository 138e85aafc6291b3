package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/metrics"
	"github.com/mikey/phish-guard/internal/adapters/render"
	"github.com/mikey/phish-guard/internal/analyzer"
	"github.com/mikey/phish-guard/internal/config"
	"github.com/mikey/phish-guard/internal/events"
	"github.com/mikey/phish-guard/internal/factory"
	"github.com/mikey/phish-guard/internal/scan"
)

var watchNoConsole bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the mailbox and flag phishing as messages arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(
			o *scan.Orchestrator,
			a *analyzer.Analyzer,
			src factory.Source,
			term *render.Terminal,
			bus *events.Bus,
			m *metrics.Metrics,
			cfg *config.Config,
			logger *zap.Logger,
		) error {
			defer logger.Sync()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := src.Start(ctx); err != nil {
				return fmt.Errorf("start source: %w", err)
			}
			defer func() {
				if err := src.Stop(); err != nil {
					logger.Error("Failed to stop source", zap.Error(err))
				}
			}()
			defer bus.Close()

			if evCfg := cfg.GetEvents(); evCfg.MetricsEnabled {
				srv := startMetricsServer(evCfg.MetricsAddress, m, logger)
				defer func() {
					shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
					defer done()
					srv.Shutdown(shutdownCtx)
				}()
			}

			runErr := make(chan error, 1)
			go func() { runErr <- o.Run(ctx) }()

			if watchNoConsole {
				<-ctx.Done()
			} else {
				term.Status("Watching mailbox. " + consoleHelp)
				c := &console{
					engine: o,
					analyze: func(ctx context.Context, messageID string) {
						a.AnalyzeAsync(ctx, messageID)
					},
					status: term.Status,
					logger: logger,
				}
				if op, ok := src.(interface{ MarkOpened(string) bool }); ok {
					c.open = op.MarkOpened
				}
				if err := c.run(ctx, cmd.InOrStdin()); err != nil {
					logger.Warn("Console input failed", zap.Error(err))
				}
			}

			cancel()
			return <-runErr
		})
	},
}

func startMetricsServer(addr string, m *metrics.Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("Serving metrics", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return srv
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoConsole, "no-console", false, "Do not read commands from stdin")
	rootCmd.AddCommand(watchCmd)
}
