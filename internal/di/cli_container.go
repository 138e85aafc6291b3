package di

import (
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/classifier"
	"github.com/mikey/phish-guard/internal/adapters/metrics"
	"github.com/mikey/phish-guard/internal/adapters/render"
	"github.com/mikey/phish-guard/internal/analyzer"
	"github.com/mikey/phish-guard/internal/config"
	"github.com/mikey/phish-guard/internal/events"
	"github.com/mikey/phish-guard/internal/factory"
	"github.com/mikey/phish-guard/internal/heuristics"
	"github.com/mikey/phish-guard/internal/logging"
	"github.com/mikey/phish-guard/internal/scan"
)

// CLIFlags contains the global command line flags of the engine CLI
type CLIFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool
}

// BuildContainer creates and configures the dependency injection container
// for the detection engine
func BuildContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags) (*config.Config, error) {
		return config.Load(flags.ConfigFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.New); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewEventsFactory); err != nil {
		return nil, err
	}

	// Register heuristic rules
	if err := container.Provide(factory.CreateRuleSet); err != nil {
		return nil, err
	}

	// Register message source
	if err := container.Provide(func(f *factory.SourceFactory) (factory.Source, error) {
		return f.CreateSource()
	}); err != nil {
		return nil, err
	}

	// Register renderer
	if err := container.Provide(func() *render.Terminal {
		return render.NewTerminal(os.Stdout)
	}); err != nil {
		return nil, err
	}

	// Register classifier client
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*classifier.HTTPClient, error) {
		clCfg, err := cfg.GetClassifier()
		if err != nil {
			return nil, err
		}
		return classifier.NewHTTPClient(clCfg.Endpoint, clCfg.Timeout, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register event bus
	if err := container.Provide(func(f *factory.EventsFactory) *events.Bus {
		return f.CreateBus()
	}); err != nil {
		return nil, err
	}

	// Register scan orchestrator
	if err := container.Provide(func(
		cfg *config.Config,
		src factory.Source,
		rules *heuristics.RuleSet,
		term *render.Terminal,
		bus *events.Bus,
		logger *zap.Logger,
	) (*scan.Orchestrator, error) {
		scanCfg, err := cfg.GetScan()
		if err != nil {
			return nil, err
		}
		return scan.New(src, rules, term, bus, logger, scanCfg.Interval), nil
	}); err != nil {
		return nil, err
	}

	// Register analyzer
	if err := container.Provide(func(
		src factory.Source,
		cl *classifier.HTTPClient,
		term *render.Terminal,
		logger *zap.Logger,
	) *analyzer.Analyzer {
		return analyzer.New(src, cl, term, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
