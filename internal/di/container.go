package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/metrics"
	"github.com/mikey/phish-guard/internal/config"
	"github.com/mikey/phish-guard/internal/core"
	"github.com/mikey/phish-guard/internal/factory"
	"github.com/mikey/phish-guard/internal/logging"
	"github.com/mikey/phish-guard/internal/server"
	"github.com/mikey/phish-guard/internal/utils"
	"github.com/mikey/phish-guard/internal/whitelist"
)

// BuildServerContainer creates and configures the dependency injection
// container for the classifier service
func BuildServerContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.New); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register whitelist checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		return whitelist.NewChecker(cfg.GetServer().WhitelistedDomains, logger)
	}); err != nil {
		return nil, err
	}

	// Register assessment service
	if err := container.Provide(func(
		llmClient core.LLMClient,
		cacheRepo core.CacheRepository,
		logger *zap.Logger,
		f *factory.CacheFactory,
		checker *whitelist.Checker,
	) (*core.AssessmentService, error) {
		ttl, err := f.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		return core.NewAssessmentService(llmClient, cacheRepo, logger, f.IsCacheEnabled(), ttl, checker), nil
	}); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(func(
		cfg *config.Config,
		svc *core.AssessmentService,
		m *metrics.Metrics,
		logger *zap.Logger,
	) *server.Server {
		return server.New(svc, logger,
			server.WithObserver(m),
			server.WithMetricsHandler(m.Handler()),
			server.WithMaxRequestBytes(cfg.GetServer().MaxRequestBytes),
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
