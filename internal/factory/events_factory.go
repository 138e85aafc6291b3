package factory

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/adapters/eventsink"
	"github.com/mikey/phish-guard/internal/adapters/metrics"
	"github.com/mikey/phish-guard/internal/config"
	"github.com/mikey/phish-guard/internal/events"
)

// busBufferSize is the per-subscriber queue length
const busBufferSize = 64

// EventsFactory creates the event bus and attaches the configured subscribers
type EventsFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEventsFactory creates a new events factory
func NewEventsFactory(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *EventsFactory {
	return &EventsFactory{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// CreateBus creates a bus with the metrics and redis subscribers wired in
func (f *EventsFactory) CreateBus() *events.Bus {
	bus := events.NewBus(busBufferSize, f.logger)

	if f.metrics != nil {
		bus.Subscribe("metrics", f.metrics.HandleEvent)
	}

	evCfg := f.cfg.GetEvents()
	if evCfg.RedisEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     evCfg.RedisAddress,
			Password: evCfg.RedisPassword,
			DB:       evCfg.RedisDB,
		})
		sink := eventsink.NewRedisSink(client, evCfg.RedisChannel, f.logger)
		bus.Subscribe("redis", sink.HandleEvent)
		f.logger.Info("Publishing events to redis",
			zap.String("address", evCfg.RedisAddress),
			zap.String("channel", evCfg.RedisChannel))
	}

	return bus
}
