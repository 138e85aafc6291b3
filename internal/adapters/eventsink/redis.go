// Package eventsink forwards bus events to other processes.
package eventsink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mikey/phish-guard/internal/events"
)

// DefaultChannel is the pub/sub channel events are published on
const DefaultChannel = "phishguard:events"

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes every bus event as JSON on a Redis channel.
// Publishing is fire-and-forget: failures are logged, never retried.
type RedisSink struct {
	client  publisher
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisSink creates a sink on an existing client
func NewRedisSink(client *redis.Client, channel string, logger *zap.Logger) *RedisSink {
	return newRedisSink(client, channel, logger)
}

func newRedisSink(client publisher, channel string, logger *zap.Logger) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// HandleEvent is an events.Handler
func (s *RedisSink) HandleEvent(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	receivers, err := s.client.Publish(ctx, s.channel, payload).Result()
	if err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("channel", s.channel),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
		return
	}

	s.logger.Debug("Published event",
		zap.String("channel", s.channel),
		zap.String("type", string(ev.Type)),
		zap.Int64("receivers", receivers))
}
