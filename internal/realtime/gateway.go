package realtime

import (
	"context"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/redis"
)

// Gateway delivers events to clients. Without redis it publishes straight
// into the local hub; with redis every instance receives the event through
// its RedisBridge, including this one.
type Gateway struct {
	hub    *Hub
	redis  *redis.Client
	logger *logger.Logger
	now    func() time.Time
}

// NewGateway creates a gateway. redisClient may be nil.
func NewGateway(hub *Hub, redisClient *redis.Client, log *logger.Logger) *Gateway {
	return &Gateway{
		hub:    hub,
		redis:  redisClient,
		logger: log.Named("gateway"),
		now:    time.Now,
	}
}

// Notify publishes event on channel
func (g *Gateway) Notify(ctx context.Context, channel, event string, payload any) error {
	if g.redis == nil {
		if err := g.hub.Publish(channel, event, payload); err != nil {
			return errors.NewBroadcastError("failed to encode event", err)
		}
		return nil
	}

	env, err := NewEnvelope(channel, event, payload, g.now())
	if err != nil {
		return errors.NewBroadcastError("failed to encode event", err)
	}
	data, err := env.Encode()
	if err != nil {
		return errors.NewBroadcastError("failed to encode event", err)
	}

	if err := g.redis.Publish(ctx, g.redis.KeyBuilder.KeyRealtimeEvents(), data); err != nil {
		g.logger.WithError(err).WithFields(map[string]interface{}{
			"channel": channel,
			"event":   event,
		}).Warn("Failed to publish event")
		return errors.NewBroadcastError("failed to publish event", err)
	}
	return nil
}

// Distributed reports whether events travel through redis
func (g *Gateway) Distributed() bool {
	return g.redis != nil
}
