package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/redis"
)

// RedisBridge relays events published by any instance into the local hub,
// in the order redis delivers them
type RedisBridge struct {
	hub    *Hub
	redis  *redis.Client
	logger *logger.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRedisBridge creates a bridge for the hub
func NewRedisBridge(hub *Hub, redisClient *redis.Client, log *logger.Logger) *RedisBridge {
	return &RedisBridge{
		hub:    hub,
		redis:  redisClient,
		logger: log.Named("bridge"),
	}
}

// Start subscribes to the shared events channel. It returns once the
// subscription is confirmed.
func (b *RedisBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isRunning {
		return nil
	}

	channel := b.redis.KeyBuilder.KeyRealtimeEvents()
	pubsub := b.redis.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	b.isRunning = true

	b.logger.WithField("channel", channel).Info("Realtime bridge subscribed")

	go func() {
		defer close(b.done)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.relay([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *RedisBridge) relay(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		b.logger.WithError(err).Warn("Dropping malformed realtime event")
		return
	}
	b.hub.deliver(env.Channel, data)
}

// Stop unsubscribes and waits for the relay loop to exit
func (b *RedisBridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.isRunning {
		b.mu.Unlock()
		return nil
	}
	b.cancel()
	b.isRunning = false
	done := b.done
	b.mu.Unlock()

	select {
	case <-done:
		b.logger.Info("Realtime bridge stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
