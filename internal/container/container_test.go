package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/config"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/realtime"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:            "test",
		DatabaseDriver:         config.DriverSQLite,
		SQLitePath:             filepath.Join(t.TempDir(), "scrimmage.db"),
		JWTSecret:              "container-secret",
		RateLimitPerMinute:     100,
		BroadcastRetryInterval: 30 * time.Second,
		UpdateRetentionDays:    30,
		CleanupInterval:        time.Hour,
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		redisURL    string
		expectRedis bool
	}{
		{
			name:        "Container with Redis configured",
			redisURL:    "redis://" + mr.Addr(),
			expectRedis: true,
		},
		{
			name:        "Container without Redis configured",
			redisURL:    "",
			expectRedis: false,
		},
		{
			name:        "Container with invalid Redis URL",
			redisURL:    "invalid://redis-url",
			expectRedis: false, // Redis client initialization fails but container creation succeeds
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.RedisURL = tt.redisURL

			c, err := New(context.Background(), cfg, logger.NewNop())
			require.NoError(t, err)
			require.NotNil(t, c)
			t.Cleanup(func() {
				if c.RedisClient != nil {
					_ = c.RedisClient.Close()
				}
				c.DB.Close()
			})

			assert.Equal(t, tt.expectRedis, c.HasRedis())
			assert.Equal(t, tt.expectRedis, c.Bridge != nil)
			assert.Equal(t, tt.expectRedis, c.Gateway.Distributed())
			assert.NotNil(t, c.Verifier)
			assert.NotNil(t, c.Limiter)
			assert.NoError(t, c.DB.Health(context.Background()))

			require.NotNil(t, c.Services)
			assert.NotNil(t, c.Services.Teams)
			assert.NotNil(t, c.Services.Challenges)
			assert.NotNil(t, c.Services.Updates)
			assert.NotNil(t, c.Services.Announcements)
			assert.NotNil(t, c.Services.Sweeper)
		})
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "mysql"

	_, err := New(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestBuild_OptionalPieces(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""
	cfg.RateLimitPerMinute = 0

	c := Build(cfg, logger.NewNop(), nil, nil)
	assert.Nil(t, c.Verifier, "no secret disables tokens")
	assert.Nil(t, c.Limiter, "zero disables rate limiting")
	assert.Nil(t, c.Bridge)
	assert.False(t, c.HasRedis())
	assert.Same(t, cfg, c.GetConfig())
}

func TestContainer_ClientConfig(t *testing.T) {
	cfg := testConfig(t)
	c := Build(cfg, logger.NewNop(), nil, nil)
	assert.Equal(t, realtime.DefaultClientConfig(), c.ClientConfig())

	cfg.WSMaxMessageSize = 4096
	cfg.WSPingInterval = 5 * time.Second
	cfg.WSPongTimeout = 12 * time.Second
	cfg.WSSendBuffer = 16

	got := c.ClientConfig()
	assert.Equal(t, int64(4096), got.MaxMessageSize)
	assert.Equal(t, 5*time.Second, got.PingInterval)
	assert.Equal(t, 12*time.Second, got.PongTimeout)
	assert.Equal(t, 16, got.SendBuffer)
	assert.Equal(t, realtime.DefaultClientConfig().WriteWait, got.WriteWait)
}

func TestContainer_StartStop(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	c, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.RedisClient.Close()
		c.DB.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Stop(ctx))
}
