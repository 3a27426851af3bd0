package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/redis"
)

func setupSweeperRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testSweeperConfig() SweeperConfig {
	return SweeperConfig{
		RetryInterval:   30 * time.Second,
		CleanupInterval: time.Hour,
		RetentionDays:   30,
	}
}

func TestBroadcastSweeper_SweepOnceWithoutRedis(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.notifier.failWith(stderrors.New("down"))
	env.createTeam(t, "T01", "Alpha")
	env.notifier.failWith(nil)

	sweeper := NewBroadcastSweeper(env.updates, nil, logger.NewNop(), testSweeperConfig())
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBroadcastSweeper_LockSharedAcrossInstances(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	mr, client := setupSweeperRedis(t)

	first := NewBroadcastSweeper(env.updates, client, logger.NewNop(), testSweeperConfig())
	second := NewBroadcastSweeper(env.updates, client, logger.NewNop(), testSweeperConfig())

	env.notifier.failWith(stderrors.New("down"))
	_, err := env.updates.CreateUpdate(ctx, domain.UpdatePointsAwarded, "pending", nil)
	require.NoError(t, err)
	env.notifier.failWith(nil)

	assert.True(t, first.acquire(ctx, JobRetry, time.Minute))
	assert.False(t, second.acquire(ctx, JobRetry, time.Minute), "lock is held for the interval")

	n, err := second.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second instance skips while the lock is held")

	mr.FastForward(time.Minute + time.Second)
	n, err = second.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists(client.KeyBuilder.KeySweepLastRun(JobRetry)))
}

func TestBroadcastSweeper_CleanupOnce(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	_, client := setupSweeperRedis(t)

	env.setNow(testNow.Add(-40 * 24 * time.Hour))
	_, err := env.updates.CreateUpdate(ctx, domain.UpdateTeamCreated, "ancient", nil)
	require.NoError(t, err)
	env.setNow(testNow)

	sweeper := NewBroadcastSweeper(env.updates, client, logger.NewNop(), testSweeperConfig())
	n, err := sweeper.CleanupOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = sweeper.CleanupOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBroadcastSweeper_StartStop(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	env.notifier.failWith(stderrors.New("down"))
	env.createTeam(t, "T01", "Alpha")
	env.notifier.failWith(nil)

	cfg := testSweeperConfig()
	cfg.RetryInterval = 10 * time.Millisecond
	sweeper := NewBroadcastSweeper(env.updates, nil, logger.NewNop(), cfg)

	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Start(ctx), "starting twice is a no-op")

	assert.Eventually(t, func() bool {
		n, err := env.updates.GetPendingUpdateCount(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))
	require.NoError(t, sweeper.Stop(stopCtx), "stopping twice is a no-op")
}
