package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/redis"
)

// Sweep jobs, also used in the redis lock keys
const (
	JobRetry   = "retry"
	JobCleanup = "cleanup"
)

// SweeperConfig controls the background sweeps
type SweeperConfig struct {
	RetryInterval   time.Duration
	CleanupInterval time.Duration
	RetentionDays   int
}

// BroadcastSweeper periodically re-sends undelivered updates and purges old
// ones. With redis configured only one instance runs each sweep per interval.
type BroadcastSweeper struct {
	updates    *UpdateService
	redis      *redis.Client
	logger     *logger.Logger
	cfg        SweeperConfig
	instanceID string

	mu        sync.Mutex
	isRunning bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewBroadcastSweeper creates a sweeper. redisClient may be nil.
func NewBroadcastSweeper(updates *UpdateService, redisClient *redis.Client, log *logger.Logger, cfg SweeperConfig) *BroadcastSweeper {
	return &BroadcastSweeper{
		updates:    updates,
		redis:      redisClient,
		logger:     log.Named("sweeper"),
		cfg:        cfg,
		instanceID: uuid.NewString(),
	}
}

// Start runs the sweeps in the background until Stop is called
func (s *BroadcastSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	s.logger.WithFields(map[string]interface{}{
		"retry_interval":   s.cfg.RetryInterval.String(),
		"cleanup_interval": s.cfg.CleanupInterval.String(),
		"retention_days":   s.cfg.RetentionDays,
	}).Info("Starting broadcast sweeper...")

	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(ctx, s.stop)

	s.isRunning = true
	return nil
}

// Stop halts the sweeps and waits for a running pass to finish
func (s *BroadcastSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	close(s.stop)
	s.isRunning = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Broadcast sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *BroadcastSweeper) run(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	retry := time.NewTicker(s.cfg.RetryInterval)
	defer retry.Stop()
	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-retry.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.WithError(err).Warn("Broadcast retry pass failed")
			}
		case <-cleanup.C:
			if _, err := s.CleanupOnce(ctx); err != nil {
				s.logger.WithError(err).Error("Update cleanup failed")
			}
		}
	}
}

// SweepOnce re-sends pending updates if this instance holds the retry lock
func (s *BroadcastSweeper) SweepOnce(ctx context.Context) (int, error) {
	if !s.acquire(ctx, JobRetry, s.cfg.RetryInterval) {
		return 0, nil
	}
	n, err := s.updates.RetryUnbroadcast(ctx)
	s.markRun(ctx, JobRetry)
	return n, err
}

// CleanupOnce purges updates past the retention window if this instance
// holds the cleanup lock
func (s *BroadcastSweeper) CleanupOnce(ctx context.Context) (int64, error) {
	if !s.acquire(ctx, JobCleanup, s.cfg.CleanupInterval) {
		return 0, nil
	}
	n, err := s.updates.CleanupOldUpdates(ctx, s.cfg.RetentionDays)
	s.markRun(ctx, JobCleanup)
	return n, err
}

// acquire takes the per-interval lock for job. Without redis, or when redis
// is unreachable, every instance sweeps; both sweeps tolerate that.
func (s *BroadcastSweeper) acquire(ctx context.Context, job string, ttl time.Duration) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, s.redis.KeyBuilder.KeySweepLock(job), s.instanceID, ttl)
	if err != nil {
		s.logger.WithError(err).WithField("job", job).Warn("Sweep lock unavailable, sweeping anyway")
		return true
	}
	if !ok {
		s.logger.WithField("job", job).Debug("Sweep lock held by another instance")
	}
	return ok
}

func (s *BroadcastSweeper) markRun(ctx context.Context, job string) {
	if s.redis == nil {
		return
	}
	key := s.redis.KeyBuilder.KeySweepLastRun(job)
	if err := s.redis.Set(ctx, key, time.Now().Unix(), redis.TTLSweepLastRun); err != nil {
		s.logger.WithError(err).WithField("job", job).Debug("Failed to record sweep run")
	}
}
