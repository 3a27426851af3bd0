package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/redis"
)

// LeaderboardCache keeps the ranked standings in redis between writes so
// scoreboard screens polling the API do not each rescan the teams table.
// A nil cache, or one without a redis client, always loads from the store.
//
// Every cached board carries the generation it was loaded under. Invalidate
// bumps the generation, so a board loaded before a points change is never
// served after it, even when a slow reader writes it back late.
type LeaderboardCache struct {
	redis  *redis.Client
	logger *logger.Logger
}

type cachedBoard struct {
	Generation int64                      `json:"generation"`
	Entries    []*domain.LeaderboardEntry `json:"entries"`
}

// NewLeaderboardCache creates a leaderboard cache. redisClient may be nil.
func NewLeaderboardCache(redisClient *redis.Client, log *logger.Logger) *LeaderboardCache {
	return &LeaderboardCache{
		redis:  redisClient,
		logger: log.Named("leaderboard_cache"),
	}
}

func (c *LeaderboardCache) enabled() bool {
	return c != nil && c.redis != nil
}

// generation reads the current generation. A missing counter is generation 0.
func (c *LeaderboardCache) generation(ctx context.Context) (int64, error) {
	raw, err := c.redis.Get(ctx, c.redis.KeyBuilder.KeyLeaderboardGeneration())
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Get returns the cached standings, calling load and caching its result on
// a miss. Cache errors fall back to load.
func (c *LeaderboardCache) Get(ctx context.Context, load func(ctx context.Context) ([]*domain.LeaderboardEntry, error)) ([]*domain.LeaderboardEntry, error) {
	if !c.enabled() {
		return load(ctx)
	}

	// read before loading: a change committed after this point bumps the
	// generation past the one stored with the board
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Leaderboard generation unavailable, reading database")
		return load(ctx)
	}

	cached, err := c.redis.Get(ctx, c.redis.KeyBuilder.KeyLeaderboard())
	switch {
	case err == nil:
		var board cachedBoard
		jsonErr := json.Unmarshal([]byte(cached), &board)
		if jsonErr != nil {
			c.logger.WithError(jsonErr).Warn("Leaderboard cache corrupted, falling back to database")
			break
		}
		if board.Generation == gen {
			c.logger.Debug("Leaderboard cache hit")
			return board.Entries, nil
		}
		c.logger.Debug("Leaderboard cache outdated")
	case stderrors.Is(err, redis.Nil):
		c.logger.Debug("Leaderboard cache miss")
	default:
		c.logger.WithError(err).Warn("Leaderboard cache error, falling back to database")
	}

	entries, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, gen, entries)
	return entries, nil
}

func (c *LeaderboardCache) store(ctx context.Context, gen int64, entries []*domain.LeaderboardEntry) {
	data, err := json.Marshal(cachedBoard{Generation: gen, Entries: entries})
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal leaderboard for caching")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.redis.Set(ctx, c.redis.KeyBuilder.KeyLeaderboard(), string(data), redis.TTLLeaderboard); err != nil {
		c.logger.WithError(err).Warn("Failed to cache leaderboard")
	}
}

// Invalidate retires the cached standings after points or teams change.
// When redis cannot be reached the cached board is left to expire.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if _, err := c.redis.Incr(ctx, c.redis.KeyBuilder.KeyLeaderboardGeneration()); err != nil {
		c.logger.WithError(err).Warn("Failed to bump leaderboard generation")
		if err := c.redis.Delete(ctx, c.redis.KeyBuilder.KeyLeaderboard()); err != nil {
			c.logger.WithError(err).Warn("Failed to invalidate leaderboard cache")
		}
	}
}
