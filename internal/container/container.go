package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/config"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/middleware"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/realtime"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/repository"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/service"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/database"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/markdown"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/redis"
)

// Database is the handle shared by the postgres and sqlite openers
type Database interface {
	SQL() *sql.DB
	Close()
	Health(ctx context.Context) error
}

var (
	_ Database         = (*database.PostgresDB)(nil)
	_ Database         = (*database.SQLiteDB)(nil)
	_ service.Notifier = (*realtime.Gateway)(nil)
	_ service.Renderer = (*markdown.Renderer)(nil)
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          Database
	Store       *repository.Store
	RedisClient *redis.Client
	Hub         *realtime.Hub
	Gateway     *realtime.Gateway
	Bridge      *realtime.RedisBridge
	Verifier    *middleware.TokenVerifier
	Limiter     *middleware.RateLimiter
	Services    *service.Services
}

// New opens the configured store and wires every dependency
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	db, dialect, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db.SQL(), dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	log.WithField("driver", dialect.String()).Info("Database ready")

	// Initialize Redis client if Redis URL is configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, events stay on this instance")
		} else {
			redisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, events stay on this instance")
	}

	c := Build(cfg, log, store, redisClient)
	c.DB = db
	return c, nil
}

// Build wires services around an open store. redisClient may be nil.
func Build(cfg *config.Config, log *logger.Logger, store *repository.Store, redisClient *redis.Client) *Container {
	hub := realtime.NewHub(log)
	gateway := realtime.NewGateway(hub, redisClient, log)

	var bridge *realtime.RedisBridge
	if redisClient != nil {
		bridge = realtime.NewRedisBridge(hub, redisClient, log)
	}

	var verifier *middleware.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = middleware.NewTokenVerifier(cfg.JWTSecret)
	} else {
		log.Warn("JWT_SECRET not configured, identity tokens are ignored and role checks are disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	updates := service.NewUpdateService(store, gateway, log)
	teams := service.NewTeamService(store, updates, service.NewLeaderboardCache(redisClient, log), log)
	challenges := service.NewChallengeService(store, teams, updates, log)
	announcements := service.NewAnnouncementService(store, updates, markdown.NewRenderer(), log)
	sweeper := service.NewBroadcastSweeper(updates, redisClient, log, service.SweeperConfig{
		RetryInterval:   cfg.BroadcastRetryInterval,
		CleanupInterval: cfg.CleanupInterval,
		RetentionDays:   cfg.UpdateRetentionDays,
	})

	return &Container{
		Config:      cfg,
		Logger:      log,
		Store:       store,
		RedisClient: redisClient,
		Hub:         hub,
		Gateway:     gateway,
		Bridge:      bridge,
		Verifier:    verifier,
		Limiter:     limiter,
		Services: &service.Services{
			Teams:         teams,
			Challenges:    challenges,
			Updates:       updates,
			Announcements: announcements,
			Sweeper:       sweeper,
		},
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (Database, repository.Dialect, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, 0, fmt.Errorf("connect postgres: %w", err)
		}
		return db, repository.DialectPostgres, nil
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, 0, fmt.Errorf("open sqlite: %w", err)
		}
		return db, repository.DialectSQLite, nil
	}
	return nil, 0, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// ClientConfig returns the websocket limits from the configuration
func (c *Container) ClientConfig() realtime.ClientConfig {
	cc := realtime.DefaultClientConfig()
	if c.Config.WSMaxMessageSize > 0 {
		cc.MaxMessageSize = c.Config.WSMaxMessageSize
	}
	if c.Config.WSPingInterval > 0 {
		cc.PingInterval = c.Config.WSPingInterval
	}
	if c.Config.WSPongTimeout > 0 {
		cc.PongTimeout = c.Config.WSPongTimeout
	}
	if c.Config.WSSendBuffer > 0 {
		cc.SendBuffer = c.Config.WSSendBuffer
	}
	return cc
}

// Start launches the background pieces: the redis bridge and the sweeper
func (c *Container) Start(ctx context.Context) error {
	if c.Bridge != nil {
		if err := c.Bridge.Start(ctx); err != nil {
			return fmt.Errorf("start realtime bridge: %w", err)
		}
	}
	if err := c.Services.Sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	return nil
}

// Stop halts the background pieces started by Start
func (c *Container) Stop(ctx context.Context) error {
	var firstErr error
	if err := c.Services.Sweeper.Stop(ctx); err != nil {
		firstErr = fmt.Errorf("stop sweeper: %w", err)
	}
	if c.Bridge != nil {
		if err := c.Bridge.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop realtime bridge: %w", err)
		}
	}
	return firstErr
}
