package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/config"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/container"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/handler"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/telemetry"
)

const serviceName = "robotics-scrimmage-manager"

// Resources holds all resources that need cleanup
type Resources struct {
	container         *container.Container
	server            *http.Server
	telemetryShutdown func(context.Context) error
	log               *logger.Logger
	mu                sync.Mutex
	closed            bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errors []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errors = append(errors, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	if r.container != nil {
		// Stop the sweeper and the redis bridge before their connections go away
		r.log.Info("Stopping background workers...")
		if err := r.container.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop background workers")
			errors = append(errors, fmt.Errorf("background workers shutdown: %w", err))
		} else {
			r.log.Info("Background workers stopped successfully")
		}

		if redisClient := r.container.GetRedisClient(); redisClient != nil {
			r.log.Info("Closing Redis connection...")

			healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
			if err := redisClient.Health(healthCtx); err != nil {
				r.log.WithError(err).Warn("Redis health check failed before closing")
			}
			healthCancel()

			if err := redisClient.Close(); err != nil {
				r.log.WithError(err).Error("Failed to close Redis connection")
				errors = append(errors, fmt.Errorf("Redis close: %w", err))
			} else {
				r.log.Info("Redis connection closed successfully")
			}
		}

		if db := r.container.DB; db != nil {
			r.log.Info("Closing database connection pool...")

			healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
			if err := db.Health(healthCtx); err != nil {
				r.log.WithError(err).Warn("Database health check failed before closing")
			}
			healthCancel()

			db.Close()
			r.log.Info("Database connection pool closed successfully")
		}
	}

	// Flush remaining spans last so shutdown work above is still traced
	if r.telemetryShutdown != nil {
		if err := r.telemetryShutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to flush traces")
			errors = append(errors, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}

	if len(errors) > 0 {
		r.log.WithField("error_count", len(errors)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errors), errors)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"driver":      cfg.DatabaseDriver,
		"competition": cfg.CompetitionName,
	}).Info("Starting scrimmage server")

	ctx := context.Background()

	telemetryShutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracing")
	}

	// Open storage, connect Redis and wire services
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	resources := &Resources{
		container:         c,
		telemetryShutdown: telemetryShutdown,
		log:               log,
	}

	if err := c.Start(ctx); err != nil {
		log.WithError(err).Error("Failed to start background workers")
		_ = resources.Cleanup(ctx)
		os.Exit(1)
	}

	router := handler.NewRouter(c)

	// WriteTimeout stays zero: websocket connections are long lived and the
	// API routes carry their own request timeout
	resources.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Setup cleanup function that will be called regardless of how the program exits
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := resources.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}
