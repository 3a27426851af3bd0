package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/container"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/middleware"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
)

// guardFunc builds the middleware that restricts a route to roles
type guardFunc func(roles ...string) func(http.Handler) http.Handler

// NewRouter configures and returns the HTTP router
func NewRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()
	services := c.Services

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.RequestID(log))
	r.Use(middleware.CORS(corsConfig, log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RateLimit(c.Limiter, log))
	r.Use(middleware.TokenIdentity(c.Verifier, log))

	guard := func(roles ...string) func(http.Handler) http.Handler {
		if c.Verifier == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RequireRole(log, roles...)
	}

	healthHandler := NewHealthHandler(c)
	realtimeHandler := NewRealtimeHandler(c.Hub, c.ClientConfig(), cfg.AllowedOrigins, log)
	teamHandler := NewTeamHandler(services.Teams, services.Challenges, log, cfg.LeaderboardSize)
	challengeHandler := NewChallengeHandler(services.Challenges, log)
	announcementHandler := NewAnnouncementHandler(services.Announcements, log, cfg.RecentAnnouncementsCount)
	updateHandler := NewUpdateHandler(services.Updates, services.Teams, log, cfg.RecentUpdatesCount)

	r.Get("/health", healthHandler.Check)

	// websocket connections are long lived, so they skip the compression
	// and timeout middleware used by the API
	r.Get("/ws", realtimeHandler.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Compress(5))
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		teamHandler.RegisterRoutes(r, guard)
		challengeHandler.RegisterRoutes(r, guard)
		announcementHandler.RegisterRoutes(r, guard)
		updateHandler.RegisterRoutes(r, guard)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, log, errors.NewNotFoundError("Endpoint not found"))
	})

	log.Info("Router configured successfully")
	return r
}
