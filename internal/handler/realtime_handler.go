package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/realtime"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// RealtimeHandler upgrades clients to websocket connections on the hub
type RealtimeHandler struct {
	hub      *realtime.Hub
	cfg      realtime.ClientConfig
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewRealtimeHandler creates a websocket handler. An empty origin list
// accepts any origin.
func NewRealtimeHandler(hub *realtime.Hub, cfg realtime.ClientConfig, allowedOrigins []string, log *logger.Logger) *RealtimeHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &RealtimeHandler{
		hub:    hub,
		cfg:    cfg,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeWS handles GET /ws. The identity resolved by the token middleware
// decides which role groups the client joins.
func (h *RealtimeHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, _ := domain.ActorFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	realtime.NewClient(h.hub, conn, actor, h.cfg, h.logger).Start()
}
