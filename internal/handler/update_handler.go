package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/service"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// UpdateHandler serves the update feed and the operator actions around it
type UpdateHandler struct {
	updates     *service.UpdateService
	teams       *service.TeamService
	logger      *logger.Logger
	recentCount int
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(updates *service.UpdateService, teams *service.TeamService, log *logger.Logger, recentCount int) *UpdateHandler {
	return &UpdateHandler{
		updates:     updates,
		teams:       teams,
		logger:      log,
		recentCount: recentCount,
	}
}

// PendingResponse describes undelivered updates
type PendingResponse struct {
	Count   int              `json:"count"`
	Updates []*domain.Update `json:"updates"`
}

// ReconcileResponse reports teams whose totals disagree with their completions
type ReconcileResponse struct {
	Repaired   bool                     `json:"repaired"`
	Mismatches []*domain.PointsMismatch `json:"mismatches"`
}

// RegisterRoutes mounts the update feed and admin routes
func (h *UpdateHandler) RegisterRoutes(r chi.Router, guard guardFunc) {
	admin := guard(domain.RoleAdministrator)

	r.Route("/updates", func(r chi.Router) {
		r.Get("/", h.ListUpdates)
		r.With(admin).Get("/pending", h.GetPending)
		r.Get("/{id}", h.GetUpdate)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin)
		r.Post("/sweep", h.Sweep)
		r.Post("/reconcile", h.Reconcile)
	})
}

// ListUpdates handles GET /api/updates?type=&entity=&n=
func (h *UpdateHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		list []*domain.Update
		err  error
	)

	switch {
	case query.Get("type") != "":
		t, parseErr := domain.ParseUpdateType(query.Get("type"))
		if parseErr != nil {
			respondError(w, r, h.logger, errors.NewValidationError(parseErr.Error(), map[string]interface{}{"field": "type"}))
			return
		}
		list, err = h.updates.GetUpdatesByType(r.Context(), t)
	case query.Get("entity") != "":
		list, err = h.updates.GetUpdatesByEntity(r.Context(), query.Get("entity"))
	default:
		n, qErr := queryInt(r, "n", h.recentCount)
		if qErr != nil {
			respondError(w, r, h.logger, qErr)
			return
		}
		list, err = h.updates.GetRecentUpdates(r.Context(), n)
	}

	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, list, "")
}

// GetUpdate handles GET /api/updates/{id}
func (h *UpdateHandler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	u, err := h.updates.GetUpdate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, u, "")
}

// GetPending handles GET /api/updates/pending
func (h *UpdateHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.updates.GetUnbroadcastUpdates(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, PendingResponse{Count: len(pending), Updates: pending}, "")
}

// Sweep handles POST /api/admin/sweep, one retry pass over pending updates
func (h *UpdateHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	delivered, err := h.updates.RetryUnbroadcast(r.Context())
	if err != nil && !errors.IsBroadcast(err) {
		respondError(w, r, h.logger, err)
		return
	}

	remaining, countErr := h.updates.GetPendingUpdateCount(r.Context())
	if countErr != nil {
		respondError(w, r, h.logger, countErr)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]int{
		"delivered": delivered,
		"remaining": remaining,
	}, "")
}

// Reconcile handles POST /api/admin/reconcile?repair=true
func (h *UpdateHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repair := r.URL.Query().Get("repair") == "true"

	mismatches, err := h.teams.ReconcilePoints(r.Context(), repair)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if mismatches == nil {
		mismatches = []*domain.PointsMismatch{}
	}
	respondJSON(w, h.logger, http.StatusOK, ReconcileResponse{Repaired: repair, Mismatches: mismatches}, "")
}
