package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/service"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// AnnouncementHandler serves announcements
type AnnouncementHandler struct {
	announcements *service.AnnouncementService
	logger        *logger.Logger
	recentCount   int
}

// NewAnnouncementHandler creates a new announcement handler
func NewAnnouncementHandler(announcements *service.AnnouncementService, log *logger.Logger, recentCount int) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcements: announcements,
		logger:        log,
		recentCount:   recentCount,
	}
}

// AnnouncementRequest is the body for creating or replacing an announcement
type AnnouncementRequest struct {
	Body      string `json:"body"`
	Priority  string `json:"priority"`
	IsVisible bool   `json:"is_visible"`
}

func (req *AnnouncementRequest) toAnnouncement(id string) *domain.Announcement {
	return &domain.Announcement{
		Audit:     domain.Audit{ID: id},
		Body:      req.Body,
		Priority:  domain.Priority(req.Priority),
		IsVisible: req.IsVisible,
	}
}

// RegisterRoutes mounts the announcement routes
func (h *AnnouncementHandler) RegisterRoutes(r chi.Router, guard guardFunc) {
	admin := guard(domain.RoleAdministrator)

	r.Route("/announcements", func(r chi.Router) {
		r.Get("/", h.ListVisible)
		r.Get("/recent", h.GetRecent)
		r.With(admin).Get("/all", h.ListAll)
		r.Get("/{id}", h.GetAnnouncement)

		r.With(admin).Post("/", h.CreateAnnouncement)
		r.With(admin).Post("/refresh", h.RefreshAll)
		r.With(admin).Put("/{id}", h.UpdateAnnouncement)
		r.With(admin).Delete("/{id}", h.DeleteAnnouncement)
		r.With(admin).Post("/{id}/visibility", h.ToggleVisibility)
	})
}

// ListVisible handles GET /api/announcements?priority=
func (h *AnnouncementHandler) ListVisible(w http.ResponseWriter, r *http.Request) {
	var (
		list []*domain.Announcement
		err  error
	)
	if priority := r.URL.Query().Get("priority"); priority != "" {
		list, err = h.announcements.GetByPriority(r.Context(), priority)
	} else {
		list, err = h.announcements.GetVisible(r.Context())
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, list, "")
}

// ListAll handles GET /api/announcements/all, hidden ones included
func (h *AnnouncementHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.announcements.GetAll(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, list, "")
}

// GetRecent handles GET /api/announcements/recent?n=
func (h *AnnouncementHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", h.recentCount)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	list, err := h.announcements.GetRecent(r.Context(), n)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, list, "")
}

// GetAnnouncement handles GET /api/announcements/{id}
func (h *AnnouncementHandler) GetAnnouncement(w http.ResponseWriter, r *http.Request) {
	a, err := h.announcements.GetAnnouncement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, a, "")
}

// CreateAnnouncement handles POST /api/announcements
func (h *AnnouncementHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req AnnouncementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	a, err := h.announcements.CreateAnnouncement(r.Context(), req.toAnnouncement(""))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, a, "Announcement created successfully")
}

// UpdateAnnouncement handles PUT /api/announcements/{id}
func (h *AnnouncementHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req AnnouncementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	a, err := h.announcements.UpdateAnnouncement(r.Context(), req.toAnnouncement(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, a, "Announcement updated successfully")
}

// DeleteAnnouncement handles DELETE /api/announcements/{id}
func (h *AnnouncementHandler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := h.announcements.DeleteAnnouncement(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, nil, "Announcement deleted successfully")
}

// ToggleVisibility handles POST /api/announcements/{id}/visibility
func (h *AnnouncementHandler) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	a, err := h.announcements.ToggleVisibility(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, a, "")
}

// RefreshAll handles POST /api/announcements/refresh
func (h *AnnouncementHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	changed, err := h.announcements.RefreshAllRendered(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]int{"refreshed": changed}, "")
}
