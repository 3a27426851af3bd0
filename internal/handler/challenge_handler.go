package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/service"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

const defaultPopularCount = 5

// ChallengeHandler serves the challenge registry and completion recording
type ChallengeHandler struct {
	challenges *service.ChallengeService
	logger     *logger.Logger
}

// NewChallengeHandler creates a new challenge handler
func NewChallengeHandler(challenges *service.ChallengeService, log *logger.Logger) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges, logger: log}
}

// ChallengeRequest is the body for creating or replacing a challenge
type ChallengeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	IsUnique    bool   `json:"is_unique"`
}

func (req *ChallengeRequest) toChallenge(id string) *domain.Challenge {
	return &domain.Challenge{
		Audit:       domain.Audit{ID: id},
		Name:        req.Name,
		Description: req.Description,
		Points:      req.Points,
		IsUnique:    req.IsUnique,
	}
}

// CompletionRequest is the optional body when recording a completion
type CompletionRequest struct {
	Notes string `json:"notes"`
}

// RegisterRoutes mounts the challenge routes
func (h *ChallengeHandler) RegisterRoutes(r chi.Router, guard guardFunc) {
	scorers := guard(domain.RoleAdministrator, domain.RoleJudge, domain.RoleScorekeeper)

	r.Route("/challenges", func(r chi.Router) {
		r.Get("/", h.ListChallenges)
		r.Get("/available-unique", h.GetAvailableUnique)
		r.Get("/stats", h.GetStats)
		r.Get("/popular", h.GetPopular)
		r.Get("/{id}", h.GetChallenge)
		r.Get("/{id}/completions", h.GetCompletions)

		r.With(guard(domain.RoleAdministrator)).Post("/", h.CreateChallenge)
		r.With(guard(domain.RoleAdministrator)).Put("/{id}", h.UpdateChallenge)
		r.With(guard(domain.RoleAdministrator)).Delete("/{id}", h.DeleteChallenge)
		r.With(scorers).Post("/{id}/completions/{teamId}", h.RecordCompletion)
		r.With(scorers).Delete("/{id}/completions/{teamId}", h.RemoveCompletion)
	})
}

// ListChallenges handles GET /api/challenges
func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challenges.ListChallenges(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, challenges, "")
}

// GetChallenge handles GET /api/challenges/{id}
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := h.challenges.GetChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, ch, "")
}

// CreateChallenge handles POST /api/challenges
func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	ch, err := h.challenges.CreateChallenge(r.Context(), req.toChallenge(""))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, ch, "Challenge created successfully")
}

// UpdateChallenge handles PUT /api/challenges/{id}
func (h *ChallengeHandler) UpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	ch, err := h.challenges.UpdateChallenge(r.Context(), req.toChallenge(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, ch, "Challenge updated successfully")
}

// DeleteChallenge handles DELETE /api/challenges/{id}
func (h *ChallengeHandler) DeleteChallenge(w http.ResponseWriter, r *http.Request) {
	if err := h.challenges.DeleteChallenge(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, nil, "Challenge deleted successfully")
}

// RecordCompletion handles POST /api/challenges/{id}/completions/{teamId}
func (h *ChallengeHandler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	var req CompletionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	}

	cc, err := h.challenges.RecordCompletion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "teamId"), req.Notes)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, cc, "Completion recorded")
}

// RemoveCompletion handles DELETE /api/challenges/{id}/completions/{teamId}
func (h *ChallengeHandler) RemoveCompletion(w http.ResponseWriter, r *http.Request) {
	if err := h.challenges.RemoveCompletion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "teamId")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, nil, "Completion removed")
}

// GetCompletions handles GET /api/challenges/{id}/completions
func (h *ChallengeHandler) GetCompletions(w http.ResponseWriter, r *http.Request) {
	completions, err := h.challenges.GetCompletionsForChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, completions, "")
}

// GetAvailableUnique handles GET /api/challenges/available-unique
func (h *ChallengeHandler) GetAvailableUnique(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challenges.GetAvailableUniqueChallenges(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, challenges, "")
}

// GetStats handles GET /api/challenges/stats
func (h *ChallengeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.challenges.GetCompletionStats(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, stats, "")
}

// GetPopular handles GET /api/challenges/popular?n=
func (h *ChallengeHandler) GetPopular(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", defaultPopularCount)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	stats, err := h.challenges.GetMostPopular(r.Context(), n)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, stats, "")
}
