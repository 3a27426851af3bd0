package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/service"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// TeamHandler serves the team registry and the leaderboard
type TeamHandler struct {
	teams           *service.TeamService
	challenges      *service.ChallengeService
	logger          *logger.Logger
	leaderboardSize int
}

// NewTeamHandler creates a new team handler
func NewTeamHandler(teams *service.TeamService, challenges *service.ChallengeService, log *logger.Logger, leaderboardSize int) *TeamHandler {
	return &TeamHandler{
		teams:           teams,
		challenges:      challenges,
		logger:          log,
		leaderboardSize: leaderboardSize,
	}
}

// TeamRequest is the body for creating or replacing a team
type TeamRequest struct {
	Name    string  `json:"name"`
	TeamNo  string  `json:"team_no"`
	School  string  `json:"school"`
	Color   string  `json:"color"`
	LogoURL *string `json:"logo_url,omitempty"`
}

func (req *TeamRequest) toTeam(id string) *domain.Team {
	return &domain.Team{
		Audit:   domain.Audit{ID: id},
		Name:    req.Name,
		TeamNo:  req.TeamNo,
		School:  req.School,
		Color:   req.Color,
		LogoURL: req.LogoURL,
	}
}

// PointsRequest is the body for a manual point award or deduction
type PointsRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// RegisterRoutes mounts the team routes
func (h *TeamHandler) RegisterRoutes(r chi.Router, guard guardFunc) {
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/leaderboard/top", h.GetTopTeams)

	r.Route("/teams", func(r chi.Router) {
		r.Get("/", h.ListTeams)
		r.Get("/number/{teamNo}", h.GetTeamByNumber)
		r.Get("/{id}", h.GetTeam)
		r.Get("/{id}/completions", h.GetTeamCompletions)
		r.Get("/{id}/challenges", h.GetCompletedChallenges)

		r.With(guard(domain.RoleAdministrator)).Post("/", h.CreateTeam)
		r.With(guard(domain.RoleAdministrator)).Put("/{id}", h.UpdateTeam)
		r.With(guard(domain.RoleAdministrator)).Delete("/{id}", h.DeleteTeam)
		r.With(guard(domain.RoleAdministrator, domain.RoleJudge, domain.RoleScorekeeper)).Post("/{id}/points", h.AwardPoints)
	})
}

// ListTeams handles GET /api/teams
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.ListTeams(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, teams, "")
}

// GetTeam handles GET /api/teams/{id}
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.teams.GetTeam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, team, "")
}

// GetTeamByNumber handles GET /api/teams/number/{teamNo}
func (h *TeamHandler) GetTeamByNumber(w http.ResponseWriter, r *http.Request) {
	team, err := h.teams.GetTeamByNumber(r.Context(), chi.URLParam(r, "teamNo"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, team, "")
}

// CreateTeam handles POST /api/teams
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	team, err := h.teams.CreateTeam(r.Context(), req.toTeam(""))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, team, "Team created successfully")
}

// UpdateTeam handles PUT /api/teams/{id}
func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	team, err := h.teams.UpdateTeam(r.Context(), req.toTeam(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, team, "Team updated successfully")
}

// DeleteTeam handles DELETE /api/teams/{id}
func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.teams.DeleteTeam(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, nil, "Team deleted successfully")
}

// AwardPoints handles POST /api/teams/{id}/points
func (h *TeamHandler) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	team, err := h.teams.AwardPoints(r.Context(), chi.URLParam(r, "id"), req.Points, req.Reason)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, team, "Points recorded")
}

// GetTeamCompletions handles GET /api/teams/{id}/completions
func (h *TeamHandler) GetTeamCompletions(w http.ResponseWriter, r *http.Request) {
	completions, err := h.teams.GetTeamCompletions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, completions, "")
}

// GetCompletedChallenges handles GET /api/teams/{id}/challenges
func (h *TeamHandler) GetCompletedChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challenges.GetCompletedChallengesForTeam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, challenges, "")
}

// GetLeaderboard handles GET /api/leaderboard
func (h *TeamHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.teams.GetLeaderboard(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, entries, "")
}

// GetTopTeams handles GET /api/leaderboard/top?n=
func (h *TeamHandler) GetTopTeams(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", h.leaderboardSize)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	entries, err := h.teams.GetTopTeams(r.Context(), n)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, entries, "")
}
