package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
)

func TestTeamHandler_CRUD(t *testing.T) {
	s := setupServer(t)
	admin := s.token(t, domain.RoleAdministrator)

	team := s.createTeam(t, "T01", "Alpha")
	assert.NotEmpty(t, team.ID)
	assert.Zero(t, team.TotalPoints)
	assert.Equal(t, "tester", team.CreatedBy)

	var got domain.Team
	decodeData(t, s.do(t, http.MethodGet, "/api/teams/"+team.ID, nil, ""), http.StatusOK, &got)
	assert.Equal(t, "Alpha", got.Name)

	decodeData(t, s.do(t, http.MethodGet, "/api/teams/number/T01", nil, ""), http.StatusOK, &got)
	assert.Equal(t, team.ID, got.ID)

	rec := s.do(t, http.MethodPut, "/api/teams/"+team.ID, TeamRequest{
		Name:   "Alpha Prime",
		TeamNo: "T01",
		School: "St Jago High",
		Color:  "#FF0000",
	}, admin)
	decodeData(t, rec, http.StatusOK, &got)
	assert.Equal(t, "Alpha Prime", got.Name)
	assert.Equal(t, "#FF0000", got.Color)

	var list []*domain.Team
	decodeData(t, s.do(t, http.MethodGet, "/api/teams", nil, ""), http.StatusOK, &list)
	assert.Len(t, list, 1)

	decodeData(t, s.do(t, http.MethodDelete, "/api/teams/"+team.ID, nil, admin), http.StatusOK, nil)
	decodeError(t, s.do(t, http.MethodGet, "/api/teams/"+team.ID, nil, ""), http.StatusNotFound)
}

func TestTeamHandler_CreateRejects(t *testing.T) {
	s := setupServer(t)
	admin := s.token(t, domain.RoleAdministrator)
	s.createTeam(t, "T01", "Alpha")

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantType errors.ErrorType
	}{
		{
			name:     "bad color",
			body:     TeamRequest{Name: "Beta", TeamNo: "T02", School: "St Jago High", Color: "blue"},
			wantCode: http.StatusBadRequest,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "missing name",
			body:     TeamRequest{TeamNo: "T02", School: "St Jago High", Color: "#00FF00"},
			wantCode: http.StatusBadRequest,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "unknown field",
			body:     `{"name":"Beta","team_no":"T02","school":"X","color":"#00FF00","mascot":"owl"}`,
			wantCode: http.StatusBadRequest,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "empty body",
			body:     "",
			wantCode: http.StatusBadRequest,
			wantType: errors.ErrorTypeValidation,
		},
		{
			name:     "duplicate team number",
			body:     TeamRequest{Name: "Beta", TeamNo: "T01", School: "St Jago High", Color: "#00FF00"},
			wantCode: http.StatusConflict,
			wantType: errors.ErrorTypeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := decodeError(t, s.do(t, http.MethodPost, "/api/teams", tt.body, admin), tt.wantCode)
			assert.Equal(t, tt.wantType, body.Error.Type)
		})
	}
}

func TestTeamHandler_PointsAndLeaderboard(t *testing.T) {
	s := setupServer(t)
	judge := s.token(t, domain.RoleJudge)

	alpha := s.createTeam(t, "T01", "Alpha")
	beta := s.createTeam(t, "T02", "Beta")
	gamma := s.createTeam(t, "T03", "Gamma")

	var got domain.Team
	decodeData(t, s.do(t, http.MethodPost, "/api/teams/"+beta.ID+"/points", PointsRequest{Points: 40, Reason: "good sportsmanship"}, judge), http.StatusOK, &got)
	assert.Equal(t, 40, got.TotalPoints)
	decodeData(t, s.do(t, http.MethodPost, "/api/teams/"+gamma.ID+"/points", PointsRequest{Points: 40, Reason: "good sportsmanship"}, judge), http.StatusOK, nil)
	decodeData(t, s.do(t, http.MethodPost, "/api/teams/"+alpha.ID+"/points", PointsRequest{Points: -5, Reason: "pit violation"}, judge), http.StatusOK, &got)
	assert.Equal(t, -5, got.TotalPoints)

	body := decodeError(t, s.do(t, http.MethodPost, "/api/teams/"+alpha.ID+"/points", PointsRequest{Points: 0, Reason: "nothing"}, judge), http.StatusBadRequest)
	assert.Equal(t, errors.ErrorTypeValidation, body.Error.Type)
	decodeError(t, s.do(t, http.MethodPost, "/api/teams/missing/points", PointsRequest{Points: 5, Reason: "ghost"}, judge), http.StatusNotFound)
	decodeError(t, s.do(t, http.MethodPost, "/api/teams/"+alpha.ID+"/points", PointsRequest{Points: 5, Reason: "cheer"}, s.token(t, domain.RoleViewer)), http.StatusForbidden)

	var board []*domain.LeaderboardEntry
	decodeData(t, s.do(t, http.MethodGet, "/api/leaderboard", nil, ""), http.StatusOK, &board)
	require.Len(t, board, 3)
	assert.Equal(t, "Beta", board[0].Team.Name)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "Gamma", board[1].Team.Name)
	assert.Equal(t, 1, board[1].Rank)
	assert.Equal(t, "Alpha", board[2].Team.Name)
	assert.Equal(t, 3, board[2].Rank)

	decodeData(t, s.do(t, http.MethodGet, "/api/leaderboard/top?n=1", nil, ""), http.StatusOK, &board)
	assert.Len(t, board, 1)

	body = decodeError(t, s.do(t, http.MethodGet, "/api/leaderboard/top?n=zero", nil, ""), http.StatusBadRequest)
	assert.Equal(t, "n", body.Error.Details["field"])
}
