package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

func TestUpdateHandler_Feed(t *testing.T) {
	s := setupServer(t)
	alpha := s.createTeam(t, "T01", "Alpha")
	s.createTeam(t, "T02", "Beta")
	decodeData(t, s.do(t, http.MethodPost, "/api/teams/"+alpha.ID+"/points",
		PointsRequest{Points: 15, Reason: "robot inspection"}, s.token(t, domain.RoleJudge)), http.StatusOK, nil)

	var list []*domain.Update
	decodeData(t, s.do(t, http.MethodGet, "/api/updates", nil, ""), http.StatusOK, &list)
	assert.Len(t, list, 3)

	decodeData(t, s.do(t, http.MethodGet, "/api/updates?n=1", nil, ""), http.StatusOK, &list)
	require.Len(t, list, 1)
	assert.Equal(t, domain.UpdatePointsAwarded, list[0].Type)

	decodeData(t, s.do(t, http.MethodGet, "/api/updates?type=TeamCreated", nil, ""), http.StatusOK, &list)
	assert.Len(t, list, 2)

	decodeData(t, s.do(t, http.MethodGet, "/api/updates?entity="+alpha.ID, nil, ""), http.StatusOK, &list)
	require.Len(t, list, 2)
	for _, u := range list {
		assert.True(t, u.IsBroadcast, "local delivery marks updates broadcast")
	}

	var got domain.Update
	decodeData(t, s.do(t, http.MethodGet, "/api/updates/"+list[0].ID, nil, ""), http.StatusOK, &got)
	assert.Equal(t, list[0].ID, got.ID)

	body := decodeError(t, s.do(t, http.MethodGet, "/api/updates?type=Bogus", nil, ""), http.StatusBadRequest)
	assert.Equal(t, "type", body.Error.Details["field"])
	decodeError(t, s.do(t, http.MethodGet, "/api/updates/missing", nil, ""), http.StatusNotFound)
}

func TestUpdateHandler_AdminActions(t *testing.T) {
	s := setupServer(t)
	admin := s.token(t, domain.RoleAdministrator)
	alpha := s.createTeam(t, "T01", "Alpha")

	var pending PendingResponse
	decodeData(t, s.do(t, http.MethodGet, "/api/updates/pending", nil, admin), http.StatusOK, &pending)
	assert.Zero(t, pending.Count)
	decodeError(t, s.do(t, http.MethodGet, "/api/updates/pending", nil, ""), http.StatusUnauthorized)

	var swept map[string]int
	decodeData(t, s.do(t, http.MethodPost, "/api/admin/sweep", nil, admin), http.StatusOK, &swept)
	assert.Equal(t, map[string]int{"delivered": 0, "remaining": 0}, swept)

	// a manual award leaves the total out of step with recorded completions
	decodeData(t, s.do(t, http.MethodPost, "/api/teams/"+alpha.ID+"/points",
		PointsRequest{Points: 15, Reason: "robot inspection"}, admin), http.StatusOK, nil)

	var report ReconcileResponse
	decodeData(t, s.do(t, http.MethodPost, "/api/admin/reconcile", nil, admin), http.StatusOK, &report)
	assert.False(t, report.Repaired)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, alpha.ID, report.Mismatches[0].TeamID)
	assert.Equal(t, 15, report.Mismatches[0].Stored)
	assert.Equal(t, 0, report.Mismatches[0].Computed)

	decodeError(t, s.do(t, http.MethodPost, "/api/admin/reconcile?repair=true", nil, s.token(t, domain.RoleJudge)), http.StatusForbidden)

	decodeData(t, s.do(t, http.MethodPost, "/api/admin/reconcile?repair=true", nil, admin), http.StatusOK, &report)
	assert.True(t, report.Repaired)
	assert.Len(t, report.Mismatches, 1)

	decodeData(t, s.do(t, http.MethodPost, "/api/admin/reconcile", nil, admin), http.StatusOK, &report)
	assert.Empty(t, report.Mismatches)

	var team domain.Team
	decodeData(t, s.do(t, http.MethodGet, "/api/teams/"+alpha.ID, nil, ""), http.StatusOK, &team)
	assert.Zero(t, team.TotalPoints)
}
