package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
)

func TestAnnouncementHandler(t *testing.T) {
	s := setupServer(t)
	admin := s.token(t, domain.RoleAdministrator)

	var a domain.Announcement
	rec := s.do(t, http.MethodPost, "/api/announcements", AnnouncementRequest{
		Body:      "Practice rounds start **now**",
		Priority:  "Warning",
		IsVisible: true,
	}, admin)
	decodeData(t, rec, http.StatusCreated, &a)
	assert.Equal(t, domain.PriorityWarning, a.Priority)
	assert.Contains(t, a.RenderedBody, "<strong>now</strong>")

	body := decodeError(t, s.do(t, http.MethodPost, "/api/announcements", AnnouncementRequest{
		Body: "Too loud", Priority: "loud",
	}, admin), http.StatusBadRequest)
	assert.Equal(t, errors.ErrorTypeValidation, body.Error.Type)

	decodeError(t, s.do(t, http.MethodPost, "/api/announcements", AnnouncementRequest{Body: "x"}, s.token(t, domain.RoleJudge)), http.StatusForbidden)

	var list []*domain.Announcement
	decodeData(t, s.do(t, http.MethodGet, "/api/announcements", nil, ""), http.StatusOK, &list)
	require.Len(t, list, 1)
	decodeData(t, s.do(t, http.MethodGet, "/api/announcements?priority=warning", nil, ""), http.StatusOK, &list)
	assert.Len(t, list, 1)
	decodeData(t, s.do(t, http.MethodGet, "/api/announcements?priority=danger", nil, ""), http.StatusOK, &list)
	assert.Empty(t, list)
	decodeData(t, s.do(t, http.MethodGet, "/api/announcements/recent?n=3", nil, ""), http.StatusOK, &list)
	assert.Len(t, list, 1)

	// hidden announcements are only listed for administrators
	decodeData(t, s.do(t, http.MethodPost, "/api/announcements/"+a.ID+"/visibility", nil, admin), http.StatusOK, &a)
	assert.False(t, a.IsVisible)
	decodeData(t, s.do(t, http.MethodGet, "/api/announcements", nil, ""), http.StatusOK, &list)
	assert.Empty(t, list)
	decodeError(t, s.do(t, http.MethodGet, "/api/announcements/all", nil, ""), http.StatusUnauthorized)
	decodeData(t, s.do(t, http.MethodGet, "/api/announcements/all", nil, admin), http.StatusOK, &list)
	assert.Len(t, list, 1)

	rec = s.do(t, http.MethodPut, "/api/announcements/"+a.ID, AnnouncementRequest{
		Body:      "# Lunch break",
		Priority:  "info",
		IsVisible: true,
	}, admin)
	decodeData(t, rec, http.StatusOK, &a)
	assert.Contains(t, a.RenderedBody, "<h1>Lunch break</h1>")
	assert.True(t, a.IsVisible)

	var refreshed map[string]int
	decodeData(t, s.do(t, http.MethodPost, "/api/announcements/refresh", nil, admin), http.StatusOK, &refreshed)
	assert.Equal(t, 0, refreshed["refreshed"])

	decodeData(t, s.do(t, http.MethodDelete, "/api/announcements/"+a.ID, nil, admin), http.StatusOK, nil)
	decodeError(t, s.do(t, http.MethodGet, "/api/announcements/"+a.ID, nil, ""), http.StatusNotFound)
}
