package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
)

func TestAnnouncementService_Lifecycle(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	a, err := env.announcements.CreateAnnouncement(ctx, &domain.Announcement{
		Body:      "Matches start at **10:00**",
		Priority:  "Warning",
		IsVisible: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityWarning, a.Priority)
	assert.Contains(t, a.RenderedBody, "<strong>10:00</strong>")
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateAnnouncementCreated))
	assert.Equal(t, 1, env.notifier.sent(domain.ChannelAll, domain.EventAnnouncement))

	hidden, err := env.announcements.CreateAnnouncement(ctx, &domain.Announcement{Body: "draft"})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityInfo, hidden.Priority)
	assert.Equal(t, 1, env.notifier.sent(domain.ChannelAll, domain.EventAnnouncement), "hidden posts are not announced")

	shown, err := env.announcements.ToggleVisibility(ctx, hidden.ID)
	require.NoError(t, err)
	assert.True(t, shown.IsVisible)
	assert.Equal(t, 2, env.notifier.sent(domain.ChannelAll, domain.EventAnnouncement))

	changes := *a
	changes.Body = "Matches start at *11:00*"
	updated, err := env.announcements.UpdateAnnouncement(ctx, &changes)
	require.NoError(t, err)
	assert.Contains(t, updated.RenderedBody, "<em>11:00</em>")
	assert.Equal(t, 2, env.countUpdates(t, domain.UpdateAnnouncementUpdated))

	count, err := env.announcements.CountVisible(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	warnings, err := env.announcements.GetByPriority(ctx, "warning")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	_, err = env.announcements.GetByPriority(ctx, "urgent")
	assert.True(t, errors.IsValidation(err))

	recent, err := env.announcements.GetRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	require.NoError(t, env.announcements.DeleteAnnouncement(ctx, a.ID))
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateAnnouncementDeleted))
	_, err = env.announcements.GetAnnouncement(ctx, a.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(env.announcements.DeleteAnnouncement(ctx, a.ID)))

	_, err = env.announcements.ToggleVisibility(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestAnnouncementService_Validation(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.announcements.CreateAnnouncement(ctx, &domain.Announcement{Body: "  "})
	assert.True(t, errors.IsValidation(err))
	_, err = env.announcements.CreateAnnouncement(ctx, &domain.Announcement{Body: "x", Priority: "loud"})
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, env.countUpdates(t, domain.UpdateAnnouncementCreated))
}

func TestAnnouncementService_RefreshRendered(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	a, err := env.announcements.CreateAnnouncement(ctx, &domain.Announcement{Body: "# Welcome", IsVisible: true})
	require.NoError(t, err)

	// simulate a stale cache
	a.RenderedBody = "<p>stale</p>"
	require.NoError(t, env.store.Repos().Announcements.Update(ctx, a))

	changed, err := env.announcements.RefreshAllRendered(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := env.announcements.GetAnnouncement(ctx, a.ID)
	require.NoError(t, err)
	assert.Contains(t, got.RenderedBody, "<h1>Welcome</h1>")

	changed, err = env.announcements.RefreshAllRendered(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed, "unchanged bodies are left alone")
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateAnnouncementUpdated))
}

func TestAnnouncementService_ConveniencePosts(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	team := env.createTeam(t, "T01", "Alpha")
	ch := env.createChallenge(t, "First To Register", 10, true)
	cc, err := env.challenges.RecordCompletion(ctx, ch.ID, team.ID, "")
	require.NoError(t, err)

	a, err := env.announcements.AnnounceCompletion(ctx, team, ch, cc)
	require.NoError(t, err)
	assert.Equal(t, domain.PrioritySecondary, a.Priority)
	assert.Contains(t, a.Body, "claimed the unique challenge")
	assert.True(t, a.IsVisible)

	a, err = env.announcements.AnnounceTeam(ctx, team, "joined the scrimmage")
	require.NoError(t, err)
	assert.Contains(t, a.RenderedBody, "<strong>Alpha</strong>")

	all, err := env.announcements.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
