package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

func TestSeed(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	result, err := Seed(ctx, env.challenges, env.announcements, "Test Scrimmage")
	require.NoError(t, err)
	assert.Equal(t, len(defaultChallenges), result.Challenges)
	assert.Equal(t, 1, result.Announcements)

	unique, err := env.challenges.GetAvailableUniqueChallenges(ctx)
	require.NoError(t, err)
	assert.Len(t, unique, 2)

	visible, err := env.announcements.GetVisible(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, domain.PriorityPrimary, visible[0].Priority)
	assert.Contains(t, visible[0].RenderedBody, "<h1>Welcome to Test Scrimmage!</h1>")

	again, err := Seed(ctx, env.challenges, env.announcements, "Test Scrimmage")
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, *again)
}

func TestSeed_KeepsExistingCatalogue(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.createChallenge(t, "Custom Course", 50, false)

	result, err := Seed(ctx, env.challenges, env.announcements, "Test Scrimmage")
	require.NoError(t, err)
	assert.Zero(t, result.Challenges)
	assert.Equal(t, 1, result.Announcements)

	all, err := env.challenges.ListChallenges(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
