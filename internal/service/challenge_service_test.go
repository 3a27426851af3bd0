package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
)

func TestChallengeService_CRUD(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	ch := env.createChallenge(t, "Autonomous Line Following", 30, false)
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateChallengeCreated))

	_, err := env.challenges.CreateChallenge(ctx, &domain.Challenge{
		Name: "Autonomous Line Following", Description: "again", Points: 10,
	})
	assert.True(t, errors.IsConflict(err), "got %v", err)

	_, err = env.challenges.CreateChallenge(ctx, &domain.Challenge{
		Name: "autonomous line following", Description: "names are case-sensitive", Points: 10,
	})
	assert.NoError(t, err)

	_, err = env.challenges.CreateChallenge(ctx, &domain.Challenge{Name: "Negative", Description: "x", Points: -1})
	assert.True(t, errors.IsValidation(err), "got %v", err)

	changes := *ch
	changes.Points = 45
	changes.Description = "Follow the black line without help"
	got, err := env.challenges.UpdateChallenge(ctx, &changes)
	require.NoError(t, err)
	assert.Equal(t, 45, got.Points)
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateChallengeUpdated))

	changes.Name = "autonomous line following"
	_, err = env.challenges.UpdateChallenge(ctx, &changes)
	assert.True(t, errors.IsConflict(err), "got %v", err)

	changes.ID = "missing"
	_, err = env.challenges.UpdateChallenge(ctx, &changes)
	assert.True(t, errors.IsNotFound(err), "got %v", err)

	require.NoError(t, env.challenges.DeleteChallenge(ctx, ch.ID))
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateChallengeDeleted))
	_, err = env.challenges.GetChallenge(ctx, ch.ID)
	assert.True(t, errors.IsNotFound(err))

	err = env.challenges.DeleteChallenge(ctx, ch.ID)
	assert.True(t, errors.IsNotFound(err))

	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateChallengeUpdated), "failed mutations write no update")
}

func TestChallengeService_DeleteWithCompletions(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	team := env.createTeam(t, "T01", "Alpha")
	ch := env.createChallenge(t, "Object Sorting", 200, false)
	_, err := env.challenges.RecordCompletion(ctx, ch.ID, team.ID, "")
	require.NoError(t, err)

	err = env.challenges.DeleteChallenge(ctx, ch.ID)
	assert.True(t, errors.IsConflict(err), "got %v", err)
	assert.Zero(t, env.countUpdates(t, domain.UpdateChallengeDeleted))
}

func TestChallengeService_RecordCompletion(t *testing.T) {
	env := setupServices(t)
	ctx := domain.WithActor(context.Background(), domain.Actor{ID: "judge-7", Roles: []string{domain.RoleJudge}})
	team := env.createTeam(t, "T01", "Alpha")
	ch := env.createChallenge(t, "Driver Controlled Race", 20, false)
	env.notifier.reset()

	cc, err := env.challenges.RecordCompletion(ctx, ch.ID, team.ID, "  fastest lap ")
	require.NoError(t, err)
	assert.Equal(t, 20, cc.PointsAwarded)
	assert.Equal(t, "fastest lap", cc.Notes)
	assert.Equal(t, "judge-7", cc.CreatedBy)
	assert.Equal(t, 20, env.points(t, team.ID))

	completed, err := env.updates.GetUpdatesByType(ctx, domain.UpdateChallengeCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	u := completed[0]
	require.NotNil(t, u.TeamID)
	require.NotNil(t, u.ChallengeID)
	require.NotNil(t, u.ChallengeCompletionID)
	assert.Equal(t, team.ID, *u.TeamID)
	assert.Equal(t, ch.ID, *u.ChallengeID)
	assert.Equal(t, cc.ID, *u.ChallengeCompletionID)
	assert.Equal(t, "judge-7", u.CreatedBy)
	assert.True(t, u.IsBroadcast)
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdatePointsAwarded))

	assert.Equal(t, 1, env.notifier.sent(domain.ChannelAll, domain.EventChallengeCompletion))
	assert.Equal(t, 1, env.notifier.sent(domain.ChallengeChannel(ch.ID), domain.EventChallengeSpecificUpdate))
	assert.Equal(t, 1, env.notifier.sent(domain.ChannelAll, domain.EventLeaderboardUpdate))

	t.Run("same team again", func(t *testing.T) {
		_, err := env.challenges.RecordCompletion(ctx, ch.ID, team.ID, "")
		assert.True(t, errors.IsConflict(err), "got %v", err)
		assert.Equal(t, 20, env.points(t, team.ID))
	})

	t.Run("unknown challenge", func(t *testing.T) {
		_, err := env.challenges.RecordCompletion(ctx, "missing", team.ID, "")
		assert.True(t, errors.IsNotFound(err), "got %v", err)
	})

	t.Run("unknown team", func(t *testing.T) {
		_, err := env.challenges.RecordCompletion(ctx, ch.ID, "missing", "")
		assert.True(t, errors.IsNotFound(err), "got %v", err)
	})

	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateChallengeCompleted))
	env.assertPointsConsistent(t)
}

func TestChallengeService_PointsSnapshot(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	team := env.createTeam(t, "T01", "Alpha")
	ch := env.createChallenge(t, "Basic Challenge - Task 1", 30, false)
	_, err := env.challenges.RecordCompletion(ctx, ch.ID, team.ID, "")
	require.NoError(t, err)

	changes := *ch
	changes.Points = 100
	_, err = env.challenges.UpdateChallenge(ctx, &changes)
	require.NoError(t, err)

	assert.Equal(t, 30, env.points(t, team.ID), "recorded completions keep their award")
	require.NoError(t, env.challenges.RemoveCompletion(ctx, ch.ID, team.ID))
	assert.Equal(t, 0, env.points(t, team.ID), "removal takes back the snapshot amount")
	env.assertPointsConsistent(t)
}

// Line Following walkthrough: claim, reject, remove, re-claim
func TestChallengeService_UniqueChallengeScenario(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	ch := env.createChallenge(t, "Line Following", 100, true)
	a := env.createTeam(t, "T01", "Team A")
	b := env.createTeam(t, "T02", "Team B")

	_, err := env.challenges.RecordCompletion(ctx, ch.ID, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 100, env.points(t, a.ID))
	completions, err := env.challenges.GetCompletionsForChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 1)

	available, err := env.challenges.GetAvailableUniqueChallenges(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	_, err = env.challenges.RecordCompletion(ctx, ch.ID, b.ID, "")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	appErr, _ := errors.As(err)
	assert.Equal(t, msgAlreadyClaimed, appErr.Message)
	assert.Equal(t, 0, env.points(t, b.ID))

	require.NoError(t, env.challenges.RemoveCompletion(ctx, ch.ID, a.ID))
	assert.Equal(t, 0, env.points(t, a.ID))
	completions, err = env.challenges.GetCompletionsForChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Empty(t, completions)
	assert.Equal(t, 1, env.countUpdates(t, domain.UpdateCompletionRemoved))

	_, err = env.challenges.RecordCompletion(ctx, ch.ID, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 100, env.points(t, b.ID))
	env.assertPointsConsistent(t)
}

func TestChallengeService_RemoveAndRecordRoundTrip(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	team := env.createTeam(t, "T01", "Alpha")
	ch := env.createChallenge(t, "Object Sorting", 200, false)
	other := env.createChallenge(t, "Driver Controlled Race", 20, false)

	_, err := env.challenges.RecordCompletion(ctx, other.ID, team.ID, "")
	require.NoError(t, err)
	_, err = env.challenges.RecordCompletion(ctx, ch.ID, team.ID, "")
	require.NoError(t, err)
	before := env.points(t, team.ID)

	require.NoError(t, env.challenges.RemoveCompletion(ctx, ch.ID, team.ID))
	assert.Equal(t, before-200, env.points(t, team.ID))
	env.assertPointsConsistent(t)

	_, err = env.challenges.RecordCompletion(ctx, ch.ID, team.ID, "")
	require.NoError(t, err)
	assert.Equal(t, before, env.points(t, team.ID))
	env.assertPointsConsistent(t)

	err = env.challenges.RemoveCompletion(ctx, ch.ID, "missing")
	assert.True(t, errors.IsNotFound(err), "got %v", err)
	err = env.challenges.RemoveCompletion(ctx, "missing", team.ID)
	assert.True(t, errors.IsNotFound(err), "got %v", err)
}

func TestChallengeService_MakeUnique(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	a := env.createTeam(t, "T01", "Alpha")
	b := env.createTeam(t, "T02", "Beta")
	c := env.createTeam(t, "T03", "Gamma")
	shared := env.createChallenge(t, "Shared", 10, false)
	solo := env.createChallenge(t, "Solo", 10, false)

	for _, tm := range []*domain.Team{a, b} {
		_, err := env.challenges.RecordCompletion(ctx, shared.ID, tm.ID, "")
		require.NoError(t, err)
	}
	_, err := env.challenges.RecordCompletion(ctx, solo.ID, a.ID, "")
	require.NoError(t, err)

	changes := *shared
	changes.IsUnique = true
	_, err = env.challenges.UpdateChallenge(ctx, &changes)
	assert.True(t, errors.IsConflict(err), "two completions cannot become unique, got %v", err)

	changes = *solo
	changes.IsUnique = true
	_, err = env.challenges.UpdateChallenge(ctx, &changes)
	require.NoError(t, err)

	_, err = env.challenges.RecordCompletion(ctx, solo.ID, c.ID, "")
	assert.True(t, errors.IsConflict(err), "got %v", err)

	changes.IsUnique = false
	_, err = env.challenges.UpdateChallenge(ctx, &changes)
	require.NoError(t, err)
	_, err = env.challenges.RecordCompletion(ctx, solo.ID, c.ID, "")
	assert.NoError(t, err)
	env.assertPointsConsistent(t)
}

func TestChallengeService_ConcurrentUniqueCompletion(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	ch := env.createChallenge(t, "First To Register", 10, true)

	const racers = 8
	teams := make([]*domain.Team, racers)
	for i := range teams {
		teams[i] = env.createTeam(t, fmt.Sprintf("T%02d", i+1), fmt.Sprintf("Team %d", i+1))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for _, tm := range teams {
		wg.Add(1)
		go func(teamID string) {
			defer wg.Done()
			<-start
			_, err := env.challenges.RecordCompletion(ctx, ch.ID, teamID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.IsConflict(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}(tm.ID)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)

	completions, err := env.challenges.GetCompletionsForChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 1)
	env.assertPointsConsistent(t)
}

func TestChallengeService_Queries(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	a := env.createTeam(t, "T01", "Alpha")
	b := env.createTeam(t, "T02", "Beta")
	race := env.createChallenge(t, "Driver Controlled Race", 20, false)
	sort := env.createChallenge(t, "Object Sorting", 200, false)
	cross := env.createChallenge(t, "First to Cross", 15, true)

	for _, tm := range []*domain.Team{a, b} {
		_, err := env.challenges.RecordCompletion(ctx, sort.ID, tm.ID, "")
		require.NoError(t, err)
	}
	_, err := env.challenges.RecordCompletion(ctx, race.ID, a.ID, "")
	require.NoError(t, err)

	list, err := env.challenges.ListChallenges(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, race.ID, list[0].ID)

	available, err := env.challenges.GetAvailableUniqueChallenges(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, cross.ID, available[0].ID)

	stats, err := env.challenges.GetCompletionStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	counts := map[string]int{}
	for _, s := range stats {
		counts[s.Challenge.Name] = s.Completions
	}
	assert.Equal(t, map[string]int{"Driver Controlled Race": 1, "Object Sorting": 2, "First to Cross": 0}, counts)

	popular, err := env.challenges.GetMostPopular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, sort.ID, popular[0].Challenge.ID)
	assert.Equal(t, race.ID, popular[1].Challenge.ID)

	_, err = env.challenges.GetMostPopular(ctx, 0)
	assert.True(t, errors.IsValidation(err))

	done, err := env.challenges.GetCompletedChallengesForTeam(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, done, 2)
	assert.Equal(t, race.ID, done[0].ID)

	_, err = env.challenges.GetCompletedChallengesForTeam(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
	_, err = env.challenges.GetCompletionsForChallenge(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
}
