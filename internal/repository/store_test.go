package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/database"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	store := NewStore(db.SQL(), DialectSQLite)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

var testNow = time.Date(2024, 11, 16, 9, 0, 0, 0, time.UTC)

func newTeam(no, name string) *domain.Team {
	return &domain.Team{
		Audit:  domain.Audit{ID: uuid.NewString(), CreatedAt: testNow, CreatedBy: "tester"},
		Name:   name,
		TeamNo: no,
		School: "St Jago High",
		Color:  "#123456",
	}
}

func newChallenge(name string, points int, unique bool) *domain.Challenge {
	return &domain.Challenge{
		Audit:       domain.Audit{ID: uuid.NewString(), CreatedAt: testNow},
		Name:        name,
		Description: name + " description",
		Points:      points,
		IsUnique:    unique,
	}
}

func newCompletion(team *domain.Team, ch *domain.Challenge) *domain.ChallengeCompletion {
	return &domain.ChallengeCompletion{
		Audit:         domain.Audit{ID: uuid.NewString(), CreatedAt: testNow},
		TeamID:        team.ID,
		ChallengeID:   ch.ID,
		PointsAwarded: ch.Points,
	}
}

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"sqlite untouched", DialectSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres numbered", DialectPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"postgres no params", DialectPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.Rebind(tt.in))
		})
	}

	assert.Equal(t, " FOR UPDATE", DialectPostgres.LockClause())
	assert.Equal(t, "", DialectSQLite.LockClause())
}

func TestStore_EnsureSchemaIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, store.Health(context.Background()))
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	team := newTeam("T01", "Alpha")

	err := store.WithTx(ctx, func(r *Repositories) error {
		require.NoError(t, r.Teams.Create(ctx, team))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := store.Repos().Teams.GetByID(ctx, team.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "insert must not survive a rollback")
}

func TestStore_WithTxCommits(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	team := newTeam("T01", "Alpha")

	require.NoError(t, store.WithTx(ctx, func(r *Repositories) error {
		return r.Teams.Create(ctx, team)
	}))

	got, err := store.Repos().Teams.GetByID(ctx, team.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alpha", got.Name)
	assert.Equal(t, testNow, got.CreatedAt)
}

func TestTranslateError_Nil(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.Equal(t, assert.AnError, translateError(assert.AnError))
}
