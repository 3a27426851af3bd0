package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

type completionRepository struct {
	c conn
}

const completionColumns = `id, team_id, challenge_id, points_awarded, notes,
	created_at, updated_at, created_by, updated_by`

func scanCompletion(row rowScanner) (*domain.ChallengeCompletion, error) {
	var (
		cc        domain.ChallengeCompletion
		createdAt int64
		updatedAt sql.NullInt64
	)
	err := row.Scan(
		&cc.ID,
		&cc.TeamID,
		&cc.ChallengeID,
		&cc.PointsAwarded,
		&cc.Notes,
		&createdAt,
		&updatedAt,
		&cc.CreatedBy,
		&cc.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	cc.CreatedAt = fromMillis(createdAt)
	cc.UpdatedAt = timePtr(updatedAt)
	return &cc, nil
}

func (r *completionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.ChallengeCompletion, error) {
	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.ChallengeCompletion, 0)
	for rows.Next() {
		cc, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (r *completionRepository) Create(ctx context.Context, cc *domain.ChallengeCompletion, challengeUnique bool) error {
	query := `
		INSERT INTO challenge_completions (
			id, team_id, challenge_id, points_awarded, notes, challenge_unique,
			created_at, updated_at, created_by, updated_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.c.exec(ctx, query,
		cc.ID,
		cc.TeamID,
		cc.ChallengeID,
		cc.PointsAwarded,
		cc.Notes,
		challengeUnique,
		toMillis(cc.CreatedAt),
		nullableMillis(cc.UpdatedAt),
		cc.CreatedBy,
		cc.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create completion: %w", err)
	}
	return nil
}

func (r *completionRepository) Get(ctx context.Context, teamID, challengeID string) (*domain.ChallengeCompletion, error) {
	query := `SELECT ` + completionColumns + ` FROM challenge_completions WHERE team_id = ? AND challenge_id = ?`
	cc, err := scanCompletion(r.c.queryRow(ctx, query, teamID, challengeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completion: %w", translateError(err))
	}
	return cc, nil
}

func (r *completionRepository) Exists(ctx context.Context, teamID, challengeID string) (bool, error) {
	var n int
	err := r.c.queryRow(ctx,
		`SELECT COUNT(*) FROM challenge_completions WHERE team_id = ? AND challenge_id = ?`,
		teamID, challengeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", translateError(err))
	}
	return n > 0, nil
}

func (r *completionRepository) count(ctx context.Context, column, id string) (int, error) {
	var n int
	err := r.c.queryRow(ctx, `SELECT COUNT(*) FROM challenge_completions WHERE `+column+` = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", translateError(err))
	}
	return n, nil
}

func (r *completionRepository) CountForChallenge(ctx context.Context, challengeID string) (int, error) {
	return r.count(ctx, "challenge_id", challengeID)
}

func (r *completionRepository) CountForTeam(ctx context.Context, teamID string) (int, error) {
	return r.count(ctx, "team_id", teamID)
}

func (r *completionRepository) ListForChallenge(ctx context.Context, challengeID string) ([]*domain.ChallengeCompletion, error) {
	out, err := r.list(ctx,
		`SELECT `+completionColumns+` FROM challenge_completions WHERE challenge_id = ? ORDER BY created_at, id`,
		challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenge completions: %w", err)
	}
	return out, nil
}

func (r *completionRepository) ListForTeam(ctx context.Context, teamID string) ([]*domain.ChallengeCompletion, error) {
	out, err := r.list(ctx,
		`SELECT `+completionColumns+` FROM challenge_completions WHERE team_id = ? ORDER BY created_at DESC, id`,
		teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team completions: %w", err)
	}
	return out, nil
}

func (r *completionRepository) SetChallengeUnique(ctx context.Context, challengeID string, unique bool) error {
	_, err := r.c.exec(ctx,
		`UPDATE challenge_completions SET challenge_unique = ? WHERE challenge_id = ?`,
		unique, challengeID)
	if err != nil {
		return fmt.Errorf("failed to sync completion uniqueness: %w", err)
	}
	return nil
}

func (r *completionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.exec(ctx, `DELETE FROM challenge_completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete completion: %w", err)
	}
	return requireAffected(res)
}
