package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

type challengeRepository struct {
	c conn
}

const challengeColumns = `ch.id, ch.name, ch.description, ch.points, ch.is_unique,
	ch.created_at, ch.updated_at, ch.created_by, ch.updated_by`

func scanChallenge(row rowScanner, extra ...interface{}) (*domain.Challenge, error) {
	var (
		ch        domain.Challenge
		createdAt int64
		updatedAt sql.NullInt64
	)
	dest := []interface{}{
		&ch.ID,
		&ch.Name,
		&ch.Description,
		&ch.Points,
		&ch.IsUnique,
		&createdAt,
		&updatedAt,
		&ch.CreatedBy,
		&ch.UpdatedBy,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	ch.CreatedAt = fromMillis(createdAt)
	ch.UpdatedAt = timePtr(updatedAt)
	return &ch, nil
}

func (r *challengeRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Challenge, error) {
	ch, err := scanChallenge(r.c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return ch, nil
}

func (r *challengeRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Challenge, error) {
	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Challenge, 0)
	for rows.Next() {
		ch, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *challengeRepository) stats(ctx context.Context, query string, args ...interface{}) ([]*domain.ChallengeStat, error) {
	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.ChallengeStat, 0)
	for rows.Next() {
		var n int
		ch, err := scanChallenge(rows, &n)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge stats: %w", err)
		}
		out = append(out, &domain.ChallengeStat{Challenge: ch, Completions: n})
	}
	return out, rows.Err()
}

func (r *challengeRepository) Create(ctx context.Context, ch *domain.Challenge) error {
	query := `
		INSERT INTO challenges (
			id, name, description, points, is_unique,
			created_at, updated_at, created_by, updated_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.c.exec(ctx, query,
		ch.ID,
		ch.Name,
		ch.Description,
		ch.Points,
		ch.IsUnique,
		toMillis(ch.CreatedAt),
		nullableMillis(ch.UpdatedAt),
		ch.CreatedBy,
		ch.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

func (r *challengeRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	ch, err := r.getOne(ctx, `SELECT `+challengeColumns+` FROM challenges ch WHERE ch.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return ch, nil
}

func (r *challengeRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges ch WHERE ch.id = ?` + r.c.dialect.LockClause()
	ch, err := r.getOne(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock challenge: %w", err)
	}
	return ch, nil
}

func (r *challengeRepository) GetByName(ctx context.Context, name string) (*domain.Challenge, error) {
	ch, err := r.getOne(ctx, `SELECT `+challengeColumns+` FROM challenges ch WHERE ch.name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge by name: %w", err)
	}
	return ch, nil
}

func (r *challengeRepository) List(ctx context.Context) ([]*domain.Challenge, error) {
	out, err := r.list(ctx, `SELECT `+challengeColumns+` FROM challenges ch ORDER BY ch.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return out, nil
}

func (r *challengeRepository) ListAvailableUnique(ctx context.Context) ([]*domain.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges ch
		WHERE ch.is_unique = ?
		  AND NOT EXISTS (SELECT 1 FROM challenge_completions c WHERE c.challenge_id = ch.id)
		ORDER BY ch.name
	`
	out, err := r.list(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list available unique challenges: %w", err)
	}
	return out, nil
}

func (r *challengeRepository) ListCompletedByTeam(ctx context.Context, teamID string) ([]*domain.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges ch
		JOIN challenge_completions c ON c.challenge_id = ch.id
		WHERE c.team_id = ?
		ORDER BY ch.name
	`
	out, err := r.list(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed challenges: %w", err)
	}
	return out, nil
}

const statsSelect = `
		SELECT ` + challengeColumns + `, COUNT(c.id) AS completions
		FROM challenges ch
		LEFT JOIN challenge_completions c ON c.challenge_id = ch.id
		GROUP BY ch.id, ch.name, ch.description, ch.points, ch.is_unique,
		         ch.created_at, ch.updated_at, ch.created_by, ch.updated_by
`

func (r *challengeRepository) Stats(ctx context.Context) ([]*domain.ChallengeStat, error) {
	out, err := r.stats(ctx, statsSelect+` ORDER BY ch.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get completion stats: %w", err)
	}
	return out, nil
}

func (r *challengeRepository) MostPopular(ctx context.Context, limit int) ([]*domain.ChallengeStat, error) {
	out, err := r.stats(ctx, statsSelect+` ORDER BY completions DESC, ch.name LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get popular challenges: %w", err)
	}
	return out, nil
}

func (r *challengeRepository) Update(ctx context.Context, ch *domain.Challenge) error {
	query := `
		UPDATE challenges
		SET name = ?, description = ?, points = ?, is_unique = ?,
		    updated_at = ?, updated_by = ?
		WHERE id = ?
	`
	res, err := r.c.exec(ctx, query,
		ch.Name,
		ch.Description,
		ch.Points,
		ch.IsUnique,
		nullableMillis(ch.UpdatedAt),
		ch.UpdatedBy,
		ch.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	return requireAffected(res)
}

func (r *challengeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.exec(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return requireAffected(res)
}
