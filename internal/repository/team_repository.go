package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

type teamRepository struct {
	c conn
}

const teamColumns = `id, name, team_no, school, color, logo_url, total_points,
	created_at, updated_at, created_by, updated_by`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTeam(row rowScanner) (*domain.Team, error) {
	var (
		t         domain.Team
		logo      sql.NullString
		createdAt int64
		updatedAt sql.NullInt64
	)
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.TeamNo,
		&t.School,
		&t.Color,
		&logo,
		&t.TotalPoints,
		&createdAt,
		&updatedAt,
		&t.CreatedBy,
		&t.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	t.LogoURL = stringPtr(logo)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = timePtr(updatedAt)
	return &t, nil
}

func (r *teamRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Team, error) {
	team, err := scanTeam(r.c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return team, nil
}

func (r *teamRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Team, error) {
	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*domain.Team, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	query := `
		INSERT INTO teams (
			id, name, team_no, school, color, logo_url, total_points,
			created_at, updated_at, created_by, updated_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.c.exec(ctx, query,
		team.ID,
		team.Name,
		team.TeamNo,
		team.School,
		team.Color,
		nullableString(team.LogoURL),
		team.TotalPoints,
		toMillis(team.CreatedAt),
		nullableMillis(team.UpdatedAt),
		team.CreatedBy,
		team.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	team, err := r.getOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

func (r *teamRepository) GetByTeamNo(ctx context.Context, teamNo string) (*domain.Team, error) {
	team, err := r.getOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE team_no = ?`, teamNo)
	if err != nil {
		return nil, fmt.Errorf("failed to get team by number: %w", err)
	}
	return team, nil
}

func (r *teamRepository) List(ctx context.Context) ([]*domain.Team, error) {
	teams, err := r.list(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY team_no`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

func (r *teamRepository) Update(ctx context.Context, team *domain.Team) error {
	query := `
		UPDATE teams
		SET name = ?, team_no = ?, school = ?, color = ?, logo_url = ?,
		    updated_at = ?, updated_by = ?
		WHERE id = ?
	`
	res, err := r.c.exec(ctx, query,
		team.Name,
		team.TeamNo,
		team.School,
		team.Color,
		nullableString(team.LogoURL),
		nullableMillis(team.UpdatedAt),
		team.UpdatedBy,
		team.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return requireAffected(res)
}

func (r *teamRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.exec(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return requireAffected(res)
}

func (r *teamRepository) AddPoints(ctx context.Context, id string, delta int, at time.Time, by string) (int, error) {
	query := `
		UPDATE teams
		SET total_points = total_points + ?, updated_at = ?, updated_by = ?
		WHERE id = ?
		RETURNING total_points
	`
	var total int
	err := r.c.queryRow(ctx, query, delta, toMillis(at), by, id).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add points: %w", translateError(err))
	}
	return total, nil
}

func (r *teamRepository) ListPointsMismatches(ctx context.Context) ([]*domain.PointsMismatch, error) {
	query := `
		SELECT t.id, t.name, t.team_no, t.total_points, COALESCE(SUM(c.points_awarded), 0) AS computed
		FROM teams t
		LEFT JOIN challenge_completions c ON c.team_id = t.id
		GROUP BY t.id, t.name, t.team_no, t.total_points
		HAVING t.total_points <> COALESCE(SUM(c.points_awarded), 0)
		ORDER BY t.team_no
	`
	rows, err := r.c.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute point totals: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.PointsMismatch, 0)
	for rows.Next() {
		var m domain.PointsMismatch
		if err := rows.Scan(&m.TeamID, &m.TeamName, &m.TeamNo, &m.Stored, &m.Computed); err != nil {
			return nil, fmt.Errorf("failed to scan point totals: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
