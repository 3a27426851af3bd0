package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

type updateRepository struct {
	c conn
}

const updateColumns = `id, type, description, team_id, challenge_id, announcement_id,
	challenge_completion_id, metadata, is_broadcast,
	created_at, updated_at, created_by, updated_by`

func scanUpdate(row rowScanner) (*domain.Update, error) {
	var (
		u            domain.Update
		updateType   string
		teamID       sql.NullString
		challengeID  sql.NullString
		announceID   sql.NullString
		completionID sql.NullString
		metadata     sql.NullString
		createdAt    int64
		updatedAt    sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&updateType,
		&u.Description,
		&teamID,
		&challengeID,
		&announceID,
		&completionID,
		&metadata,
		&u.IsBroadcast,
		&createdAt,
		&updatedAt,
		&u.CreatedBy,
		&u.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	u.Type = domain.UpdateType(updateType)
	u.TeamID = stringPtr(teamID)
	u.ChallengeID = stringPtr(challengeID)
	u.AnnouncementID = stringPtr(announceID)
	u.ChallengeCompletionID = stringPtr(completionID)
	if metadata.Valid && metadata.String != "" {
		u.Metadata = json.RawMessage(metadata.String)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = timePtr(updatedAt)
	return &u, nil
}

func (r *updateRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Update, error) {
	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Update, 0)
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *updateRepository) Create(ctx context.Context, u *domain.Update) error {
	query := `
		INSERT INTO updates (
			id, type, description, team_id, challenge_id, announcement_id,
			challenge_completion_id, metadata, is_broadcast, seq,
			created_at, updated_at, created_by, updated_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var metadata sql.NullString
	if len(u.Metadata) > 0 {
		metadata = sql.NullString{String: string(u.Metadata), Valid: true}
	}
	_, err := r.c.exec(ctx, query,
		u.ID,
		string(u.Type),
		u.Description,
		nullableString(u.TeamID),
		nullableString(u.ChallengeID),
		nullableString(u.AnnouncementID),
		nullableString(u.ChallengeCompletionID),
		metadata,
		u.IsBroadcast,
		nextSeq(),
		toMillis(u.CreatedAt),
		nullableMillis(u.UpdatedAt),
		u.CreatedBy,
		u.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create update: %w", err)
	}
	return nil
}

func (r *updateRepository) GetByID(ctx context.Context, id string) (*domain.Update, error) {
	u, err := scanUpdate(r.c.queryRow(ctx, `SELECT `+updateColumns+` FROM updates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get update: %w", translateError(err))
	}
	return u, nil
}

const newestFirst = ` ORDER BY created_at DESC, seq DESC`

func (r *updateRepository) List(ctx context.Context) ([]*domain.Update, error) {
	out, err := r.list(ctx, `SELECT `+updateColumns+` FROM updates`+newestFirst)
	if err != nil {
		return nil, fmt.Errorf("failed to list updates: %w", err)
	}
	return out, nil
}

func (r *updateRepository) ListByType(ctx context.Context, t domain.UpdateType) ([]*domain.Update, error) {
	out, err := r.list(ctx, `SELECT `+updateColumns+` FROM updates WHERE type = ?`+newestFirst, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to list updates by type: %w", err)
	}
	return out, nil
}

func (r *updateRepository) ListByEntity(ctx context.Context, id string) ([]*domain.Update, error) {
	query := `
		SELECT ` + updateColumns + `
		FROM updates
		WHERE team_id = ? OR challenge_id = ? OR announcement_id = ? OR challenge_completion_id = ?
	` + newestFirst
	out, err := r.list(ctx, query, id, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list updates by entity: %w", err)
	}
	return out, nil
}

func (r *updateRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Update, error) {
	out, err := r.list(ctx, `SELECT `+updateColumns+` FROM updates`+newestFirst+` LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent updates: %w", err)
	}
	return out, nil
}

func (r *updateRepository) ListUnbroadcast(ctx context.Context) ([]*domain.Update, error) {
	out, err := r.list(ctx,
		`SELECT `+updateColumns+` FROM updates WHERE is_broadcast = ? ORDER BY created_at, seq`,
		false)
	if err != nil {
		return nil, fmt.Errorf("failed to list unbroadcast updates: %w", err)
	}
	return out, nil
}

func (r *updateRepository) MarkBroadcast(ctx context.Context, id string, at time.Time) error {
	_, err := r.c.exec(ctx,
		`UPDATE updates SET is_broadcast = ?, updated_at = ? WHERE id = ? AND is_broadcast = ?`,
		true, toMillis(at), id, false)
	if err != nil {
		return fmt.Errorf("failed to mark update broadcast: %w", err)
	}
	return nil
}

func (r *updateRepository) CountUnbroadcast(ctx context.Context) (int, error) {
	var n int
	if err := r.c.queryRow(ctx, `SELECT COUNT(*) FROM updates WHERE is_broadcast = ?`, false).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending updates: %w", translateError(err))
	}
	return n, nil
}

func (r *updateRepository) CountUnbroadcastBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.c.queryRow(ctx,
		`SELECT COUNT(*) FROM updates WHERE is_broadcast = ? AND created_at < ?`,
		false, toMillis(cutoff)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expiring pending updates: %w", translateError(err))
	}
	return n, nil
}

func (r *updateRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.c.exec(ctx, `DELETE FROM updates WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old updates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted rows: %w", err)
	}
	return n, nil
}
