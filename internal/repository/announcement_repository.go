package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

type announcementRepository struct {
	c conn
}

const announcementColumns = `id, body, rendered_body, priority, is_visible,
	created_at, updated_at, created_by, updated_by`

func scanAnnouncement(row rowScanner) (*domain.Announcement, error) {
	var (
		a         domain.Announcement
		priority  string
		createdAt int64
		updatedAt sql.NullInt64
	)
	err := row.Scan(
		&a.ID,
		&a.Body,
		&a.RenderedBody,
		&priority,
		&a.IsVisible,
		&createdAt,
		&updatedAt,
		&a.CreatedBy,
		&a.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	a.Priority = domain.Priority(priority)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = timePtr(updatedAt)
	return &a, nil
}

func (r *announcementRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Announcement, error) {
	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Announcement, 0)
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *announcementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	query := `
		INSERT INTO announcements (
			id, body, rendered_body, priority, is_visible,
			created_at, updated_at, created_by, updated_by
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.c.exec(ctx, query,
		a.ID,
		a.Body,
		a.RenderedBody,
		string(a.Priority),
		a.IsVisible,
		toMillis(a.CreatedAt),
		nullableMillis(a.UpdatedAt),
		a.CreatedBy,
		a.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (r *announcementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	a, err := scanAnnouncement(r.c.queryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get announcement: %w", translateError(err))
	}
	return a, nil
}

func (r *announcementRepository) List(ctx context.Context) ([]*domain.Announcement, error) {
	out, err := r.list(ctx, `SELECT `+announcementColumns+` FROM announcements ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	return out, nil
}

func (r *announcementRepository) ListVisible(ctx context.Context) ([]*domain.Announcement, error) {
	out, err := r.list(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE is_visible = ? ORDER BY created_at DESC, id`,
		true)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible announcements: %w", err)
	}
	return out, nil
}

func (r *announcementRepository) ListVisibleByPriority(ctx context.Context, p domain.Priority) ([]*domain.Announcement, error) {
	out, err := r.list(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE is_visible = ? AND priority = ? ORDER BY created_at DESC, id`,
		true, string(p))
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements by priority: %w", err)
	}
	return out, nil
}

func (r *announcementRepository) ListRecentVisible(ctx context.Context, limit int) ([]*domain.Announcement, error) {
	out, err := r.list(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE is_visible = ? ORDER BY created_at DESC, id LIMIT ?`,
		true, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent announcements: %w", err)
	}
	return out, nil
}

func (r *announcementRepository) CountVisible(ctx context.Context) (int, error) {
	var n int
	if err := r.c.queryRow(ctx, `SELECT COUNT(*) FROM announcements WHERE is_visible = ?`, true).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count announcements: %w", translateError(err))
	}
	return n, nil
}

func (r *announcementRepository) Update(ctx context.Context, a *domain.Announcement) error {
	query := `
		UPDATE announcements
		SET body = ?, rendered_body = ?, priority = ?, is_visible = ?,
		    updated_at = ?, updated_by = ?
		WHERE id = ?
	`
	res, err := r.c.exec(ctx, query,
		a.Body,
		a.RenderedBody,
		string(a.Priority),
		a.IsVisible,
		nullableMillis(a.UpdatedAt),
		a.UpdatedBy,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return requireAffected(res)
}

func (r *announcementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.c.exec(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	return requireAffected(res)
}
