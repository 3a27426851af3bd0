package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/repository"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// AnnouncementService manages markdown announcements
type AnnouncementService struct {
	store    *repository.Store
	updates  *UpdateService
	renderer Renderer
	logger   *logger.Logger
	now      func() time.Time
}

func NewAnnouncementService(store *repository.Store, updates *UpdateService, renderer Renderer, log *logger.Logger) *AnnouncementService {
	return &AnnouncementService{
		store:    store,
		updates:  updates,
		renderer: renderer,
		logger:   log.Named("announcements"),
		now:      time.Now,
	}
}

func (s *AnnouncementService) prepare(a *domain.Announcement) error {
	a.Body = strings.TrimSpace(a.Body)
	if a.Priority == "" {
		a.Priority = domain.PriorityInfo
	} else if p, err := domain.ParsePriority(string(a.Priority)); err == nil {
		a.Priority = p
	}
	if err := domain.Validate(a); err != nil {
		return err
	}
	html, err := s.renderer.Render(a.Body)
	if err != nil {
		return errors.NewValidationError("announcement body could not be rendered", nil)
	}
	a.RenderedBody = html
	return nil
}

// CreateAnnouncement stores and renders a new announcement
func (s *AnnouncementService) CreateAnnouncement(ctx context.Context, in *domain.Announcement) (_ *domain.Announcement, err error) {
	ctx, end := startSpan(ctx, "AnnouncementService.CreateAnnouncement")
	defer end(&err)

	a := *in
	if err := s.prepare(&a); err != nil {
		return nil, err
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.now().UTC()
	a.CreatedBy = domain.ActorID(ctx)
	a.UpdatedAt = nil
	a.UpdatedBy = ""

	var u *domain.Update
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		if err := r.Announcements.Create(ctx, &a); err != nil {
			return err
		}
		var err error
		u, err = s.updates.announcementUpdate(ctx, r, domain.UpdateAnnouncementCreated, &a,
			"New announcement: "+a.Excerpt(80))
		return err
	})
	if err != nil {
		return nil, storageError("failed to create announcement", err)
	}

	s.logger.WithField("announcement_id", a.ID).Info("Announcement created")
	s.updates.Publish(ctx, u)
	return &a, nil
}

// UpdateAnnouncement replaces body, priority and visibility
func (s *AnnouncementService) UpdateAnnouncement(ctx context.Context, in *domain.Announcement) (_ *domain.Announcement, err error) {
	ctx, end := startSpan(ctx, "AnnouncementService.UpdateAnnouncement")
	defer end(&err)

	changes := *in
	if err := s.prepare(&changes); err != nil {
		return nil, err
	}
	return s.mutate(ctx, changes.ID, func(a *domain.Announcement) string {
		a.Body = changes.Body
		a.RenderedBody = changes.RenderedBody
		a.Priority = changes.Priority
		a.IsVisible = changes.IsVisible
		return "Announcement updated: " + a.Excerpt(80)
	})
}

// ToggleVisibility flips whether an announcement is shown
func (s *AnnouncementService) ToggleVisibility(ctx context.Context, id string) (*domain.Announcement, error) {
	return s.mutate(ctx, id, func(a *domain.Announcement) string {
		a.IsVisible = !a.IsVisible
		if a.IsVisible {
			return "Announcement shown: " + a.Excerpt(80)
		}
		return "Announcement hidden: " + a.Excerpt(80)
	})
}

// RefreshRendered re-renders one announcement's body
func (s *AnnouncementService) RefreshRendered(ctx context.Context, id string) (*domain.Announcement, error) {
	return s.mutate(ctx, id, func(a *domain.Announcement) string {
		html, err := s.renderer.Render(a.Body)
		if err != nil {
			s.logger.WithError(err).WithField("announcement_id", a.ID).Warn("Failed to render announcement")
			return ""
		}
		if html == a.RenderedBody {
			return ""
		}
		a.RenderedBody = html
		return "Announcement refreshed: " + a.Excerpt(80)
	})
}

// RefreshAllRendered re-renders every announcement and returns how many changed
func (s *AnnouncementService) RefreshAllRendered(ctx context.Context) (int, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, a := range all {
		before := a.RenderedBody
		got, err := s.RefreshRendered(ctx, a.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return changed, err
		}
		if got.RenderedBody != before {
			changed++
		}
	}
	return changed, nil
}

// mutate applies fn to the stored announcement inside a transaction and
// records an AnnouncementUpdated update. fn returns the update description,
// or "" when nothing changed.
func (s *AnnouncementService) mutate(ctx context.Context, id string, fn func(a *domain.Announcement) string) (*domain.Announcement, error) {
	var (
		a *domain.Announcement
		u *domain.Update
	)
	err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
		var err error
		a, err = r.Announcements.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return errors.NewNotFoundError("announcement not found")
		}

		description := fn(a)
		if description == "" {
			return nil
		}
		now := s.now().UTC()
		a.UpdatedAt = &now
		a.UpdatedBy = domain.ActorID(ctx)
		if err := r.Announcements.Update(ctx, a); err != nil {
			if stderrors.Is(err, repository.ErrNotFound) {
				return errors.NewNotFoundError("announcement not found")
			}
			return err
		}
		u, err = s.updates.announcementUpdate(ctx, r, domain.UpdateAnnouncementUpdated, a, description)
		return err
	})
	if err != nil {
		return nil, storageError("failed to update announcement", err)
	}

	if u != nil {
		s.logger.WithField("announcement_id", a.ID).Info("Announcement updated")
		s.updates.Publish(ctx, u)
	}
	return a, nil
}

// DeleteAnnouncement removes an announcement
func (s *AnnouncementService) DeleteAnnouncement(ctx context.Context, id string) (err error) {
	ctx, end := startSpan(ctx, "AnnouncementService.DeleteAnnouncement")
	defer end(&err)

	var u *domain.Update
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		a, err := r.Announcements.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return errors.NewNotFoundError("announcement not found")
		}
		if err := r.Announcements.Delete(ctx, id); err != nil {
			return err
		}
		u, err = s.updates.announcementUpdate(ctx, r, domain.UpdateAnnouncementDeleted, a,
			"Announcement removed: "+a.Excerpt(80))
		return err
	})
	if err != nil {
		return storageError("failed to delete announcement", err)
	}

	s.logger.WithField("announcement_id", id).Info("Announcement deleted")
	s.updates.Publish(ctx, u)
	return nil
}

// AnnounceCompletion posts a visible announcement for a recorded completion
func (s *AnnouncementService) AnnounceCompletion(ctx context.Context, team *domain.Team, ch *domain.Challenge, cc *domain.ChallengeCompletion) (*domain.Announcement, error) {
	body := fmt.Sprintf("**%s** completed **%s** and earned %d points!", team.Name, ch.Name, cc.PointsAwarded)
	priority := domain.PriorityInfo
	if ch.IsUnique {
		body = fmt.Sprintf("**%s** claimed the unique challenge **%s** for %d points!", team.Name, ch.Name, cc.PointsAwarded)
		priority = domain.PrioritySecondary
	}
	return s.CreateAnnouncement(ctx, &domain.Announcement{Body: body, Priority: priority, IsVisible: true})
}

// AnnounceTeam posts a visible announcement about a team, e.g. "joined"
func (s *AnnouncementService) AnnounceTeam(ctx context.Context, team *domain.Team, action string) (*domain.Announcement, error) {
	body := fmt.Sprintf("Team **%s** (%s) from %s %s.", team.Name, team.TeamNo, team.School, action)
	return s.CreateAnnouncement(ctx, &domain.Announcement{Body: body, Priority: domain.PriorityPrimary, IsVisible: true})
}

func (s *AnnouncementService) GetAnnouncement(ctx context.Context, id string) (*domain.Announcement, error) {
	a, err := s.store.Repos().Announcements.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to get announcement", err)
	}
	if a == nil {
		return nil, errors.NewNotFoundError("announcement not found")
	}
	return a, nil
}

// GetAll returns every announcement, newest first
func (s *AnnouncementService) GetAll(ctx context.Context) ([]*domain.Announcement, error) {
	out, err := s.store.Repos().Announcements.List(ctx)
	return out, storageError("failed to list announcements", err)
}

// GetVisible returns visible announcements, newest first
func (s *AnnouncementService) GetVisible(ctx context.Context) ([]*domain.Announcement, error) {
	out, err := s.store.Repos().Announcements.ListVisible(ctx)
	return out, storageError("failed to list announcements", err)
}

// GetByPriority returns visible announcements of one priority
func (s *AnnouncementService) GetByPriority(ctx context.Context, priority string) ([]*domain.Announcement, error) {
	p, err := domain.ParsePriority(priority)
	if err != nil {
		return nil, errors.NewValidationError(err.Error(), nil)
	}
	out, err := s.store.Repos().Announcements.ListVisibleByPriority(ctx, p)
	return out, storageError("failed to list announcements", err)
}

func (s *AnnouncementService) GetRecent(ctx context.Context, n int) ([]*domain.Announcement, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("count must be positive", nil)
	}
	out, err := s.store.Repos().Announcements.ListRecentVisible(ctx, n)
	return out, storageError("failed to list announcements", err)
}

func (s *AnnouncementService) CountVisible(ctx context.Context) (int, error) {
	n, err := s.store.Repos().Announcements.CountVisible(ctx)
	return n, storageError("failed to count announcements", err)
}
