package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/repository"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// UpdateService owns the update log: it writes update records, pushes them
// through the Notifier and answers update feed queries.
type UpdateService struct {
	store    *repository.Store
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewUpdateService creates the update log service
func NewUpdateService(store *repository.Store, notifier Notifier, log *logger.Logger) *UpdateService {
	return &UpdateService{
		store:    store,
		notifier: notifier,
		logger:   log.Named("updates"),
		now:      time.Now,
	}
}

// updateRefs are the optional entity references of a new update
type updateRefs struct {
	teamID         string
	challengeID    string
	announcementID string
	completionID   string
}

func (s *UpdateService) newUpdate(ctx context.Context, t domain.UpdateType, description string, refs updateRefs, metadata any) (*domain.Update, error) {
	var raw json.RawMessage
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode update metadata: %w", err)
		}
		raw = b
	}
	return &domain.Update{
		Audit: domain.Audit{
			ID:        uuid.NewString(),
			CreatedAt: s.now().UTC(),
			CreatedBy: domain.ActorID(ctx),
		},
		Type:                  t,
		Description:           description,
		TeamID:                domain.StringPtr(refs.teamID),
		ChallengeID:           domain.StringPtr(refs.challengeID),
		AnnouncementID:        domain.StringPtr(refs.announcementID),
		ChallengeCompletionID: domain.StringPtr(refs.completionID),
		Metadata:              raw,
	}, nil
}

// record builds and stores an update through repos, which may be bound to a
// transaction.
func (s *UpdateService) record(ctx context.Context, repos *repository.Repositories, t domain.UpdateType, description string, refs updateRefs, metadata any) (*domain.Update, error) {
	u, err := s.newUpdate(ctx, t, description, refs, metadata)
	if err != nil {
		return nil, err
	}
	if err := repos.Updates.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func teamSnapshot(team *domain.Team) domain.UpdateMetadata {
	return domain.UpdateMetadata{
		TeamID:      team.ID,
		TeamName:    team.Name,
		TeamNo:      team.TeamNo,
		School:      team.School,
		TotalPoints: domain.IntPtr(team.TotalPoints),
	}
}

func challengeSnapshot(ch *domain.Challenge) domain.UpdateMetadata {
	return domain.UpdateMetadata{
		ChallengeID:     ch.ID,
		ChallengeName:   ch.Name,
		ChallengePoints: domain.IntPtr(ch.Points),
		IsUnique:        domain.BoolPtr(ch.IsUnique),
	}
}

func announcementSnapshot(a *domain.Announcement) domain.UpdateMetadata {
	return domain.UpdateMetadata{
		AnnouncementID: a.ID,
		Priority:       a.Priority,
		IsVisible:      domain.BoolPtr(a.IsVisible),
		RenderedBody:   a.RenderedBody,
	}
}

// teamUpdate records a team event. Deleted teams are referenced through the
// snapshot only.
func (s *UpdateService) teamUpdate(ctx context.Context, repos *repository.Repositories, t domain.UpdateType, team *domain.Team, description string) (*domain.Update, error) {
	refs := updateRefs{}
	if t != domain.UpdateTeamDeleted {
		refs.teamID = team.ID
	}
	return s.record(ctx, repos, t, description, refs, teamSnapshot(team))
}

func (s *UpdateService) challengeUpdate(ctx context.Context, repos *repository.Repositories, t domain.UpdateType, ch *domain.Challenge, description string) (*domain.Update, error) {
	refs := updateRefs{}
	if t != domain.UpdateChallengeDeleted {
		refs.challengeID = ch.ID
	}
	return s.record(ctx, repos, t, description, refs, challengeSnapshot(ch))
}

// completionUpdate records ChallengeCompleted or CompletionRemoved. A removed
// completion no longer exists, so only its id in the metadata survives.
func (s *UpdateService) completionUpdate(ctx context.Context, repos *repository.Repositories, t domain.UpdateType, team *domain.Team, ch *domain.Challenge, cc *domain.ChallengeCompletion, description string) (*domain.Update, error) {
	md := teamSnapshot(team)
	md.ChallengeID = ch.ID
	md.ChallengeName = ch.Name
	md.ChallengePoints = domain.IntPtr(ch.Points)
	md.IsUnique = domain.BoolPtr(ch.IsUnique)
	md.CompletionID = cc.ID
	md.PointsAwarded = domain.IntPtr(cc.PointsAwarded)

	refs := updateRefs{teamID: team.ID, challengeID: ch.ID}
	if t == domain.UpdateChallengeCompleted {
		refs.completionID = cc.ID
	}
	return s.record(ctx, repos, t, description, refs, md)
}

func (s *UpdateService) announcementUpdate(ctx context.Context, repos *repository.Repositories, t domain.UpdateType, a *domain.Announcement, description string) (*domain.Update, error) {
	refs := updateRefs{}
	if t != domain.UpdateAnnouncementDeleted {
		refs.announcementID = a.ID
	}
	return s.record(ctx, repos, t, description, refs, announcementSnapshot(a))
}

// CreateUpdate stores a free-form update that is not tied to an entity
func (s *UpdateService) CreateUpdate(ctx context.Context, t domain.UpdateType, description string, metadata any) (*domain.Update, error) {
	if _, err := domain.ParseUpdateType(string(t)); err != nil {
		return nil, errors.NewValidationError(err.Error(), nil)
	}
	if description == "" {
		return nil, errors.NewValidationError("description is required", nil)
	}
	u, err := s.record(ctx, s.store.Repos(), t, description, updateRefs{}, metadata)
	if err != nil {
		return nil, storageError("failed to create update", err)
	}
	return u, nil
}

// BroadcastUpdate pushes u to its channels and marks it delivered. It may be
// called again for an already delivered update; clients then simply receive
// it twice.
func (s *UpdateService) BroadcastUpdate(ctx context.Context, u *domain.Update) error {
	log := s.logger.WithFields(map[string]interface{}{
		"update_id":   u.ID,
		"update_type": u.Type,
	})

	notes, err := notificationsFor(u)
	if err != nil {
		log.WithError(err).Warn("Failed to derive notifications")
		return errors.NewBroadcastError("failed to derive notifications", err)
	}
	for _, n := range notes {
		if err := s.notifier.Notify(ctx, n.channel, n.event, n.payload); err != nil {
			log.WithError(err).WithField("channel", n.channel).Warn("Failed to broadcast update")
			return errors.NewBroadcastError("failed to broadcast update", err)
		}
	}

	if err := s.store.Repos().Updates.MarkBroadcast(ctx, u.ID, s.now().UTC()); err != nil {
		log.WithError(err).Warn("Failed to mark update broadcast")
		return errors.NewBroadcastError("failed to mark update broadcast", err)
	}
	u.IsBroadcast = true
	log.Debug("Update broadcast")
	return nil
}

// Publish broadcasts committed updates in order. On the first failure the
// rest are left pending for the sweeper, which resends them oldest first.
func (s *UpdateService) Publish(ctx context.Context, updates ...*domain.Update) {
	for _, u := range updates {
		if u == nil {
			continue
		}
		if err := s.BroadcastUpdate(ctx, u); err != nil {
			return
		}
	}
}

// BroadcastLeaderboard pushes the ranked leaderboard to every client
func (s *UpdateService) BroadcastLeaderboard(ctx context.Context, entries []*domain.LeaderboardEntry) error {
	if err := s.notifier.Notify(ctx, domain.ChannelAll, domain.EventLeaderboardUpdate, entries); err != nil {
		s.logger.WithError(err).Warn("Failed to broadcast leaderboard")
		return errors.NewBroadcastError("failed to broadcast leaderboard", err)
	}
	return nil
}

// GetUnbroadcastUpdates returns the retry queue, oldest first
func (s *UpdateService) GetUnbroadcastUpdates(ctx context.Context) ([]*domain.Update, error) {
	out, err := s.store.Repos().Updates.ListUnbroadcast(ctx)
	return out, storageError("failed to list pending updates", err)
}

// GetAllUpdates returns the whole log, newest first
func (s *UpdateService) GetAllUpdates(ctx context.Context) ([]*domain.Update, error) {
	out, err := s.store.Repos().Updates.List(ctx)
	return out, storageError("failed to list updates", err)
}

func (s *UpdateService) GetUpdate(ctx context.Context, id string) (*domain.Update, error) {
	u, err := s.store.Repos().Updates.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to get update", err)
	}
	if u == nil {
		return nil, errors.NewNotFoundError("update not found")
	}
	return u, nil
}

func (s *UpdateService) GetUpdatesByType(ctx context.Context, t domain.UpdateType) ([]*domain.Update, error) {
	out, err := s.store.Repos().Updates.ListByType(ctx, t)
	return out, storageError("failed to list updates", err)
}

// GetUpdatesByEntity returns updates referencing id in any entity column
func (s *UpdateService) GetUpdatesByEntity(ctx context.Context, id string) ([]*domain.Update, error) {
	out, err := s.store.Repos().Updates.ListByEntity(ctx, id)
	return out, storageError("failed to list updates", err)
}

func (s *UpdateService) GetRecentUpdates(ctx context.Context, n int) ([]*domain.Update, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("count must be positive", nil)
	}
	out, err := s.store.Repos().Updates.ListRecent(ctx, n)
	return out, storageError("failed to list updates", err)
}

func (s *UpdateService) GetPendingUpdateCount(ctx context.Context) (int, error) {
	n, err := s.store.Repos().Updates.CountUnbroadcast(ctx)
	return n, storageError("failed to count pending updates", err)
}

// CleanupOldUpdates deletes updates older than daysToKeep days whether or not
// they were delivered, and returns how many were removed.
func (s *UpdateService) CleanupOldUpdates(ctx context.Context, daysToKeep int) (deleted int64, err error) {
	ctx, end := startSpan(ctx, "UpdateService.CleanupOldUpdates")
	defer end(&err)

	if daysToKeep <= 0 {
		return 0, errors.NewValidationError("days to keep must be positive", nil)
	}
	cutoff := s.now().UTC().Add(-time.Duration(daysToKeep) * 24 * time.Hour)

	var undelivered int
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		var err error
		if undelivered, err = r.Updates.CountUnbroadcastBefore(ctx, cutoff); err != nil {
			return err
		}
		deleted, err = r.Updates.DeleteBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, storageError("failed to clean up updates", err)
	}

	log := s.logger.WithFields(map[string]interface{}{
		"deleted": deleted,
		"cutoff":  cutoff,
	})
	if undelivered > 0 {
		log.WithField("undelivered", undelivered).Warn("Purged updates that were never broadcast")
	} else {
		log.Info("Cleaned up old updates")
	}
	return deleted, nil
}

// RetryUnbroadcast re-sends pending updates oldest first. It stops at the
// first failure so later updates never overtake earlier ones.
func (s *UpdateService) RetryUnbroadcast(ctx context.Context) (int, error) {
	pending, err := s.GetUnbroadcastUpdates(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, u := range pending {
		if err := s.BroadcastUpdate(ctx, u); err != nil {
			return delivered, err
		}
		delivered++
	}
	if delivered > 0 {
		s.logger.WithField("delivered", delivered).Info("Re-broadcast pending updates")
	}
	return delivered, nil
}
