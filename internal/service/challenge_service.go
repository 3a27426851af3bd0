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

const (
	msgAlreadyCompleted = "team has already completed this challenge"
	msgAlreadyClaimed   = "challenge has already been claimed by another team"
)

// ChallengeService is the challenge registry. Completions are recorded here
// and point awards go through the team registry in the same transaction.
type ChallengeService struct {
	store   *repository.Store
	teams   *TeamService
	updates *UpdateService
	logger  *logger.Logger
	now     func() time.Time
}

// NewChallengeService creates the challenge registry
func NewChallengeService(store *repository.Store, teams *TeamService, updates *UpdateService, log *logger.Logger) *ChallengeService {
	return &ChallengeService{
		store:   store,
		teams:   teams,
		updates: updates,
		logger:  log.Named("challenges"),
		now:     time.Now,
	}
}

func normalizeChallenge(ch *domain.Challenge) {
	ch.Name = strings.TrimSpace(ch.Name)
	ch.Description = strings.TrimSpace(ch.Description)
}

// CreateChallenge adds a challenge with a unique name
func (s *ChallengeService) CreateChallenge(ctx context.Context, in *domain.Challenge) (_ *domain.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.CreateChallenge")
	defer end(&err)

	ch := *in
	normalizeChallenge(&ch)
	if err := domain.Validate(&ch); err != nil {
		return nil, err
	}
	ch.ID = uuid.NewString()
	ch.CreatedAt = s.now().UTC()
	ch.CreatedBy = domain.ActorID(ctx)
	ch.UpdatedAt = nil
	ch.UpdatedBy = ""

	nameTaken := fmt.Sprintf("a challenge named %q already exists", ch.Name)
	var u *domain.Update
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		existing, err := r.Challenges.GetByName(ctx, ch.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.NewConflictError(nameTaken, nil)
		}
		if err := r.Challenges.Create(ctx, &ch); err != nil {
			return conflictOr(nameTaken, err)
		}
		u, err = s.updates.challengeUpdate(ctx, r, domain.UpdateChallengeCreated, &ch,
			fmt.Sprintf("New challenge %s worth %d points", ch.Name, ch.Points))
		return err
	})
	if err != nil {
		return nil, storageError("failed to create challenge", err)
	}

	s.logger.WithField("challenge_id", ch.ID).Info("Challenge created")
	s.updates.Publish(ctx, u)
	return &ch, nil
}

// UpdateChallenge replaces name, description, points and the unique flag.
// Recorded completions keep the points they were awarded.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, in *domain.Challenge) (_ *domain.Challenge, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.UpdateChallenge")
	defer end(&err)

	changes := *in
	normalizeChallenge(&changes)
	if err := domain.Validate(&changes); err != nil {
		return nil, err
	}

	nameTaken := fmt.Sprintf("a challenge named %q already exists", changes.Name)
	var (
		ch *domain.Challenge
		u  *domain.Update
	)
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		current, err := r.Challenges.GetByIDForUpdate(ctx, changes.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.NewNotFoundError("challenge not found")
		}

		if changes.Name != current.Name {
			other, err := r.Challenges.GetByName(ctx, changes.Name)
			if err != nil {
				return err
			}
			if other != nil && other.ID != current.ID {
				return errors.NewConflictError(nameTaken, nil)
			}
		}

		if changes.IsUnique != current.IsUnique {
			if changes.IsUnique {
				n, err := r.Completions.CountForChallenge(ctx, current.ID)
				if err != nil {
					return err
				}
				if n > 1 {
					return errors.NewConflictError(
						fmt.Sprintf("challenge has %d completions and cannot be made unique", n), nil)
				}
			}
			if err := r.Completions.SetChallengeUnique(ctx, current.ID, changes.IsUnique); err != nil {
				return conflictOr("challenge has several completions and cannot be made unique", err)
			}
		}

		now := s.now().UTC()
		current.Name = changes.Name
		current.Description = changes.Description
		current.Points = changes.Points
		current.IsUnique = changes.IsUnique
		current.UpdatedAt = &now
		current.UpdatedBy = domain.ActorID(ctx)
		if err := r.Challenges.Update(ctx, current); err != nil {
			return conflictOr(nameTaken, err)
		}
		ch = current
		u, err = s.updates.challengeUpdate(ctx, r, domain.UpdateChallengeUpdated, ch,
			fmt.Sprintf("Challenge %s updated", ch.Name))
		return err
	})
	if err != nil {
		return nil, storageError("failed to update challenge", err)
	}

	s.logger.WithField("challenge_id", ch.ID).Info("Challenge updated")
	s.updates.Publish(ctx, u)
	return ch, nil
}

// DeleteChallenge removes a challenge nobody has completed
func (s *ChallengeService) DeleteChallenge(ctx context.Context, id string) (err error) {
	ctx, end := startSpan(ctx, "ChallengeService.DeleteChallenge")
	defer end(&err)

	var u *domain.Update
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		ch, err := r.Challenges.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ch == nil {
			return errors.NewNotFoundError("challenge not found")
		}

		n, err := r.Completions.CountForChallenge(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.NewConflictError(
				fmt.Sprintf("challenge has %d recorded completions; remove them first", n), nil)
		}

		if err := r.Challenges.Delete(ctx, id); err != nil {
			return conflictOr("challenge is still referenced by completions", err)
		}
		u, err = s.updates.challengeUpdate(ctx, r, domain.UpdateChallengeDeleted, ch,
			fmt.Sprintf("Challenge %s removed", ch.Name))
		return err
	})
	if err != nil {
		return storageError("failed to delete challenge", err)
	}

	s.logger.WithField("challenge_id", id).Info("Challenge deleted")
	s.updates.Publish(ctx, u)
	return nil
}

// RecordCompletion records that a team completed a challenge and awards the
// challenge's current points. The eligibility checks, the insert and the
// award share one transaction; the storage unique indexes reject whatever a
// concurrent request slips past the checks.
func (s *ChallengeService) RecordCompletion(ctx context.Context, challengeID, teamID, notes string) (_ *domain.ChallengeCompletion, err error) {
	ctx, end := startSpan(ctx, "ChallengeService.RecordCompletion")
	defer end(&err)

	var (
		cc        *domain.ChallengeCompletion
		team      *domain.Team
		published []*domain.Update
	)
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		ch, err := r.Challenges.GetByIDForUpdate(ctx, challengeID)
		if err != nil {
			return err
		}
		if ch == nil {
			return errors.NewNotFoundError("challenge not found")
		}
		team, err = r.Teams.GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return errors.NewNotFoundError("team not found")
		}

		done, err := r.Completions.Exists(ctx, teamID, challengeID)
		if err != nil {
			return err
		}
		if done {
			return errors.NewConflictError(msgAlreadyCompleted, nil)
		}
		if ch.IsUnique {
			n, err := r.Completions.CountForChallenge(ctx, challengeID)
			if err != nil {
				return err
			}
			if n > 0 {
				return errors.NewConflictError(msgAlreadyClaimed, nil)
			}
		}

		cc = &domain.ChallengeCompletion{
			Audit: domain.Audit{
				ID:        uuid.NewString(),
				CreatedAt: s.now().UTC(),
				CreatedBy: domain.ActorID(ctx),
			},
			TeamID:        teamID,
			ChallengeID:   challengeID,
			PointsAwarded: ch.Points,
			Notes:         strings.TrimSpace(notes),
		}
		if err := r.Completions.Create(ctx, cc, ch.IsUnique); err != nil {
			return completionConflict(err)
		}

		award, err := s.teams.awardPointsTx(ctx, r, team, cc.PointsAwarded,
			fmt.Sprintf("completed %s", ch.Name))
		if err != nil {
			return err
		}
		completed, err := s.updates.completionUpdate(ctx, r, domain.UpdateChallengeCompleted, team, ch, cc,
			fmt.Sprintf("%s completed %s for %d points", team.Name, ch.Name, cc.PointsAwarded))
		if err != nil {
			return err
		}
		published = []*domain.Update{award, completed}
		return nil
	})
	if err != nil {
		return nil, storageError("failed to record completion", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"challenge_id": challengeID,
		"team_id":      teamID,
		"points":       cc.PointsAwarded,
	}).Info("Challenge completion recorded")

	s.updates.Publish(ctx, published...)
	s.teams.publishLeaderboard(ctx)
	return cc, nil
}

// completionConflict translates index violations on insert into the same
// conflicts the pre-checks report.
func completionConflict(err error) error {
	ce, ok := repository.AsConstraintError(err)
	if !ok {
		return err
	}
	switch {
	case ce.Kind == repository.ConstraintUnique && ce.Mentions("team"):
		return errors.NewConflictError(msgAlreadyCompleted, ce)
	case ce.Kind == repository.ConstraintUnique:
		return errors.NewConflictError(msgAlreadyClaimed, ce)
	case ce.Kind == repository.ConstraintForeignKey:
		return errors.NewNotFoundError("team or challenge no longer exists")
	}
	return err
}

// RemoveCompletion deletes a completion and takes back the points it awarded
func (s *ChallengeService) RemoveCompletion(ctx context.Context, challengeID, teamID string) (err error) {
	ctx, end := startSpan(ctx, "ChallengeService.RemoveCompletion")
	defer end(&err)

	var published []*domain.Update
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		ch, err := r.Challenges.GetByIDForUpdate(ctx, challengeID)
		if err != nil {
			return err
		}
		if ch == nil {
			return errors.NewNotFoundError("challenge not found")
		}
		cc, err := r.Completions.Get(ctx, teamID, challengeID)
		if err != nil {
			return err
		}
		if cc == nil {
			return errors.NewNotFoundError("completion not found")
		}
		team, err := r.Teams.GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return errors.NewNotFoundError("team not found")
		}

		if err := r.Completions.Delete(ctx, cc.ID); err != nil {
			if stderrors.Is(err, repository.ErrNotFound) {
				return errors.NewNotFoundError("completion not found")
			}
			return err
		}
		award, err := s.teams.awardPointsTx(ctx, r, team, -cc.PointsAwarded,
			fmt.Sprintf("completion of %s removed", ch.Name))
		if err != nil {
			return err
		}
		removed, err := s.updates.completionUpdate(ctx, r, domain.UpdateCompletionRemoved, team, ch, cc,
			fmt.Sprintf("Completion of %s by %s removed", ch.Name, team.Name))
		if err != nil {
			return err
		}
		published = []*domain.Update{award, removed}
		return nil
	})
	if err != nil {
		return storageError("failed to remove completion", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"challenge_id": challengeID,
		"team_id":      teamID,
	}).Info("Challenge completion removed")

	s.updates.Publish(ctx, published...)
	s.teams.publishLeaderboard(ctx)
	return nil
}

// GetChallenge returns a challenge by id
func (s *ChallengeService) GetChallenge(ctx context.Context, id string) (*domain.Challenge, error) {
	ch, err := s.store.Repos().Challenges.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to get challenge", err)
	}
	if ch == nil {
		return nil, errors.NewNotFoundError("challenge not found")
	}
	return ch, nil
}

// ListChallenges returns every challenge by name
func (s *ChallengeService) ListChallenges(ctx context.Context) ([]*domain.Challenge, error) {
	out, err := s.store.Repos().Challenges.List(ctx)
	return out, storageError("failed to list challenges", err)
}

// GetAvailableUniqueChallenges returns unique challenges still open to claim
func (s *ChallengeService) GetAvailableUniqueChallenges(ctx context.Context) ([]*domain.Challenge, error) {
	out, err := s.store.Repos().Challenges.ListAvailableUnique(ctx)
	return out, storageError("failed to list challenges", err)
}

// GetCompletionStats returns every challenge with its completion count
func (s *ChallengeService) GetCompletionStats(ctx context.Context) ([]*domain.ChallengeStat, error) {
	out, err := s.store.Repos().Challenges.Stats(ctx)
	return out, storageError("failed to load challenge stats", err)
}

// GetMostPopular returns the n most completed challenges
func (s *ChallengeService) GetMostPopular(ctx context.Context, n int) ([]*domain.ChallengeStat, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("count must be positive", nil)
	}
	out, err := s.store.Repos().Challenges.MostPopular(ctx, n)
	return out, storageError("failed to load challenge stats", err)
}

func (s *ChallengeService) GetCompletionsForChallenge(ctx context.Context, challengeID string) ([]*domain.ChallengeCompletion, error) {
	if _, err := s.GetChallenge(ctx, challengeID); err != nil {
		return nil, err
	}
	out, err := s.store.Repos().Completions.ListForChallenge(ctx, challengeID)
	return out, storageError("failed to list completions", err)
}

// GetCompletedChallengesForTeam lists the challenges a team completed, by name
func (s *ChallengeService) GetCompletedChallengesForTeam(ctx context.Context, teamID string) ([]*domain.Challenge, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	out, err := s.store.Repos().Challenges.ListCompletedByTeam(ctx, teamID)
	return out, storageError("failed to list completed challenges", err)
}
