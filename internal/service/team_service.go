package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/internal/repository"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/errors"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// TeamService is the team registry. It owns the rule that a team's total
// equals the sum of its completion awards.
type TeamService struct {
	store   *repository.Store
	updates *UpdateService
	cache   *LeaderboardCache
	logger  *logger.Logger
	now     func() time.Time
}

// NewTeamService creates the team registry. cache may be nil.
func NewTeamService(store *repository.Store, updates *UpdateService, cache *LeaderboardCache, log *logger.Logger) *TeamService {
	return &TeamService{
		store:   store,
		updates: updates,
		cache:   cache,
		logger:  log.Named("teams"),
		now:     time.Now,
	}
}

func normalizeTeam(team *domain.Team) {
	team.Name = strings.TrimSpace(team.Name)
	team.TeamNo = strings.TrimSpace(team.TeamNo)
	team.School = strings.TrimSpace(team.School)
	team.Color = strings.TrimSpace(team.Color)
	if team.LogoURL != nil {
		team.LogoURL = domain.StringPtr(strings.TrimSpace(*team.LogoURL))
	}
}

// CreateTeam registers a new team with zero points
func (s *TeamService) CreateTeam(ctx context.Context, in *domain.Team) (_ *domain.Team, err error) {
	ctx, end := startSpan(ctx, "TeamService.CreateTeam")
	defer end(&err)

	team := *in
	normalizeTeam(&team)
	if err := domain.Validate(&team); err != nil {
		return nil, err
	}

	team.ID = uuid.NewString()
	team.TotalPoints = 0
	team.CreatedAt = s.now().UTC()
	team.CreatedBy = domain.ActorID(ctx)
	team.UpdatedAt = nil
	team.UpdatedBy = ""

	var u *domain.Update
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		existing, err := r.Teams.GetByTeamNo(ctx, team.TeamNo)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.NewConflictError(fmt.Sprintf("team number %s is already in use", team.TeamNo), nil)
		}
		if err := r.Teams.Create(ctx, &team); err != nil {
			return conflictOr(fmt.Sprintf("team number %s is already in use", team.TeamNo), err)
		}
		u, err = s.updates.teamUpdate(ctx, r, domain.UpdateTeamCreated, &team,
			fmt.Sprintf("Team %s (%s) registered", team.Name, team.TeamNo))
		return err
	})
	if err != nil {
		return nil, storageError("failed to create team", err)
	}

	s.logger.WithField("team_id", team.ID).Info("Team created")
	s.updates.Publish(ctx, u)
	s.publishLeaderboard(ctx)
	return &team, nil
}

// UpdateTeam replaces a team's name, number, school, color and logo.
// The point total is never changed here.
func (s *TeamService) UpdateTeam(ctx context.Context, in *domain.Team) (_ *domain.Team, err error) {
	ctx, end := startSpan(ctx, "TeamService.UpdateTeam")
	defer end(&err)

	changes := *in
	normalizeTeam(&changes)
	if err := domain.Validate(&changes); err != nil {
		return nil, err
	}

	var (
		team *domain.Team
		u    *domain.Update
	)
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		current, err := r.Teams.GetByID(ctx, changes.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.NewNotFoundError("team not found")
		}

		if changes.TeamNo != current.TeamNo {
			other, err := r.Teams.GetByTeamNo(ctx, changes.TeamNo)
			if err != nil {
				return err
			}
			if other != nil && other.ID != current.ID {
				return errors.NewConflictError(fmt.Sprintf("team number %s is already in use", changes.TeamNo), nil)
			}
		}

		now := s.now().UTC()
		current.Name = changes.Name
		current.TeamNo = changes.TeamNo
		current.School = changes.School
		current.Color = changes.Color
		current.LogoURL = changes.LogoURL
		current.UpdatedAt = &now
		current.UpdatedBy = domain.ActorID(ctx)

		if err := r.Teams.Update(ctx, current); err != nil {
			return conflictOr(fmt.Sprintf("team number %s is already in use", changes.TeamNo), err)
		}
		team = current
		u, err = s.updates.teamUpdate(ctx, r, domain.UpdateTeamUpdated, team,
			fmt.Sprintf("Team %s (%s) updated", team.Name, team.TeamNo))
		return err
	})
	if err != nil {
		return nil, storageError("failed to update team", err)
	}

	s.logger.WithField("team_id", team.ID).Info("Team updated")
	s.updates.Publish(ctx, u)
	s.publishLeaderboard(ctx)
	return team, nil
}

// DeleteTeam removes a team that has no recorded completions
func (s *TeamService) DeleteTeam(ctx context.Context, id string) (err error) {
	ctx, end := startSpan(ctx, "TeamService.DeleteTeam")
	defer end(&err)

	var u *domain.Update
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		team, err := r.Teams.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if team == nil {
			return errors.NewNotFoundError("team not found")
		}

		n, err := r.Completions.CountForTeam(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.NewConflictError(
				fmt.Sprintf("team %s has %d recorded completions; remove them first", team.TeamNo, n), nil)
		}

		if err := r.Teams.Delete(ctx, id); err != nil {
			return conflictOr("team is still referenced by completions", err)
		}
		u, err = s.updates.teamUpdate(ctx, r, domain.UpdateTeamDeleted, team,
			fmt.Sprintf("Team %s (%s) removed", team.Name, team.TeamNo))
		return err
	})
	if err != nil {
		return storageError("failed to delete team", err)
	}

	s.logger.WithField("team_id", id).Info("Team deleted")
	s.updates.Publish(ctx, u)
	s.publishLeaderboard(ctx)
	return nil
}

// GetTeam returns a team by id
func (s *TeamService) GetTeam(ctx context.Context, id string) (*domain.Team, error) {
	team, err := s.store.Repos().Teams.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("failed to get team", err)
	}
	if team == nil {
		return nil, errors.NewNotFoundError("team not found")
	}
	return team, nil
}

func (s *TeamService) GetTeamByNumber(ctx context.Context, teamNo string) (*domain.Team, error) {
	team, err := s.store.Repos().Teams.GetByTeamNo(ctx, teamNo)
	if err != nil {
		return nil, storageError("failed to get team", err)
	}
	if team == nil {
		return nil, errors.NewNotFoundError("team not found")
	}
	return team, nil
}

// ListTeams returns every team ordered by team number
func (s *TeamService) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	teams, err := s.store.Repos().Teams.List(ctx)
	return teams, storageError("failed to list teams", err)
}

// GetLeaderboard ranks every team by points, highest first
func (s *TeamService) GetLeaderboard(ctx context.Context) ([]*domain.LeaderboardEntry, error) {
	return s.cache.Get(ctx, s.loadLeaderboard)
}

func (s *TeamService) loadLeaderboard(ctx context.Context) ([]*domain.LeaderboardEntry, error) {
	teams, err := s.store.Repos().Teams.List(ctx)
	if err != nil {
		return nil, storageError("failed to load leaderboard", err)
	}
	return rankTeams(teams), nil
}

// GetTopTeams returns the first n leaderboard entries
func (s *TeamService) GetTopTeams(ctx context.Context, n int) ([]*domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("count must be positive", nil)
	}
	board, err := s.GetLeaderboard(ctx)
	if err != nil {
		return nil, err
	}
	if len(board) > n {
		board = board[:n]
	}
	return board, nil
}

// rankTeams orders teams by points descending then name ascending. Teams
// with equal points share a rank and the next rank is skipped (1, 1, 3).
func rankTeams(teams []*domain.Team) []*domain.LeaderboardEntry {
	sorted := make([]*domain.Team, len(teams))
	copy(sorted, teams)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.TeamNo < b.TeamNo
	})

	entries := make([]*domain.LeaderboardEntry, len(sorted))
	for i, t := range sorted {
		rank := i + 1
		if i > 0 && t.TotalPoints == sorted[i-1].TotalPoints {
			rank = entries[i-1].Rank
		}
		entries[i] = &domain.LeaderboardEntry{Rank: rank, Team: t}
	}
	return entries
}

// AwardPoints adds delta (which may be negative) to a team's total
func (s *TeamService) AwardPoints(ctx context.Context, teamID string, delta int, reason string) (_ *domain.Team, err error) {
	ctx, end := startSpan(ctx, "TeamService.AwardPoints")
	defer end(&err)

	if delta == 0 {
		return nil, errors.NewValidationError("points must be non-zero", nil)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.NewValidationError("reason is required", nil)
	}

	var (
		team *domain.Team
		u    *domain.Update
	)
	err = s.store.WithTx(ctx, func(r *repository.Repositories) error {
		var err error
		team, err = r.Teams.GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return errors.NewNotFoundError("team not found")
		}
		u, err = s.awardPointsTx(ctx, r, team, delta, reason)
		return err
	})
	if err != nil {
		return nil, storageError("failed to award points", err)
	}

	s.updates.Publish(ctx, u)
	s.publishLeaderboard(ctx)
	s.notifyTeam(ctx, team)
	return team, nil
}

// awardPointsTx applies delta inside the caller's transaction and records a
// PointsAwarded update. team.TotalPoints is refreshed with the stored total.
func (s *TeamService) awardPointsTx(ctx context.Context, r *repository.Repositories, team *domain.Team, delta int, reason string) (*domain.Update, error) {
	now := s.now().UTC()
	actor := domain.ActorID(ctx)

	total, err := r.Teams.AddPoints(ctx, team.ID, delta, now, actor)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewNotFoundError("team not found")
		}
		return nil, err
	}
	team.TotalPoints = total
	team.UpdatedAt = &now
	team.UpdatedBy = actor

	md := teamSnapshot(team)
	md.Delta = domain.IntPtr(delta)
	md.Reason = reason

	verb := "awarded"
	amount := delta
	if delta < 0 {
		verb = "deducted from"
		amount = -delta
	}
	return s.updates.record(ctx, r, domain.UpdatePointsAwarded,
		fmt.Sprintf("%d points %s %s: %s", amount, verb, team.Name, reason),
		updateRefs{teamID: team.ID}, md)
}

// publishLeaderboard retires the cached standings and pushes the committed
// ones read from the store. Failures are logged.
func (s *TeamService) publishLeaderboard(ctx context.Context) {
	s.cache.Invalidate(ctx)
	board, err := s.loadLeaderboard(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load leaderboard for broadcast")
		return
	}
	_ = s.updates.BroadcastLeaderboard(ctx, board)
}

// notifyTeam sends the team's new state to its followers
func (s *TeamService) notifyTeam(ctx context.Context, team *domain.Team) {
	err := s.updates.notifier.Notify(ctx, domain.TeamChannel(team.ID), domain.EventTeamSpecificUpdate, team)
	if err != nil {
		s.logger.WithError(err).WithField("team_id", team.ID).Warn("Failed to notify team group")
	}
}

// HasCompletedChallenge reports whether the team already completed the challenge
func (s *TeamService) HasCompletedChallenge(ctx context.Context, teamID, challengeID string) (bool, error) {
	ok, err := s.store.Repos().Completions.Exists(ctx, teamID, challengeID)
	return ok, storageError("failed to check completion", err)
}

// GetTeamCompletions lists a team's completions, newest first
func (s *TeamService) GetTeamCompletions(ctx context.Context, teamID string) ([]*domain.ChallengeCompletion, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	out, err := s.store.Repos().Completions.ListForTeam(ctx, teamID)
	return out, storageError("failed to list completions", err)
}

// ReconcilePoints compares every cached total with the sum of the team's
// completions. With repair set, each mismatch is corrected and recorded as a
// PointsAwarded update.
func (s *TeamService) ReconcilePoints(ctx context.Context, repair bool) (_ []*domain.PointsMismatch, err error) {
	ctx, end := startSpan(ctx, "TeamService.ReconcilePoints")
	defer end(&err)

	mismatches, err := s.store.Repos().Teams.ListPointsMismatches(ctx)
	if err != nil {
		return nil, storageError("failed to audit points", err)
	}
	if len(mismatches) == 0 || !repair {
		return mismatches, nil
	}

	published, err := s.repairPoints(ctx, mismatches)
	if err != nil {
		return mismatches, err
	}

	s.updates.Publish(ctx, published...)
	s.publishLeaderboard(ctx)
	return mismatches, nil
}

// repairPoints corrects each mismatch in its own transaction and returns the
// PointsAwarded updates written. Teams deleted since the audit are skipped.
func (s *TeamService) repairPoints(ctx context.Context, mismatches []*domain.PointsMismatch) ([]*domain.Update, error) {
	var published []*domain.Update
	for _, m := range mismatches {
		var u *domain.Update
		err := s.store.WithTx(ctx, func(r *repository.Repositories) error {
			team, err := r.Teams.GetByID(ctx, m.TeamID)
			if err != nil || team == nil {
				return err
			}
			// the completion sum may have moved since the audit; AddPoints
			// keeps concurrent awards intact
			u, err = s.awardPointsTx(ctx, r, team, m.Computed-m.Stored, "points reconciled with recorded completions")
			return err
		})
		if err != nil {
			return published, storageError("failed to repair points", err)
		}
		if u == nil {
			s.logger.WithField("team_id", m.TeamID).Info("Team deleted before repair, skipping")
			continue
		}
		s.logger.WithFields(map[string]interface{}{
			"team_id":  m.TeamID,
			"stored":   m.Stored,
			"computed": m.Computed,
		}).Warn("Repaired team points")
		published = append(published, u)
	}
	return published, nil
}
