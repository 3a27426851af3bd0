package repository

import (
	"context"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

// Getters return (nil, nil) when the row does not exist. Update and Delete
// return ErrNotFound when nothing matched.

// TeamRepository defines the interface for team data operations
type TeamRepository interface {
	// Create inserts a new team
	Create(ctx context.Context, team *domain.Team) error

	// GetByID retrieves a team by ID
	GetByID(ctx context.Context, id string) (*domain.Team, error)

	// GetByTeamNo retrieves a team by its team number
	GetByTeamNo(ctx context.Context, teamNo string) (*domain.Team, error)

	// List returns all teams ordered by team number
	List(ctx context.Context) ([]*domain.Team, error)

	// Update replaces the mutable fields of a team. TotalPoints is not written.
	Update(ctx context.Context, team *domain.Team) error

	// Delete removes a team
	Delete(ctx context.Context, id string) error

	// AddPoints atomically adds delta to the team's total and returns the new total
	AddPoints(ctx context.Context, id string, delta int, at time.Time, by string) (int, error)

	// ListPointsMismatches returns teams whose total differs from their completion sum
	ListPointsMismatches(ctx context.Context) ([]*domain.PointsMismatch, error)
}

// ChallengeRepository defines the interface for challenge data operations
type ChallengeRepository interface {
	// Create inserts a new challenge
	Create(ctx context.Context, challenge *domain.Challenge) error

	// GetByID retrieves a challenge by ID
	GetByID(ctx context.Context, id string) (*domain.Challenge, error)

	// GetByIDForUpdate retrieves a challenge and locks its row for the rest of the transaction
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Challenge, error)

	// GetByName retrieves a challenge by its exact name
	GetByName(ctx context.Context, name string) (*domain.Challenge, error)

	// List returns all challenges ordered by name
	List(ctx context.Context) ([]*domain.Challenge, error)

	// ListAvailableUnique returns unique challenges nobody has completed yet
	ListAvailableUnique(ctx context.Context) ([]*domain.Challenge, error)

	// ListCompletedByTeam returns the challenges a team has completed, by name
	ListCompletedByTeam(ctx context.Context, teamID string) ([]*domain.Challenge, error)

	// Stats returns every challenge with its completion count, by name
	Stats(ctx context.Context) ([]*domain.ChallengeStat, error)

	// MostPopular returns the limit most completed challenges
	MostPopular(ctx context.Context, limit int) ([]*domain.ChallengeStat, error)

	// Update replaces the mutable fields of a challenge
	Update(ctx context.Context, challenge *domain.Challenge) error

	// Delete removes a challenge
	Delete(ctx context.Context, id string) error
}

// CompletionRepository defines the interface for challenge completion records
type CompletionRepository interface {
	// Create inserts a completion. challengeUnique is the owning challenge's flag.
	Create(ctx context.Context, completion *domain.ChallengeCompletion, challengeUnique bool) error

	// Get retrieves the completion for a team and challenge
	Get(ctx context.Context, teamID, challengeID string) (*domain.ChallengeCompletion, error)

	// Exists reports whether the team has completed the challenge
	Exists(ctx context.Context, teamID, challengeID string) (bool, error)

	// CountForChallenge returns how many teams completed the challenge
	CountForChallenge(ctx context.Context, challengeID string) (int, error)

	// CountForTeam returns how many completions reference the team
	CountForTeam(ctx context.Context, teamID string) (int, error)

	// ListForChallenge returns completions of a challenge, oldest first
	ListForChallenge(ctx context.Context, challengeID string) ([]*domain.ChallengeCompletion, error)

	// ListForTeam returns a team's completions, newest first
	ListForTeam(ctx context.Context, teamID string) ([]*domain.ChallengeCompletion, error)

	// SetChallengeUnique copies a challenge's uniqueness flag onto its completions
	SetChallengeUnique(ctx context.Context, challengeID string, unique bool) error

	// Delete removes a completion
	Delete(ctx context.Context, id string) error
}

// AnnouncementRepository defines the interface for announcement data operations
type AnnouncementRepository interface {
	// Create inserts a new announcement
	Create(ctx context.Context, a *domain.Announcement) error

	// GetByID retrieves an announcement by ID
	GetByID(ctx context.Context, id string) (*domain.Announcement, error)

	// List returns all announcements, newest first
	List(ctx context.Context) ([]*domain.Announcement, error)

	// ListVisible returns visible announcements, newest first
	ListVisible(ctx context.Context) ([]*domain.Announcement, error)

	// ListVisibleByPriority returns visible announcements of one priority, newest first
	ListVisibleByPriority(ctx context.Context, p domain.Priority) ([]*domain.Announcement, error)

	// ListRecentVisible returns the limit newest visible announcements
	ListRecentVisible(ctx context.Context, limit int) ([]*domain.Announcement, error)

	// CountVisible returns the number of visible announcements
	CountVisible(ctx context.Context) (int, error)

	// Update replaces body, rendered body, priority and visibility
	Update(ctx context.Context, a *domain.Announcement) error

	// Delete removes an announcement
	Delete(ctx context.Context, id string) error
}

// UpdateRepository defines the interface for the update log
type UpdateRepository interface {
	// Create appends an update
	Create(ctx context.Context, u *domain.Update) error

	// GetByID retrieves an update by ID
	GetByID(ctx context.Context, id string) (*domain.Update, error)

	// List returns all updates, newest first
	List(ctx context.Context) ([]*domain.Update, error)

	// ListByType returns updates of one type, newest first
	ListByType(ctx context.Context, t domain.UpdateType) ([]*domain.Update, error)

	// ListByEntity returns updates referencing id through any entity column, newest first
	ListByEntity(ctx context.Context, id string) ([]*domain.Update, error)

	// ListRecent returns the limit newest updates
	ListRecent(ctx context.Context, limit int) ([]*domain.Update, error)

	// ListUnbroadcast returns undelivered updates, oldest first
	ListUnbroadcast(ctx context.Context) ([]*domain.Update, error)

	// MarkBroadcast flags an update as delivered. Repeating it is harmless.
	MarkBroadcast(ctx context.Context, id string, at time.Time) error

	// CountUnbroadcast returns the number of undelivered updates
	CountUnbroadcast(ctx context.Context) (int, error)

	// CountUnbroadcastBefore returns undelivered updates created before cutoff
	CountUnbroadcastBefore(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteBefore removes updates created before cutoff and returns how many
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Teams         TeamRepository
	Challenges    ChallengeRepository
	Completions   CompletionRepository
	Announcements AnnouncementRepository
	Updates       UpdateRepository
}
