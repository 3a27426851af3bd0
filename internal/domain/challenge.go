package domain

// Challenge is a task teams complete for points. A unique challenge can be
// completed by a single team only.
type Challenge struct {
	Audit
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=4000"`
	Points      int    `json:"points" validate:"gte=0"`
	IsUnique    bool   `json:"is_unique"`
}

// ChallengeCompletion records one team completing one challenge.
// PointsAwarded is fixed when recorded and never follows later changes to
// the challenge's point value.
type ChallengeCompletion struct {
	Audit
	TeamID        string `json:"team_id"`
	ChallengeID   string `json:"challenge_id"`
	PointsAwarded int    `json:"points_awarded"`
	Notes         string `json:"notes,omitempty"`
}

// ChallengeStat is a challenge with the number of teams that completed it
type ChallengeStat struct {
	Challenge   *Challenge `json:"challenge"`
	Completions int        `json:"completions"`
}
