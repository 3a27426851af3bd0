package domain

import "time"

// Audit carries the bookkeeping fields every stored entity has
type Audit struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
}

// Team represents a competing robotics team.
// TotalPoints is a cached sum of the team's completion awards and is only
// changed through point awards.
type Team struct {
	Audit
	Name        string  `json:"name" validate:"required,max=100"`
	TeamNo      string  `json:"team_no" validate:"required,max=20"`
	School      string  `json:"school" validate:"required,max=100"`
	Color       string  `json:"color" validate:"required,hexcolor,len=7"`
	LogoURL     *string `json:"logo_url,omitempty" validate:"omitempty,url,max=2048"`
	TotalPoints int     `json:"total_points"`
}

// LeaderboardEntry is a team with its competition rank. Teams with equal
// points share a rank.
type LeaderboardEntry struct {
	Rank int   `json:"rank"`
	Team *Team `json:"team"`
}

// PointsMismatch reports a team whose cached total disagrees with its completions
type PointsMismatch struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	TeamNo   string `json:"team_no"`
	Stored   int    `json:"stored"`
	Computed int    `json:"computed"`
}
