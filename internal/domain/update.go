package domain

import (
	"encoding/json"
	"fmt"
)

// UpdateType identifies the domain event an Update records
type UpdateType string

const (
	UpdateTeamCreated         UpdateType = "TeamCreated"
	UpdateTeamUpdated         UpdateType = "TeamUpdated"
	UpdateTeamDeleted         UpdateType = "TeamDeleted"
	UpdateChallengeCreated    UpdateType = "ChallengeCreated"
	UpdateChallengeUpdated    UpdateType = "ChallengeUpdated"
	UpdateChallengeDeleted    UpdateType = "ChallengeDeleted"
	UpdateChallengeCompleted  UpdateType = "ChallengeCompleted"
	UpdateCompletionRemoved   UpdateType = "CompletionRemoved"
	UpdateAnnouncementCreated UpdateType = "AnnouncementCreated"
	UpdateAnnouncementUpdated UpdateType = "AnnouncementUpdated"
	UpdateAnnouncementDeleted UpdateType = "AnnouncementDeleted"
	UpdatePointsAwarded       UpdateType = "PointsAwarded"
)

var updateTypes = map[UpdateType]struct{}{
	UpdateTeamCreated:         {},
	UpdateTeamUpdated:         {},
	UpdateTeamDeleted:         {},
	UpdateChallengeCreated:    {},
	UpdateChallengeUpdated:    {},
	UpdateChallengeDeleted:    {},
	UpdateChallengeCompleted:  {},
	UpdateCompletionRemoved:   {},
	UpdateAnnouncementCreated: {},
	UpdateAnnouncementUpdated: {},
	UpdateAnnouncementDeleted: {},
	UpdatePointsAwarded:       {},
}

// ParseUpdateType validates a stored or user supplied type name
func ParseUpdateType(s string) (UpdateType, error) {
	t := UpdateType(s)
	if _, ok := updateTypes[t]; !ok {
		return "", fmt.Errorf("unknown update type %q", s)
	}
	return t, nil
}

// Update is one entry in the append-only event log. Only IsBroadcast changes
// after creation. Entity references are plain ids and are cleared when the
// referenced entity is deleted; Metadata keeps a snapshot of the fields.
type Update struct {
	Audit
	Type                  UpdateType      `json:"type"`
	Description           string          `json:"description"`
	TeamID                *string         `json:"team_id,omitempty"`
	ChallengeID           *string         `json:"challenge_id,omitempty"`
	AnnouncementID        *string         `json:"announcement_id,omitempty"`
	ChallengeCompletionID *string         `json:"challenge_completion_id,omitempty"`
	Metadata              json.RawMessage `json:"metadata,omitempty"`
	IsBroadcast           bool            `json:"is_broadcast"`
}

// UpdateMetadata is the snapshot written by the registries. Fields not
// relevant to an event are left empty.
type UpdateMetadata struct {
	TeamID      string `json:"team_id,omitempty"`
	TeamName    string `json:"team_name,omitempty"`
	TeamNo      string `json:"team_no,omitempty"`
	School      string `json:"school,omitempty"`
	TotalPoints *int   `json:"total_points,omitempty"`

	ChallengeID     string `json:"challenge_id,omitempty"`
	ChallengeName   string `json:"challenge_name,omitempty"`
	ChallengePoints *int   `json:"challenge_points,omitempty"`
	IsUnique        *bool  `json:"is_unique,omitempty"`

	CompletionID  string `json:"completion_id,omitempty"`
	PointsAwarded *int   `json:"points_awarded,omitempty"`

	AnnouncementID string   `json:"announcement_id,omitempty"`
	Priority       Priority `json:"priority,omitempty"`
	IsVisible      *bool    `json:"is_visible,omitempty"`
	RenderedBody   string   `json:"rendered_body,omitempty"`

	Delta  *int   `json:"delta,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// DecodeMetadata parses Metadata into the registry snapshot shape.
// Unknown or empty metadata yields a zero value.
func (u *Update) DecodeMetadata() (UpdateMetadata, error) {
	var md UpdateMetadata
	if len(u.Metadata) == 0 || string(u.Metadata) == "null" {
		return md, nil
	}
	if err := json.Unmarshal(u.Metadata, &md); err != nil {
		return md, fmt.Errorf("failed to decode update metadata: %w", err)
	}
	return md, nil
}

// TeamRef returns the team the update concerns, falling back to the
// snapshot when the reference was cleared by a delete.
func (u *Update) TeamRef(md UpdateMetadata) string {
	if u.TeamID != nil {
		return *u.TeamID
	}
	return md.TeamID
}

// ChallengeRef is TeamRef for challenges
func (u *Update) ChallengeRef(md UpdateMetadata) string {
	if u.ChallengeID != nil {
		return *u.ChallengeID
	}
	return md.ChallengeID
}

// IntPtr and BoolPtr help build metadata snapshots
func IntPtr(v int) *int    { return &v }
func BoolPtr(v bool) *bool { return &v }

// StringPtr returns nil for empty strings
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
