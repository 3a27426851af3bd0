package service

import (
	"encoding/json"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

// UpdateNotice is the payload of the scoped events derived from an update
type UpdateNotice struct {
	UpdateID       string            `json:"update_id"`
	Type           domain.UpdateType `json:"type"`
	Description    string            `json:"description"`
	TeamID         string            `json:"team_id,omitempty"`
	ChallengeID    string            `json:"challenge_id,omitempty"`
	AnnouncementID string            `json:"announcement_id,omitempty"`
	CompletionID   string            `json:"completion_id,omitempty"`
	Metadata       json.RawMessage   `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type notification struct {
	channel string
	event   string
	payload any
}

// notificationsFor lists the pushes an update produces. The generic Update
// event on the all channel always comes first.
func notificationsFor(u *domain.Update) ([]notification, error) {
	md, err := u.DecodeMetadata()
	if err != nil {
		return nil, err
	}

	notice := &UpdateNotice{
		UpdateID:    u.ID,
		Type:        u.Type,
		Description: u.Description,
		TeamID:      u.TeamRef(md),
		ChallengeID: u.ChallengeRef(md),
		Metadata:    u.Metadata,
		CreatedAt:   u.CreatedAt,
	}
	if u.AnnouncementID != nil {
		notice.AnnouncementID = *u.AnnouncementID
	} else {
		notice.AnnouncementID = md.AnnouncementID
	}
	if u.ChallengeCompletionID != nil {
		notice.CompletionID = *u.ChallengeCompletionID
	} else {
		notice.CompletionID = md.CompletionID
	}

	out := []notification{{domain.ChannelAll, domain.EventUpdate, u}}
	add := func(channel, event string) {
		out = append(out, notification{channel, event, notice})
	}
	team := func(event string) {
		if notice.TeamID != "" {
			add(domain.TeamChannel(notice.TeamID), event)
		}
	}
	challenge := func(event string) {
		if notice.ChallengeID != "" {
			add(domain.ChallengeChannel(notice.ChallengeID), event)
		}
	}
	staff := func() {
		add(domain.ChannelAdministrators, domain.EventAdminUpdate)
		add(domain.ChannelJudges, domain.EventJudgeUpdate)
	}

	switch u.Type {
	case domain.UpdateTeamCreated:
		add(domain.ChannelAll, domain.EventTeamUpdate)
		staff()
	case domain.UpdateTeamUpdated:
		add(domain.ChannelAll, domain.EventTeamUpdate)
		team(domain.EventTeamSpecificUpdate)
	case domain.UpdateTeamDeleted:
		add(domain.ChannelAll, domain.EventTeamUpdate)
	case domain.UpdatePointsAwarded:
		team(domain.EventTeamSpecificUpdate)
	case domain.UpdateChallengeCreated:
		add(domain.ChannelAll, domain.EventChallengeUpdate)
		staff()
	case domain.UpdateChallengeUpdated:
		add(domain.ChannelAll, domain.EventChallengeUpdate)
		challenge(domain.EventChallengeSpecificUpdate)
	case domain.UpdateChallengeDeleted:
		add(domain.ChannelAll, domain.EventChallengeUpdate)
	case domain.UpdateChallengeCompleted:
		add(domain.ChannelAll, domain.EventChallengeCompletion)
		team(domain.EventTeamSpecificUpdate)
		challenge(domain.EventChallengeSpecificUpdate)
	case domain.UpdateCompletionRemoved:
		team(domain.EventTeamSpecificUpdate)
		challenge(domain.EventChallengeSpecificUpdate)
	case domain.UpdateAnnouncementCreated, domain.UpdateAnnouncementUpdated:
		// hidden announcements only reach administrators
		if md.IsVisible == nil || *md.IsVisible {
			add(domain.ChannelAll, domain.EventAnnouncement)
		}
		add(domain.ChannelAdministrators, domain.EventAdminUpdate)
	case domain.UpdateAnnouncementDeleted:
		add(domain.ChannelAll, domain.EventAnnouncement)
	}
	return out, nil
}
