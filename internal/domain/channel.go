package domain

// Broadcast channels. Team and challenge channels are joined explicitly by
// clients; role channels are assigned when a client connects.
const (
	ChannelAll            = "all"
	ChannelAdministrators = "Administrators"
	ChannelJudges         = "Judges"
)

// Events pushed to realtime clients
const (
	EventLeaderboardUpdate       = "LeaderboardUpdate"
	EventAnnouncement            = "Announcement"
	EventUpdate                  = "Update"
	EventChallengeCompletion     = "ChallengeCompletion"
	EventTeamUpdate              = "TeamUpdate"
	EventChallengeUpdate         = "ChallengeUpdate"
	EventTeamSpecificUpdate      = "TeamSpecificUpdate"
	EventChallengeSpecificUpdate = "ChallengeSpecificUpdate"
	EventAdminUpdate             = "AdminUpdate"
	EventJudgeUpdate             = "JudgeUpdate"
)

// TeamChannel is the group for one team's followers
func TeamChannel(teamID string) string {
	return "team_" + teamID
}

// ChallengeChannel is the group for one challenge's followers
func ChallengeChannel(challengeID string) string {
	return "challenge_" + challengeID
}

// RoleChannel maps an identity role to its broadcast group
func RoleChannel(role string) (string, bool) {
	switch role {
	case RoleAdministrator:
		return ChannelAdministrators, true
	case RoleJudge:
		return ChannelJudges, true
	}
	return "", false
}
