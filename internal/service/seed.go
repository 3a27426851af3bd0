package service

import (
	"context"
	"fmt"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
)

// SeedResult counts the rows created by Seed
type SeedResult struct {
	Challenges    int `json:"challenges"`
	Announcements int `json:"announcements"`
}

var defaultChallenges = []domain.Challenge{
	{Name: "First To Register", Description: "Be the first team to register for the scrimmage.", Points: 10, IsUnique: true},
	{Name: "First To The Field", Description: "Be the first team to have a driving robot on the field.", Points: 10},
	{Name: "First To The Challenge", Description: "Be the first team to attempt one of the Basic Challenges.", Points: 10},
	{Name: "First To Complete Challenge", Description: "Be the first team to complete any of the Basic Challenges.", Points: 10},
	{Name: "Basic Challenge - Task 1", Description: "Any team that completes the Basic Challenge - Task 1.", Points: 30},
	{Name: "Autonomous Line Following", Description: "Navigate the robot along the yellow line course on the practice field.", Points: 30},
	{Name: "Driver Controlled Race", Description: "Win a driver controlled race following the yellow direction line.", Points: 20},
	{Name: "Driver Controlled Race Bonus Points", Description: "Win a driver controlled race without knocking down any cone.", Points: 5},
	{Name: "Object Sorting", Description: "Sort colored objects into designated zones using computer vision.", Points: 200},
	{Name: "First to Cross", Description: "Be the first team to successfully cross the advanced obstacle course.", Points: 300, IsUnique: true},
}

const welcomeBody = `# Welcome to %s!

Get ready for an exciting day of robotics challenges and competition. Good luck to all participating teams!

## Important Information
- Please check in at the registration desk
- Safety briefing starts at 9:00 AM
- Practice rounds begin at 10:00 AM`

// Seed loads the default challenge catalogue and a welcome announcement.
// Each set is only created when its table is empty, so Seed can be rerun.
func Seed(ctx context.Context, challenges *ChallengeService, announcements *AnnouncementService, competition string) (*SeedResult, error) {
	result := &SeedResult{}

	existing, err := challenges.ListChallenges(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		for i := range defaultChallenges {
			ch := defaultChallenges[i]
			if _, err := challenges.CreateChallenge(ctx, &ch); err != nil {
				return result, fmt.Errorf("seed challenge %q: %w", ch.Name, err)
			}
			result.Challenges++
		}
	}

	all, err := announcements.GetAll(ctx)
	if err != nil {
		return result, err
	}
	if len(all) == 0 {
		_, err := announcements.CreateAnnouncement(ctx, &domain.Announcement{
			Body:      fmt.Sprintf(welcomeBody, competition),
			Priority:  domain.PriorityPrimary,
			IsVisible: true,
		})
		if err != nil {
			return result, fmt.Errorf("seed welcome announcement: %w", err)
		}
		result.Announcements++
	}

	return result, nil
}
