package service

import (
	"context"
)

// Notifier pushes an event to a realtime channel. Implementations must not
// block on slow subscribers.
type Notifier interface {
	// Notify delivers payload as event to every subscriber of channel
	Notify(ctx context.Context, channel, event string, payload any) error
}

// Renderer converts announcement markdown to HTML
type Renderer interface {
	Render(src string) (string, error)
}

// Services aggregates the domain services
type Services struct {
	Teams         *TeamService
	Challenges    *ChallengeService
	Updates       *UpdateService
	Announcements *AnnouncementService
	Sweeper       *BroadcastSweeper
}
