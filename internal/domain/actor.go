package domain

import "context"

// Roles recognised by the scrimmage tools
const (
	RoleAdministrator = "Administrator"
	RoleJudge         = "Judge"
	RoleScorekeeper   = "Scorekeeper"
	RoleViewer        = "Viewer"
)

// SystemActor is recorded when no identity is attached to a request
const SystemActor = "system"

// Actor is the identity performing an operation. Identity resolution happens
// upstream; the core only records it.
type Actor struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the actor holds any of roles
func (a Actor) HasRole(roles ...string) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type actorKey struct{}

// WithActor attaches the acting identity to ctx
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the identity on ctx, if any
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ActorID is the audit value for ctx
func ActorID(ctx context.Context) string {
	if a, ok := ActorFrom(ctx); ok && a.ID != "" {
		return a.ID
	}
	return SystemActor
}
