package domain

import (
	"fmt"
	"strings"
)

// Priority controls how an announcement is styled by clients
type Priority string

const (
	PriorityInfo      Priority = "info"
	PriorityWarning   Priority = "warning"
	PriorityDanger    Priority = "danger"
	PriorityPrimary   Priority = "primary"
	PrioritySecondary Priority = "secondary"
)

var priorities = []Priority{PriorityInfo, PriorityWarning, PriorityDanger, PriorityPrimary, PrioritySecondary}

// ParsePriority accepts any casing of a known priority
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range priorities {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Announcement is a markdown notice shown to competitors and spectators.
// RenderedBody caches the HTML of Body.
type Announcement struct {
	Audit
	Body         string   `json:"body" validate:"required,max=10000"`
	RenderedBody string   `json:"rendered_body"`
	Priority     Priority `json:"priority" validate:"required,oneof=info warning danger primary secondary"`
	IsVisible    bool     `json:"is_visible"`
}

// Excerpt returns at most n runes of the body
func (a *Announcement) Excerpt(n int) string {
	r := []rune(a.Body)
	if len(r) <= n {
		return a.Body
	}
	return string(r[:n]) + "..."
}
