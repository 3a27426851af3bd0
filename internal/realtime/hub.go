package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// Hub tracks connected clients and the groups they belong to. Every
// registered client is a member of the "all" group.
type Hub struct {
	logger *logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	clients map[*Client]map[string]struct{}
	groups  map[string]map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:  log.Named("hub"),
		now:     time.Now,
		clients: make(map[*Client]map[string]struct{}),
		groups:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds c to the hub, the "all" group, and the groups implied by
// its identity roles
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = make(map[string]struct{})
	h.joinLocked(c, domain.ChannelAll)
	for _, role := range c.actor.Roles {
		if group, ok := domain.RoleChannel(role); ok {
			h.joinLocked(c, group)
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"client_id": c.id,
		"actor_id":  c.actor.ID,
		"clients":   len(h.clients),
	}).Debug("Client registered")
}

// Unregister removes c from every group and closes its send queue. Safe to
// call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Join adds a registered client to group
func (h *Hub) Join(c *Client, group string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return fmt.Errorf("client %s is not registered", c.id)
	}
	h.joinLocked(c, group)
	return nil
}

// Leave removes c from group. The "all" group cannot be left.
func (h *Hub) Leave(c *Client, group string) {
	if group == domain.ChannelAll {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if memberships, ok := h.clients[c]; ok {
		delete(memberships, group)
	}
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Publish encodes payload once and queues it for every member of channel
func (h *Hub) Publish(channel, event string, payload any) error {
	env, err := NewEnvelope(channel, event, payload, h.now())
	if err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	h.deliver(channel, data)
	return nil
}

// deliver queues data for every member of channel. Enqueueing happens under
// the hub lock so frames for one channel keep their order per client. A
// client whose queue is full is dropped rather than blocking the publisher.
func (h *Hub) deliver(channel string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for c := range h.groups[channel] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		h.logger.WithFields(map[string]interface{}{
			"client_id": c.id,
			"channel":   channel,
		}).Warn("Client send queue full, dropping connection")
		h.removeLocked(c)
	}
}

// sendTo queues a direct reply for c if it is still registered
func (h *Hub) sendTo(c *Client, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		h.logger.WithField("client_id", c.id).Warn("Client send queue full, dropping connection")
		h.removeLocked(c)
		return false
	}
}

func (h *Hub) joinLocked(c *Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
	h.clients[c][group] = struct{}{}
}

func (h *Hub) removeLocked(c *Client) {
	memberships, ok := h.clients[c]
	if !ok {
		return
	}
	for group := range memberships {
		if members, ok := h.groups[group]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	delete(h.clients, c)
	close(c.send)

	h.logger.WithFields(map[string]interface{}{
		"client_id": c.id,
		"clients":   len(h.clients),
	}).Debug("Client unregistered")
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupSize returns the number of clients in group
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Groups returns the groups c belongs to
func (h *Hub) Groups(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	groups := make([]string, 0, len(h.clients[c]))
	for g := range h.clients[c] {
		groups = append(groups, g)
	}
	return groups
}
