package realtime

import (
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// WSConn is the part of a websocket connection the client pumps use
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (int, []byte, error)
	Close() error
	RemoteAddr() net.Addr
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
}

// Inbound actions
const (
	ActionJoinTeam       = "joinTeam"
	ActionLeaveTeam      = "leaveTeam"
	ActionJoinChallenge  = "joinChallenge"
	ActionLeaveChallenge = "leaveChallenge"
	ActionPing           = "ping"
)

// Events only sent as direct replies
const (
	EventJoined = "Joined"
	EventLeft   = "Left"
	EventPong   = "Pong"
	EventError  = "Error"
)

// ClientConfig holds the websocket limits
type ClientConfig struct {
	MaxMessageSize int64
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteWait      time.Duration
	SendBuffer     int
}

// DefaultClientConfig returns the limits used when none are configured
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxMessageSize: 32 * 1024,
		PingInterval:   15 * time.Second,
		PongTimeout:    30 * time.Second,
		WriteWait:      10 * time.Second,
		SendBuffer:     256,
	}
}

// Message is an inbound client frame
type Message struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// Client is one websocket connection. It only manages its own group
// memberships; it never reaches into the registries.
type Client struct {
	id     string
	hub    *Hub
	conn   WSConn
	send   chan []byte
	actor  domain.Actor
	cfg    ClientConfig
	logger *logger.Logger
}

// NewClient wraps conn for actor
func NewClient(hub *Hub, conn WSConn, actor domain.Actor, cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultClientConfig().SendBuffer
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		actor:  actor,
		cfg:    cfg,
		logger: log.Named("ws").WithField("client_id", id),
	}
}

// ID returns the connection id
func (c *Client) ID() string { return c.id }

// Start registers the client and runs its pumps in the background
func (c *Client) Start() {
	c.hub.Register(c)
	c.logger.WithField("remote_addr", c.conn.RemoteAddr().String()).Info("Websocket client connected")

	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
		c.logger.Info("Websocket client disconnected")
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warn("Websocket read failed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(EventError, "", map[string]string{"message": "invalid message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.WithError(err).Debug("Websocket write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Action {
	case ActionPing:
		c.reply(EventPong, "", nil)
	case ActionJoinTeam, ActionJoinChallenge:
		group, ok := groupFor(msg)
		if !ok {
			c.reply(EventError, "", map[string]string{"message": "id is required"})
			return
		}
		if err := c.hub.Join(c, group); err != nil {
			return
		}
		c.reply(EventJoined, group, nil)
	case ActionLeaveTeam, ActionLeaveChallenge:
		group, ok := groupFor(msg)
		if !ok {
			c.reply(EventError, "", map[string]string{"message": "id is required"})
			return
		}
		c.hub.Leave(c, group)
		c.reply(EventLeft, group, nil)
	default:
		c.logger.WithField("action", msg.Action).Debug("Unknown websocket action")
		c.reply(EventError, "", map[string]string{"message": "unknown action " + msg.Action})
	}
}

func (c *Client) reply(event, channel string, payload any) {
	env, err := NewEnvelope(channel, event, payload, time.Now())
	if err != nil {
		return
	}
	data, err := env.Encode()
	if err != nil {
		return
	}
	c.hub.sendTo(c, data)
}

func groupFor(msg Message) (string, bool) {
	if msg.ID == "" {
		return "", false
	}
	switch msg.Action {
	case ActionJoinTeam, ActionLeaveTeam:
		return domain.TeamChannel(msg.ID), true
	case ActionJoinChallenge, ActionLeaveChallenge:
		return domain.ChallengeChannel(msg.ID), true
	}
	return "", false
}
