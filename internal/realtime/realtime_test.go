package realtime

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

// fakeConn feeds queued frames to ReadMessage and records text frames written
type fakeConn struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once

	mu      sync.Mutex
	written [][]byte
	pings   int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (fc *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-fc.closed:
		return websocket.ErrCloseSent
	default:
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	switch messageType {
	case websocket.TextMessage:
		fc.written = append(fc.written, append([]byte(nil), data...))
	case websocket.PingMessage:
		fc.pings++
	}
	return nil
}

func (fc *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-fc.incoming:
		return websocket.TextMessage, data, nil
	case <-fc.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (fc *fakeConn) Close() error {
	fc.once.Do(func() { close(fc.closed) })
	return nil
}

func (fc *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345}
}

func (fc *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (fc *fakeConn) SetReadLimit(int64)                {}
func (fc *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (fc *fakeConn) SetPongHandler(func(string) error) {}

// envelopes decodes every text frame written so far
func (fc *fakeConn) envelopes(t *testing.T) []*Envelope {
	t.Helper()
	fc.mu.Lock()
	defer fc.mu.Unlock()

	out := make([]*Envelope, 0, len(fc.written))
	for _, data := range fc.written {
		// direct replies such as Pong carry no channel, so skip DecodeEnvelope
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		out = append(out, &env)
	}
	return out
}

// waitForEvent blocks until a frame with event has been written
func (fc *fakeConn) waitForEvent(t *testing.T, event string) *Envelope {
	t.Helper()
	var found *Envelope
	require.Eventually(t, func() bool {
		for _, env := range fc.envelopes(t) {
			if env.Event == event {
				found = env
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "no %s frame", event)
	return found
}

func testClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.SendBuffer = 8
	return cfg
}

func newTestClient(hub *Hub, roles ...string) (*Client, *fakeConn) {
	fc := newFakeConn()
	actor := domain.Actor{ID: "user-1", Roles: roles}
	return NewClient(hub, fc, actor, testClientConfig(), logger.NewNop()), fc
}

// drain reads every frame currently queued for c
func drain(t *testing.T, c *Client) []*Envelope {
	t.Helper()
	var out []*Envelope
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			env, err := DecodeEnvelope(data)
			require.NoError(t, err)
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	env, err := NewEnvelope("team_1", domain.EventTeamSpecificUpdate, map[string]int{"points": 50}, now)
	require.NoError(t, err)

	data, err := env.Encode()
	require.NoError(t, err)
	got, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "team_1", got.Channel)
	assert.JSONEq(t, `{"points":50}`, string(got.Payload))
	assert.True(t, now.Equal(got.SentAt))

	_, err = DecodeEnvelope([]byte(`{"event":"Update"}`))
	assert.Error(t, err)
	_, err = NewEnvelope("all", "Update", func() {}, now)
	assert.Error(t, err)
}
