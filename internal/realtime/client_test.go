package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverpresident/robotics-scrimmage-manager/internal/domain"
	"github.com/silverpresident/robotics-scrimmage-manager/pkg/logger"
)

func TestClient_JoinAndReceive(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c, fc := newTestClient(hub)
	c.Start()
	t.Cleanup(func() { _ = fc.Close() })

	fc.incoming <- []byte(`{"action":"joinTeam","id":"t1"}`)
	joined := fc.waitForEvent(t, EventJoined)
	assert.Equal(t, "team_t1", joined.Channel)
	assert.Equal(t, 1, hub.GroupSize("team_t1"))

	require.NoError(t, hub.Publish(domain.TeamChannel("t1"), domain.EventTeamSpecificUpdate, map[string]string{"name": "Alpha"}))
	got := fc.waitForEvent(t, domain.EventTeamSpecificUpdate)
	assert.JSONEq(t, `{"name":"Alpha"}`, string(got.Payload))

	fc.incoming <- []byte(`{"action":"leaveTeam","id":"t1"}`)
	fc.waitForEvent(t, EventLeft)
	assert.Zero(t, hub.GroupSize("team_t1"))
}

func TestClient_ChallengeGroups(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c, fc := newTestClient(hub)
	c.Start()
	t.Cleanup(func() { _ = fc.Close() })

	fc.incoming <- []byte(`{"action":"joinChallenge","id":"c9"}`)
	joined := fc.waitForEvent(t, EventJoined)
	assert.Equal(t, "challenge_c9", joined.Channel)

	fc.incoming <- []byte(`{"action":"leaveChallenge","id":"c9"}`)
	fc.waitForEvent(t, EventLeft)
	assert.Zero(t, hub.GroupSize("challenge_c9"))
}

func TestClient_PingAndErrors(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c, fc := newTestClient(hub)
	c.Start()
	t.Cleanup(func() { _ = fc.Close() })

	fc.incoming <- []byte(`{"action":"ping"}`)
	fc.waitForEvent(t, EventPong)

	fc.incoming <- []byte(`not json`)
	fc.incoming <- []byte(`{"action":"joinTeam"}`)
	fc.incoming <- []byte(`{"action":"submitScore"}`)
	require.Eventually(t, func() bool {
		n := 0
		for _, env := range fc.envelopes(t) {
			if env.Event == EventError {
				n++
			}
		}
		return n == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount(), "bad frames do not drop the client")
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c, fc := newTestClient(hub, domain.RoleAdministrator)
	c.Start()
	assert.Equal(t, 1, hub.GroupSize(domain.ChannelAdministrators))

	require.NoError(t, fc.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.GroupSize(domain.ChannelAdministrators))
}

func TestClient_WritePumpSendsPings(t *testing.T) {
	hub := NewHub(logger.NewNop())
	fc := newFakeConn()
	cfg := testClientConfig()
	cfg.PingInterval = 10 * time.Millisecond
	c := NewClient(hub, fc, domain.Actor{}, cfg, logger.NewNop())
	c.Start()
	t.Cleanup(func() { _ = fc.Close() })

	assert.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return fc.pings > 0
	}, 2*time.Second, 5*time.Millisecond)
}
