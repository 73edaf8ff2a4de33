package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// capture collects delivered notifications behind a channel so tests can
// wait for the asynchronous sender goroutine.
type capture struct {
	mu       sync.Mutex
	received []shared.JSONRPCNotification
	ch       chan struct{}
}

func newCapture() *capture {
	return &capture{ch: make(chan struct{}, 16)}
}

func (c *capture) sender(ctx context.Context, n shared.JSONRPCNotification) error {
	c.mu.Lock()
	c.received = append(c.received, n)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

func (c *capture) wait(t *testing.T, n int) []shared.JSONRPCNotification {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for notification %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]shared.JSONRPCNotification, len(c.received))
	copy(out, c.received)
	return out
}

func TestNotifyAgentDeliversToSubscriber(t *testing.T) {
	d := New(logging.NewNop())
	c := newCapture()
	d.Subscribe("agent-1", c.sender)

	d.NotifyGameMove("agent-1", "game-1", "e2e4", "e7e5")

	got := c.wait(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, shared.NotificationGameMove, got[0].Method)
	assert.Equal(t, "e2e4", got[0].Params["playerMove"])
	assert.Equal(t, "e7e5", got[0].Params["opponentMove"])
	assert.Equal(t, shared.JSONRPCVersion, got[0].JSONRPC)
}

func TestNotifyAgentDropsWithoutSubscription(t *testing.T) {
	d := New(logging.NewNop())

	// No subscriber: must not panic or block.
	d.NotifyGameState("agent-ghost", "game-1", "finished")
	assert.False(t, d.Subscribed("agent-ghost"))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := New(logging.NewNop())
	c := newCapture()
	d.Subscribe("agent-1", c.sender)
	require.True(t, d.Subscribed("agent-1"))

	d.Unsubscribe("agent-1")
	assert.False(t, d.Subscribed("agent-1"))

	d.NotifyGameState("agent-1", "game-1", "finished")
	select {
	case <-c.ch:
		t.Fatal("delivery after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResubscribeReplacesSender(t *testing.T) {
	d := New(logging.NewNop())
	old := newCapture()
	replacement := newCapture()

	d.Subscribe("agent-1", old.sender)
	d.Subscribe("agent-1", replacement.sender)

	d.NotifyTournamentUpdate("agent-1", "tournament-1", map[string]interface{}{"event": "created"})

	got := replacement.wait(t, 1)
	assert.Equal(t, shared.NotificationTournamentUpdate, got[0].Method)
	assert.Empty(t, old.received)
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	d := New(logging.NewNop())
	first := newCapture()
	second := newCapture()
	d.Subscribe("agent-1", first.sender)
	d.Subscribe("agent-2", second.sender)

	d.Broadcast("notifications/server/shutdown", map[string]interface{}{"reason": "maintenance"})

	first.wait(t, 1)
	second.wait(t, 1)
}
