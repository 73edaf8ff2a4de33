// Package notifications pushes asynchronous events to connected agents.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// Sender delivers one notification frame; bound to a transport connection.
type Sender func(ctx context.Context, n shared.JSONRPCNotification) error

const sendTimeout = 5 * time.Second

// Dispatcher maps agent ids to their live transport senders. Notifications
// for agents without a subscription are dropped: sessions outlive
// connections, pushes do not.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[string]Sender
	logger *logging.Logger
}

// New creates an empty dispatcher.
func New(logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		subs:   make(map[string]Sender),
		logger: logger,
	}
}

// Subscribe binds an agent to a transport sender, replacing any previous
// binding (reconnection).
func (d *Dispatcher) Subscribe(agentID string, sender Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[agentID] = sender
}

// Unsubscribe removes an agent's binding, typically on connection loss.
func (d *Dispatcher) Unsubscribe(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, agentID)
}

// Subscribed reports whether an agent currently has a live binding.
func (d *Dispatcher) Subscribed(agentID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.subs[agentID]
	return ok
}

// NotifyAgent pushes one event to a single agent. Delivery is asynchronous
// so callers holding a session lock never block on a slow transport.
func (d *Dispatcher) NotifyAgent(agentID, method string, params map[string]interface{}) {
	d.mu.RLock()
	sender, ok := d.subs[agentID]
	d.mu.RUnlock()
	if !ok {
		return
	}
	d.deliver(agentID, sender, shared.NewNotification(method, params))
}

// Broadcast pushes one event to every subscribed agent.
func (d *Dispatcher) Broadcast(method string, params map[string]interface{}) {
	d.mu.RLock()
	senders := make(map[string]Sender, len(d.subs))
	for id, s := range d.subs {
		senders[id] = s
	}
	d.mu.RUnlock()

	n := shared.NewNotification(method, params)
	for id, sender := range senders {
		d.deliver(id, sender, n)
	}
}

func (d *Dispatcher) deliver(agentID string, sender Sender, n shared.JSONRPCNotification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed", logging.Fields{
				"agentId": agentID,
				"method":  n.Method,
				"error":   err.Error(),
			})
		}
	}()
}

// NotifyGameMove announces a completed move exchange to the session owner.
func (d *Dispatcher) NotifyGameMove(agentID, sessionID, move, opponentMove string) {
	d.NotifyAgent(agentID, shared.NotificationGameMove, map[string]interface{}{
		"sessionId":    sessionID,
		"playerMove":   move,
		"opponentMove": opponentMove,
	})
}

// NotifyGameState announces a session status change to the session owner.
func (d *Dispatcher) NotifyGameState(agentID, sessionID, status string) {
	d.NotifyAgent(agentID, shared.NotificationGameState, map[string]interface{}{
		"sessionId": sessionID,
		"status":    status,
		"timestamp": time.Now().UnixMilli(),
	})
}

// NotifyTournamentUpdate announces tournament lifecycle events to the owner.
func (d *Dispatcher) NotifyTournamentUpdate(agentID, tournamentID string, status map[string]interface{}) {
	d.NotifyAgent(agentID, shared.NotificationTournamentUpdate, map[string]interface{}{
		"tournamentId": tournamentID,
		"status":       status,
		"timestamp":    time.Now().UnixMilli(),
	})
}
