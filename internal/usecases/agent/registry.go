// Package agent tracks connected callers and their liveness.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// RemoveHook is invoked after an agent leaves the registry, whether removed
// explicitly or swept for inactivity. Hooks release the agent's rate-limit
// tracker and notification subscription; sessions are left to their own
// idle-timeout so the agent can reconnect.
type RemoveHook func(agentID string)

// Registry is the thread-safe agent table with a periodic idle sweep.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent

	idleTimeout   time.Duration
	sweepInterval time.Duration
	hooks         []RemoveHook
	now           func() time.Time
	logger        *logging.Logger
}

// New creates a Registry sweeping agents idle longer than idleTimeout every
// sweepInterval.
func New(idleTimeout, sweepInterval time.Duration, logger *logging.Logger) *Registry {
	return &Registry{
		agents:        make(map[string]*domain.Agent),
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		now:           time.Now,
		logger:        logger,
	}
}

// OnRemove registers a cleanup hook. Must be called before traffic starts.
func (r *Registry) OnRemove(hook RemoveHook) {
	r.hooks = append(r.hooks, hook)
}

// SetClock overrides the time source for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Register adds a new agent and returns its id.
func (r *Registry) Register(clientName, clientVersion string, kind domain.TransportKind) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.NewAgentID()
	now := r.now()
	r.agents[id] = &domain.Agent{
		ID:            id,
		ClientName:    clientName,
		ClientVersion: clientVersion,
		Transport:     kind,
		RegisteredAt:  now,
		LastActivity:  now,
	}
	r.logger.Info("registered agent", logging.Fields{
		"agentId":   id,
		"client":    clientName,
		"transport": string(kind),
	})
	return id
}

// Touch records activity for an agent. Unknown ids are ignored.
func (r *Registry) Touch(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[agentID]; ok {
		a.LastActivity = r.now()
	}
}

// Get returns the agent with the given id.
func (r *Registry) Get(agentID string) (domain.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return domain.Agent{}, false
	}
	return *a, true
}

// List returns a copy of every registered agent.
func (r *Registry) List() []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Remove deletes an agent and runs the cleanup hooks.
func (r *Registry) Remove(agentID string) {
	r.mu.Lock()
	_, ok := r.agents[agentID]
	delete(r.agents, agentID)
	r.mu.Unlock()

	if !ok {
		return
	}
	for _, hook := range r.hooks {
		hook(agentID)
	}
	r.logger.Info("removed agent", logging.Fields{"agentId": agentID})
}

// Sweep removes every agent idle longer than the idle timeout and returns
// how many were removed. Safe to run concurrently with normal traffic.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []string
	for id, a := range r.agents {
		if a.LastActivity.Before(cutoff) {
			expired = append(expired, id)
			delete(r.agents, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		for _, hook := range r.hooks {
			hook(id)
		}
		r.logger.Info("swept idle agent", logging.Fields{"agentId": id})
	}
	return len(expired)
}

// Run executes the periodic sweep until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
