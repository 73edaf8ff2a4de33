// Package ratelimit enforces per-agent sliding-window request limits.
package ratelimit

import (
	"sync"
	"time"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// Category classifies a request for limiting purposes.
type Category string

// Request categories.
const (
	CategoryGeneral       Category = "general"
	CategoryMove          Category = "move"
	CategorySessionCreate Category = "session_create"
)

// policy is one sliding-window limit.
type policy struct {
	name   string
	limit  int
	window time.Duration
}

// Config holds the limits for every policy.
type Config struct {
	BurstLimit        int
	BurstWindow       time.Duration
	RequestsPerMinute int
	MovesPerMinute    int
	SessionsPerHour   int
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		BurstLimit:        10,
		BurstWindow:       10 * time.Second,
		RequestsPerMinute: 100,
		MovesPerMinute:    60,
		SessionsPerHour:   20,
	}
}

// tracker holds one agent's timestamp lists, keyed by policy name. Trackers
// are only ever touched by their own agent's requests, so the single limiter
// mutex sees no cross-agent contention in practice.
type tracker struct {
	stamps map[string][]time.Time
}

// Limiter is the per-agent sliding-window rate limiter. Timestamp lists are
// pruned on every check.
type Limiter struct {
	mu       sync.Mutex
	trackers map[string]*tracker

	burst    policy
	general  policy
	move     policy
	creation policy

	now    func() time.Time
	logger *logging.Logger
}

// New creates a Limiter with the given limits.
func New(cfg Config, logger *logging.Logger) *Limiter {
	return &Limiter{
		trackers: make(map[string]*tracker),
		burst:    policy{name: "burst", limit: cfg.BurstLimit, window: cfg.BurstWindow},
		general:  policy{name: "general", limit: cfg.RequestsPerMinute, window: time.Minute},
		move:     policy{name: "move", limit: cfg.MovesPerMinute, window: time.Minute},
		creation: policy{name: "session_create", limit: cfg.SessionsPerHour, window: time.Hour},
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the time source; tests use it to step across windows.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Check admits or denies one request. Burst and general limits apply to
// every request; move and session-creation limits additionally apply to
// their own categories. A denial names the responsible policy and how long
// the agent must wait for its window to open.
func (l *Limiter) Check(agentID string, category Category) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trackers[agentID]
	if !ok {
		t = &tracker{stamps: make(map[string][]time.Time)}
		l.trackers[agentID] = t
	}

	now := l.now()
	policies := []policy{l.burst, l.general}
	switch category {
	case CategoryMove:
		policies = append(policies, l.move)
	case CategorySessionCreate:
		policies = append(policies, l.creation)
	}

	for _, p := range policies {
		pruned := prune(t.stamps[p.name], now.Add(-p.window))
		t.stamps[p.name] = pruned
		if len(pruned) >= p.limit {
			retry := pruned[0].Add(p.window).Sub(now)
			if retry < 0 {
				retry = 0
			}
			l.logger.Warn("rate limit denied", logging.Fields{
				"agentId": agentID,
				"policy":  p.name,
				"count":   len(pruned),
			})
			return domain.NewRateLimitError(p.name, retry)
		}
	}

	for _, p := range policies {
		t.stamps[p.name] = append(t.stamps[p.name], now)
	}
	return nil
}

// Release discards an agent's tracker; called when the agent is removed.
func (l *Limiter) Release(agentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.trackers, agentID)
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	return stamps[idx:]
}
