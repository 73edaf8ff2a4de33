package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/usecases/dispatch"
)

// Notifier receives session lifecycle events for asynchronous push.
type Notifier interface {
	NotifyGameMove(agentID, sessionID, move, opponentMove string)
	NotifyGameState(agentID, sessionID, status string)
	NotifyTournamentUpdate(agentID, tournamentID string, status map[string]interface{})
}

// Config holds the session caps and timing knobs.
type Config struct {
	MaxPerAgent     int
	MaxTotal        int
	OpponentTimeout time.Duration
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
}

// DefaultConfig returns the stock caps.
func DefaultConfig() Config {
	return Config{
		MaxPerAgent:     10,
		MaxTotal:        1000,
		OpponentTimeout: 60 * time.Second,
		IdleTimeout:     60 * time.Minute,
		SweepInterval:   5 * time.Minute,
	}
}

// Manager creates, owns and destroys sessions. The manager mutex guards the
// session tables and capacity checks only; per-game state is guarded by each
// session's own lock.
type Manager struct {
	mu       chan struct{} // binary semaphore so tournament creation can hold it across a batch
	sessions map[string]*Session
	byAgent  map[string]map[string]struct{}

	engine     domain.RuleEngine
	catalog    domain.OpponentCatalog
	dispatcher *dispatch.Dispatcher
	notifier   Notifier

	maxPerAgent     int
	maxTotal        int
	opponentTimeout time.Duration
	idleTimeout     time.Duration
	sweepInterval   time.Duration

	now    func() time.Time
	logger *logging.Logger
}

// NewManager wires the session manager to its collaborators.
func NewManager(cfg Config, eng domain.RuleEngine, catalog domain.OpponentCatalog,
	dispatcher *dispatch.Dispatcher, notifier Notifier, logger *logging.Logger) *Manager {
	m := &Manager{
		mu:              make(chan struct{}, 1),
		sessions:        make(map[string]*Session),
		byAgent:         make(map[string]map[string]struct{}),
		engine:          eng,
		catalog:         catalog,
		dispatcher:      dispatcher,
		notifier:        notifier,
		maxPerAgent:     cfg.MaxPerAgent,
		maxTotal:        cfg.MaxTotal,
		opponentTimeout: cfg.OpponentTimeout,
		idleTimeout:     cfg.IdleTimeout,
		sweepInterval:   cfg.SweepInterval,
		now:             time.Now,
		logger:          logger,
	}
	return m
}

// SetClock overrides the time source for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.lock()
	defer m.unlock()
	m.now = now
}

func (m *Manager) lock()   { m.mu <- struct{}{} }
func (m *Manager) unlock() { <-m.mu }

// Create makes one session for agentID against opponentID. Capacity checks
// and insertion happen atomically under the manager lock, so the caps can
// never be raced past. When the caller takes black, the opponent plays the
// opening move before Create returns; a failed opening rolls the session
// back so no session ever exists stuck waiting for a move nothing will
// trigger.
func (m *Manager) Create(ctx context.Context, agentID, opponentID string, side domain.Side, difficulty int) (domain.GameSnapshot, error) {
	m.lock()
	s, err := m.createLocked(agentID, opponentID, side, difficulty)
	m.unlock()
	if err != nil {
		return domain.GameSnapshot{}, err
	}

	if side == domain.SideBlack {
		if err := m.openingMove(ctx, s); err != nil {
			m.lock()
			m.removeLocked(s.id)
			m.unlock()
			m.logger.Warn("opening move failed, session rolled back", fields(s, "error", err.Error()))
			return domain.GameSnapshot{}, err
		}
	}

	m.logger.Info("created session", fields(s, "side", string(side)))
	return s.Snapshot(), nil
}

// createLocked enforces caps and registers the session. Callers hold the
// manager lock.
func (m *Manager) createLocked(agentID, opponentID string, side domain.Side, difficulty int) (*Session, error) {
	if len(m.sessions) >= m.maxTotal {
		return nil, domain.NewCapacityError("global", m.maxTotal, len(m.sessions))
	}
	if owned := m.byAgent[agentID]; len(owned) >= m.maxPerAgent {
		return nil, domain.NewCapacityError("per-agent", m.maxPerAgent, len(owned))
	}

	spec, ok := m.catalog.Lookup(opponentID)
	if !ok {
		return nil, domain.NewValidationError("unknown opponent: " + opponentID)
	}
	if difficulty == 0 {
		difficulty = 5
	}

	now := m.now()
	s := &Session{
		id:           "game-" + uuid.New().String()[:8],
		agentID:      agentID,
		opponentID:   opponentID,
		category:     spec.Category,
		side:         side,
		difficulty:   difficulty,
		game:         m.engine.NewGame(),
		opponent:     spec.New(),
		status:       domain.StatusActive,
		createdAt:    now,
		lastActivity: now,
	}

	m.sessions[s.id] = s
	owned, ok := m.byAgent[agentID]
	if !ok {
		owned = make(map[string]struct{})
		m.byAgent[agentID] = owned
	}
	owned[s.id] = struct{}{}
	return s, nil
}

// get resolves a session for a caller, collapsing "missing" and "owned by
// someone else" into the same error. The true reason is logged.
func (m *Manager) get(sessionID, callerAgentID string) (*Session, error) {
	m.lock()
	s, ok := m.sessions[sessionID]
	m.unlock()

	if !ok {
		return nil, domain.NewSessionNotVisibleError(sessionID)
	}
	if s.agentID != callerAgentID {
		m.logger.Warn("cross-agent session access rejected", logging.Fields{
			"sessionId": sessionID,
			"caller":    callerAgentID,
			"owner":     s.agentID,
		})
		return nil, domain.NewSessionNotVisibleError(sessionID)
	}
	return s, nil
}

// ApplyMove plays one caller move, returning the combined result with the
// opponent's reply. Only the owning agent may call it.
func (m *Manager) ApplyMove(ctx context.Context, sessionID, callerAgentID, move string) (domain.MoveResult, error) {
	s, err := m.get(sessionID, callerAgentID)
	if err != nil {
		return domain.MoveResult{}, err
	}
	return m.applyMove(ctx, s, move)
}

// Get returns a snapshot of the session, owner only.
func (m *Manager) Get(sessionID, callerAgentID string) (domain.GameSnapshot, error) {
	s, err := m.get(sessionID, callerAgentID)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	return s.Snapshot(), nil
}

// LegalMoves returns the current legal moves of a session, owner only.
func (m *Manager) LegalMoves(sessionID, callerAgentID string) ([]string, error) {
	s, err := m.get(sessionID, callerAgentID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.engine.LegalMoves(s.game), nil
}

// Owns reports whether callerAgentID may see sessionID; used by the
// validation pipeline's ownership stage.
func (m *Manager) Owns(sessionID, callerAgentID string) bool {
	_, err := m.get(sessionID, callerAgentID)
	return err == nil
}

// ListForAgent returns snapshots of every session the agent owns, ordered
// by creation time.
func (m *Manager) ListForAgent(agentID string) []domain.GameSnapshot {
	m.lock()
	ids := make([]string, 0, len(m.byAgent[agentID]))
	for id := range m.byAgent[agentID] {
		ids = append(ids, id)
	}
	owned := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			owned = append(owned, s)
		}
	}
	m.unlock()

	out := make([]domain.GameSnapshot, 0, len(owned))
	for _, s := range owned {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.lock()
	defer m.unlock()
	return len(m.sessions)
}

// End removes a session explicitly, owner only.
func (m *Manager) End(sessionID, callerAgentID string) error {
	if _, err := m.get(sessionID, callerAgentID); err != nil {
		return err
	}
	m.lock()
	m.removeLocked(sessionID)
	m.unlock()
	return nil
}

// removeLocked drops a session from both tables. Callers hold the manager
// lock.
func (m *Manager) removeLocked(sessionID string) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	delete(m.sessions, sessionID)
	if owned, ok := m.byAgent[s.agentID]; ok {
		delete(owned, sessionID)
		if len(owned) == 0 {
			delete(m.byAgent, s.agentID)
		}
	}
}

// CreateTournament creates one session per requested opponent atomically:
// the whole batch is capacity-checked and inserted under a single hold of
// the manager lock, so either every session exists or none does. A nil
// opponents slice means the full catalog.
func (m *Manager) CreateTournament(ctx context.Context, agentID string, opponents []string, side domain.Side, difficulty int) (domain.TournamentResult, error) {
	if len(opponents) == 0 {
		opponents = m.catalog.IDs()
	}
	seen := make(map[string]struct{}, len(opponents))
	for _, id := range opponents {
		if _, ok := m.catalog.Lookup(id); !ok {
			return domain.TournamentResult{}, domain.NewValidationError("unknown opponent: " + id)
		}
		if _, dup := seen[id]; dup {
			return domain.TournamentResult{}, domain.NewValidationError("duplicate opponent: " + id)
		}
		seen[id] = struct{}{}
	}

	m.lock()
	if len(m.sessions)+len(opponents) > m.maxTotal {
		m.unlock()
		return domain.TournamentResult{}, domain.NewCapacityError("global", m.maxTotal, len(m.sessions))
	}
	if owned := m.byAgent[agentID]; len(owned)+len(opponents) > m.maxPerAgent {
		m.unlock()
		return domain.TournamentResult{}, domain.NewCapacityError("per-agent", m.maxPerAgent, len(owned))
	}

	created := make([]*Session, 0, len(opponents))
	result := domain.TournamentResult{
		TournamentID: "tournament-" + uuid.New().String()[:8],
		AgentID:      agentID,
		Sessions:     make(map[string]string, len(opponents)),
	}
	for _, opponentID := range opponents {
		s, err := m.createLocked(agentID, opponentID, side, difficulty)
		if err != nil {
			for _, c := range created {
				m.removeLocked(c.id)
			}
			m.unlock()
			return domain.TournamentResult{}, err
		}
		created = append(created, s)
		result.Sessions[opponentID] = s.id
	}
	m.unlock()

	if side == domain.SideBlack {
		for _, s := range created {
			if err := m.openingMove(ctx, s); err != nil {
				m.lock()
				for _, c := range created {
					m.removeLocked(c.id)
				}
				m.unlock()
				m.logger.Warn("opening move failed, tournament rolled back", fields(s, "error", err.Error()))
				return domain.TournamentResult{}, err
			}
		}
	}

	m.notifier.NotifyTournamentUpdate(agentID, result.TournamentID, map[string]interface{}{
		"event":      "tournament_created",
		"totalGames": len(created),
	})
	m.logger.Info("created tournament", logging.Fields{
		"tournamentId": result.TournamentID,
		"agentId":      agentID,
		"games":        len(created),
	})
	return result, nil
}

// Sweep removes sessions idle past the idle timeout and returns how many.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.lock()
	candidates := make([]*Session, 0)
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.unlock()

	removed := 0
	for _, s := range candidates {
		if s.idleSince().After(cutoff) {
			continue
		}
		m.lock()
		m.removeLocked(s.id)
		m.unlock()
		removed++
		m.logger.Info("swept idle session", fields(s))
	}
	return removed
}

// Run executes the periodic idle sweep until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func fields(s *Session, extra ...string) logging.Fields {
	f := logging.Fields{
		"sessionId": s.id,
		"agentId":   s.agentID,
		"opponent":  s.opponentID,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		f[extra[i]] = extra[i+1]
	}
	return f
}
