// Package session owns isolated game sessions and the per-session move
// state machine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/usecases/dispatch"
)

// Session is one isolated game owned by exactly one agent. All mutation
// happens under the session's own lock; sessions never share locks so
// independent games run fully in parallel.
type Session struct {
	mu sync.Mutex

	id         string
	agentID    string
	opponentID string
	category   domain.OpponentCategory
	side       domain.Side
	difficulty int

	game     domain.Game
	opponent domain.Opponent

	status    domain.GameStatus
	outcome   string
	moveCount int
	// opponentMoves counts only the opponent's applied moves; it weights
	// the think-time average, which moveCount cannot do once the opponent
	// has played the opening move.
	opponentMoves int
	// avgThink is the running average of opponent think-time. Timed-out
	// computations contribute nothing: their results are discarded
	// entirely, statistics included.
	avgThink     time.Duration
	createdAt    time.Time
	lastActivity time.Time
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AgentID returns the owning agent id. Immutable for the session lifetime.
func (s *Session) AgentID() string { return s.agentID }

// OpponentID returns the chosen opponent identifier.
func (s *Session) OpponentID() string { return s.opponentID }

// Snapshot copies the observable state under the session lock.
func (s *Session) Snapshot() domain.GameSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.GameSnapshot {
	return domain.GameSnapshot{
		SessionID:    s.id,
		AgentID:      s.agentID,
		OpponentID:   s.opponentID,
		Side:         s.side,
		Difficulty:   s.difficulty,
		Position:     s.game.Position(),
		Turn:         s.game.Turn(),
		Status:       s.status,
		Outcome:      s.outcome,
		MoveCount:    s.moveCount,
		History:      s.game.History(),
		AvgThinkTime: s.avgThink,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}

// idleSince reports the last activity time for the sweep.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// applyMove runs the full move state machine for one caller move: legality,
// terminal check, opponent dispatch with timeout, reply application. The
// session lock is held for the whole exchange so moves in one session are
// totally ordered; it is always released, timeout or not.
//
// The exchange is computed on a fork of the game first. The opponent only
// ever reads its private copy, and the live game advances once the reply is
// in hand, so a timed-out or abandoned computation can neither mutate nor
// race the session state and a failed exchange leaves the session exactly
// where it was, ready for a retry.
func (m *Manager) applyMove(ctx context.Context, s *Session, move string) (domain.MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == domain.StatusFinished {
		return domain.MoveResult{}, domain.NewGameFinishedError(s.id, s.outcome)
	}

	if !m.engine.IsLegalMove(s.game, move) {
		return domain.MoveResult{}, domain.NewIllegalMoveError(move, m.engine.LegalMoves(s.game))
	}

	fork, err := m.engine.Fork(s.game)
	if err != nil {
		return domain.MoveResult{}, errors.Wrap(err, "forking position")
	}
	if err := m.engine.Apply(fork, move); err != nil {
		return domain.MoveResult{}, errors.Wrap(err, "applying caller move")
	}

	if m.engine.IsTerminal(fork) {
		// The caller's move ends the game; no reply to compute.
		if err := m.commitCallerMove(s, move); err != nil {
			return domain.MoveResult{}, err
		}
		m.finishLocked(s)
		return domain.MoveResult{
			Move:      move,
			Position:  s.game.Position(),
			Status:    s.status,
			Outcome:   s.outcome,
			MoveCount: s.moveCount,
		}, nil
	}

	reply, thinkTime, err := m.selectOpponentMove(ctx, s, fork)
	if err != nil {
		return domain.MoveResult{}, err
	}

	if err := m.commitCallerMove(s, move); err != nil {
		return domain.MoveResult{}, err
	}
	// The fork has no move history, so a draw only the full game record
	// reveals surfaces here; the computed reply is then dropped.
	if m.engine.IsTerminal(s.game) {
		m.finishLocked(s)
		return domain.MoveResult{
			Move:      move,
			Position:  s.game.Position(),
			Status:    s.status,
			Outcome:   s.outcome,
			MoveCount: s.moveCount,
		}, nil
	}

	if err := m.engine.Apply(s.game, reply); err != nil {
		// The opponent produced a move its own rule engine rejects;
		// treat it as an internal failure, not an illegal-move reply.
		return domain.MoveResult{}, errors.Wrapf(err, "applying opponent move %q", reply)
	}
	s.moveCount++
	s.opponentMoves++
	s.lastActivity = m.now()
	s.avgThink = runningAverage(s.avgThink, thinkTime, s.opponentMoves)

	if m.engine.IsTerminal(s.game) {
		s.status = domain.StatusFinished
		s.outcome = m.engine.Outcome(s.game)
	}

	m.notifier.NotifyGameMove(s.agentID, s.id, move, reply)
	m.notifier.NotifyGameState(s.agentID, s.id, string(s.status))

	return domain.MoveResult{
		Move:         move,
		OpponentMove: reply,
		Position:     s.game.Position(),
		Status:       s.status,
		Outcome:      s.outcome,
		ThinkTime:    thinkTime,
		MoveCount:    s.moveCount,
	}, nil
}

// commitCallerMove applies the already-validated caller move to the live
// game. Callers hold s.mu.
func (m *Manager) commitCallerMove(s *Session, move string) error {
	if err := m.engine.Apply(s.game, move); err != nil {
		return errors.Wrap(err, "applying caller move")
	}
	s.moveCount++
	s.lastActivity = m.now()
	return nil
}

// finishLocked marks the session finished from the live game's outcome and
// pushes the state change. Callers hold s.mu.
func (m *Manager) finishLocked(s *Session) {
	s.status = domain.StatusFinished
	s.outcome = m.engine.Outcome(s.game)
	m.notifier.NotifyGameState(s.agentID, s.id, string(s.status))
}

// selectOpponentMove dispatches the opponent computation onto its category
// pool, bounded by the configured timeout. The opponent reads board, never
// the live game. On timeout the dispatcher detaches and the computation's
// late result is discarded; the session surfaces a retryable unavailability
// error.
func (m *Manager) selectOpponentMove(ctx context.Context, s *Session, board domain.Game) (string, time.Duration, error) {
	jobCtx, cancel := context.WithTimeout(ctx, m.opponentTimeout)
	defer cancel()

	start := m.now()
	reply, err := m.dispatcher.Submit(jobCtx, s.category, func(jc context.Context) (string, error) {
		return s.opponent.SelectMove(jc, board, s.difficulty)
	})
	thinkTime := m.now().Sub(start)

	switch {
	case err == nil:
		return reply, thinkTime, nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		m.logger.Warn("opponent move timed out", fields(s, "thinkTime", thinkTime.String()))
		return "", 0, domain.NewOpponentUnavailableError(s.opponentID, m.opponentTimeout)
	case errors.Is(err, dispatch.ErrBackpressure):
		return "", 0, domain.NewOpponentUnavailableError(s.opponentID, time.Second)
	default:
		return "", 0, errors.Wrap(err, "opponent move selection")
	}
}

// openingMove has the opponent play first when the caller took black.
func (m *Manager) openingMove(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.moveCount > 0 || s.game.Turn() != domain.SideWhite {
		return nil
	}

	fork, err := m.engine.Fork(s.game)
	if err != nil {
		return errors.Wrap(err, "forking position")
	}
	reply, thinkTime, err := m.selectOpponentMove(ctx, s, fork)
	if err != nil {
		return err
	}
	if err := m.engine.Apply(s.game, reply); err != nil {
		return errors.Wrapf(err, "applying opening move %q", reply)
	}
	s.moveCount++
	s.opponentMoves++
	s.lastActivity = m.now()
	s.avgThink = runningAverage(s.avgThink, thinkTime, s.opponentMoves)
	return nil
}

func runningAverage(current time.Duration, sample time.Duration, n int) time.Duration {
	if n <= 1 {
		return sample
	}
	return current + (sample-current)/time.Duration(n)
}
