// Package engine adapts the notnil/chess library to the domain.RuleEngine
// capability. The protocol core only ever sees the interface.
package engine

import (
	"github.com/notnil/chess"
	"github.com/pkg/errors"

	"github.com/castlemind/chess-mcp-server/internal/domain"
)

// game wraps one chess.Game behind the opaque domain.Game handle.
type game struct {
	inner *chess.Game
}

// Position returns the current position in FEN.
func (g *game) Position() string {
	return g.inner.Position().String()
}

// Turn reports the side to move.
func (g *game) Turn() domain.Side {
	if g.inner.Position().Turn() == chess.White {
		return domain.SideWhite
	}
	return domain.SideBlack
}

// History returns the moves played so far in UCI notation.
func (g *game) History() []string {
	moves := g.inner.Moves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// Engine implements domain.RuleEngine on top of notnil/chess.
type Engine struct{}

// New creates the rule engine.
func New() *Engine {
	return &Engine{}
}

// NewGame creates a fresh game at the standard initial position.
func (e *Engine) NewGame() domain.Game {
	return &game{inner: chess.NewGame(chess.UseNotation(chess.UCINotation{}))}
}

// IsLegalMove reports whether move parses as UCI and is legal right now.
func (e *Engine) IsLegalMove(g domain.Game, move string) bool {
	cg := g.(*game)
	decoded, err := chess.UCINotation{}.Decode(cg.inner.Position(), move)
	if err != nil {
		return false
	}
	for _, valid := range cg.inner.ValidMoves() {
		if decoded.String() == valid.String() {
			return true
		}
	}
	return false
}

// Apply plays move on the game, rejecting anything illegal.
func (e *Engine) Apply(g domain.Game, move string) error {
	cg := g.(*game)
	decoded, err := chess.UCINotation{}.Decode(cg.inner.Position(), move)
	if err != nil {
		return errors.Wrapf(err, "decoding move %q", move)
	}
	if err := cg.inner.Move(decoded); err != nil {
		return errors.Wrapf(err, "applying move %q", move)
	}
	return nil
}

// LegalMoves returns every legal move in UCI notation.
func (e *Engine) LegalMoves(g domain.Game) []string {
	cg := g.(*game)
	valid := cg.inner.ValidMoves()
	out := make([]string, 0, len(valid))
	for _, m := range valid {
		out = append(out, m.String())
	}
	return out
}

// Fork copies the current position into an independent game. The copy
// starts from the position's FEN, so it carries no move history and
// history-dependent draw rules restart on it.
func (e *Engine) Fork(g domain.Game) (domain.Game, error) {
	fen, err := chess.FEN(g.Position())
	if err != nil {
		return nil, errors.Wrap(err, "forking position")
	}
	return &game{inner: chess.NewGame(fen, chess.UseNotation(chess.UCINotation{}))}, nil
}

// IsTerminal reports whether the game has ended.
func (e *Engine) IsTerminal(g domain.Game) bool {
	return g.(*game).inner.Outcome() != chess.NoOutcome
}

// Outcome describes how a terminal game ended.
func (e *Engine) Outcome(g domain.Game) string {
	switch g.(*game).inner.Outcome() {
	case chess.WhiteWon:
		return "white_won"
	case chess.BlackWon:
		return "black_won"
	case chess.Draw:
		return "draw"
	default:
		return ""
	}
}
