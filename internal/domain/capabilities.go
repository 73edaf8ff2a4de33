package domain

import "context"

// Game is an opaque handle to one rule-engine game instance. The core never
// inspects it; only the rule engine that produced it can interpret it.
type Game interface {
	// Position returns the serialized current position.
	Position() string
	// Turn reports which side is to move.
	Turn() Side
	// History returns the moves played so far in order.
	History() []string
}

// RuleEngine is the external legality/application/serialization capability.
// The core never reimplements any of this.
type RuleEngine interface {
	// NewGame creates a fresh game at the initial position.
	NewGame() Game

	// IsLegalMove reports whether move is legal in the game's position.
	IsLegalMove(game Game, move string) bool

	// Apply plays move on the game. It returns an error when the move is
	// not legal; the game is unchanged in that case.
	Apply(game Game, move string) error

	// LegalMoves returns every legal move in the current position.
	LegalMoves(game Game) []string

	// Fork returns an independent game at the same position. Mutating the
	// fork never affects the source and vice versa.
	Fork(game Game) (Game, error)

	// IsTerminal reports whether the game has ended.
	IsTerminal(game Game) bool

	// Outcome describes how a terminal game ended ("white_won",
	// "black_won", "draw"); empty for games still in progress.
	Outcome(game Game) string
}

// Opponent is the external move-selection capability. Implementations must
// honor ctx cancellation when they can; the dispatcher detaches from the
// ones that cannot.
type Opponent interface {
	// SelectMove produces one move for the side to play in game.
	SelectMove(ctx context.Context, game Game, difficulty int) (string, error)
}

// OpponentCategory groups opponents by resource profile so each group gets
// its own bounded worker pool.
type OpponentCategory string

// Opponent categories.
const (
	CategoryHeavySearch  OpponentCategory = "heavy-search"
	CategoryLearnedModel OpponentCategory = "learned-model"
	CategoryHeuristic    OpponentCategory = "heuristic"
)

// OpponentSpec is one static catalog entry. Each create_game call produces a
// fresh Opponent instance from the factory so no state leaks across games.
type OpponentSpec struct {
	ID          string
	Description string
	Category    OpponentCategory
	New         func() Opponent
}

// OpponentCatalog is the static, process-lifetime set of selectable
// opponents, keyed by identifier.
type OpponentCatalog interface {
	// Lookup returns the spec for id, or false when unknown.
	Lookup(id string) (OpponentSpec, bool)

	// IDs returns every opponent identifier in stable order.
	IDs() []string
}
