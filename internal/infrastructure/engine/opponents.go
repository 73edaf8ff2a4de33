package engine

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/castlemind/chess-mcp-server/internal/domain"
)

// The built-in opponents are deliberately lightweight stand-ins: the server
// design treats move selection as an opaque capability, so what matters here
// is that each catalog entry yields an isolated instance with a resource
// category, not the strength of its play.

// opponentIDs lists the selectable opponents in catalog order.
var opponentIDs = []string{
	"AlphaZero", "LeelaChessZero", "AlphaFold3", "A3C",
	"MCTS", "Negamax", "OpenAI",
	"QLearning", "DeepLearning", "CNN", "DQN", "Genetic",
}

var opponentCategories = map[string]domain.OpponentCategory{
	"AlphaZero":      domain.CategoryLearnedModel,
	"LeelaChessZero": domain.CategoryLearnedModel,
	"AlphaFold3":     domain.CategoryLearnedModel,
	"A3C":            domain.CategoryLearnedModel,
	"MCTS":           domain.CategoryHeavySearch,
	"Negamax":        domain.CategoryHeavySearch,
	"OpenAI":         domain.CategoryHeavySearch,
	"QLearning":      domain.CategoryHeuristic,
	"DeepLearning":   domain.CategoryHeuristic,
	"CNN":            domain.CategoryHeuristic,
	"DQN":            domain.CategoryHeuristic,
	"Genetic":        domain.CategoryHeuristic,
}

// Catalog is the static opponent catalog backed by the built-in pickers.
type Catalog struct {
	engine domain.RuleEngine
	specs  map[string]domain.OpponentSpec
}

// NewCatalog builds the catalog. Every Lookup hands out a fresh Opponent
// from the spec factory, so instances are never shared across sessions.
func NewCatalog(eng domain.RuleEngine) *Catalog {
	c := &Catalog{engine: eng, specs: make(map[string]domain.OpponentSpec)}
	for _, id := range opponentIDs {
		id := id
		c.specs[id] = domain.OpponentSpec{
			ID:          id,
			Description: "Built-in " + id + " move picker",
			Category:    opponentCategories[id],
			New: func() domain.Opponent {
				return newPicker(id, eng)
			},
		}
	}
	return c
}

// Lookup returns the spec for id, or false when unknown.
func (c *Catalog) Lookup(id string) (domain.OpponentSpec, bool) {
	spec, ok := c.specs[id]
	return spec, ok
}

// IDs returns every opponent identifier in stable order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(opponentIDs))
	copy(out, opponentIDs)
	return out
}

// picker selects moves from the legal-move list with a per-identifier bias.
// Each instance carries its own RNG so concurrent sessions never contend;
// the mutex covers the rare overlap of an abandoned computation with a retry
// on the same session.
type picker struct {
	id     string
	engine domain.RuleEngine
	mu     sync.Mutex
	rng    *rand.Rand
}

func newPicker(id string, eng domain.RuleEngine) *picker {
	var seed int64
	for _, r := range id {
		seed = seed*31 + int64(r)
	}
	return &picker{id: id, engine: eng, rng: rand.New(rand.NewSource(seed))}
}

// SelectMove produces one legal move. Higher difficulty narrows the choice
// toward the picker's preferred ordering.
func (p *picker) SelectMove(ctx context.Context, g domain.Game, difficulty int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	legal := p.engine.LegalMoves(g)
	if len(legal) == 0 {
		return "", errors.Errorf("opponent %s: no legal moves available", p.id)
	}

	sort.Slice(legal, func(i, j int) bool {
		si, sj := score(legal[i]), score(legal[j])
		if si != sj {
			return si > sj
		}
		return legal[i] < legal[j]
	})

	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 10 {
		difficulty = 10
	}
	// Difficulty 10 always takes the top-ranked move; lower difficulties
	// sample from a wider prefix of the ordering.
	window := 1 + (10-difficulty)*(len(legal)-1)/10
	if window > len(legal) {
		window = len(legal)
	}
	p.mu.Lock()
	pick := legal[p.rng.Intn(window)]
	p.mu.Unlock()
	return pick, nil
}

// score prefers moves toward the center squares, which is enough bias to
// make games progress instead of shuffling edge pawns.
func score(uci string) int {
	if len(uci) < 4 {
		return 0
	}
	target := uci[2:4]
	switch {
	case strings.ContainsAny(string(target[0]), "de") && (target[1] == '4' || target[1] == '5'):
		return 2
	case strings.ContainsAny(string(target[0]), "cdef"):
		return 1
	default:
		return 0
	}
}
