// Package resources implements the read-only query surface: global
// catalogs plus per-agent and per-session views.
package resources

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/usecases/metrics"
	"github.com/castlemind/chess-mcp-server/internal/usecases/session"
)

// Resource URIs.
const (
	URIOpponents        = "chess://opponents"
	URIOpeningBook      = "chess://opening-book"
	URITrainingStats    = "chess://training-stats"
	URITacticalPatterns = "chess://tactical-patterns"
	URIGameSessions     = "chess://game-sessions"

	gameSessionPrefix = "chess://game-sessions/"
)

// Provider serves resources/list and resources/read.
type Provider struct {
	catalog  domain.OpponentCatalog
	sessions *session.Manager
	metrics  *metrics.Service
	logger   *logging.Logger
}

// NewProvider wires the resource provider.
func NewProvider(catalog domain.OpponentCatalog, sessions *session.Manager, m *metrics.Service, logger *logging.Logger) *Provider {
	return &Provider{catalog: catalog, sessions: sessions, metrics: m, logger: logger}
}

// List returns the advertised resource descriptors. Per-session resources
// are reachable through the chess://game-sessions listing rather than
// enumerated here, since their set changes per agent.
func (p *Provider) List() []shared.Resource {
	return []shared.Resource{
		{
			URI:         URIOpponents,
			Name:        "Opponent Catalog",
			Description: "Available computer opponents with their resource categories",
			MIMEType:    "application/json",
		},
		{
			URI:         URIOpeningBook,
			Name:        "Opening Book",
			Description: "Named opening lines in UCI notation",
			MIMEType:    "application/json",
		},
		{
			URI:         URITrainingStats,
			Name:        "Usage Statistics",
			Description: "Aggregate request and engine usage statistics",
			MIMEType:    "application/json",
		},
		{
			URI:         URITacticalPatterns,
			Name:        "Tactical Patterns",
			Description: "Catalog of tactical motifs",
			MIMEType:    "application/json",
		},
		{
			URI:         URIGameSessions,
			Name:        "Game Sessions",
			Description: "The caller's active game sessions",
			MIMEType:    "application/json",
		},
	}
}

// Read resolves one resource for an agent. Per-session URIs are visible to
// the owner only and fail with the same not-visible error used for
// ownership mismatches everywhere else.
func (p *Provider) Read(agentID, uri string) (shared.ResourceContents, error) {
	switch uri {
	case URIOpponents:
		return p.opponents()
	case URIOpeningBook:
		return contents(URIOpeningBook, openingBook)
	case URITrainingStats:
		return contents(URITrainingStats, p.metrics.Snapshot())
	case URITacticalPatterns:
		return contents(URITacticalPatterns, tacticalPatterns)
	case URIGameSessions:
		return p.agentSessions(agentID)
	}

	if strings.HasPrefix(uri, gameSessionPrefix) {
		return p.gameSession(agentID, strings.TrimPrefix(uri, gameSessionPrefix))
	}
	return shared.ResourceContents{}, errors.Errorf("unknown resource uri: %s", uri)
}

func (p *Provider) opponents() (shared.ResourceContents, error) {
	entries := make([]map[string]interface{}, 0)
	for _, id := range p.catalog.IDs() {
		spec, _ := p.catalog.Lookup(id)
		entries = append(entries, map[string]interface{}{
			"id":          spec.ID,
			"description": spec.Description,
			"category":    string(spec.Category),
		})
	}
	return contents(URIOpponents, map[string]interface{}{"opponents": entries})
}

func (p *Provider) agentSessions(agentID string) (shared.ResourceContents, error) {
	snaps := p.sessions.ListForAgent(agentID)
	entries := make(map[string]interface{}, len(snaps))
	for _, snap := range snaps {
		entries[snap.SessionID] = map[string]interface{}{
			"sessionId":  snap.SessionID,
			"opponent":   snap.OpponentID,
			"side":       string(snap.Side),
			"gameStatus": string(snap.Status),
			"moveCount":  snap.MoveCount,
			"uri":        gameSessionPrefix + snap.SessionID,
		}
	}
	return contents(URIGameSessions, map[string]interface{}{"sessions": entries})
}

func (p *Provider) gameSession(agentID, sessionID string) (shared.ResourceContents, error) {
	snap, err := p.sessions.Get(sessionID, agentID)
	if err != nil {
		return shared.ResourceContents{}, err
	}
	return contents(gameSessionPrefix+sessionID, map[string]interface{}{
		"sessionId":      snap.SessionID,
		"opponent":       snap.OpponentID,
		"side":           string(snap.Side),
		"difficulty":     snap.Difficulty,
		"position":       snap.Position,
		"turn":           string(snap.Turn),
		"gameStatus":     string(snap.Status),
		"outcome":        snap.Outcome,
		"moveCount":      snap.MoveCount,
		"moveHistory":    snap.History,
		"avgThinkTimeMs": snap.AvgThinkTime.Milliseconds(),
	})
}

func contents(uri string, payload interface{}) (shared.ResourceContents, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return shared.ResourceContents{}, errors.Wrap(err, "serializing resource")
	}
	return shared.ResourceContents{
		URI:      uri,
		MIMEType: "application/json",
		Text:     string(data),
	}, nil
}
