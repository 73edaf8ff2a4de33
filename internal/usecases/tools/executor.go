// Package tools implements the command surface: self-contained handlers
// registered by name, closed over the registry at startup.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/usecases/session"
)

// Handler executes one tool call for an agent.
type Handler func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult

// Executor is the closed tool registry. Adding a tool means registering a
// handler here; the protocol handler never changes.
type Executor struct {
	handlers map[string]Handler
	defs     []shared.Tool
	logger   *logging.Logger
}

// NewExecutor registers every tool handler against the session manager and
// opponent catalog.
func NewExecutor(mgr *session.Manager, catalog domain.OpponentCatalog, logger *logging.Logger) *Executor {
	e := &Executor{
		handlers: make(map[string]Handler),
		defs:     Definitions(catalog.IDs()),
		logger:   logger,
	}

	e.handlers[ToolCreateGame] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		opponent, _ := args["opponent"].(string)
		side := domain.Side(stringArg(args, "side", string(domain.SideWhite)))
		difficulty := intArg(args, "difficulty", 5)

		snap, err := mgr.Create(ctx, agentID, opponent, side, difficulty)
		if err != nil {
			return domain.ToolResult{Err: err}
		}

		turnMessage := "Your turn! Play a move in UCI notation (e.g. e2e4)."
		if side == domain.SideBlack && len(snap.History) == 0 {
			turnMessage = "Waiting for the opponent's opening move."
		}
		return domain.ToolResult{
			Message: fmt.Sprintf("Game created. You play %s against %s (difficulty %d).\nSession ID: %s\nPosition: %s\n%s",
				side, opponent, difficulty, snap.SessionID, snap.Position, turnMessage),
			Data: snapshotData(snap),
		}
	}

	e.handlers[ToolMakeMove] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		sessionID, _ := args["sessionId"].(string)
		move, _ := args["move"].(string)

		result, err := mgr.ApplyMove(ctx, sessionID, agentID, move)
		if err != nil {
			return domain.ToolResult{Err: err}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Move played: %s", result.Move)
		if result.OpponentMove != "" {
			fmt.Fprintf(&b, "\nOpponent replies: %s", result.OpponentMove)
		}
		fmt.Fprintf(&b, "\nPosition: %s\nStatus: %s", result.Position, result.Status)
		if result.Status == domain.StatusFinished {
			fmt.Fprintf(&b, " (%s)", result.Outcome)
		}

		return domain.ToolResult{
			Message: b.String(),
			Data: map[string]interface{}{
				"sessionId":    sessionID,
				"move":         result.Move,
				"opponentMove": result.OpponentMove,
				"position":     result.Position,
				"gameStatus":   string(result.Status),
				"outcome":      result.Outcome,
				"moveCount":    result.MoveCount,
				"thinkTimeMs":  result.ThinkTime.Milliseconds(),
			},
		}
	}

	e.handlers[ToolGetBoardState] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		sessionID, _ := args["sessionId"].(string)
		snap, err := mgr.Get(sessionID, agentID)
		if err != nil {
			return domain.ToolResult{Err: err}
		}
		return domain.ToolResult{
			Message: fmt.Sprintf("Session %s\nPosition: %s\nStatus: %s\nMoves played: %d",
				snap.SessionID, snap.Position, snap.Status, snap.MoveCount),
			Data: snapshotData(snap),
		}
	}

	e.handlers[ToolGetLegalMoves] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		sessionID, _ := args["sessionId"].(string)
		legal, err := mgr.LegalMoves(sessionID, agentID)
		if err != nil {
			return domain.ToolResult{Err: err}
		}
		return domain.ToolResult{
			Message: fmt.Sprintf("Legal moves (%d): %s", len(legal), strings.Join(legal, ", ")),
			Data: map[string]interface{}{
				"sessionId":  sessionID,
				"legalMoves": legal,
			},
		}
	}

	e.handlers[ToolAnalyzePosition] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		sessionID, _ := args["sessionId"].(string)
		depth := intArg(args, "depth", 5)

		snap, err := mgr.Get(sessionID, agentID)
		if err != nil {
			return domain.ToolResult{Err: err}
		}
		legal, err := mgr.LegalMoves(sessionID, agentID)
		if err != nil {
			return domain.ToolResult{Err: err}
		}

		// Mobility is the only signal the core computes itself; real
		// evaluation belongs to the opponent engines.
		return domain.ToolResult{
			Message: fmt.Sprintf("Position analysis for %s: %s to move, %d legal moves, status %s",
				sessionID, snap.Turn, len(legal), snap.Status),
			Data: map[string]interface{}{
				"sessionId":  sessionID,
				"position":   snap.Position,
				"turn":       string(snap.Turn),
				"mobility":   len(legal),
				"gameStatus": string(snap.Status),
				"depth":      depth,
			},
		}
	}

	e.handlers[ToolGetMoveHint] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		sessionID, _ := args["sessionId"].(string)
		hintLevel := stringArg(args, "hintLevel", "intermediate")

		legal, err := mgr.LegalMoves(sessionID, agentID)
		if err != nil {
			return domain.ToolResult{Err: err}
		}
		if len(legal) == 0 {
			return domain.ToolResult{Err: domain.NewValidationError("no legal moves in this position")}
		}
		suggested := legal[0]
		return domain.ToolResult{
			Message: fmt.Sprintf("Suggested move: %s (%s hint)", suggested, hintLevel),
			Data: map[string]interface{}{
				"sessionId":     sessionID,
				"suggestedMove": suggested,
				"hintLevel":     hintLevel,
			},
		}
	}

	e.handlers[ToolCreateTournament] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		opponents := stringSliceArg(args, "opponents")
		side := domain.Side(stringArg(args, "side", string(domain.SideWhite)))
		difficulty := intArg(args, "difficulty", 5)

		result, err := mgr.CreateTournament(ctx, agentID, opponents, side, difficulty)
		if err != nil {
			return domain.ToolResult{Err: err}
		}

		sessions := make(map[string]interface{}, len(result.Sessions))
		for opponent, id := range result.Sessions {
			sessions[opponent] = id
		}
		return domain.ToolResult{
			Message: fmt.Sprintf("Tournament %s created with %d games. Use get_tournament_status to monitor progress.",
				result.TournamentID, len(result.Sessions)),
			Data: map[string]interface{}{
				"tournamentId": result.TournamentID,
				"totalGames":   len(result.Sessions),
				"sessions":     sessions,
				"side":         string(side),
				"difficulty":   difficulty,
			},
		}
	}

	e.handlers[ToolGetTournamentStatus] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		snaps := mgr.ListForAgent(agentID)

		var active, finished, wins, losses, draws int
		games := make(map[string]interface{}, len(snaps))
		for _, snap := range snaps {
			games[snap.OpponentID] = map[string]interface{}{
				"sessionId":  snap.SessionID,
				"gameStatus": string(snap.Status),
				"outcome":    snap.Outcome,
				"moveCount":  snap.MoveCount,
			}
			if snap.Status == domain.StatusActive {
				active++
				continue
			}
			finished++
			switch {
			case won(snap):
				wins++
			case snap.Outcome == "draw":
				draws++
			default:
				losses++
			}
		}

		return domain.ToolResult{
			Message: fmt.Sprintf("Tournament status: %d active, %d finished (record %d-%d-%d)",
				active, finished, wins, losses, draws),
			Data: map[string]interface{}{
				"totalGames":    len(snaps),
				"activeGames":   active,
				"finishedGames": finished,
				"wins":          wins,
				"losses":        losses,
				"draws":         draws,
				"games":         games,
			},
		}
	}

	e.handlers[ToolFetchCurrentBoard] = func(ctx context.Context, agentID string, args map[string]interface{}) domain.ToolResult {
		sessionID, _ := args["sessionId"].(string)
		snap, err := mgr.Get(sessionID, agentID)
		if err != nil {
			return domain.ToolResult{Err: err}
		}
		board := renderBoard(snap.Position)
		return domain.ToolResult{
			Message: fmt.Sprintf("Board for session %s:\n%s", sessionID, board),
			Data: map[string]interface{}{
				"sessionId":  sessionID,
				"asciiBoard": board,
				"position":   snap.Position,
			},
		}
	}

	return e
}

// List returns the advertised tool definitions.
func (e *Executor) List() []shared.Tool {
	out := make([]shared.Tool, len(e.defs))
	copy(out, e.defs)
	return out
}

// Execute runs the named tool for an agent.
func (e *Executor) Execute(ctx context.Context, agentID, name string, args map[string]interface{}) (domain.ToolResult, error) {
	handler, ok := e.handlers[name]
	if !ok {
		return domain.ToolResult{}, domain.NewValidationError("unknown tool: " + name)
	}
	e.logger.Debug("executing tool", logging.Fields{"tool": name, "agentId": agentID})
	return handler(ctx, agentID, args), nil
}

// won reports whether the caller's side won the finished game.
func won(snap domain.GameSnapshot) bool {
	return (snap.Side == domain.SideWhite && snap.Outcome == "white_won") ||
		(snap.Side == domain.SideBlack && snap.Outcome == "black_won")
}

func snapshotData(snap domain.GameSnapshot) map[string]interface{} {
	return map[string]interface{}{
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
		"createdAt":      snap.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func stringArg(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, isString := v.(string); isString {
			out = append(out, s)
		}
	}
	return out
}
