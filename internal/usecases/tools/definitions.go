package tools

import (
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
)

// Tool names.
const (
	ToolCreateGame          = "create_game"
	ToolMakeMove            = "make_move"
	ToolGetBoardState       = "get_board_state"
	ToolGetLegalMoves       = "get_legal_moves"
	ToolAnalyzePosition     = "analyze_position"
	ToolGetMoveHint         = "get_move_hint"
	ToolCreateTournament    = "create_tournament"
	ToolGetTournamentStatus = "get_tournament_status"
	ToolFetchCurrentBoard   = "fetch_current_board"
)

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Game session identifier",
	}
}

// Definitions returns the static tool catalog advertised by tools/list.
// opponentIDs becomes the enum for opponent selection so clients discover
// the available engines at runtime instead of hardcoding them.
func Definitions(opponentIDs []string) []shared.Tool {
	opponentEnum := make([]interface{}, 0, len(opponentIDs))
	for _, id := range opponentIDs {
		opponentEnum = append(opponentEnum, id)
	}

	return []shared.Tool{
		{
			Name:        ToolCreateGame,
			Description: "Create a new game against a chosen computer opponent",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"opponent": map[string]interface{}{
						"type":        "string",
						"enum":        opponentEnum,
						"description": "Opponent engine to play against",
					},
					"side": map[string]interface{}{
						"type":        "string",
						"enum":        []interface{}{"white", "black"},
						"description": "Caller's side",
					},
					"difficulty": map[string]interface{}{
						"type":        "integer",
						"minimum":     1,
						"maximum":     10,
						"description": "Opponent difficulty level",
					},
				},
				"required":             []interface{}{"opponent", "side"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolMakeMove,
			Description: "Play a move in UCI notation and get the opponent's reply",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sessionId": sessionIDProperty(),
					"move": map[string]interface{}{
						"type":        "string",
						"pattern":     "^[a-h][1-8][a-h][1-8][qrbn]?$",
						"description": "Move in UCI notation, e.g. e2e4",
					},
				},
				"required":             []interface{}{"sessionId", "move"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolGetBoardState,
			Description: "Get the current position and game information for a session",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sessionId": sessionIDProperty(),
				},
				"required":             []interface{}{"sessionId"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolGetLegalMoves,
			Description: "List every legal move in the session's current position",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sessionId": sessionIDProperty(),
				},
				"required":             []interface{}{"sessionId"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolAnalyzePosition,
			Description: "Get a summary analysis of the session's current position",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sessionId": sessionIDProperty(),
					"depth": map[string]interface{}{
						"type":        "integer",
						"minimum":     1,
						"maximum":     20,
						"description": "Analysis depth",
					},
				},
				"required":             []interface{}{"sessionId"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolGetMoveHint,
			Description: "Get a suggested move for the session's current position",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sessionId": sessionIDProperty(),
					"hintLevel": map[string]interface{}{
						"type":        "string",
						"enum":        []interface{}{"beginner", "intermediate", "advanced", "master"},
						"description": "Hint complexity level",
					},
				},
				"required":             []interface{}{"sessionId"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolCreateTournament,
			Description: "Create games against many opponents at once",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"opponents": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string", "enum": opponentEnum},
						"description": "Opponent engines to include; defaults to the full catalog",
					},
					"side": map[string]interface{}{
						"type":        "string",
						"enum":        []interface{}{"white", "black"},
						"description": "Caller's side in every game",
					},
					"difficulty": map[string]interface{}{
						"type":        "integer",
						"minimum":     1,
						"maximum":     10,
						"description": "Opponent difficulty level",
					},
				},
				"required":             []interface{}{"side"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolGetTournamentStatus,
			Description: "Get aggregate status of the caller's sessions",
			InputSchema: map[string]interface{}{
				"type":                 "object",
				"properties":           map[string]interface{}{},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolFetchCurrentBoard,
			Description: "Get an ASCII rendering of the session's current board",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sessionId": sessionIDProperty(),
				},
				"required":             []interface{}{"sessionId"},
				"additionalProperties": false,
			},
		},
	}
}
