// Package domain defines the core entities and capability interfaces for the
// chess MCP server.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransportKind identifies how an agent is connected.
type TransportKind string

// Supported transport kinds.
const (
	TransportStdio  TransportKind = "stdio"
	TransportSocket TransportKind = "socket"
)

// Agent represents one remote caller of the protocol server.
type Agent struct {
	ID            string
	ClientName    string
	ClientVersion string
	Transport     TransportKind
	RegisteredAt  time.Time
	LastActivity  time.Time
}

// NewAgentID generates a fresh agent identifier.
func NewAgentID() string {
	return "agent-" + uuid.New().String()[:8]
}

// Side is the color a player takes in a game.
type Side string

// Player sides.
const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// GameStatus describes the lifecycle state of a session's game.
type GameStatus string

// Session statuses.
const (
	StatusActive   GameStatus = "active"
	StatusFinished GameStatus = "finished"
)

// MoveResult is the outcome of applying one caller move, including the
// opponent's reply when the game continued.
type MoveResult struct {
	Move         string
	OpponentMove string
	Position     string
	Status       GameStatus
	Outcome      string
	ThinkTime    time.Duration
	MoveCount    int
}

// GameSnapshot is a read-only copy of a session's observable state.
type GameSnapshot struct {
	SessionID  string
	AgentID    string
	OpponentID string
	Side       Side
	Difficulty int
	Position   string
	Turn       Side
	Status     GameStatus
	Outcome    string
	MoveCount  int
	History    []string
	// AvgThinkTime is the running average of opponent think-time.
	AvgThinkTime time.Duration
	CreatedAt    time.Time
	LastActivity time.Time
}

// TournamentResult describes the sessions created by one create_tournament
// call: one session per opponent identifier.
type TournamentResult struct {
	TournamentID string
	AgentID      string
	Sessions     map[string]string // opponent id -> session id
}

// ToolResult is the outcome of one tool handler invocation.
type ToolResult struct {
	Message string
	Data    map[string]interface{}
	Err     error
}

// Notification is an asynchronous push event scoped to one agent or
// broadcast to all of them.
type Notification struct {
	Method string
	Params map[string]interface{}
}
