package domain

import (
	"fmt"
	"time"
)

// SessionNotVisibleError covers both a missing session and a session owned
// by another agent. The message never reveals which case applied.
type SessionNotVisibleError struct {
	SessionID string
}

// Error returns the error message.
func (e *SessionNotVisibleError) Error() string {
	return fmt.Sprintf("session %s not found or not visible", e.SessionID)
}

// NewSessionNotVisibleError creates a new SessionNotVisibleError.
func NewSessionNotVisibleError(sessionID string) *SessionNotVisibleError {
	return &SessionNotVisibleError{SessionID: sessionID}
}

// IllegalMoveError indicates a move the rule engine rejected. It carries the
// current legal-move list so the caller can recover.
type IllegalMoveError struct {
	Move       string
	LegalMoves []string
}

// Error returns the error message.
func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move: %s", e.Move)
}

// NewIllegalMoveError creates a new IllegalMoveError.
func NewIllegalMoveError(move string, legalMoves []string) *IllegalMoveError {
	return &IllegalMoveError{Move: move, LegalMoves: legalMoves}
}

// GameFinishedError indicates a move against a game that already ended.
type GameFinishedError struct {
	SessionID string
	Outcome   string
}

// Error returns the error message.
func (e *GameFinishedError) Error() string {
	return fmt.Sprintf("game already finished: %s", e.Outcome)
}

// NewGameFinishedError creates a new GameFinishedError.
func NewGameFinishedError(sessionID, outcome string) *GameFinishedError {
	return &GameFinishedError{SessionID: sessionID, Outcome: outcome}
}

// OpponentUnavailableError indicates that the opponent computation timed out
// or was shed by backpressure; the caller should retry after RetryAfter.
type OpponentUnavailableError struct {
	OpponentID string
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *OpponentUnavailableError) Error() string {
	return fmt.Sprintf("opponent %s temporarily unavailable", e.OpponentID)
}

// NewOpponentUnavailableError creates a new OpponentUnavailableError.
func NewOpponentUnavailableError(opponentID string, retryAfter time.Duration) *OpponentUnavailableError {
	return &OpponentUnavailableError{OpponentID: opponentID, RetryAfter: retryAfter}
}

// RateLimitError indicates a denied request with the responsible policy and
// the wait until the sliding window admits the agent again.
type RateLimitError struct {
	Policy     string
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s", e.Policy)
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(policy string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Policy: policy, RetryAfter: retryAfter}
}

// CapacityError indicates that a per-agent or global session cap would be
// crossed. Nothing is created or evicted when it is returned.
type CapacityError struct {
	Scope   string
	Limit   int
	Current int
}

// Error returns the error message.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s session capacity reached (%d/%d)", e.Scope, e.Current, e.Limit)
}

// NewCapacityError creates a new CapacityError.
func NewCapacityError(scope string, limit, current int) *CapacityError {
	return &CapacityError{Scope: scope, Limit: limit, Current: current}
}

// ValidationError indicates arguments that failed schema or security checks.
type ValidationError struct {
	Reason string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError creates a new ValidationError.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}
