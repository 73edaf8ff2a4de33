package shared

// Domain-specific error codes, kept out of the reserved -32600..-32700 range.
const (
	// Tool execution failed for a reason that is not one of the more
	// specific codes below.
	ToolExecutionFailed ErrorCode = -32000

	// SessionNotVisible covers both "no such session" and "session owned
	// by another agent". The two cases are deliberately indistinguishable
	// on the wire so that probing cannot confirm existence of another
	// agent's sessions.
	SessionNotVisible ErrorCode = -32001

	// IllegalMove rejections carry the current legal-move list in data.
	IllegalMove ErrorCode = -32002

	// GameFinished is returned for moves against a finished game.
	GameFinished ErrorCode = -32003

	// OpponentUnavailable is returned when an opponent computation timed
	// out or was rejected by backpressure; data carries a retry hint.
	OpponentUnavailable ErrorCode = -32004

	// RateLimited responses carry retryAfterSeconds and the policy name.
	RateLimited ErrorCode = -32005

	// AccessDenied is reserved for non-session scoped denials; session
	// ownership failures use SessionNotVisible instead.
	AccessDenied ErrorCode = -32006

	// CapacityExceeded is returned when a session cap would be crossed.
	CapacityExceeded ErrorCode = -32007

	// NotInitialized is returned for any method before initialize.
	NotInitialized ErrorCode = -32008
)
