package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/usecases/ratelimit"
	"github.com/castlemind/chess-mcp-server/internal/usecases/tools"
)

// stubAuthority gives the test full control over ownership and legality.
type stubAuthority struct {
	owned map[string]string // sessionID -> owning agent
	legal []string
}

func (a *stubAuthority) Owns(sessionID, callerAgentID string) bool {
	return a.owned[sessionID] == callerAgentID
}

func (a *stubAuthority) LegalMoves(sessionID, callerAgentID string) ([]string, error) {
	return a.legal, nil
}

func newTestPipeline(t *testing.T, limits ratelimit.Config, authority *stubAuthority) *Pipeline {
	t.Helper()
	limiter := ratelimit.New(limits, logging.NewNop())
	defs := tools.Definitions([]string{"MCTS", "Negamax"})
	p, err := New(limiter, defs, authority, logging.NewNop())
	require.NoError(t, err)
	return p
}

func generousLimits() ratelimit.Config {
	return ratelimit.Config{
		BurstLimit:        1000,
		BurstWindow:       time.Second,
		RequestsPerMinute: 1000,
		MovesPerMinute:    1000,
		SessionsPerHour:   1000,
	}
}

func TestValidToolCallPasses(t *testing.T) {
	authority := &stubAuthority{
		owned: map[string]string{"game-1": "agent-1"},
		legal: []string{"e2e4", "d2d4"},
	}
	p := newTestPipeline(t, generousLimits(), authority)

	result := p.ValidateToolCall("agent-1", "make_move", map[string]interface{}{
		"sessionId": "game-1",
		"move":      "e2e4",
	})
	assert.True(t, result.Valid())
}

func TestRateLimitRunsBeforeEverythingElse(t *testing.T) {
	limits := generousLimits()
	limits.BurstLimit = 1
	authority := &stubAuthority{owned: map[string]string{}}
	p := newTestPipeline(t, limits, authority)

	require.True(t, p.ValidateToolCall("agent-1", "get_tournament_status", map[string]interface{}{}).Valid())

	// Even a garbage tool name is answered with the rate-limit rejection,
	// never the schema one: abusive traffic learns nothing else.
	result := p.ValidateToolCall("agent-1", "no_such_tool", map[string]interface{}{})
	assert.Equal(t, KindRateLimited, result.Kind)
	assert.Equal(t, "burst", result.Policy)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestUnknownToolRejected(t *testing.T) {
	p := newTestPipeline(t, generousLimits(), &stubAuthority{})

	result := p.ValidateToolCall("agent-1", "no_such_tool", map[string]interface{}{})
	assert.Equal(t, KindInvalidInput, result.Kind)
	assert.Contains(t, result.Reason, "unknown tool")
}

func TestSchemaRejectsBadArguments(t *testing.T) {
	p := newTestPipeline(t, generousLimits(), &stubAuthority{})

	cases := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"missing required move", "make_move", map[string]interface{}{"sessionId": "game-1"}},
		{"bad move format", "make_move", map[string]interface{}{"sessionId": "game-1", "move": "Ke2"}},
		{"opponent outside enum", "create_game", map[string]interface{}{"opponent": "Houdini", "side": "white"}},
		{"difficulty out of range", "create_game", map[string]interface{}{"opponent": "MCTS", "side": "white", "difficulty": 11}},
		{"unexpected property", "get_board_state", map[string]interface{}{"sessionId": "game-1", "extra": true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := p.ValidateToolCall("agent-1", tc.tool, tc.args)
			assert.Equal(t, KindInvalidInput, result.Kind)
		})
	}
}

func TestSecurityScreenRejectsHostileText(t *testing.T) {
	authority := &stubAuthority{owned: map[string]string{"game-1": "agent-1"}}
	p := newTestPipeline(t, generousLimits(), authority)

	hostile := []string{
		"game-1\x00",
		"../../etc/passwd",
		"<script>alert(1)</script>",
		"${jndi:ldap}",
		"`rm -rf`",
	}
	for _, text := range hostile {
		result := p.ValidateToolCall("agent-1", "get_board_state", map[string]interface{}{
			"sessionId": text,
		})
		assert.Equal(t, KindInvalidInput, result.Kind, "input %q passed the screen", text)
	}
}

func TestOwnershipStageDeniesForeignSession(t *testing.T) {
	authority := &stubAuthority{
		owned: map[string]string{"game-1": "agent-1"},
		legal: []string{"e2e4"},
	}
	p := newTestPipeline(t, generousLimits(), authority)

	result := p.ValidateToolCall("agent-2", "make_move", map[string]interface{}{
		"sessionId": "game-1",
		"move":      "e2e4",
	})
	assert.Equal(t, KindAccessDenied, result.Kind)
	assert.Contains(t, result.Reason, "not found or not visible")
}

func TestLegalityStageCarriesLegalMoves(t *testing.T) {
	authority := &stubAuthority{
		owned: map[string]string{"game-1": "agent-1"},
		legal: []string{"e2e4", "d2d4"},
	}
	p := newTestPipeline(t, generousLimits(), authority)

	result := p.ValidateToolCall("agent-1", "make_move", map[string]interface{}{
		"sessionId": "game-1",
		"move":      "e2e3",
	})
	assert.Equal(t, KindIllegalMove, result.Kind)
	assert.Equal(t, []string{"e2e4", "d2d4"}, result.LegalMoves)
}

func TestValidateResourceRead(t *testing.T) {
	p := newTestPipeline(t, generousLimits(), &stubAuthority{})

	assert.True(t, p.ValidateResourceRead("agent-1", "chess://opponents").Valid())

	result := p.ValidateResourceRead("agent-1", "chess://../secrets")
	assert.Equal(t, KindInvalidInput, result.Kind)
}

func TestScreenLengthCap(t *testing.T) {
	long := make([]byte, maxFieldLength+1)
	for i := range long {
		long[i] = 'a'
	}
	reason, bad := screen(string(long))
	assert.True(t, bad)
	assert.Contains(t, reason, "length")

	_, bad = screen("e2e4")
	assert.False(t, bad)
}
