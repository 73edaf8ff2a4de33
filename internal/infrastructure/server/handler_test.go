package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/domain/transport"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/config"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// fakeTransport records outbound messages; inbound frames are injected by
// calling the handler directly.
type fakeTransport struct {
	mu   sync.Mutex
	sent []shared.JSONRPCMessage
}

func (f *fakeTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeTransport) Kind() string { return string(domain.TransportSocket) }
func (f *fakeTransport) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	srv, err := New(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(srv.dispatch.Shutdown)
	return srv
}

func newTestHandler(t *testing.T, srv *Server) *Handler {
	t.Helper()
	h := NewHandler(srv.deps, &fakeTransport{})
	t.Cleanup(h.Close)
	return h
}

func frame(t *testing.T, id interface{}, method string, params interface{}) []byte {
	t.Helper()
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if id != nil {
		msg["id"] = id
	}
	if params != nil {
		msg["params"] = params
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func initialized(t *testing.T, h *Handler) string {
	t.Helper()
	resp := h.HandleMessage(context.Background(), frame(t, "init-1", shared.MethodInitialize, map[string]interface{}{
		"clientInfo": map[string]interface{}{"name": "test-client", "version": "1.0"},
	}))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(shared.InitializeResult)
	require.True(t, ok)
	return result.ServerInfo.AgentID
}

func callTool(t *testing.T, h *Handler, id interface{}, name string, args map[string]interface{}) *shared.JSONRPCResponse {
	t.Helper()
	return h.HandleMessage(context.Background(), frame(t, id, shared.MethodCallTool, map[string]interface{}{
		"name":      name,
		"arguments": args,
	}))
}

func toolText(t *testing.T, resp *shared.JSONRPCResponse) string {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	result, ok := resp.Result.(shared.CallToolResult)
	require.True(t, ok)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(shared.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestParseErrorHasNullID(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)

	resp := h.HandleMessage(context.Background(), []byte("{not json"))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.ParseError), resp.Error.Code)
	assert.Nil(t, resp.ID)

	// The id field must serialize as an explicit null.
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":null`)
}

func TestInvalidRequestRejected(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)

	resp := h.HandleMessage(context.Background(), []byte(`{"jsonrpc":"1.0","id":1,"method":"initialize"}`))
	require.NotNil(t, resp)
	assert.Equal(t, int(shared.InvalidRequest), resp.Error.Code)

	resp = h.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2}`))
	require.NotNil(t, resp)
	assert.Equal(t, int(shared.InvalidRequest), resp.Error.Code)
}

func TestClientNotificationGetsNoResponse(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)

	resp := h.HandleMessage(context.Background(), frame(t, nil, "notifications/initialized", nil))
	assert.Nil(t, resp)
}

func TestMethodsBeforeInitializeRejected(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)

	for _, method := range []string{
		shared.MethodListTools, shared.MethodCallTool,
		shared.MethodListResources, shared.MethodReadResource,
	} {
		resp := h.HandleMessage(context.Background(), frame(t, "r-1", method, nil))
		require.NotNil(t, resp, method)
		require.NotNil(t, resp.Error, method)
		assert.Equal(t, int(shared.NotInitialized), resp.Error.Code, method)
	}
}

func TestInitializeRegistersAgent(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)

	agentID := initialized(t, h)
	assert.NotEmpty(t, agentID)
	assert.Equal(t, agentID, h.AgentID())

	a, ok := srv.deps.Registry.Get(agentID)
	require.True(t, ok)
	assert.Equal(t, "test-client", a.ClientName)
	assert.True(t, srv.deps.Notifier.Subscribed(agentID))
}

func TestDoubleInitializeRejected(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	resp := h.HandleMessage(context.Background(), frame(t, "init-2", shared.MethodInitialize, nil))
	require.NotNil(t, resp)
	assert.Equal(t, int(shared.InvalidRequest), resp.Error.Code)
}

func TestEachHandlerGetsItsOwnAgent(t *testing.T) {
	srv := newTestServer(t)
	first := initialized(t, newTestHandler(t, srv))
	second := initialized(t, newTestHandler(t, srv))

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, srv.deps.Registry.Count())
}

func TestMethodNotFound(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	resp := h.HandleMessage(context.Background(), frame(t, "r-1", "tools/delete", nil))
	require.NotNil(t, resp)
	assert.Equal(t, int(shared.MethodNotFound), resp.Error.Code)
	assert.Equal(t, "r-1", resp.ID)
}

func TestListToolsAndResources(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	resp := h.HandleMessage(context.Background(), frame(t, 7, shared.MethodListTools, nil))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	assert.Equal(t, float64(7), resp.ID)
	tools, ok := resp.Result.(shared.ListToolsResult)
	require.True(t, ok)
	assert.Len(t, tools.Tools, 9)

	resp = h.HandleMessage(context.Background(), frame(t, 8, shared.MethodListResources, nil))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	resources, ok := resp.Result.(shared.ListResourcesResult)
	require.True(t, ok)
	assert.Len(t, resources.Resources, 5)
}

func TestCreateGameThenMakeMove(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	created := callTool(t, h, "c-1", "create_game", map[string]interface{}{
		"opponent": "MCTS",
		"side":     "white",
	})
	text := toolText(t, created)
	assert.Contains(t, text, "Game created")
	assert.Equal(t, "c-1", created.ID)

	// The second content item carries the structured payload.
	result := created.Result.(shared.CallToolResult)
	require.Len(t, result.Content, 2)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].(shared.TextContent).Text), &payload))
	sessionID, _ := payload["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	moved := callTool(t, h, "c-2", "make_move", map[string]interface{}{
		"sessionId": sessionID,
		"move":      "e2e4",
	})
	text = toolText(t, moved)
	assert.Contains(t, text, "Move played: e2e4")
	assert.Contains(t, text, "Opponent replies:")
}

func TestCallToolWithInvalidArguments(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	resp := callTool(t, h, "c-1", "make_move", map[string]interface{}{
		"sessionId": "game-1",
		"move":      "castle kingside",
	})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.InvalidParams), resp.Error.Code)
}

func TestCrossAgentSessionIsInvisible(t *testing.T) {
	srv := newTestServer(t)
	owner := newTestHandler(t, srv)
	intruder := newTestHandler(t, srv)
	initialized(t, owner)
	initialized(t, intruder)

	created := callTool(t, owner, "c-1", "create_game", map[string]interface{}{
		"opponent": "Negamax",
		"side":     "white",
	})
	result := created.Result.(shared.CallToolResult)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].(shared.TextContent).Text), &payload))
	sessionID := payload["sessionId"].(string)

	resp := callTool(t, intruder, "x-1", "make_move", map[string]interface{}{
		"sessionId": sessionID,
		"move":      "e2e4",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.SessionNotVisible), resp.Error.Code)

	// Probing a nonexistent session yields the same code and message shape.
	missing := callTool(t, intruder, "x-2", "make_move", map[string]interface{}{
		"sessionId": "game-00000000",
		"move":      "e2e4",
	})
	require.NotNil(t, missing.Error)
	assert.Equal(t, int(shared.SessionNotVisible), missing.Error.Code)
}

func TestIllegalMoveCarriesLegalMoves(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	created := callTool(t, h, "c-1", "create_game", map[string]interface{}{
		"opponent": "CNN",
		"side":     "white",
	})
	result := created.Result.(shared.CallToolResult)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].(shared.TextContent).Text), &payload))
	sessionID := payload["sessionId"].(string)

	resp := callTool(t, h, "c-2", "make_move", map[string]interface{}{
		"sessionId": sessionID,
		"move":      "e2e5",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.IllegalMove), resp.Error.Code)

	data, ok := resp.Error.Data.(map[string]interface{})
	require.True(t, ok)
	legal, ok := data["legalMoves"].([]string)
	require.True(t, ok)
	assert.Len(t, legal, 20)
}

func TestReadResource(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	resp := h.HandleMessage(context.Background(), frame(t, "r-1", shared.MethodReadResource, map[string]interface{}{
		"uri": "chess://opponents",
	}))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(shared.ReadResourceResult)
	require.True(t, ok)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "chess://opponents", result.Contents[0].URI)
	assert.Contains(t, result.Contents[0].Text, "AlphaZero")
}

func TestReadUnknownResource(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	resp := h.HandleMessage(context.Background(), frame(t, "r-1", shared.MethodReadResource, map[string]interface{}{
		"uri": "chess://nope",
	}))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(shared.InvalidParams), resp.Error.Code)
}

func TestBurstRateLimitOnProtocolMethods(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	initialized(t, h)

	var denied *shared.JSONRPCResponse
	for i := 0; i < 15; i++ {
		resp := h.HandleMessage(context.Background(), frame(t, fmt.Sprintf("r-%d", i), shared.MethodListTools, nil))
		require.NotNil(t, resp)
		if resp.Error != nil {
			denied = resp
			break
		}
	}
	require.NotNil(t, denied, "burst limit never triggered")
	assert.Equal(t, int(shared.RateLimited), denied.Error.Code)

	data, ok := denied.Error.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "burst", data["policy"])
	retry, ok := data["retryAfterSeconds"].(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, retry, int64(1))
}

func TestCloseRemovesAgentButKeepsSessions(t *testing.T) {
	srv := newTestServer(t)
	h := newTestHandler(t, srv)
	agentID := initialized(t, h)

	callTool(t, h, "c-1", "create_game", map[string]interface{}{
		"opponent": "DQN",
		"side":     "white",
	})
	require.Equal(t, 1, srv.sessions.Count())

	h.Close()

	_, ok := srv.deps.Registry.Get(agentID)
	assert.False(t, ok)
	assert.False(t, srv.deps.Notifier.Subscribed(agentID))
	// Sessions outlive the connection; the idle sweep reclaims them later.
	assert.Equal(t, 1, srv.sessions.Count())
}
