// Package server wires transports, the protocol state machine, and the
// use-case layer into a runnable chess MCP server.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/domain/transport"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/usecases/agent"
	"github.com/castlemind/chess-mcp-server/internal/usecases/metrics"
	"github.com/castlemind/chess-mcp-server/internal/usecases/notifications"
	"github.com/castlemind/chess-mcp-server/internal/usecases/ratelimit"
	"github.com/castlemind/chess-mcp-server/internal/usecases/resources"
	"github.com/castlemind/chess-mcp-server/internal/usecases/tools"
	"github.com/castlemind/chess-mcp-server/internal/usecases/validation"
)

// ProtocolVersion is the protocol revision advertised at initialize.
const ProtocolVersion = "2024-11-05"

// connState tracks where a connection is in its lifecycle.
type connState int

const (
	stateUninitialized connState = iota
	stateReady
	stateClosed
)

// Handler runs the protocol state machine for one connection. Frames on a
// connection are handled in arrival order; the state mutex exists because
// Close can race with an in-flight frame.
type Handler struct {
	serverName    string
	serverVersion string

	registry *agent.Registry
	limiter  *ratelimit.Limiter
	pipeline *validation.Pipeline
	executor *tools.Executor
	provider *resources.Provider
	notifier *notifications.Dispatcher
	metrics  *metrics.Service
	logger   *logging.Logger

	mu      sync.Mutex
	state   connState
	agentID string
	conn    transport.Transport
}

// HandlerDeps collects the shared components every connection handler uses.
type HandlerDeps struct {
	ServerName    string
	ServerVersion string
	Registry      *agent.Registry
	Limiter       *ratelimit.Limiter
	Pipeline      *validation.Pipeline
	Executor      *tools.Executor
	Provider      *resources.Provider
	Notifier      *notifications.Dispatcher
	Metrics       *metrics.Service
	Logger        *logging.Logger
}

// NewHandler creates a protocol handler bound to one transport connection.
func NewHandler(deps HandlerDeps, conn transport.Transport) *Handler {
	return &Handler{
		serverName:    deps.ServerName,
		serverVersion: deps.ServerVersion,
		registry:      deps.Registry,
		limiter:       deps.Limiter,
		pipeline:      deps.Pipeline,
		executor:      deps.Executor,
		provider:      deps.Provider,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		state:         stateUninitialized,
		conn:          conn,
	}
}

// AgentID returns the agent identifier assigned at initialize, or empty.
func (h *Handler) AgentID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agentID
}

// Close tears down the connection's agent registration. Game sessions are
// kept until the idle sweep reclaims them.
func (h *Handler) Close() {
	h.mu.Lock()
	agentID := h.agentID
	h.state = stateClosed
	h.mu.Unlock()

	if agentID != "" {
		h.registry.Remove(agentID)
	}
}

// HandleMessage processes one raw inbound frame. A nil return means no
// response is written (client notifications).
func (h *Handler) HandleMessage(ctx context.Context, raw []byte) (resp *shared.JSONRPCResponse) {
	start := time.Now()

	var req shared.JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		r := shared.NewErrorResponse(nil, shared.ParseError, shared.ErrorMessage(shared.ParseError), nil)
		return &r
	}
	if req.JSONRPC != shared.JSONRPCVersion || req.Method == "" {
		r := shared.NewErrorResponse(req.ID, shared.InvalidRequest, shared.ErrorMessage(shared.InvalidRequest), nil)
		return &r
	}

	// Requests without an id are notifications; nothing is ever written
	// back for them, success or failure.
	if req.ID == nil {
		h.logger.Debug("ignoring client notification", logging.Fields{"method": req.Method})
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic handling request", logging.Fields{
				"method": req.Method,
				"panic":  r,
			})
			h.metrics.RecordError(h.AgentID(), req.Method)
			out := shared.NewErrorResponse(req.ID, shared.InternalError, shared.ErrorMessage(shared.InternalError), nil)
			resp = &out
		}
	}()

	out := h.dispatch(ctx, &req)

	agentID := h.AgentID()
	h.metrics.RecordRequest(agentID, req.Method, time.Since(start))
	if out != nil && out.Error != nil {
		h.metrics.RecordError(agentID, req.Method)
	}
	if agentID != "" {
		h.registry.Touch(agentID)
	}
	return out
}

func (h *Handler) dispatch(ctx context.Context, req *shared.JSONRPCRequest) *shared.JSONRPCResponse {
	if req.Method == shared.MethodInitialize {
		return h.handleInitialize(req)
	}

	h.mu.Lock()
	ready := h.state == stateReady
	agentID := h.agentID
	h.mu.Unlock()
	if !ready {
		r := shared.NewErrorResponse(req.ID, shared.NotInitialized,
			"server not initialized: call initialize first", nil)
		return &r
	}

	switch req.Method {
	case shared.MethodListTools:
		return h.handleListTools(req, agentID)
	case shared.MethodCallTool:
		return h.handleCallTool(ctx, req, agentID)
	case shared.MethodListResources:
		return h.handleListResources(req, agentID)
	case shared.MethodReadResource:
		return h.handleReadResource(req, agentID)
	default:
		r := shared.NewErrorResponse(req.ID, shared.MethodNotFound,
			shared.ErrorMessage(shared.MethodNotFound)+": "+req.Method, nil)
		return &r
	}
}

func (h *Handler) handleInitialize(req *shared.JSONRPCRequest) *shared.JSONRPCResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != stateUninitialized {
		r := shared.NewErrorResponse(req.ID, shared.InvalidRequest, "connection already initialized", nil)
		return &r
	}

	var params shared.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			r := shared.NewErrorResponse(req.ID, shared.InvalidParams, shared.ErrorMessage(shared.InvalidParams), nil)
			return &r
		}
	}

	agentID := h.registry.Register(params.ClientInfo.Name, params.ClientInfo.Version,
		domain.TransportKind(h.conn.Kind()))
	h.agentID = agentID
	h.state = stateReady

	conn := h.conn
	h.notifier.Subscribe(agentID, func(ctx context.Context, n shared.JSONRPCNotification) error {
		return conn.Send(ctx, n)
	})

	h.logger.Info("agent initialized", logging.Fields{
		"agentId":   agentID,
		"client":    params.ClientInfo.Name,
		"transport": conn.Kind(),
	})

	r := shared.NewResponse(req.ID, shared.InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo: shared.ServerInfo{
			Name:    h.serverName,
			Version: h.serverVersion,
			AgentID: agentID,
		},
		Capabilities: shared.Capabilities{
			Resources: &shared.ResourcesCapability{},
			Tools:     &shared.ToolsCapability{},
		},
	})
	return &r
}

func (h *Handler) handleListTools(req *shared.JSONRPCRequest, agentID string) *shared.JSONRPCResponse {
	if err := h.limiter.Check(agentID, ratelimit.CategoryGeneral); err != nil {
		return errorResponse(req.ID, err, shared.InternalError)
	}
	r := shared.NewResponse(req.ID, shared.ListToolsResult{Tools: h.executor.List()})
	return &r
}

func (h *Handler) handleListResources(req *shared.JSONRPCRequest, agentID string) *shared.JSONRPCResponse {
	if err := h.limiter.Check(agentID, ratelimit.CategoryGeneral); err != nil {
		return errorResponse(req.ID, err, shared.InternalError)
	}
	r := shared.NewResponse(req.ID, shared.ListResourcesResult{Resources: h.provider.List()})
	return &r
}

func (h *Handler) handleCallTool(ctx context.Context, req *shared.JSONRPCRequest, agentID string) *shared.JSONRPCResponse {
	var params shared.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		r := shared.NewErrorResponse(req.ID, shared.InvalidParams, shared.ErrorMessage(shared.InvalidParams), nil)
		return &r
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	if verdict := h.pipeline.ValidateToolCall(agentID, params.Name, params.Arguments); !verdict.Valid() {
		return rejectionResponse(req.ID, verdict)
	}

	result, err := h.executor.Execute(ctx, agentID, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, err, shared.ToolExecutionFailed)
	}
	if result.Err != nil {
		return errorResponse(req.ID, result.Err, shared.ToolExecutionFailed)
	}

	content := []shared.Content{shared.NewTextContent(result.Message)}
	if result.Data != nil {
		data, err := json.Marshal(result.Data)
		if err != nil {
			r := shared.NewErrorResponse(req.ID, shared.InternalError, shared.ErrorMessage(shared.InternalError), nil)
			return &r
		}
		content = append(content, shared.NewTextContent(string(data)))
	}
	r := shared.NewResponse(req.ID, shared.CallToolResult{Content: content})
	return &r
}

func (h *Handler) handleReadResource(req *shared.JSONRPCRequest, agentID string) *shared.JSONRPCResponse {
	var params shared.ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		r := shared.NewErrorResponse(req.ID, shared.InvalidParams, shared.ErrorMessage(shared.InvalidParams), nil)
		return &r
	}

	if verdict := h.pipeline.ValidateResourceRead(agentID, params.URI); !verdict.Valid() {
		return rejectionResponse(req.ID, verdict)
	}

	contents, err := h.provider.Read(agentID, params.URI)
	if err != nil {
		return errorResponse(req.ID, err, shared.InvalidParams)
	}
	r := shared.NewResponse(req.ID, shared.ReadResourceResult{
		Contents: []shared.ResourceContents{contents},
	})
	return &r
}

// rejectionResponse maps a validation verdict to its wire error.
func rejectionResponse(id interface{}, verdict validation.Result) *shared.JSONRPCResponse {
	var r shared.JSONRPCResponse
	switch verdict.Kind {
	case validation.KindRateLimited:
		r = shared.NewErrorResponse(id, shared.RateLimited, verdict.Reason, map[string]interface{}{
			"policy":            verdict.Policy,
			"retryAfterSeconds": retrySeconds(verdict.RetryAfter),
		})
	case validation.KindAccessDenied:
		r = shared.NewErrorResponse(id, shared.SessionNotVisible, verdict.Reason, nil)
	case validation.KindIllegalMove:
		r = shared.NewErrorResponse(id, shared.IllegalMove, verdict.Reason, map[string]interface{}{
			"legalMoves": verdict.LegalMoves,
		})
	default:
		r = shared.NewErrorResponse(id, shared.InvalidParams, verdict.Reason, nil)
	}
	return &r
}

// errorResponse maps domain errors to wire error codes. Errors with no
// specific mapping use fallback.
func errorResponse(id interface{}, err error, fallback shared.ErrorCode) *shared.JSONRPCResponse {
	var r shared.JSONRPCResponse
	switch e := err.(type) {
	case *domain.SessionNotVisibleError:
		r = shared.NewErrorResponse(id, shared.SessionNotVisible, e.Error(), nil)
	case *domain.IllegalMoveError:
		r = shared.NewErrorResponse(id, shared.IllegalMove, e.Error(), map[string]interface{}{
			"legalMoves": e.LegalMoves,
		})
	case *domain.GameFinishedError:
		r = shared.NewErrorResponse(id, shared.GameFinished, e.Error(), map[string]interface{}{
			"outcome": e.Outcome,
		})
	case *domain.OpponentUnavailableError:
		r = shared.NewErrorResponse(id, shared.OpponentUnavailable, e.Error(), map[string]interface{}{
			"retryAfterSeconds": retrySeconds(e.RetryAfter),
		})
	case *domain.RateLimitError:
		r = shared.NewErrorResponse(id, shared.RateLimited, e.Error(), map[string]interface{}{
			"policy":            e.Policy,
			"retryAfterSeconds": retrySeconds(e.RetryAfter),
		})
	case *domain.CapacityError:
		r = shared.NewErrorResponse(id, shared.CapacityExceeded, e.Error(), map[string]interface{}{
			"scope":   e.Scope,
			"limit":   e.Limit,
			"current": e.Current,
		})
	case *domain.ValidationError:
		r = shared.NewErrorResponse(id, shared.InvalidParams, e.Error(), nil)
	default:
		r = shared.NewErrorResponse(id, fallback, err.Error(), nil)
	}
	return &r
}

// retrySeconds rounds a retry hint up to whole seconds, one at minimum.
func retrySeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
