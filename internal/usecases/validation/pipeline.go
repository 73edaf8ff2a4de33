// Package validation runs the staged request-validation pipeline: rate
// limit, argument schema, security screening, ownership, domain legality.
// Cheap checks run first so abusive traffic never touches game state.
package validation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/usecases/ratelimit"
)

// Kind tags why a request was rejected.
type Kind string

// Rejection kinds.
const (
	KindOK           Kind = "ok"
	KindRateLimited  Kind = "rate_limited"
	KindInvalidInput Kind = "invalid_input"
	KindAccessDenied Kind = "access_denied"
	KindIllegalMove  Kind = "illegal_move"
)

// Result is the tagged outcome of one pipeline run.
type Result struct {
	Kind       Kind
	Reason     string
	Policy     string
	RetryAfter time.Duration
	LegalMoves []string
}

// Valid reports whether the request passed every stage.
func (r Result) Valid() bool { return r.Kind == KindOK }

func ok() Result { return Result{Kind: KindOK} }

// SessionAuthority answers ownership and legality questions for
// session-scoped operations.
type SessionAuthority interface {
	Owns(sessionID, callerAgentID string) bool
	LegalMoves(sessionID, callerAgentID string) ([]string, error)
}

// Pipeline validates tool calls and resource reads.
type Pipeline struct {
	limiter  *ratelimit.Limiter
	schemas  map[string]*gojsonschema.Schema
	sessions SessionAuthority
	logger   *logging.Logger
}

// New compiles the input schemas of the given tool definitions and wires the
// pipeline. Schemas are compiled once; the tool set is closed after startup.
func New(limiter *ratelimit.Limiter, tools []shared.Tool, sessions SessionAuthority, logger *logging.Logger) (*Pipeline, error) {
	schemas := make(map[string]*gojsonschema.Schema, len(tools))
	for _, t := range tools {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compiling schema for tool %s: %w", t.Name, err)
		}
		schemas[t.Name] = schema
	}
	return &Pipeline{
		limiter:  limiter,
		schemas:  schemas,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// ValidateToolCall runs every stage for a tools/call request.
func (p *Pipeline) ValidateToolCall(agentID, toolName string, args map[string]interface{}) Result {
	// Stage 1: rate limit.
	if err := p.limiter.Check(agentID, rateCategory(toolName)); err != nil {
		return rateLimitResult(err)
	}

	// Stage 2: argument schema.
	schema, known := p.schemas[toolName]
	if !known {
		return Result{Kind: KindInvalidInput, Reason: "unknown tool: " + toolName}
	}
	doc, err := json.Marshal(args)
	if err != nil {
		return Result{Kind: KindInvalidInput, Reason: "arguments are not serializable"}
	}
	outcome, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return Result{Kind: KindInvalidInput, Reason: "argument validation failed: " + err.Error()}
	}
	if !outcome.Valid() {
		return Result{Kind: KindInvalidInput, Reason: schemaErrors(outcome)}
	}

	// Stage 3: security screening of free-text fields.
	for key, value := range args {
		text, isString := value.(string)
		if !isString {
			continue
		}
		if reason, bad := screen(text); bad {
			p.logger.Warn("security screen rejected argument", logging.Fields{
				"agentId": agentID,
				"tool":    toolName,
				"field":   key,
			})
			return Result{Kind: KindInvalidInput, Reason: fmt.Sprintf("field %q %s", key, reason)}
		}
	}

	// Stage 4: ownership of session-scoped operations.
	if sessionID, scoped := args["sessionId"].(string); scoped {
		if !p.sessions.Owns(sessionID, agentID) {
			return Result{Kind: KindAccessDenied, Reason: "session " + sessionID + " not found or not visible"}
		}
	}

	// Stage 5: domain legality, delegated to the rule engine.
	if toolName == "make_move" {
		sessionID, _ := args["sessionId"].(string)
		move, _ := args["move"].(string)
		legal, err := p.sessions.LegalMoves(sessionID, agentID)
		if err != nil {
			return Result{Kind: KindAccessDenied, Reason: err.Error()}
		}
		if !contains(legal, move) {
			return Result{
				Kind:       KindIllegalMove,
				Reason:     "illegal move: " + move,
				LegalMoves: legal,
			}
		}
	}

	return ok()
}

// ValidateResourceRead runs the stages that apply to resources/read: rate
// limit and security screening. Scope checks happen in the provider, which
// knows each URI's visibility.
func (p *Pipeline) ValidateResourceRead(agentID, uri string) Result {
	if err := p.limiter.Check(agentID, ratelimit.CategoryGeneral); err != nil {
		return rateLimitResult(err)
	}
	if reason, bad := screen(uri); bad {
		p.logger.Warn("security screen rejected resource uri", logging.Fields{
			"agentId": agentID,
			"uri":     uri,
		})
		return Result{Kind: KindInvalidInput, Reason: "resource uri " + reason}
	}
	return ok()
}

func rateCategory(toolName string) ratelimit.Category {
	switch toolName {
	case "make_move":
		return ratelimit.CategoryMove
	case "create_game", "create_tournament":
		return ratelimit.CategorySessionCreate
	default:
		return ratelimit.CategoryGeneral
	}
}

func rateLimitResult(err error) Result {
	if rle, isRLE := err.(*domain.RateLimitError); isRLE {
		return Result{
			Kind:       KindRateLimited,
			Reason:     rle.Error(),
			Policy:     rle.Policy,
			RetryAfter: rle.RetryAfter,
		}
	}
	return Result{Kind: KindRateLimited, Reason: err.Error()}
}

func schemaErrors(outcome *gojsonschema.Result) string {
	msg := "invalid arguments"
	for _, e := range outcome.Errors() {
		msg += ": " + e.String()
		break
	}
	return msg
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
