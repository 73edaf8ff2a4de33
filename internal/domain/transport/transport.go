// Package transport defines the contract between the protocol handler and
// the byte-stream adapters that feed it.
package transport

import (
	"context"

	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
)

// MessageHandler is a function that handles one inbound raw frame and
// returns zero or one response message. A nil response means nothing is
// written back (notifications).
type MessageHandler func(ctx context.Context, raw []byte) *shared.JSONRPCResponse

// Transport produces an ordered sequence of inbound frames and accepts
// outbound messages. It never interprets payloads.
type Transport interface {
	// Start begins reading frames and dispatching them to handler. It
	// blocks until the stream ends or ctx is cancelled.
	Start(ctx context.Context, handler MessageHandler) error

	// Send writes a message through the transport.
	Send(ctx context.Context, message shared.JSONRPCMessage) error

	// Kind reports the transport kind for agent registration.
	Kind() string

	// Close closes the transport.
	Close() error
}
