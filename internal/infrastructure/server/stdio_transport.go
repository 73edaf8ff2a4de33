package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/domain/transport"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// StdioTransport carries newline-delimited JSON-RPC frames over a reader and
// writer pair, normally stdin and stdout. Logs must never go to the writer;
// the logger is configured for stderr.
type StdioTransport struct {
	reader    *bufio.Reader
	writer    *bufio.Writer
	logger    *logging.Logger
	closeCh   chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// NewStdioTransport creates a stdio transport over the given streams.
func NewStdioTransport(r io.Reader, w io.Writer, logger *logging.Logger) *StdioTransport {
	return &StdioTransport{
		reader:  bufio.NewReader(r),
		writer:  bufio.NewWriter(w),
		logger:  logger,
		closeCh: make(chan struct{}),
	}
}

// Kind reports the transport kind.
func (t *StdioTransport) Kind() string {
	return string(domain.TransportStdio)
}

// Start reads frames until the stream ends or ctx is cancelled. Each frame
// is handed to handler raw; malformed JSON still reaches the handler so it
// can answer with a null-id parse error.
func (t *StdioTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	for {
		select {
		case <-t.closeCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := t.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "reading frame")
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		if resp := handler(ctx, line); resp != nil {
			if err := t.Send(ctx, *resp); err != nil {
				t.logger.Error("failed to write response", logging.Fields{"error": err.Error()})
			}
		}
	}
}

// Send writes one message as a single newline-terminated frame.
func (t *StdioTransport) Send(_ context.Context, message shared.JSONRPCMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "marshalling message")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return errors.Wrap(err, "writing message")
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "writing newline")
	}
	if err := t.writer.Flush(); err != nil {
		return errors.Wrap(err, "flushing writer")
	}
	return nil
}

// Close stops the read loop.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
	})
	return nil
}
