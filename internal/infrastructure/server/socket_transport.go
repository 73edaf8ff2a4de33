package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/domain/shared"
	"github.com/castlemind/chess-mcp-server/internal/domain/transport"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
)

// SocketTransport carries newline-delimited JSON-RPC frames over one
// accepted TCP connection. Each connection gets its own transport and
// protocol handler.
type SocketTransport struct {
	conn      net.Conn
	reader    *bufio.Reader
	writer    *bufio.Writer
	logger    *logging.Logger
	closeCh   chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// NewSocketTransport wraps an accepted connection.
func NewSocketTransport(conn net.Conn, logger *logging.Logger) *SocketTransport {
	return &SocketTransport{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		logger:  logger,
		closeCh: make(chan struct{}),
	}
}

// Kind reports the transport kind.
func (t *SocketTransport) Kind() string {
	return string(domain.TransportSocket)
}

// Start reads frames until the peer disconnects or ctx is cancelled.
func (t *SocketTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
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
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "reading frame")
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		if resp := handler(ctx, line); resp != nil {
			if err := t.Send(ctx, *resp); err != nil {
				t.logger.Error("failed to write response", logging.Fields{
					"remote": t.conn.RemoteAddr().String(),
					"error":  err.Error(),
				})
				return err
			}
		}
	}
}

// Send writes one message as a single newline-terminated frame.
func (t *SocketTransport) Send(_ context.Context, message shared.JSONRPCMessage) error {
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

// Close closes the underlying connection, which unblocks the read loop.
func (t *SocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		err = t.conn.Close()
	})
	return err
}
