package control

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/control2310/internal/logger"
	protocol "github.com/marmos91/control2310/internal/protocol/control"
	"github.com/marmos91/control2310/internal/ratelimiter"
	"github.com/marmos91/control2310/pkg/registry"
)

// ControlConnection serves the request lines of one client.
//
// The connection moves between two states: Reading (waiting for the next
// line) and Dispatching (adding an identifier or writing a snapshot). End of
// stream, a read or write error, an over-long line, or server shutdown moves
// it to Closed, which releases the socket. Errors never propagate beyond the
// connection.
type ControlConnection struct {
	server  *ControlAdapter
	conn    net.Conn
	id      string
	reader  *protocol.LineReader
	writer  *bufio.Writer
	limiter *ratelimiter.RateLimiter
}

// NewControlConnection wraps an accepted TCP connection.
func NewControlConnection(server *ControlAdapter, conn net.Conn) *ControlConnection {
	return &ControlConnection{
		server:  server,
		conn:    conn,
		id:      uuid.NewString(),
		reader:  protocol.NewLineReader(conn, server.config.MaxLineLength),
		writer:  bufio.NewWriter(conn),
		limiter: ratelimiter.New(server.config.RateLimit.RequestsPerSecond, server.config.RateLimit.Burst),
	}
}

// ID returns the unique identifier used for this connection in logs.
func (c *ControlConnection) ID() string {
	return c.id
}

// Serve reads and dispatches lines until the connection closes. A panic in
// the handler is recovered so it cannot take down the accept loop.
func (c *ControlConnection) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in control connection %s from %s: %v",
				c.id, c.conn.RemoteAddr(), r)
		}
		_ = c.conn.Close()
	}()

	clientAddr := c.conn.RemoteAddr().String()
	if !c.limiter.Unlimited() {
		logger.Debug("Connection %s from %s: throttled to %d commands/s",
			c.id, clientAddr, c.server.config.RateLimit.RequestsPerSecond)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Connection %s from %s closed due to server shutdown", c.id, clientAddr)
			return
		default:
		}

		if err := c.setReadDeadline(); err != nil {
			logger.Warn("Failed to set read deadline for %s: %v", clientAddr, err)
		}

		line, err := c.reader.ReadLine()
		if err != nil {
			c.logReadError(ctx, clientAddr, err)
			return
		}

		if !c.limiter.Allow() {
			if err := c.limiter.Wait(ctx); err != nil {
				logger.Debug("Connection %s from %s: rate limit wait aborted: %v", c.id, clientAddr, err)
				return
			}
		}

		if err := c.dispatch(line); err != nil {
			logger.Debug("Connection %s from %s: write failed: %v", c.id, clientAddr, err)
			return
		}
	}
}

// dispatch handles one request line. Only write errors are returned; a
// dropped insert is logged and the connection continues.
func (c *ControlConnection) dispatch(line string) error {
	start := time.Now()
	reg := c.server.registry

	if protocol.ParseCommand(line) == protocol.CommandLog || c.server.mode.IsSet() {
		if c.server.config.Timeouts.Write > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.config.Timeouts.Write))
		}

		snapshot := reg.Snapshot()
		err := protocol.WriteSnapshot(c.writer, snapshot)
		c.server.metrics.RecordCommand(protocol.CommandLog.String(), time.Since(start), err)
		if err == nil {
			logger.Debug("Connection %s: sent snapshot of %d plane(s)", c.id, len(snapshot))
		}
		return err
	}

	err := reg.Insert(line)
	c.server.metrics.RecordCommand(protocol.CommandAdd.String(), time.Since(start), err)

	if errors.Is(err, registry.ErrCapacityExhausted) {
		logger.Warn("Connection %s: dropped plane %q: %v", c.id, line, err)
		c.server.metrics.RecordInsertDropped()
		return nil
	}
	if err != nil {
		logger.Error("Connection %s: insert %q failed: %v", c.id, line, err)
		return nil
	}

	c.server.metrics.SetRegistrySize(reg.Len())
	logger.Debug("Connection %s: registered plane %q", c.id, line)
	return nil
}

// setReadDeadline applies the shorter of the read and idle timeouts.
func (c *ControlConnection) setReadDeadline() error {
	timeout := c.server.config.Timeouts.Read
	if idle := c.server.config.Timeouts.Idle; idle > 0 && (timeout == 0 || idle < timeout) {
		timeout = idle
	}
	if timeout == 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(timeout))
}

func (c *ControlConnection) logReadError(ctx context.Context, clientAddr string, err error) {
	var netErr net.Error

	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("Connection %s from %s closed by client", c.id, clientAddr)
	case ctx.Err() != nil:
		logger.Debug("Connection %s from %s closed due to server shutdown", c.id, clientAddr)
	case errors.Is(err, protocol.ErrLineTooLong):
		logger.Warn("Connection %s from %s sent a line longer than %d bytes; closing",
			c.id, clientAddr, c.server.config.MaxLineLength)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Debug("Connection %s from %s timed out: %v", c.id, clientAddr, err)
	default:
		logger.Debug("Error reading from %s: %v", clientAddr, err)
	}
}
