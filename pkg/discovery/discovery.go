// Package discovery announces a registry instance to the discovery service
// (the "mapper").
//
// The announcement is a single line of the form "!<id>:<port>\n" written to
// a fresh TCP connection, which is then closed without reading a reply.
package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/marmos91/control2310/internal/logger"
	protocol "github.com/marmos91/control2310/internal/protocol/control"
)

// DefaultHost is the host the discovery service is expected on.
const DefaultHost = "localhost"

// ErrUnreachable is returned when the discovery service cannot be contacted.
var ErrUnreachable = errors.New("discovery service unreachable")

// Config configures the announcement dialer.
type Config struct {
	// Host is the discovery service host. Empty means DefaultHost.
	Host string `mapstructure:"host" validate:"omitempty,hostname|ip"`

	// DialTimeout bounds the connection attempt. 0 means no timeout beyond
	// the one carried by the context.
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"min=0"`
}

// Registrar sends announcements to one discovery service host.
type Registrar struct {
	host   string
	dialer net.Dialer
}

// NewRegistrar creates a Registrar from cfg.
func NewRegistrar(cfg Config) *Registrar {
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	return &Registrar{
		host:   host,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

// Announce connects to the discovery service on port and registers id as
// reachable on controlPort.
//
// Returns:
//   - nil once the announcement line has been written and flushed
//   - an error wrapping ErrUnreachable if the connection cannot be made
//   - any write error otherwise
func (r *Registrar) Announce(ctx context.Context, port int, id string, controlPort int) error {
	addr := net.JoinHostPort(r.host, strconv.Itoa(port))
	return Announce(ctx, &r.dialer, addr, id, controlPort)
}

// Announce dials addr with d and writes the announcement for id and
// controlPort. A nil dialer uses a zero net.Dialer.
func Announce(ctx context.Context, d *net.Dialer, addr, id string, controlPort int) error {
	if d == nil {
		d = &net.Dialer{}
	}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Debug("Error closing discovery connection to %s: %v", addr, cerr)
		}
	}()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(protocol.FormatAnnouncement(id, controlPort)); err != nil {
		return fmt.Errorf("write announcement to %s: %w", addr, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush announcement to %s: %w", addr, err)
	}

	logger.Info("Announced %s on port %d to discovery service at %s", id, controlPort, addr)
	return nil
}
