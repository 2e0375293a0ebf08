package adapter

import (
	"context"

	"github.com/marmos91/control2310/pkg/mode"
	"github.com/marmos91/control2310/pkg/registry"
)

// Adapter represents a protocol server managed by ControlServer.
//
// Every adapter shares the one Registry and the one mode Signal of the
// process, so all clients observe the same sorted collection and the same
// snapshot-only switch regardless of which adapter they are connected to.
//
// Lifecycle:
//  1. Creation: adapter is created with protocol-specific configuration
//  2. State injection: SetState() provides the shared registry and signal
//  3. Startup: Serve() accepts connections and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetState() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// SetState injects the shared registry and mode signal.
	//
	// Called exactly once by ControlServer before Serve().
	SetState(reg *registry.Registry, sig *mode.Signal)

	// Stop initiates graceful shutdown. It must be idempotent, safe to call
	// concurrently with Serve(), and respect the context deadline.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name for logging and metrics.
	Protocol() string

	// Port returns the TCP port the adapter listens on. Before the listener
	// is bound it returns the configured port, which may be 0.
	Port() int
}
