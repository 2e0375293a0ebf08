package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/control2310/internal/logger"
	"github.com/marmos91/control2310/pkg/metrics"
	"github.com/marmos91/control2310/pkg/mode"
	"github.com/marmos91/control2310/pkg/registry"
)

// ControlAdapter implements adapter.Adapter for the plane registry protocol.
//
// ControlAdapter owns the TCP listener and the accept loop. Each accepted
// connection is served by its own ControlConnection goroutine against the
// shared Registry and mode Signal. With MaxConnections = 0 there is no
// admission control: every accepted connection gets a goroutine, bounded
// only by process limits.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. Read deadlines of active connections expire (blocked reads return)
//  4. Wait for active connections to finish (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use.
type ControlAdapter struct {
	// config holds the adapter configuration with defaults applied
	config ControlConfig

	// listenMu serialises Listen against itself and initiateShutdown
	listenMu sync.Mutex
	listener net.Listener

	// port is the bound port once Listen succeeded
	port atomic.Int32

	// registry and mode are the process-wide shared state
	registry *registry.Registry
	mode     *mode.Signal

	metrics metrics.ControlMetrics

	// activeConns tracks connection goroutines for graceful shutdown
	activeConns sync.WaitGroup

	shutdownOnce sync.Once

	// shutdown is closed by initiateShutdown
	shutdown chan struct{}

	connCount atomic.Int32

	// connSemaphore bounds concurrent connections; nil when unlimited
	connSemaphore chan struct{}

	// shutdownCtx is passed to every connection and cancelled on shutdown
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps connection ID to net.Conn for shutdown
	activeConnections sync.Map
}

// ControlConfig holds the configuration of the registry adapter.
//
// Default values (applied by New if zero):
//   - Port: 0 (OS-assigned ephemeral port)
//   - MaxConnections: 0 (unlimited)
//   - MaxLineLength: 4096 bytes
//   - Timeouts: all 0 (no deadlines)
//   - RateLimit: 0 (unlimited)
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 0 (disabled)
type ControlConfig struct {
	// Enabled controls whether the registry adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// BindAddress is the interface to listen on. Empty means all interfaces.
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,hostname|ip"`

	// Port is the TCP port to listen on. 0 asks the OS for an ephemeral
	// port, which is reported by Listen and Port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent client connections. When reached,
	// the accept loop waits for a connection to close. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// MaxLineLength bounds a single request line in bytes, excluding the
	// terminator. Longer lines close the connection.
	MaxLineLength int `mapstructure:"max_line_length" validate:"min=0"`

	// Timeouts configures per-connection deadlines.
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`

	// RateLimit throttles commands on each connection.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// ShutdownTimeout is the maximum time to wait for active connections
	// during graceful shutdown before they are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MetricsLogInterval is the interval for logging connection and
	// registry counts. 0 disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

// TimeoutsConfig holds per-connection deadlines. 0 disables a deadline.
type TimeoutsConfig struct {
	// Read is the maximum time to wait for the next request line.
	Read time.Duration `mapstructure:"read" validate:"min=0"`

	// Write is the maximum time to write one snapshot response.
	Write time.Duration `mapstructure:"write" validate:"min=0"`

	// Idle closes a connection with no request for this long. When both
	// Read and Idle are set, the shorter one applies.
	Idle time.Duration `mapstructure:"idle" validate:"min=0"`
}

// RateLimitConfig throttles the commands of each connection.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained command rate. 0 means unlimited.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the number of commands allowed above the sustained rate.
	Burst uint `mapstructure:"burst"`
}

// applyDefaults fills in zero values with defaults.
func (c *ControlConfig) applyDefaults() {
	// Port 0 is meaningful (ephemeral) and is left as is.
	if c.MaxLineLength == 0 {
		c.MaxLineLength = 4096
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks the configuration.
func (c *ControlConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxLineLength < 0 {
		return fmt.Errorf("invalid MaxLineLength %d: must be >= 0", c.MaxLineLength)
	}
	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Idle < 0 {
		return fmt.Errorf("invalid timeouts %+v: must be >= 0", c.Timeouts)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MetricsLogInterval < 0 {
		return fmt.Errorf("invalid MetricsLogInterval %v: must be >= 0", c.MetricsLogInterval)
	}
	return nil
}

// New creates a ControlAdapter in a stopped state. Call SetState, then
// Listen (optional) and Serve.
//
// Panics if the configuration is invalid (programmer error; loaded
// configuration is validated by pkg/config).
func New(config ControlConfig, controlMetrics metrics.ControlMetrics) *ControlAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid control config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Control connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("Control connection limit: unlimited")
	}

	if controlMetrics == nil {
		controlMetrics = metrics.NewNoopControlMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	a := &ControlAdapter{
		config:         config,
		metrics:        controlMetrics,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
	a.port.Store(int32(config.Port))
	return a
}

// SetState injects the shared registry and mode signal.
func (s *ControlAdapter) SetState(reg *registry.Registry, sig *mode.Signal) {
	s.registry = reg
	s.mode = sig
	logger.Debug("Control adapter state configured")
}

// Listen binds the TCP listener and returns the concrete port. Calling it
// again returns the already bound port. Serve calls Listen if needed, but
// startup calls it first so the port can be announced before serving.
func (s *ControlAdapter) Listen() (int, error) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	select {
	case <-s.shutdown:
		return 0, errors.New("control adapter is shut down")
	default:
	}

	if s.listener != nil {
		return s.Port(), nil
	}

	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to create control listener on %s: %w", addr, err)
	}

	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(tcpAddr.Port))
	}
	s.listener = listener

	logger.Info("Control server listening on %s", listener.Addr())
	return s.Port(), nil
}

// Serve accepts connections until the context is cancelled or Stop is
// called, spawning one ControlConnection goroutine per connection.
//
// Accept errors other than shutdown are logged and the loop continues.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener cannot be created or connections had to be
//     force-closed
func (s *ControlAdapter) Serve(ctx context.Context) error {
	if s.registry == nil || s.mode == nil {
		return errors.New("control adapter state not configured; call SetState() before Serve()")
	}

	if _, err := s.Listen(); err != nil {
		return err
	}

	logger.Debug("Control config: max_connections=%d max_line_length=%d read_timeout=%v write_timeout=%v idle_timeout=%v",
		s.config.MaxConnections, s.config.MaxLineLength,
		s.config.Timeouts.Read, s.config.Timeouts.Write, s.config.Timeouts.Idle)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Control shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Warn("Error accepting control connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		currentConns := s.connCount.Add(1)

		conn := NewControlConnection(s, tcpConn)
		s.activeConnections.Store(conn.ID(), tcpConn)

		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("Control connection %s accepted from %s (active: %d)",
			conn.ID(), tcpConn.RemoteAddr(), currentConns)

		go func(c *ControlConnection) {
			defer func() {
				s.activeConnections.Delete(c.ID())

				s.activeConns.Done()
				remaining := s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(remaining)

				logger.Debug("Control connection %s closed (active: %d)", c.ID(), remaining)
			}()

			c.Serve(s.shutdownCtx)
		}(conn)
	}
}

// initiateShutdown closes the listener, expires the read deadline of every
// active connection and cancels the request context. Safe to call multiple
// times.
func (s *ControlAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Control shutdown initiated")

		s.listenMu.Lock()
		close(s.shutdown)
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing control listener: %v", err)
			}
		}
		s.listenMu.Unlock()

		s.cancelRequests()

		// Unblock handlers parked in ReadLine so they observe the shutdown.
		now := time.Now()
		s.activeConnections.Range(func(key, value any) bool {
			_ = value.(net.Conn).SetReadDeadline(now)
			return true
		})
	})
}

// gracefulShutdown waits for active connections or ShutdownTimeout,
// whichever comes first, and force-closes what is left.
func (s *ControlAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("Control graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Control graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Control shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("control shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes every tracked TCP connection.
func (s *ControlAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", id, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for active connections until
// ctx is done.
//
// Returns:
//   - nil when all connections completed
//   - ctx.Err() if ctx was done first
func (s *ControlAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("Control shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs connection and registry counts until ctx
// is cancelled.
func (s *ControlAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Control metrics: active_connections=%d registered_planes=%d snapshot_only=%v",
				s.connCount.Load(), s.registry.Len(), s.mode.IsSet())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *ControlAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the bound port, or the configured port before Listen.
func (s *ControlAdapter) Port() int {
	return int(s.port.Load())
}

// Protocol returns "CONTROL".
func (s *ControlAdapter) Protocol() string {
	return "CONTROL"
}
