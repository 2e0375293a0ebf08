package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/control2310/internal/logger"
	"github.com/marmos91/control2310/pkg/adapter"
	"github.com/marmos91/control2310/pkg/mode"
	"github.com/marmos91/control2310/pkg/registry"
)

// DefaultStopTimeout bounds the Stop() calls issued during shutdown.
const DefaultStopTimeout = 30 * time.Second

// ControlServer runs the protocol adapters of one registry process.
//
// Every adapter gets the same Registry and the same mode Signal, so an
// identifier added through one adapter is visible through all of them and a
// single SIGHUP switches every connection to snapshot-only mode.
//
// Lifecycle:
//  1. Creation: New() with the shared state
//  2. Registration: AddAdapter() for each adapter
//  3. Startup: Serve() runs all adapters concurrently
//  4. Shutdown: context cancellation stops every adapter
//
// Thread safety:
// AddAdapter() and Adapters() are safe for concurrent use. Serve() may be
// called once; later calls return an error.
type ControlServer struct {
	registry *registry.Registry
	mode     *mode.Signal

	// mu protects adapters and served
	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool

	stopTimeout time.Duration
}

// New creates a ControlServer sharing reg and sig with its adapters.
//
// Panics if either argument is nil (programmer error).
func New(reg *registry.Registry, sig *mode.Signal) *ControlServer {
	if reg == nil {
		panic("registry cannot be nil")
	}
	if sig == nil {
		panic("mode signal cannot be nil")
	}

	return &ControlServer{
		registry:    reg,
		mode:        sig,
		adapters:    make([]adapter.Adapter, 0, 1),
		stopTimeout: DefaultStopTimeout,
	}
}

// SetStopTimeout overrides the timeout given to each adapter's Stop() during
// shutdown. Non-positive values are ignored.
func (s *ControlServer) SetStopTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.stopTimeout = d
	s.mu.Unlock()
}

// AddAdapter injects the shared state into a and registers it.
//
// Two adapters may not share a protocol, nor a fixed port. Port 0 (OS
// assigned) never conflicts.
//
// Returns an error on conflict or if Serve() was already called.
//
// Panics if a is nil.
func (s *ControlServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after Serve() has been called")
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetState(s.registry, s.mode)
	s.adapters = append(s.adapters, a)

	logger.Debug("Registered %s adapter (port %d)", protocol, port)
	return nil
}

// Serve runs every registered adapter and blocks until ctx is cancelled or
// one adapter fails, then stops all adapters in reverse registration order
// and waits for them.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by the context
//   - the failing adapter's error, wrapped
//   - an error if no adapter is registered or Serve() was already called
func (s *ControlServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server instance")
	}
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting control server with %d adapter(s)", len(adapters))

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", a.Protocol())
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				logger.Debug("%s adapter stopped during shutdown: %v", a.Protocol(), err)
			default:
				logger.Error("%s adapter failed: %v", a.Protocol(), err)
				errChan <- adapterError{protocol: a.Protocol(), err: err}
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed - stopping all adapters", adapterErr.protocol)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}
	s.stopAllAdapters(adapters)

	wg.Wait()
	logger.Info("Control server stopped")

	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters calls Stop() on each adapter in reverse order, sharing
// one timeout. Errors are logged and do not interrupt the remaining stops.
func (s *ControlServer) stopAllAdapters(adapters []adapter.Adapter) {
	s.mu.RLock()
	timeout := s.stopTimeout
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		} else {
			logger.Debug("%s adapter stopped", adp.Protocol())
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *ControlServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
