// Package mode holds the process-wide snapshot-only switch.
//
// The switch starts cleared and is set by an operator signal (SIGHUP by
// default). Once set it is never cleared: from then on every request on every
// connection is answered with a registry snapshot and no further identifiers
// are registered. There is deliberately no Reset.
package mode

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/marmos91/control2310/internal/logger"
)

// Signal is the process-wide snapshot-only flag. The zero value is cleared
// and ready to use. A Signal must not be copied after first use.
type Signal struct {
	set atomic.Bool
}

// New returns a cleared Signal.
func New() *Signal {
	return &Signal{}
}

// Set flips the flag. It reports true only for the call that performed the
// transition; later calls are no-ops.
func (s *Signal) Set() bool {
	return s.set.CompareAndSwap(false, true)
}

// IsSet reports whether the flag has been flipped.
func (s *Signal) IsSet() bool {
	return s.set.Load()
}

// Notify sets the flag when any of sigs is delivered to the process. With no
// sigs, SIGHUP is used. The returned channel is closed once the flag has been
// set by a signal; Notify stops listening when ctx is cancelled.
func (s *Signal) Notify(ctx context.Context, sigs ...os.Signal) <-chan struct{} {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGHUP}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	flipped := make(chan struct{})
	go func() {
		defer signal.Stop(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				if s.Set() {
					logger.Info("Received %v: switching every connection to snapshot-only mode", sig)
					close(flipped)
				} else {
					logger.Debug("Received %v: snapshot-only mode already active", sig)
				}
			}
		}
	}()

	return flipped
}
