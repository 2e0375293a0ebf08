package metrics

import "time"

// ControlMetrics provides observability for the registry adapter.
//
// The adapter calls it on every connection and command. This interface is
// optional: when none is provided a no-op implementation is used.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewControlMetrics()
//	adapter := control.New(config, m)
//
//	// Without metrics (no-op)
//	adapter := control.New(config, nil)
type ControlMetrics interface {
	// RecordCommand records a dispatched command.
	//
	// Parameters:
	//   - command: "add" or "log"
	//   - duration: time spent dispatching, including the snapshot write
	//   - err: dispatch error, nil on success
	RecordCommand(command string, duration time.Duration, err error)

	// RecordInsertDropped counts an identifier dropped because the registry
	// could not grow.
	RecordInsertDropped()

	// SetRegistrySize updates the number of registered identifiers.
	SetRegistrySize(size int)

	// RecordModeFlipped marks the switch to snapshot-only mode.
	RecordModeFlipped()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed by a shutdown
	// timeout.
	RecordConnectionForceClosed()
}

// NewNoopControlMetrics returns a ControlMetrics that records nothing.
func NewNoopControlMetrics() ControlMetrics {
	return noopControlMetrics{}
}

type noopControlMetrics struct{}

func (noopControlMetrics) RecordCommand(string, time.Duration, error) {}
func (noopControlMetrics) RecordInsertDropped()                       {}
func (noopControlMetrics) SetRegistrySize(int)                        {}
func (noopControlMetrics) RecordModeFlipped()                         {}
func (noopControlMetrics) SetActiveConnections(int32)                 {}
func (noopControlMetrics) RecordConnectionAccepted()                  {}
func (noopControlMetrics) RecordConnectionClosed()                    {}
func (noopControlMetrics) RecordConnectionForceClosed()               {}
