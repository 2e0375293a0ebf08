package prometheus

import (
	"time"

	"github.com/marmos91/control2310/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// controlMetrics is the Prometheus implementation of metrics.ControlMetrics.
type controlMetrics struct {
	commandsTotal          *prometheus.CounterVec
	commandDuration        *prometheus.HistogramVec
	insertsDropped         prometheus.Counter
	registrySize           prometheus.Gauge
	modeFlipped            prometheus.Gauge
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
}

// NewControlMetrics creates Prometheus-backed metrics registered on the
// global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewControlMetrics() metrics.ControlMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopControlMetrics()
	}
	return NewControlMetricsWith(metrics.GetRegistry())
}

// NewControlMetricsWith creates Prometheus-backed metrics registered on reg.
// It panics if the series are already registered on reg.
func NewControlMetricsWith(reg prometheus.Registerer) metrics.ControlMetrics {
	factory := promauto.With(reg)

	return &controlMetrics{
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "control2310_commands_total",
				Help: "Total number of registry commands by type and status",
			},
			[]string{"command", "status"},
		),
		commandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "control2310_command_duration_milliseconds",
				Help: "Duration of registry commands in milliseconds",
				Buckets: []float64{
					0.1,  // 100us
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"command"},
		),
		insertsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "control2310_inserts_dropped_total",
				Help: "Identifiers dropped because the registry could not grow",
			},
		),
		registrySize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "control2310_registry_size",
				Help: "Current number of registered identifiers",
			},
		),
		modeFlipped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "control2310_snapshot_only_mode",
				Help: "1 once the server has switched to snapshot-only mode",
			},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "control2310_active_connections",
				Help: "Current number of active registry connections",
			},
		),
		connectionsAccepted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "control2310_connections_accepted_total",
				Help: "Total number of registry connections accepted",
			},
		),
		connectionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "control2310_connections_closed_total",
				Help: "Total number of registry connections closed",
			},
		),
		connectionsForceClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "control2310_connections_force_closed_total",
				Help: "Total number of registry connections force-closed during shutdown timeout",
			},
		),
	}
}

func (m *controlMetrics) RecordCommand(command string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.commandsTotal.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds() * 1000)
}

func (m *controlMetrics) RecordInsertDropped() {
	m.insertsDropped.Inc()
}

func (m *controlMetrics) SetRegistrySize(size int) {
	m.registrySize.Set(float64(size))
}

func (m *controlMetrics) RecordModeFlipped() {
	m.modeFlipped.Set(1)
}

func (m *controlMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *controlMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *controlMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *controlMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}
