// Package metrics exposes the scheduler and robot-interface counters on a
// dedicated prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the service updates. Constructed once and
// shared; all methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	TasksSubmitted prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TasksCancelled prometheus.Counter

	PendingTasks   prometheus.Gauge
	ActiveTasks    prometheus.Gauge
	InterfaceState *prometheus.GaugeVec

	RunnerRoundTrip prometheus.Histogram
	PollCycle       prometheus.Histogram
}

// New builds and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lh_tasks_submitted_total",
			Help: "Tasks posted to the external runner.",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lh_tasks_completed_total",
			Help: "Tasks reconciled as completed.",
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lh_tasks_failed_total",
			Help: "Tasks that failed submission or execution.",
		}),
		TasksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lh_tasks_cancelled_total",
			Help: "Tasks cancelled on the runner.",
		}),
		PendingTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lh_pending_tasks",
			Help: "Tasks queued locally, not yet accepted by the runner.",
		}),
		ActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lh_active_tasks",
			Help: "Tasks accepted by the runner and not yet terminal.",
		}),
		InterfaceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lh_interface_state",
			Help: "Robot interface state (1 for the current state, 0 otherwise).",
		}, []string{"state"}),
		RunnerRoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lh_runner_round_trip_seconds",
			Help:    "Round-trip time of calls to the external runner.",
			Buckets: prometheus.DefBuckets,
		}),
		PollCycle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lh_poll_cycle_seconds",
			Help:    "Duration of one status reconciliation cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(
		m.TasksSubmitted, m.TasksCompleted, m.TasksFailed, m.TasksCancelled,
		m.PendingTasks, m.ActiveTasks, m.InterfaceState,
		m.RunnerRoundTrip, m.PollCycle,
	)
	return m
}

// SetInterfaceState marks one state active and the others inactive.
func (m *Metrics) SetInterfaceState(state string) {
	for _, s := range []string{"UP", "BUSY", "ERROR", "DOWN"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.InterfaceState.WithLabelValues(s).Set(v)
	}
}

// Handler serves the registry on /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
