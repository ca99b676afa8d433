package ebb

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors mirroring the pool's diagnostic
// counters. The collectors are observational only; the pool never reads
// them back for control decisions.
//
// A single Metrics may be shared by several pools to obtain process-wide
// aggregates.
type Metrics struct {
	// WorkersTotal tracks the number of live workers, busy or idle.
	WorkersTotal prometheus.Gauge

	// WorkersIdle tracks the number of idle workers.
	WorkersIdle prometheus.Gauge

	// WorkersStopped counts workers stopped by eviction or shutdown.
	WorkersStopped prometheus.Counter

	// TimerTicks counts idle-eviction timer callbacks, including ticks
	// skipped because the pool lock was contended.
	TimerTicks prometheus.Counter

	// Errors counts admission refusals and dispatch failures.
	Errors prometheus.Counter

	// RunSeconds accumulates wall time spent inside Run, successful or not.
	RunSeconds prometheus.Counter
}

// NewMetrics creates and registers the pool's Prometheus collectors with the
// default registry.
func NewMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		WorkersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_total",
			Help:      "Current number of live workers, busy or idle",
		}),
		WorkersIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_idle",
			Help:      "Current number of idle workers",
		}),
		WorkersStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_stopped_total",
			Help:      "Total number of workers stopped by eviction or shutdown",
		}),
		TimerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "timer_ticks_total",
			Help:      "Total number of idle-eviction timer callbacks",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of admission refusals and dispatch failures",
		}),
		RunSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_seconds_total",
			Help:      "Cumulative wall time spent inside Run",
		}),
	}
	prometheus.MustRegister(
		m.WorkersTotal,
		m.WorkersIdle,
		m.WorkersStopped,
		m.TimerTicks,
		m.Errors,
		m.RunSeconds,
	)
	return m
}
