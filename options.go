package ebb

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Pool during construction.
type Option func(*Config)

// WithMaxWorkers sets the maximum number of live workers, busy or idle.
func WithMaxWorkers(n int) Option {
	return func(c *Config) {
		c.MaxWorkers = n
	}
}

// WithMaxIdleWorkers sets how many idle workers are kept warm indefinitely.
func WithMaxIdleWorkers(n int) Option {
	return func(c *Config) {
		c.MaxIdleWorkers = n
	}
}

// WithIdleTimeout sets how long an idle worker over the warm limit may stay
// alive before being stopped.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = d
	}
}

// WithOverflowPolicy sets the behavior of Run when the pool is at its worker
// limit and no idle worker is available.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(c *Config) {
		c.OverflowPolicy = p
	}
}

// WithPanicHandler sets the function called when a task panics.
func WithPanicHandler(h func(interface{})) Option {
	return func(c *Config) {
		c.PanicHandler = h
	}
}

// WithLogger sets the logger used for invariant-violation and
// misconfiguration reports.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics attaches a bundle of Prometheus collectors to the pool.
// Passing the same Metrics to several pools aggregates their diagnostics.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}
