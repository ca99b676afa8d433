package ebb

import (
	"time"

	"go.uber.org/zap"
)

// OverflowPolicy defines how Run behaves when no idle worker exists and the
// pool is already at its worker limit.
type OverflowPolicy int

const (
	// Wait blocks the caller until a worker becomes idle or the pool stops.
	Wait OverflowPolicy = iota
	// Fail returns ErrPoolFull immediately without blocking.
	Fail
)

// Config contains all configuration options for the pool.
type Config struct {
	// MaxWorkers is the maximum number of live workers, busy or idle.
	// Must be > 0. Defaults to 100.
	MaxWorkers int

	// MaxIdleWorkers is the number of idle workers kept warm indefinitely.
	// An idle worker beyond this count is given an expiry deadline and is
	// stopped once IdleTimeout elapses without reuse. Defaults to 12.
	MaxIdleWorkers int

	// IdleTimeout is how long an idle worker over the MaxIdleWorkers limit
	// may stay alive before being stopped. Defaults to 3s.
	IdleTimeout time.Duration

	// OverflowPolicy determines behavior when the pool is at MaxWorkers
	// and no idle worker is available. Defaults to Wait.
	OverflowPolicy OverflowPolicy

	// PanicHandler is called when a task panics.
	// If nil, the panic is logged through Logger.
	PanicHandler func(interface{})

	// Logger receives invariant-violation and misconfiguration reports.
	// If nil, logging is disabled (zap.NewNop).
	Logger *zap.Logger

	// Metrics is an optional bundle of Prometheus collectors updated
	// alongside the pool's internal counters. Sharing one Metrics between
	// several pools aggregates their diagnostics. May be nil.
	Metrics *Metrics
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:     100,
		MaxIdleWorkers: 12,
		IdleTimeout:    3 * time.Second,
		OverflowPolicy: Wait,
	}
}

// Validate checks the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.MaxWorkers < 1 {
		return errInvalidConfig("MaxWorkers must be > 0")
	}

	if c.MaxIdleWorkers < 0 {
		return errInvalidConfig("MaxIdleWorkers must be >= 0")
	}

	if c.IdleTimeout <= 0 {
		return errInvalidConfig("IdleTimeout must be > 0")
	}

	if c.OverflowPolicy != Wait && c.OverflowPolicy != Fail {
		return errInvalidConfig("OverflowPolicy must be Wait or Fail")
	}

	return nil
}
