// Package ebb provides a bounded, self-shrinking worker pool for Go.
//
// Ebb hands each task straight to a reusable worker goroutine instead of
// queueing it: a call to Run either reuses an idle worker, grows the pool,
// blocks, or refuses. Workers that stay idle past a configurable timeout are
// stopped automatically, so a pool sized for peak load shrinks back on its
// own when traffic ebbs.
//
// # Key Features
//
//   - Direct handoff: no internal task queue, no work stealing
//   - On-demand growth up to a configurable worker limit
//   - Automatic eviction of idle workers past a soft warm limit
//   - Wait or Fail overflow policies for backpressure control
//   - Per-invocation completion channels and ids
//   - Optional Prometheus metrics and zap logging
//   - Panic recovery with a customizable handler
//
// # Quick Start
//
// Basic usage with default configuration:
//
//	pool, err := ebb.NewPool()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Stop()
//
//	h, err := pool.Run(func() {
//	    fmt.Println("task executed")
//	})
//	if err != nil {
//	    log.Printf("task refused: %v", err)
//	    return
//	}
//
//	<-h.Done() // wait for completion
//
// # Configuration
//
// Customize the pool using functional options:
//
//	pool, err := ebb.NewPool(
//	    ebb.WithMaxWorkers(50),
//	    ebb.WithMaxIdleWorkers(4),
//	    ebb.WithIdleTimeout(5 * time.Second),
//	    ebb.WithOverflowPolicy(ebb.Fail),
//	)
//
// All four settings can also be changed at runtime (SetMaxWorkers and
// friends); a change applies to the next admission or eviction decision and
// never disturbs workers already running.
//
// # Overflow Policies
//
// When no idle worker exists and the pool is at its worker limit, Run
// behaves according to the overflow policy:
//
// Wait (default): blocks until a worker becomes idle or the pool stops.
// Use for backpressure control.
//
//	pool, _ := ebb.NewPool(
//	    ebb.WithOverflowPolicy(ebb.Wait),
//	)
//
// Fail: returns ErrPoolFull immediately. Use when the caller sheds load or
// retries on its own schedule.
//
//	pool, _ := ebb.NewPool(
//	    ebb.WithOverflowPolicy(ebb.Fail),
//	)
//
//	_, err := pool.Run(task)
//	if errors.Is(err, ebb.ErrPoolFull) {
//	    // Shed load or retry later
//	}
//
// # Idle Eviction
//
// Up to MaxIdleWorkers idle workers are kept warm indefinitely. A worker
// that becomes idle beyond that count receives an expiry deadline equal to
// IdleTimeout, and one shared timer, armed at 4/3 of that duration, sweeps
// expired workers out of the pool. The timer path is best-effort: a tick
// that loses the lock race is skipped and the next tick or the next
// admission-time sweep catches up.
//
// StopUnused stops every currently idle worker immediately, leaving busy
// workers untouched. Stop shuts the whole pool down: blocked callers are
// released with ErrPoolStopped and every worker is stopped once its
// in-flight task (if any) finishes.
//
// # Observability
//
// Stats returns a snapshot of the pool's diagnostic counters. With
// WithMetrics, the same counters are exported as Prometheus collectors;
// sharing one Metrics bundle across pools aggregates them process-wide.
// Diagnostics are observational only and never feed back into control
// decisions.
package ebb
