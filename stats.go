package ebb

import "time"

// Stats contains a snapshot of the pool's diagnostic counters. All values
// are taken at the time Stats() is called and may be slightly inconsistent
// during concurrent operations; they are for observation only and must not
// be used for control decisions.
//
// Example:
//
//	stats := pool.Stats()
//	fmt.Printf("workers: %d (%d idle)\n", stats.TotalWorkers, stats.IdleWorkers)
type Stats struct {
	// TotalWorkers is the current number of live workers, busy or idle.
	TotalWorkers int

	// IdleWorkers is the current number of idle workers eligible for reuse
	// or eviction. Always <= TotalWorkers.
	IdleWorkers int

	// StoppedWorkers is the total number of workers stopped since the pool
	// was created, whether by idle eviction, StopUnused, or Stop.
	StoppedWorkers uint64

	// Errors is the total number of admission refusals and dispatch
	// failures: Fail-mode rejections, worker start failures, and workers
	// that declined an invocation.
	Errors uint64

	// TimerTicks is the total number of idle-eviction timer callbacks,
	// including ticks that were skipped because the pool lock was held.
	TimerTicks uint64

	// RunTime is the cumulative wall time spent inside Run across all
	// callers, successful or not.
	RunTime time.Duration
}
