package ebb

import "fmt"

// Common errors returned by the pool.
var (
	// ErrPoolStopped is returned when attempting to run a task on a pool
	// that has been stopped. Once a pool is stopped, it cannot accept new
	// tasks. Callers blocked in Run when Stop is called also receive this
	// error.
	//
	// Example:
	//  pool.Stop()
	//  _, err := pool.Run(task)
	//  if errors.Is(err, ebb.ErrPoolStopped) {
	//      log.Println("Cannot run: pool is stopped")
	//  }
	ErrPoolStopped = &PoolError{msg: "pool is stopped"}

	// ErrPoolFull is returned when the pool is at its worker limit, no idle
	// worker is available, and the overflow policy is Fail. This is the
	// pool's backpressure signal; callers are expected to retry later or
	// shed load.
	//
	// Example:
	//  pool, _ := ebb.NewPool(
	//      ebb.WithOverflowPolicy(ebb.Fail),
	//  )
	//  _, err := pool.Run(task)
	//  if errors.Is(err, ebb.ErrPoolFull) {
	//      // Retry later or drop the task
	//  }
	ErrPoolFull = &PoolError{msg: "pool is full"}

	// ErrNilTask is returned when attempting to run a nil task function.
	// All tasks must be non-nil function values.
	ErrNilTask = &PoolError{msg: "task is nil"}

	// ErrWorkerUnavailable is returned when a worker was obtained but could
	// not accept the task. The worker is returned to the idle list; the
	// condition is transient and a retry will normally succeed.
	ErrWorkerUnavailable = &PoolError{msg: "worker could not accept the task"}
)

// PoolError represents an error that occurred within the pool.
// It wraps underlying errors and provides context about pool operations.
//
// PoolError implements the error interface and supports error unwrapping
// via errors.Unwrap for compatibility with errors.Is and errors.As.
type PoolError struct {
	msg string // Human-readable error message
	err error  // Underlying error (if any)
}

// Error returns a formatted error message.
// If an underlying error exists, it is included in the output.
func (e *PoolError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("ebb: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("ebb: %s", e.msg)
}

// Unwrap returns the underlying error, allowing use with errors.Is and errors.As.
func (e *PoolError) Unwrap() error {
	return e.err
}

// errInvalidConfig creates an error for invalid pool configuration.
// This is returned during pool creation when validation fails.
func errInvalidConfig(msg string) error {
	return &PoolError{msg: "invalid config: " + msg}
}
