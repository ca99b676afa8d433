package ebb

import (
	"sync/atomic"
	"time"
)

// Task is a unit of work executed by a pool worker.
type Task func()

// invocationID assigns a unique id to every dispatched task.
var invocationID atomic.Uint64

// invocation is one task handed to a worker, paired with its id and the
// channel closed when the task has finished.
type invocation struct {
	id   uint64
	task Task
	done chan struct{}
}

// workerEvents is the narrow surface a worker uses to call back into its
// pool. Keeping it an interface makes the worker's lifetime dependency on
// the pool explicit and one-directional.
type workerEvents interface {
	// workerIdle announces that the worker finished its task and is
	// returning to the idle list.
	workerIdle(w *worker)

	// workerTick is called by the idle worker that won the shared eviction
	// timer. It reports true when the worker evicted itself and must exit.
	workerTick(w *worker) bool
}

// worker is a reusable execution context. It runs one task at a time on its
// own goroutine and reports back to the pool between tasks. Idle/busy state
// is implied by collection membership in the pool, not stored here.
type worker struct {
	events workerEvents
	timer  *time.Timer // shared eviction timer, owned by the pool

	tasks  chan *invocation
	stop   chan struct{}
	exited chan struct{}

	stopped atomic.Bool

	// deadline is the idle-expiry instant in unix nanoseconds.
	// Zero means no deadline is armed.
	deadline atomic.Int64

	panicHandler func(interface{})
}

func newWorker(events workerEvents, timer *time.Timer, panicHandler func(interface{})) *worker {
	return &worker{
		events:       events,
		timer:        timer,
		tasks:        make(chan *invocation, 1),
		stop:         make(chan struct{}),
		exited:       make(chan struct{}),
		panicHandler: panicHandler,
	}
}

// start launches the worker's goroutine. A stopped worker cannot be
// restarted.
func (w *worker) start() error {
	if w.stopped.Load() {
		return ErrWorkerUnavailable
	}
	go w.loop()
	return nil
}

// invoke hands a task to the worker. It reports ok=false when the worker
// cannot currently accept work; the caller decides whether to salvage or
// discard the worker.
func (w *worker) invoke(task Task) (done <-chan struct{}, id uint64, ok bool) {
	if w.stopped.Load() {
		return nil, 0, false
	}

	inv := &invocation{
		id:   invocationID.Add(1),
		task: task,
		done: make(chan struct{}),
	}

	select {
	case w.tasks <- inv:
		return inv.done, inv.id, true
	default:
		return nil, 0, false
	}
}

// halt stops the worker and waits for its goroutine to exit. Safe to call
// more than once and after self-eviction.
func (w *worker) halt() {
	w.markStopped()
	<-w.exited
}

// markStopped flips the worker to stopped without waiting for the goroutine.
// Used by the worker itself when it evicts itself from a timer tick, where
// waiting would be a self-join.
func (w *worker) markStopped() {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.stop)
	}
}

// setExpiry arms the idle-expiry deadline d from now. A zero d marks the
// worker as already expired.
func (w *worker) setExpiry(d time.Duration) {
	w.deadline.Store(time.Now().Add(d).UnixNano())
}

// cancelExpiry clears any pending deadline.
func (w *worker) cancelExpiry() {
	w.deadline.Store(0)
}

// expired reports whether an armed deadline has elapsed.
func (w *worker) expired() bool {
	d := w.deadline.Load()
	return d != 0 && time.Now().UnixNano() >= d
}

// loop is the worker's goroutine. Between tasks it waits on its own task
// slot, the stop signal, and the pool's shared eviction timer. The timer
// channel delivers each tick to exactly one waiting worker, which then
// drives the eviction sweep on the pool's behalf.
func (w *worker) loop() {
	defer close(w.exited)

	for {
		select {
		case <-w.stop:
			return

		case inv := <-w.tasks:
			w.execute(inv)
			// Re-register as idle before completing the handle so a
			// caller woken by Done() reuses this worker instead of
			// growing the pool.
			w.events.workerIdle(w)
			close(inv.done)

		case <-w.timer.C:
			if w.events.workerTick(w) {
				return
			}
		}
	}
}

// execute runs a task with panic recovery.
func (w *worker) execute(inv *invocation) {
	defer func() {
		if r := recover(); r != nil && w.panicHandler != nil {
			w.panicHandler(r)
		}
	}()

	inv.task()
}
