package ebb

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Handle represents a dispatched task. It carries the invocation id assigned
// by the worker and a channel closed when the task has finished.
type Handle struct {
	id   uint64
	done <-chan struct{}
}

// ID returns the invocation id assigned to the task.
func (h *Handle) ID() uint64 {
	return h.id
}

// Done returns a channel that is closed once the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Pool is a bounded, self-shrinking worker pool. Run hands each task
// straight to a reusable worker, growing the pool on demand up to
// MaxWorkers and stopping workers that stay idle past IdleTimeout.
type Pool struct {
	// mu guards all and idle. Every mutation of the two collections and of
	// their size-derived diagnostics happens under it.
	mu   sync.Mutex
	all  []*worker // every live worker, creation order
	idle []*worker // idle workers, FIFO: front is the reuse/eviction candidate

	// Configuration, readable and writable at runtime. Changes take effect
	// on the next admission or eviction decision.
	maxWorkers  atomic.Int64
	maxIdle     atomic.Int64
	idleTimeout atomic.Int64 // nanoseconds
	overflow    atomic.Int32

	// timer is the single shared eviction timer. It is re-armed, never
	// recreated, and its channel is consumed by whichever idle worker's
	// select wins the tick.
	timer *time.Timer

	free     chan struct{} // capacity 1: raising wakes at least one blocked caller
	stopped  chan struct{} // closed on Stop: releases every current and future waiter
	stopping atomic.Bool

	panicHandler func(interface{})
	logger       *zap.Logger
	metrics      *Metrics

	counters counters
}

// counters backs the Stats snapshot. The total and idleCount entries mirror
// the collection sizes and are rewritten under the pool mutex.
type counters struct {
	total     atomic.Int64
	idleCount atomic.Int64
	stopCount atomic.Uint64
	errors    atomic.Uint64
	ticks     atomic.Uint64
	runNanos  atomic.Int64
}

// NewPool creates a new pool with the given options. It returns an error if
// the configuration is invalid. No workers are created until the first Run.
//
// Example:
//
//	pool, err := ebb.NewPool(
//	    ebb.WithMaxWorkers(50),
//	    ebb.WithIdleTimeout(5*time.Second),
//	)
func NewPool(opts ...Option) (*Pool, error) {
	cfg := DefaultConfig()

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		free:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		logger:  logger,
		metrics: cfg.Metrics,
	}
	p.maxWorkers.Store(int64(cfg.MaxWorkers))
	p.maxIdle.Store(int64(cfg.MaxIdleWorkers))
	p.idleTimeout.Store(int64(cfg.IdleTimeout))
	p.overflow.Store(int32(cfg.OverflowPolicy))

	p.panicHandler = cfg.PanicHandler
	if p.panicHandler == nil {
		p.panicHandler = func(r interface{}) {
			logger.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}

	p.timer = time.NewTimer(time.Hour)
	p.timer.Stop()

	return p, nil
}

// Run hands task to a worker and returns a Handle with the invocation id and
// a completion channel. An idle worker is reused when one exists; otherwise
// the pool grows while below MaxWorkers. At the limit, Run blocks (Wait) or
// refuses with ErrPoolFull (Fail).
//
// Every refusal path returns a sentinel error and increments the error
// counter; callers decide whether to retry.
func (p *Pool) Run(task Task) (*Handle, error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		p.counters.runNanos.Add(int64(elapsed))
		if p.metrics != nil {
			p.metrics.RunSeconds.Add(elapsed.Seconds())
		}
	}()

	if task == nil {
		return nil, ErrNilTask
	}

	var w *worker
	for !p.stopping.Load() {
		var total int
		w, total = p.popIdle()

		if w == nil {
			if total >= int(p.maxWorkers.Load()) {
				if p.OverflowPolicy() == Fail {
					p.recordError()
					return nil, ErrPoolFull
				}

				select {
				case <-p.stopped:
					return nil, ErrPoolStopped
				case <-p.free:
					continue
				}
			}

			w = newWorker(p, p.timer, p.panicHandler)
			if err := w.start(); err != nil {
				p.recordError()
				return nil, &PoolError{msg: "worker start failed", err: err}
			}
			p.register(w)
		}

		break
	}

	if w == nil {
		return nil, ErrPoolStopped
	}

	done, id, ok := w.invoke(task)
	if !ok {
		// A transient refusal, not a worker defect: salvage the worker
		// rather than discarding it.
		p.releaseIdle(w)
		p.recordError()
		return nil, ErrWorkerUnavailable
	}

	return &Handle{id: id, done: done}, nil
}

// Stop transitions the pool to a permanently stopped state. Blocked Run
// callers are released with ErrPoolStopped, every worker is force-stopped
// (a busy worker finishes its in-flight task first), and both collections
// are cleared. The pool accepts no further tasks.
//
// Stop does not cancel running tasks; callers that need a fully drained
// shutdown must stop submitting and wait on outstanding Handles first.
func (p *Pool) Stop() {
	p.setStopping()

	p.mu.Lock()
	workers := slices.Clone(p.all)
	p.mu.Unlock()

	// Joining outside the lock lets busy workers finish their task and
	// re-register as idle, which needs the mutex.
	for _, w := range workers {
		w.halt()
		p.recordStopped()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.timer.Stop()

	if len(p.all) != len(p.idle) {
		p.logger.Error("stop finished with workers unaccounted for",
			zap.Int("all", len(p.all)),
			zap.Int("idle", len(p.idle)))
	}

	p.idle = nil
	p.all = nil
	p.syncSizesLocked()
}

// StopUnused synchronously stops every currently idle worker, leaving busy
// workers untouched. Each idle worker's deadline is forced to expire and the
// eviction sweep runs inline.
func (p *Pool) StopUnused() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.idle {
		w.setExpiry(0)
	}

	p.stopExpiredLocked(nil)
}

// IsStopped reports whether Stop has been called.
func (p *Pool) IsStopped() bool {
	return p.stopping.Load()
}

// Stats returns a snapshot of the pool's diagnostic counters.
func (p *Pool) Stats() Stats {
	return Stats{
		TotalWorkers:   int(p.counters.total.Load()),
		IdleWorkers:    int(p.counters.idleCount.Load()),
		StoppedWorkers: p.counters.stopCount.Load(),
		Errors:         p.counters.errors.Load(),
		TimerTicks:     p.counters.ticks.Load(),
		RunTime:        time.Duration(p.counters.runNanos.Load()),
	}
}

// MaxWorkers returns the maximum number of live workers.
func (p *Pool) MaxWorkers() int {
	return int(p.maxWorkers.Load())
}

// SetMaxWorkers changes the worker limit. It applies to subsequent
// admissions only; workers already running are not disturbed. Values < 1
// are ignored.
func (p *Pool) SetMaxWorkers(n int) {
	if n < 1 {
		p.logger.Warn("ignoring invalid MaxWorkers", zap.Int("value", n))
		return
	}
	p.maxWorkers.Store(int64(n))
}

// MaxIdleWorkers returns the number of idle workers kept warm indefinitely.
func (p *Pool) MaxIdleWorkers() int {
	return int(p.maxIdle.Load())
}

// SetMaxIdleWorkers changes the warm-idle limit. It applies to workers that
// become idle afterwards. Values < 0 are ignored.
func (p *Pool) SetMaxIdleWorkers(n int) {
	if n < 0 {
		p.logger.Warn("ignoring invalid MaxIdleWorkers", zap.Int("value", n))
		return
	}
	p.maxIdle.Store(int64(n))
}

// IdleTimeout returns how long an idle worker over the warm limit may live.
func (p *Pool) IdleTimeout() time.Duration {
	return time.Duration(p.idleTimeout.Load())
}

// SetIdleTimeout changes the idle-to-live duration for workers that become
// idle afterwards. Values <= 0 are ignored.
func (p *Pool) SetIdleTimeout(d time.Duration) {
	if d <= 0 {
		p.logger.Warn("ignoring invalid IdleTimeout", zap.Duration("value", d))
		return
	}
	p.idleTimeout.Store(int64(d))
}

// OverflowPolicy returns the current at-capacity behavior of Run.
func (p *Pool) OverflowPolicy() OverflowPolicy {
	return OverflowPolicy(p.overflow.Load())
}

// SetOverflowPolicy changes the at-capacity behavior for subsequent Run
// calls. Invalid values are ignored.
func (p *Pool) SetOverflowPolicy(policy OverflowPolicy) {
	if policy != Wait && policy != Fail {
		p.logger.Warn("ignoring invalid OverflowPolicy", zap.Int("value", int(policy)))
		return
	}
	p.overflow.Store(int32(policy))
}

// setStopping raises the sticky stop signal exactly once.
func (p *Pool) setStopping() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping.CompareAndSwap(false, true) {
		close(p.stopped)
	}
}

// popIdle removes and returns the front idle worker, or nil when none is
// available; total is the size of the live set either way. Popping cancels
// the worker's pending deadline and opportunistically sweeps other expired
// idle workers while the lock is already held.
func (p *Pool) popIdle() (*worker, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := len(p.all)
	if len(p.idle) == 0 {
		return nil, total
	}

	w := p.idle[0]
	p.idle = p.idle[1:]
	p.syncSizesLocked()

	w.cancelExpiry()
	p.stopExpiredLocked(nil)

	return w, total
}

// register adds a freshly started worker to the live set.
func (p *Pool) register(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.all = append(p.all, w)
	p.syncSizesLocked()
}

// releaseIdle returns a worker that declined an invocation to the back of
// the idle list. During shutdown the worker is left out: Stop already owns
// it through the live set.
func (p *Pool) releaseIdle(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopping.Load() {
		return
	}

	p.idle = append(p.idle, w)
	p.syncSizesLocked()
}

// workerIdle is called by a worker's goroutine when it finished its task and
// is returning to the idle list. Beyond the warm limit the worker gets an
// expiry deadline and the shared timer is re-armed. The free signal wakes at
// most one blocked admission caller.
func (p *Pool) workerIdle(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !slices.Contains(p.all, w) || slices.Contains(p.idle, w) {
		p.logger.Error("idle notification from a worker outside the live set")
		return
	}

	if len(p.idle)+1 > int(p.maxIdle.Load()) {
		w.setExpiry(p.IdleTimeout())
		p.armTimerLocked()
	}

	p.idle = append(p.idle, w)
	p.syncSizesLocked()

	select {
	case p.free <- struct{}{}:
	default:
	}
}

// workerTick is called by the idle worker whose select won the shared timer
// channel. The lock is acquired best-effort only: a tick that loses the race
// against admission or shutdown work is skipped and caught by the next tick
// or the next admission-time sweep.
//
// It reports true when the driving worker was itself expired: the sweep
// never stops the worker executing it, so the eviction is performed here,
// after the scan, and the worker's goroutine exits on return.
func (p *Pool) workerTick(w *worker) bool {
	p.counters.ticks.Add(1)
	if p.metrics != nil {
		p.metrics.TimerTicks.Inc()
	}

	if !p.mu.TryLock() {
		return false
	}
	defer p.mu.Unlock()

	if !p.stopExpiredLocked(w) {
		return false
	}

	if !p.removeLocked(w) {
		return false
	}
	p.recordStopped()
	w.markStopped()
	return true
}

// stopExpiredLocked sweeps the idle list and stops every worker whose
// deadline has elapsed, except the excluded caller. The scan restarts after
// every removal since removal invalidates positions and several entries may
// have expired. It reports whether the excluded worker was itself due.
//
// The shared timer is disarmed up front; paths that still need it re-arm it.
// The sweep never runs during shutdown: Stop owns every worker then.
func (p *Pool) stopExpiredLocked(exclude *worker) bool {
	p.timer.Stop()

	if p.stopping.Load() {
		return false
	}

	excludedDue := false
	for cont := true; cont; {
		cont = false

		for _, w := range p.idle {
			if !w.expired() {
				continue
			}

			if w == exclude {
				excludedDue = true
				continue
			}

			w.halt()
			p.recordStopped()
			p.removeLocked(w)

			cont = true
			break
		}
	}

	return excludedDue
}

// removeLocked erases a worker from both collections in one step, so no
// intermediate state where the worker is idle but not live is ever visible.
// The collections are the only owners of a worker; a membership mismatch is
// a programming error, reported and skipped rather than crashed on.
func (p *Pool) removeLocked(w *worker) bool {
	i := slices.Index(p.idle, w)
	j := slices.Index(p.all, w)

	if i < 0 || j < 0 {
		p.logger.Error("evicted worker missing from a collection",
			zap.Bool("in_idle", i >= 0),
			zap.Bool("in_all", j >= 0))
		if i >= 0 {
			p.idle = slices.Delete(p.idle, i, i+1)
		}
		if j >= 0 {
			p.all = slices.Delete(p.all, j, j+1)
		}
		p.syncSizesLocked()
		return false
	}

	p.idle = slices.Delete(p.idle, i, i+1)
	p.all = slices.Delete(p.all, j, j+1)
	p.syncSizesLocked()
	return true
}

// armTimerLocked re-arms the shared eviction timer at 4/3 of the idle
// timeout, guaranteeing every armed deadline has elapsed by the time the
// timer fires. The slack trades a little staleness for a single coalescing
// timer instead of one per worker.
func (p *Pool) armTimerLocked() {
	d := p.IdleTimeout()
	p.timer.Reset(d + d/3)
}

// syncSizesLocked rewrites the size-derived diagnostics from the
// collections.
func (p *Pool) syncSizesLocked() {
	total := int64(len(p.all))
	idle := int64(len(p.idle))

	p.counters.total.Store(total)
	p.counters.idleCount.Store(idle)

	if p.metrics != nil {
		p.metrics.WorkersTotal.Set(float64(total))
		p.metrics.WorkersIdle.Set(float64(idle))
	}
}

func (p *Pool) recordError() {
	p.counters.errors.Add(1)
	if p.metrics != nil {
		p.metrics.Errors.Inc()
	}
}

func (p *Pool) recordStopped() {
	p.counters.stopCount.Add(1)
	if p.metrics != nil {
		p.metrics.WorkersStopped.Inc()
	}
}
