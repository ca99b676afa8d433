package ebb

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEvents satisfies workerEvents for tests that exercise a worker in
// isolation from a pool.
type stubEvents struct {
	idleCalls atomic.Int64
	tickCalls atomic.Int64
}

func (s *stubEvents) workerIdle(*worker) {
	s.idleCalls.Add(1)
}

func (s *stubEvents) workerTick(*worker) bool {
	s.tickCalls.Add(1)
	return false
}

// newStubWorker returns a worker wired to stub events and an unarmed timer.
func newStubWorker(panicHandler func(interface{})) (*worker, *stubEvents) {
	events := &stubEvents{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return newWorker(events, timer, panicHandler), events
}

func TestWorker_InvokeAndComplete(t *testing.T) {
	w, events := newStubWorker(nil)
	require.NoError(t, w.start())
	defer w.halt()

	var ran atomic.Bool
	done, id, ok := w.invoke(func() { ran.Store(true) })
	require.True(t, ok)
	assert.NotZero(t, id)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not complete")
	}

	assert.True(t, ran.Load())
	assert.Equal(t, int64(1), events.idleCalls.Load(),
		"worker must announce idle before completing the invocation")
}

func TestWorker_InvokeRefusals(t *testing.T) {
	t.Run("slot occupied", func(t *testing.T) {
		// Without a running loop the task slot is never drained, so the
		// second invoke must be refused.
		w, _ := newStubWorker(nil)

		_, _, ok := w.invoke(func() {})
		require.True(t, ok)

		_, _, ok = w.invoke(func() {})
		assert.False(t, ok)
	})

	t.Run("stopped worker", func(t *testing.T) {
		w, _ := newStubWorker(nil)
		require.NoError(t, w.start())
		w.halt()

		_, _, ok := w.invoke(func() {})
		assert.False(t, ok)
	})
}

func TestWorker_HaltJoinsAndIsIdempotent(t *testing.T) {
	w, _ := newStubWorker(nil)
	require.NoError(t, w.start())

	w.halt()
	w.halt() // second halt must not panic or block

	assert.Error(t, w.start(), "a stopped worker cannot be restarted")
}

func TestWorker_PanicRecovery(t *testing.T) {
	var recovered atomic.Value
	w, events := newStubWorker(func(r interface{}) {
		recovered.Store(r)
	})
	require.NoError(t, w.start())
	defer w.halt()

	done, _, ok := w.invoke(func() { panic("boom") })
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking task never completed")
	}

	assert.Equal(t, "boom", recovered.Load())
	assert.Equal(t, int64(1), events.idleCalls.Load(),
		"a panicking task still returns its worker to idle")
}

func TestWorker_ExpiryDeadline(t *testing.T) {
	w, _ := newStubWorker(nil)

	assert.False(t, w.expired(), "no deadline armed")

	w.setExpiry(0)
	assert.True(t, w.expired(), "zero duration expires immediately")

	w.cancelExpiry()
	assert.False(t, w.expired())

	w.setExpiry(time.Hour)
	assert.False(t, w.expired())

	w.setExpiry(5 * time.Millisecond)
	assert.Eventually(t, w.expired, time.Second, time.Millisecond)
}

func TestWorker_ServicesSharedTimer(t *testing.T) {
	events := &stubEvents{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	w := newWorker(events, timer, nil)
	require.NoError(t, w.start())
	defer w.halt()

	timer.Reset(10 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return events.tickCalls.Load() == 1
	}, time.Second, time.Millisecond, "idle worker must service the shared timer")
}
