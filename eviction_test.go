package ebb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Idle Eviction Tests
// ============================================================================

// TestEviction_LoneIdleWorker covers the basic shrink contract: with no warm
// allowance, an idle worker is stopped within one timer period (4/3 of the
// idle timeout) and removed from both collections.
func TestEviction_LoneIdleWorker(t *testing.T) {
	pool, err := NewPool(
		WithMaxWorkers(2),
		WithMaxIdleWorkers(0),
		WithIdleTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	defer pool.Stop()

	h, err := pool.Run(func() {})
	require.NoError(t, err)
	<-h.Done()
	require.Equal(t, 1, pool.Stats().TotalWorkers)

	// Deadline is 100ms out; the worker must still be alive well before it.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, pool.Stats().TotalWorkers)

	assert.Eventually(t, func() bool {
		stats := pool.Stats()
		return stats.TotalWorkers == 0 && stats.IdleWorkers == 0
	}, time.Second, 10*time.Millisecond, "idle worker was not evicted")

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.StoppedWorkers)
	assert.GreaterOrEqual(t, stats.TimerTicks, uint64(1))
}

// TestEviction_KeepsWarmWorkers verifies the soft idle capacity: workers
// within MaxIdleWorkers never receive a deadline and survive indefinitely.
func TestEviction_KeepsWarmWorkers(t *testing.T) {
	pool, err := NewPool(
		WithMaxWorkers(3),
		WithMaxIdleWorkers(1),
		WithIdleTimeout(80*time.Millisecond),
	)
	require.NoError(t, err)
	defer pool.Stop()

	release := make(chan struct{})
	h1, err := pool.Run(func() { <-release })
	require.NoError(t, err)
	h2, err := pool.Run(func() { <-release })
	require.NoError(t, err)

	close(release)
	<-h1.Done()
	<-h2.Done()
	require.Equal(t, 2, pool.Stats().IdleWorkers)

	assert.Eventually(t, func() bool {
		return pool.Stats().TotalWorkers == 1
	}, time.Second, 10*time.Millisecond, "over-limit idle worker was not evicted")

	// The warm worker has no deadline and must outlive several timer periods.
	time.Sleep(300 * time.Millisecond)
	stats := pool.Stats()
	assert.Equal(t, 1, stats.TotalWorkers)
	assert.Equal(t, 1, stats.IdleWorkers)
	assert.Equal(t, uint64(1), stats.StoppedWorkers)
}

// TestEviction_ReuseCancelsDeadline verifies that popping a worker for reuse
// cancels its pending expiry: a worker busy past its old deadline must not
// be evicted when it next goes idle.
func TestEviction_ReuseCancelsDeadline(t *testing.T) {
	pool, err := NewPool(
		WithMaxWorkers(2),
		WithMaxIdleWorkers(0),
		WithIdleTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	defer pool.Stop()

	h, err := pool.Run(func() {})
	require.NoError(t, err)
	<-h.Done()

	// Reuse the idle worker before its deadline and keep it busy past the
	// point the old deadline would have elapsed.
	release := make(chan struct{})
	h, err = pool.Run(func() { <-release })
	require.NoError(t, err)
	require.Equal(t, 1, pool.Stats().TotalWorkers)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, pool.Stats().TotalWorkers, "busy worker must never be evicted")

	close(release)
	<-h.Done()

	// Back to idle with a fresh deadline; eventually it is reclaimed.
	assert.Eventually(t, func() bool {
		return pool.Stats().TotalWorkers == 0
	}, time.Second, 10*time.Millisecond)
}

// TestEviction_MultipleExpired verifies the restart-scan: several workers
// expiring in the same period are all removed, each counted once.
func TestEviction_MultipleExpired(t *testing.T) {
	pool, err := NewPool(
		WithMaxWorkers(4),
		WithMaxIdleWorkers(0),
		WithIdleTimeout(60*time.Millisecond),
	)
	require.NoError(t, err)
	defer pool.Stop()

	release := make(chan struct{})
	handles := make([]*Handle, 3)
	for i := range handles {
		h, err := pool.Run(func() { <-release })
		require.NoError(t, err)
		handles[i] = h
	}
	close(release)
	for _, h := range handles {
		<-h.Done()
	}
	require.Equal(t, 3, pool.Stats().IdleWorkers)

	assert.Eventually(t, func() bool {
		stats := pool.Stats()
		return stats.TotalWorkers == 0 && stats.StoppedWorkers == 3
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEviction_AdmissionSweep verifies the opportunistic sweep on the
// admission path: popping an idle worker reclaims other already-expired
// workers without waiting for a timer tick.
func TestEviction_AdmissionSweep(t *testing.T) {
	pool, err := NewPool(
		WithMaxWorkers(3),
		WithMaxIdleWorkers(0),
		WithIdleTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)
	defer pool.Stop()

	release := make(chan struct{})
	h1, err := pool.Run(func() { <-release })
	require.NoError(t, err)
	h2, err := pool.Run(func() { <-release })
	require.NoError(t, err)

	close(release)
	<-h1.Done()
	<-h2.Done()
	require.Equal(t, 2, pool.Stats().IdleWorkers)

	// Let both deadlines lapse, then admit: the popped worker is salvaged
	// by reuse while the other expired worker is swept out.
	time.Sleep(70 * time.Millisecond)

	h3, err := pool.Run(func() {})
	require.NoError(t, err)
	<-h3.Done()

	assert.Eventually(t, func() bool {
		return pool.Stats().StoppedWorkers >= 1
	}, time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, pool.Stats().TotalWorkers, 2)
}
