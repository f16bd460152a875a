package runguard

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGuard() (*Guard, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)}
	return New(60*time.Second, WithClock(clock.Now)), clock
}

func TestTryAcquire_WithinCooldown(t *testing.T) {
	g, _ := newTestGuard()
	assert.True(t, g.TryAcquire("analysis:1"))
	assert.False(t, g.TryAcquire("analysis:1"))
	assert.True(t, g.TryAcquire("analysis:2"), "keys are independent")
}

func TestTryAcquire_AfterCooldown(t *testing.T) {
	g, clock := newTestGuard()
	require.True(t, g.TryAcquire("k"))
	clock.Advance(59 * time.Second)
	assert.False(t, g.TryAcquire("k"))
	clock.Advance(time.Second)
	assert.True(t, g.TryAcquire("k"))
}

func TestRelease(t *testing.T) {
	g, _ := newTestGuard()
	require.True(t, g.TryAcquire("k"))
	g.Release("k")
	assert.True(t, g.TryAcquire("k"))
	g.Release("missing")
}

func TestAcquire_ReportsRemaining(t *testing.T) {
	g, clock := newTestGuard()
	require.NoError(t, g.Acquire("k"))
	clock.Advance(20 * time.Second)

	err := g.Acquire("k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunInProgress))

	var rErr *RunInProgressError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "k", rErr.Key)
	assert.Equal(t, 40*time.Second, rErr.Remaining)
	assert.Equal(t, 40*time.Second, g.Remaining("k"))
	assert.Contains(t, err.Error(), "40s")
}

func TestRemaining_FreeKey(t *testing.T) {
	g, clock := newTestGuard()
	assert.Zero(t, g.Remaining("k"))
	require.True(t, g.TryAcquire("k"))
	clock.Advance(2 * time.Minute)
	assert.Zero(t, g.Remaining("k"))
}

func TestSweepDropsExpiredKeys(t *testing.T) {
	g, clock := newTestGuard()
	require.True(t, g.TryAcquire("a"))
	require.True(t, g.TryAcquire("b"))
	clock.Advance(time.Minute)
	require.True(t, g.TryAcquire("c"))
	assert.Equal(t, 1, g.Len())
}

func TestTryAcquire_Concurrent(t *testing.T) {
	g := New(time.Minute)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire("same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestNew_DefaultCooldown(t *testing.T) {
	assert.Equal(t, DefaultCooldown, New(0).cooldown)
}
