package runguard

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const DefaultCooldown = 60 * time.Second

// ErrRunInProgress matches any *RunInProgressError.
var ErrRunInProgress = errors.New("run already in progress")

// RunInProgressError is returned when a subject already has a run inside the
// cooldown window.
type RunInProgressError struct {
	Key       string
	Remaining time.Duration
}

func (e *RunInProgressError) Error() string {
	return fmt.Sprintf("run already in progress for %s, retry in %s", e.Key, e.Remaining.Round(time.Second))
}

func (e *RunInProgressError) Is(target error) bool { return target == ErrRunInProgress }

// Guard allows at most one run per subject key within the cooldown window.
// It is owned by the service instance; the zero value is not usable.
type Guard struct {
	mu       sync.Mutex
	started  map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

type Option func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func New(cooldown time.Duration, opts ...Option) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	g := &Guard{
		started:  map[string]time.Time{},
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// TryAcquire records a run start for key unless one started less than the
// cooldown ago.
func (g *Guard) TryAcquire(key string) bool {
	return g.Acquire(key) == nil
}

// Acquire is TryAcquire reporting the remaining wait as a *RunInProgressError.
func (g *Guard) Acquire(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if at, ok := g.started[key]; ok {
		if left := g.cooldown - now.Sub(at); left > 0 {
			return &RunInProgressError{Key: key, Remaining: left}
		}
	}
	g.started[key] = now
	g.sweep(now)
	return nil
}

// Release ends the run for key so that a new one may start immediately.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.started, key)
}

// Remaining reports how long key is still blocked; zero when it is free.
func (g *Guard) Remaining(key string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	at, ok := g.started[key]
	if !ok {
		return 0
	}
	if left := g.cooldown - g.now().Sub(at); left > 0 {
		return left
	}
	return 0
}

// Len reports the number of tracked keys.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.started)
}

// sweep drops expired entries. Callers hold mu.
func (g *Guard) sweep(now time.Time) {
	for k, at := range g.started {
		if now.Sub(at) >= g.cooldown {
			delete(g.started, k)
		}
	}
}
