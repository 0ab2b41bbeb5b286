// Package guard provides a keyed mutual-exclusion lock whose acquisition is
// bounded by a context and a timeout.
//
// Each key owns an independent lock, so holders of different keys never
// wait on one another. Entries are reference counted and dropped when the
// last holder or waiter leaves, keeping the map sized to active keys.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock cannot be acquired in time.
var ErrTimeout = errors.New("guard: lock acquisition timed out")

// Release unlocks a previously acquired key. It must be called exactly once.
type Release func()

type entry struct {
	sem  chan struct{}
	refs int
}

// Keyed is a set of per-key locks. The zero value is not usable; use New.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

// New returns a Keyed lock set. A non-positive timeout means acquisition
// is bounded only by the caller's context.
func New(timeout time.Duration) *Keyed {
	return &Keyed{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Timeout returns the configured acquisition bound.
func (k *Keyed) Timeout() time.Duration { return k.timeout }

// Acquire blocks until the lock for key is held, the timeout elapses, or ctx
// is done. On timeout it returns ErrTimeout; on cancellation it returns the
// context error.
func (k *Keyed) Acquire(ctx context.Context, key string) (Release, error) {
	return k.AcquireTimeout(ctx, key, k.timeout)
}

// AcquireTimeout is Acquire with a per-call timeout overriding the default.
func (k *Keyed) AcquireTimeout(ctx context.Context, key string, timeout time.Duration) (Release, error) {
	e := k.ref(key)

	// Fast path.
	select {
	case e.sem <- struct{}{}:
		return k.releaser(key, e), nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case e.sem <- struct{}{}:
		return k.releaser(key, e), nil
	case <-expired:
		k.unref(key, e)
		return nil, ErrTimeout
	case <-ctx.Done():
		k.unref(key, e)
		return nil, ctx.Err()
	}
}

// TryAcquire takes the lock for key only if it is free.
func (k *Keyed) TryAcquire(key string) (Release, bool) {
	e := k.ref(key)
	select {
	case e.sem <- struct{}{}:
		return k.releaser(key, e), true
	default:
		k.unref(key, e)
		return nil, false
	}
}

// Len reports how many keys currently have holders or waiters.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

func (k *Keyed) releaser(key string, e *entry) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.unref(key, e)
		})
	}
}
