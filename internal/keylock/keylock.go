// internal/keylock/keylock.go
package keylock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Registry hands out one exclusive lock per aggregate id. Entries are
// reference counted and dropped once nobody holds or waits on them, so the
// map only grows with the number of aggregates currently in use.
type Registry struct {
	mtx     sync.Mutex
	entries map[uuid.UUID]*entry
	timeout time.Duration
}

func New(timeout time.Duration) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*entry),
		timeout: timeout,
	}
}

func (r *Registry) acquireEntry(id uuid.UUID) *entry {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	e, exists := r.entries[id]
	if !exists {
		e = &entry{sem: make(chan struct{}, 1)}
		r.entries[id] = e
	}
	e.refs++
	return e
}

func (r *Registry) releaseEntry(id uuid.UUID, e *entry) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(r.entries, id)
	}
}

// Lock blocks until the lock for id is held, ctx is done or the registry
// timeout elapses. The returned unlock func must be called exactly once.
func (r *Registry) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	e := r.acquireEntry(id)

	var timeout <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		r.releaseEntry(id, e)
		return nil, ctx.Err()
	case <-timeout:
		r.releaseEntry(id, e)
		return nil, ErrTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			r.releaseEntry(id, e)
		})
	}, nil
}

// Len reports how many aggregates currently have a holder or waiter.
func (r *Registry) Len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.entries)
}
