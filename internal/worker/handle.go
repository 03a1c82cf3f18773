package worker

import (
	"sync"

	"github.com/inferedge/runtimecore/internal/backend"
)

// backendRefcount is the shared reference-counted global runtime backend
// guard from spec §4.7.5 / §9: "the first Worker to exist acquires the
// global runtime backend; the last to shut down releases it." Acquire and
// Release must be re-entrant and idempotent across concurrent calls.
type backendRefcount struct {
	mu       sync.Mutex
	count    int
	acquire  func() error
	release  func() error
	acquired bool
}

// newBackendRefcount wires acquire/release callbacks supplied by the
// concrete backend implementation (e.g. a real cgo init/teardown pair, or
// a no-op for simbackend).
func newBackendRefcount(acquire, release func() error) *backendRefcount {
	return &backendRefcount{acquire: acquire, release: release}
}

// Acquire increments the refcount, invoking the underlying acquire
// callback only on the 0->1 transition.
func (r *backendRefcount) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 && !r.acquired {
		if r.acquire != nil {
			if err := r.acquire(); err != nil {
				return err
			}
		}
		r.acquired = true
	}
	r.count++
	return nil
}

// Release decrements the refcount, invoking the underlying release
// callback only on the 1->0 transition.
func (r *backendRefcount) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	r.count--
	if r.count == 0 && r.acquired {
		r.acquired = false
		if r.release != nil {
			return r.release()
		}
	}
	return nil
}

// invocationGuard serializes all calls through a ContextHandle (spec
// §4.7.5: "exactly one active invocation per ContextHandle"). Rejects
// concurrent callers with backend.ErrBusy rather than blocking, matching
// spec §4.7.1's generate() contract.
type invocationGuard struct {
	mu   sync.Mutex
	busy bool
}

// tryEnter attempts to become the sole active invocation. Returns a
// release function to call on exit, or (nil, backend.ErrBusy) if another
// invocation is already in flight.
func (g *invocationGuard) tryEnter() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return nil, backend.ErrBusy
	}
	g.busy = true
	return func() {
		g.mu.Lock()
		g.busy = false
		g.mu.Unlock()
	}, nil
}
