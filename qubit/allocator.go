// Package qubit implements the qubit-reference allocator and the
// per-qubit measurement cache described in spec §3 and §4.3: refs are
// positive integers issued monotonically and never reused, and every
// plugin caches the most recent measurement result for each qubit it
// has allocated an upstream view of, along with cycle timestamps.
package qubit

import (
	"fmt"
	"sync"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// Ref is an opaque, non-zero integer identifying a qubit within a
// simulation. 0 is reserved for "none/invalid".
type Ref uint64

func (r Ref) String() string {
	return fmt.Sprintf("q%d", uint64(r))
}

// Valid reports whether r is a non-zero reference.
func (r Ref) Valid() bool { return r != 0 }

// Allocator issues strictly monotonically increasing qubit references
// for one simulation and tracks which are currently live. It is the
// single shared service spec §3/§4.3 calls the "qubit allocator";
// callers serialize access to it the same way they serialize access
// to the handle table, since it is reached only via protocol messages.
type Allocator struct {
	mu    sync.Mutex
	next  uint64
	live  map[Ref]struct{}
	freed map[Ref]struct{}
}

// NewAllocator returns an allocator with no qubits issued yet.
func NewAllocator() *Allocator {
	return &Allocator{
		next:  1,
		live:  make(map[Ref]struct{}),
		freed: make(map[Ref]struct{}),
	}
}

// Allocate issues n fresh, strictly increasing qubit references.
// Allocating zero qubits succeeds and returns an empty slice.
func (a *Allocator) Allocate(n int) []Ref {
	a.mu.Lock()
	defer a.mu.Unlock()

	refs := make([]Ref, n)
	for i := 0; i < n; i++ {
		r := Ref(a.next)
		a.next++
		a.live[r] = struct{}{}
		refs[i] = r
	}
	return refs
}

// Free invalidates the given qubit references. Freeing an empty set
// succeeds. Freeing a qubit that is not currently allocated fails.
func (a *Allocator) Free(refs []Ref) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range refs {
		if _, ok := a.live[r]; !ok {
			return dqerrors.InvalidArgument("qubit %d is not allocated", uint64(r))
		}
	}
	for _, r := range refs {
		delete(a.live, r)
		a.freed[r] = struct{}{}
	}
	return nil
}

// IsLive reports whether r currently denotes an allocated qubit.
func (a *Allocator) IsLive(r Ref) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.live[r]
	return ok
}

// IsFreed reports whether r was issued and has since been freed.
func (a *Allocator) IsFreed(r Ref) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.freed[r]
	return ok
}
