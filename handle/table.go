// Package handle implements the process-scoped handle table spec
// §4.2 describes: a map from monotonically allocated positive integer
// keys to typed objects, with a diagnostic dump and a leak check.
package handle

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// Handle is the opaque, positive, non-reused key the table hands out.
// It is the one type allowed to cross an FFI boundary (spec §9):
// externally it is just an integer; internally it indexes into the
// table.
type Handle uint64

func (h Handle) String() string { return fmt.Sprintf("handle(%d)", uint64(h)) }

type entry struct {
	value interface{}
	typ   reflect.Type
}

// Table is a process-scoped handle table. The zero value is not
// usable; construct one with New.
type Table struct {
	mu      sync.Mutex
	next    uint64
	entries map[Handle]entry
}

// New returns an empty handle table.
func New() *Table {
	return &Table{next: 1, entries: make(map[Handle]entry)}
}

// default is the process-wide table most plugin-runtime code shares;
// tests construct their own Table instances instead.
var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// Default returns the process-wide handle table, creating it on first
// use.
func Default() *Table {
	defaultTableOnce.Do(func() { defaultTable = New() })
	return defaultTable
}

// New allocates a fresh handle for value and returns it. Keys are
// never reused within the table's lifetime, even after Delete.
func (t *Table) New(value interface{}) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := Handle(t.next)
	t.next++
	t.entries[h] = entry{value: value, typ: reflect.TypeOf(value)}
	return h
}

func (t *Table) lookup(h Handle) (entry, error) {
	e, ok := t.entries[h]
	if !ok {
		return entry{}, dqerrors.InvalidArgument("handle %d is invalid", uint64(h))
	}
	return e, nil
}

// Get retrieves the value stored at h.
func (t *Table) Get(h Handle) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

// Type returns a human-readable name for the type stored at h.
func (t *Table) Type(h Handle) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookup(h)
	if err != nil {
		return "", err
	}
	if e.typ == nil {
		return "<nil>", nil
	}
	return e.typ.String(), nil
}

// Delete removes h from the table. The key is never reissued.
func (t *Table) Delete(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.lookup(h); err != nil {
		return err
	}
	delete(t.entries, h)
	return nil
}

// Dump renders a diagnostic listing of every live handle, sorted by
// key, in "handle(N): Type" form.
func (t *Table) Dump() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]Handle, 0, len(t.entries))
	for h := range t.entries {
		keys = append(keys, h)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var b strings.Builder
	for _, h := range keys {
		e := t.entries[h]
		typeName := "<nil>"
		if e.typ != nil {
			typeName = e.typ.String()
		}
		fmt.Fprintf(&b, "%s: %s\n", h, typeName)
	}
	return b.String()
}

// LeakCheck returns nil if no handles remain, or an error summarizing
// how many do (spec §6's "Leak check: N handles remain, ..." message).
func (t *Table) LeakCheck() error {
	t.mu.Lock()
	n := len(t.entries)
	var detail string
	if n > 0 {
		counts := make(map[string]int)
		for _, e := range t.entries {
			typeName := "<nil>"
			if e.typ != nil {
				typeName = e.typ.String()
			}
			counts[typeName]++
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%d %s", counts[name], name))
		}
		detail = strings.Join(parts, ", ")
	}
	t.mu.Unlock()

	if n == 0 {
		return nil
	}
	return dqerrors.LeakCheck(n, detail)
}

// DeleteAll removes every handle from the table, e.g. as part of
// tearing down a simulation.
func (t *Table) DeleteAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[Handle]entry)
}

// Len returns the number of currently live handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
