package qubit

import (
	"sync"

	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// Value is the outcome of a measurement, spec §3's {Zero, One,
// Undefined}.
type Value int

const (
	Zero Value = iota
	One
	Undefined
)

func (v Value) String() string {
	switch v {
	case Zero:
		return "zero"
	case One:
		return "one"
	default:
		return "undefined"
	}
}

// MeasurementResult is spec §3's QubitMeasurementResult: a qubit
// reference, its outcome, and an ArbData payload carrying any
// backend-specific annotation (e.g. a confidence score).
type MeasurementResult struct {
	Qubit Ref
	Value Value
	Data  arb.ArbData
}

// entry is the cached state kept per allocated qubit: the last
// measurement plus the two cycle timestamps spec §4.3 names.
type entry struct {
	result        *MeasurementResult
	cycleAtLast   int64 // downstream cycle counter value when `result` was recorded, -1 if never measured
	cycleAtPrior  int64 // the cycle value of the measurement before that, -1 if there wasn't one
	deallocated   bool
}

// Register is the per-plugin measurement cache described in spec
// §4.3: for every qubit the plugin has an upstream view of, it
// remembers the most recent result and the cycle distance since (and
// between) measurements.
type Register struct {
	mu      sync.Mutex
	entries map[Ref]*entry
}

// NewRegister returns an empty measurement register.
func NewRegister() *Register {
	return &Register{entries: make(map[Ref]*entry)}
}

// Track begins bookkeeping for a freshly allocated qubit. Calling it
// again for an already-tracked, non-deallocated qubit is a no-op.
func (r *Register) Track(q Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[q]; ok {
		return
	}
	r.entries[q] = &entry{cycleAtLast: -1, cycleAtPrior: -1}
}

// Deallocate marks q permanently invalid for future measurement
// queries; later Get/CyclesSince/CyclesBetween calls for q fail.
func (r *Register) Deallocate(q Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[q]; ok {
		e.deallocated = true
	}
}

// Record stores a new measurement result for q, observed at the given
// downstream cycle counter value, rotating the cycle timestamps.
func (r *Register) Record(result MeasurementResult, atCycle int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[result.Qubit]
	if !ok || e.deallocated {
		// Per §9's open-question resolution: late results for a qubit
		// that has since been freed are dropped. Nothing is stored and
		// an InvalidOperation error is returned for the caller to log.
		return dqerrors.InvalidOperation("qubit %d is not tracked for measurement", uint64(result.Qubit))
	}

	e.cycleAtPrior = e.cycleAtLast
	e.cycleAtLast = atCycle
	resultCopy := result
	e.result = &resultCopy
	return nil
}

// MarkUndefined forces q's cached result to Undefined without
// advancing its cycle timestamps, for a measurement left pending by a
// plugin that crashed mid stream (spec §9). Nothing in this module
// calls it.
func (r *Register) MarkUndefined(q Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[q]
	if !ok {
		return
	}
	e.result = &MeasurementResult{Qubit: q, Value: Undefined}
}

// Get returns the cached result for q. A qubit that has never been
// measured returns (Undefined result, nil); a deallocated qubit fails.
func (r *Register) Get(q Ref) (*MeasurementResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[q]
	if !ok {
		return nil, dqerrors.InvalidArgument("qubit %d is not allocated", uint64(q))
	}
	if e.deallocated {
		return nil, dqerrors.InvalidArgument("qubit %d is not allocated", uint64(q))
	}
	if e.result == nil {
		return &MeasurementResult{Qubit: q, Value: Undefined}, nil
	}
	cp := *e.result
	return &cp, nil
}

// CyclesSinceMeasure returns the number of cycles elapsed since q's
// last measurement at the given current cycle value, or -1 if q has
// never been measured or has since been deallocated.
func (r *Register) CyclesSinceMeasure(q Ref, currentCycle int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[q]
	if !ok || e.deallocated || e.cycleAtLast < 0 {
		return -1
	}
	return currentCycle - e.cycleAtLast
}

// CyclesBetweenMeasures returns the cycle distance between the two
// most recent measurements of q, or -1 if fewer than two exist or q
// has since been deallocated.
func (r *Register) CyclesBetweenMeasures(q Ref) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[q]
	if !ok || e.deallocated || e.cycleAtPrior < 0 || e.cycleAtLast < 0 {
		return -1
	}
	return e.cycleAtLast - e.cycleAtPrior
}

// CycleCounter is the monotonic per-downstream-interface virtual-time
// counter spec §4.3 names, advanced only by explicit `advance`
// messages. Distinct interfaces in a pipeline hold independent
// counters.
type CycleCounter struct {
	mu    sync.Mutex
	value int64
}

// Advance increases the counter by cycles (which may be 0) and
// returns the new value.
func (c *CycleCounter) Advance(cycles int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += cycles
	return c.value
}

// Value returns the current counter value.
func (c *CycleCounter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
