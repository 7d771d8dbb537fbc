package sim

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dqcsim/dqcsim-go/arb"
)

// HostCall records one call the host made against the driver's
// host-facing API, in issue order. A reproduction file (an external
// concern, not implemented here) replays a recorded run by feeding
// these calls back through a Driver seeded identically.
type HostCall struct {
	Kind string // "start", "wait", "send", "recv", "yield", "arb"
	Arg  *arb.ArbData
	Cmd  *arb.ArbCmd
}

// ReproductionSink collects the data an external tool needs to write a
// reproduction file: the master seed, the plugin pipeline, and the
// ordered host-call log. This package only supplies the inputs; no
// file format is implemented here.
type ReproductionSink interface {
	RecordConfig(masterSeed uint64, plugins []PluginConfig)
	RecordCall(call HostCall)
}

// MemorySink is an in-memory ReproductionSink, useful for tests and
// for driving an external writer without committing to a file format.
type MemorySink struct {
	mu         sync.Mutex
	RunID      string
	MasterSeed uint64
	Plugins    []PluginConfig
	Calls      []HostCall
}

// NewMemorySink creates an empty MemorySink, tagging it with a fresh
// run identifier.
func NewMemorySink() *MemorySink {
	return &MemorySink{RunID: uuid.NewString()}
}

func (s *MemorySink) RecordConfig(masterSeed uint64, plugins []PluginConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MasterSeed = masterSeed
	s.Plugins = append([]PluginConfig(nil), plugins...)
}

func (s *MemorySink) RecordCall(call HostCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, call)
}
