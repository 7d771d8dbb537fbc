// Package plugin implements the single-threaded, cooperative plugin
// event loop spec §4.3 describes: the bootstrap handshake, the
// gate-stream state machine (operator/backend), and the host-interface
// state machine (frontend), all driven by callbacks a concrete plugin
// supplies.
package plugin

import (
	"github.com/dqcsim/dqcsim-go/arb"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/qubit"
)

// Type identifies a plugin's position in the pipeline.
type Type uint8

const (
	Frontend Type = iota
	Operator
	Backend
)

func (t Type) String() string {
	switch t {
	case Frontend:
		return "frontend"
	case Operator:
		return "operator"
	case Backend:
		return "backend"
	default:
		return "unknown"
	}
}

// Metadata identifies a plugin to its peer during the bootstrap
// handshake (spec §6's HelloPlugin message).
type Metadata struct {
	Type    Type
	Name    string
	Author  string
	Version string
	// FrameworkConstraint, if non-empty, is a semver constraint the
	// driver's framework version must satisfy (checked during the
	// bootstrap handshake via CheckFrameworkCompatibility).
	FrameworkConstraint string
}

// RunFunc is a frontend's entry point: invoked once Start(arg) is
// received from the host, it runs to completion (or suspends on recv
// via the supplied Context) and returns the ArbData the host's Wait
// observes.
type RunFunc func(ctx *Context, arg *arb.ArbData) (*arb.ArbData, error)

// AllocateFunc handles an upstream Allocate request. It must return
// exactly count qubit references (or forward/delegate to ctx.Allocate
// and adjust the result).
type AllocateFunc func(ctx *Context, count int, cmds []*arb.ArbCmd) ([]qubit.Ref, error)

// FreeFunc handles an upstream Free request.
type FreeFunc func(ctx *Context, qubits []qubit.Ref) error

// GateFunc handles an upstream Gate request, returning one measurement
// result per qubit in g.Measures.
type GateFunc func(ctx *Context, g *gate.Gate) ([]qubit.MeasurementResult, error)

// AdvanceFunc handles an upstream Advance request.
type AdvanceFunc func(ctx *Context, cycles int64) error

// ArbFunc handles an ArbCmd, returning a structured response.
type ArbFunc func(ctx *Context, cmd *arb.ArbCmd) (*arb.ArbData, error)

// ModifyMeasurementFunc handles a deferred measurement correction
// arriving from downstream, returning zero or more replacement
// results to forward upstream.
type ModifyMeasurementFunc func(ctx *Context, result qubit.MeasurementResult) ([]qubit.MeasurementResult, error)

// InitializeFunc runs once, before the main loop, with the
// driver-supplied init-command list.
type InitializeFunc func(ctx *Context, cmds []*arb.ArbCmd) error

// DropFunc runs once, during shutdown, before the downstream
// connection is closed.
type DropFunc func(ctx *Context) error

// Callbacks holds every optional callback slot a plugin may fill in.
// Nil slots fall back to the default behavior spec §4.3 mandates for
// that message (forwarding, for operators; nothing, for Initialize/Drop).
type Callbacks struct {
	Initialize InitializeFunc
	Drop       DropFunc

	// Run is required for Frontend plugins; unused otherwise.
	Run RunFunc

	// Gate-stream callbacks, used by Operator and Backend plugins.
	Allocate          AllocateFunc
	Free              FreeFunc
	Gate              GateFunc
	Advance           AdvanceFunc
	UpstreamArb       ArbFunc
	ModifyMeasurement ModifyMeasurementFunc

	// HostArb answers Arb commands the host addresses directly to this
	// plugin by name (spec §4.4's arb routing), available to every
	// plugin type.
	HostArb ArbFunc
}
