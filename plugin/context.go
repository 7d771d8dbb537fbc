package plugin

import (
	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/handle"
	"github.com/dqcsim/dqcsim-go/qubit"
)

// Context is passed to every callback. It exposes the downstream
// framework primitives (allocate/free/gate/advance/arb/get_measurement),
// the PRNG, and the handle table; Frontend callbacks additionally get
// Send/Recv/Yield against the host.
type Context struct {
	rt *Runtime
}

// Handles returns the process-local handle table shared by this
// plugin's callbacks.
func (c *Context) Handles() *handle.Table { return c.rt.handles }

// RandomU64 draws from this plugin's operation PRNG stream.
func (c *Context) RandomU64() uint64 { return c.rt.prng.Operation.RandomU64() }

// RandomF64 draws from this plugin's operation PRNG stream.
func (c *Context) RandomF64() float64 { return c.rt.prng.Operation.RandomF64() }

// ResponseRandomU64 draws from this plugin's response PRNG stream,
// used when returning randomness-dependent data upstream.
func (c *Context) ResponseRandomU64() uint64 { return c.rt.prng.Response.RandomU64() }

// ResponseRandomF64 draws from this plugin's response PRNG stream.
func (c *Context) ResponseRandomF64() float64 { return c.rt.prng.Response.RandomF64() }

// GetMeasurement returns the cached measurement result for q.
func (c *Context) GetMeasurement(q qubit.Ref) (*qubit.MeasurementResult, error) {
	return c.rt.register.Get(q)
}

// CyclesSinceMeasure returns cycles elapsed since q's last measurement.
func (c *Context) CyclesSinceMeasure(q qubit.Ref) int64 {
	return c.rt.register.CyclesSinceMeasure(q, c.rt.downCycles.Value())
}

// CyclesBetweenMeasures returns the cycle distance between q's two
// most recent measurements.
func (c *Context) CyclesBetweenMeasures(q qubit.Ref) int64 {
	return c.rt.register.CyclesBetweenMeasures(q)
}

// Allocate requests count fresh qubits from downstream.
func (c *Context) Allocate(count int, cmds ...*arb.ArbCmd) ([]qubit.Ref, error) {
	return c.rt.downstreamAllocate(count, cmds)
}

// Free releases qubits downstream.
func (c *Context) Free(qubits []qubit.Ref) error {
	return c.rt.downstreamFree(qubits)
}

// GateCall applies g downstream, returning its measurement results (if
// any).
func (c *Context) GateCall(g *gate.Gate) ([]qubit.MeasurementResult, error) {
	return c.rt.downstreamGate(g)
}

// Advance moves the downstream cycle counter forward.
func (c *Context) Advance(cycles int64) error {
	return c.rt.downstreamAdvance(cycles)
}

// ArbCall sends an ArbCmd downstream and returns its response.
func (c *Context) ArbCall(cmd *arb.ArbCmd) (*arb.ArbData, error) {
	return c.rt.downstreamArb(cmd)
}

// ModifyMeasurement pushes a deferred measurement result upstream,
// asynchronously: a plugin that deferred a measurement-gate result
// instead of returning it synchronously from Gate delivers it later
// with this call. Not available to Frontend, which has no further
// gate-stream peer to deliver to.
func (c *Context) ModifyMeasurement(result qubit.MeasurementResult) error {
	if c.rt.meta.Type == Frontend {
		return dqerrors.InvalidOperation("modify_measurement is not available to frontend plugins")
	}
	return c.rt.sendModifyMeasurement(result)
}

// Send enqueues data for the host's next recv. Frontend only.
func (c *Context) Send(data *arb.ArbData) error {
	if c.rt.meta.Type != Frontend {
		return dqerrors.InvalidOperation("send is only available to frontend plugins")
	}
	c.rt.fsm.runSend(data)
	return nil
}

// Recv blocks until the host sends data, or the deadlock condition
// fires. Frontend only.
func (c *Context) Recv() (*arb.ArbData, error) {
	if c.rt.meta.Type != Frontend {
		return nil, dqerrors.InvalidOperation("recv is only available to frontend plugins")
	}
	return c.rt.fsm.runRecv()
}
