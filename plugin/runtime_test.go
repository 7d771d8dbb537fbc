package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dqcsim/dqcsim-go/arb"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/qubit"
	"github.com/dqcsim/dqcsim-go/transport"
	"github.com/dqcsim/dqcsim-go/wire"
)

func recvResponse(t *testing.T, ch transport.Channel) wire.Response {
	t.Helper()
	env, err := ch.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagResponse, env.Tag)
	var resp wire.Response
	require.NoError(t, env.Decode(&resp))
	return resp
}

// TestOperatorForwardsGateStreamToBackend exercises scenario S2's
// shape with a bare operator (no callbacks: pure pass-through) sitting
// between a driver-side stand-in and a backend that records what it
// receives.
func TestOperatorForwardsGateStreamToBackend(t *testing.T) {
	driverSide, operatorUpstream := transport.NewInProcessPair(4)
	operatorDown, backendUpstream := transport.NewInProcessPair(4)

	var seenAllocate bool
	backend := New(Metadata{Type: Backend, Name: "back"}, Callbacks{
		Allocate: func(_ *Context, count int, _ []*arb.ArbCmd) ([]qubit.Ref, error) {
			seenAllocate = true
			refs := make([]qubit.Ref, count)
			for i := range refs {
				refs[i] = qubit.Ref(i + 1)
			}
			return refs, nil
		},
	}, backendUpstream, nil, 1)

	operator := New(Metadata{Type: Operator, Name: "op1"}, Callbacks{}, operatorUpstream, operatorDown, 2)

	go backend.Serve()
	go operator.Serve()

	env, err := wire.Encode(wire.TagAllocate, wire.AllocateMsg{Count: 3})
	require.NoError(t, err)
	require.NoError(t, driverSide.Send(env))

	resp := recvResponse(t, driverSide)
	require.True(t, resp.OK)
	var result wire.AllocateResultMsg
	require.NoError(t, resp.Decode(&result))
	assert.Equal(t, []uint64{1, 2, 3}, result.Qubits)
	assert.True(t, seenAllocate)
}

// TestModifyMeasurementRelaysThroughOperator exercises the deferred
// measurement path: a backend answers Gate with zero synchronous
// results but immediately pushes one via ctx.ModifyMeasurement. The
// operator between it and the driver must relay that push further
// upstream (it has no modify_measurement callback of its own, so it
// passes the result through unchanged) before its own Gate response —
// carrying the now-undefined measurement, since none arrived
// synchronously — reaches the driver.
func TestModifyMeasurementRelaysThroughOperator(t *testing.T) {
	driverSide, operatorUpstream := transport.NewInProcessPair(4)
	operatorDown, backendUpstream := transport.NewInProcessPair(4)

	measured := qubit.Ref(7)
	backend := New(Metadata{Type: Backend, Name: "back"}, Callbacks{
		Gate: func(ctx *Context, g *gate.Gate) ([]qubit.MeasurementResult, error) {
			err := ctx.ModifyMeasurement(qubit.MeasurementResult{Qubit: measured, Value: qubit.One})
			require.NoError(t, err)
			return nil, nil
		},
	}, backendUpstream, nil, 1)

	operator := New(Metadata{Type: Operator, Name: "op1"}, Callbacks{}, operatorUpstream, operatorDown, 2)

	go backend.Serve()
	go operator.Serve()

	g, err := gate.NewMeasurement([]qubit.Ref{measured}, gate.Matrix{{1}})
	require.NoError(t, err)
	env, err := wire.Encode(wire.TagGate, wire.GateMsg{Gate: wire.ToGateWire(g)})
	require.NoError(t, err)
	require.NoError(t, driverSide.Send(env))

	deferredEnv, err := driverSide.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.TagModifyMeasurement, deferredEnv.Tag)
	var deferredMsg wire.ModifyMeasurementMsg
	require.NoError(t, deferredEnv.Decode(&deferredMsg))
	deferredResult, err := wire.FromMeasurementResultWire(deferredMsg.Result)
	require.NoError(t, err)
	assert.Equal(t, measured, deferredResult.Qubit)
	assert.Equal(t, qubit.One, deferredResult.Value)

	resp := recvResponse(t, driverSide)
	require.True(t, resp.OK)
	var result wire.GateResultMsg
	require.NoError(t, resp.Decode(&result))
	require.Len(t, result.Results, 1)
	mr, err := wire.FromMeasurementResultWire(result.Results[0])
	require.NoError(t, err)
	assert.Equal(t, measured, mr.Qubit)
	assert.Equal(t, qubit.Undefined, mr.Value, "no synchronous result arrived, so reconcileMeasurements reports Undefined")
}

// TestFrontendTerminatesModifyMeasurementRelay checks that a frontend
// receiving a deferred correction from its downstream peer records it
// but does not attempt to relay it further (it has no gate-stream
// upstream peer to relay to).
func TestFrontendTerminatesModifyMeasurementRelay(t *testing.T) {
	_, frontendDown := transport.NewInProcessPair(4)
	frontend := New(Metadata{Type: Frontend, Name: "front"}, Callbacks{}, nil, frontendDown, 1)

	measured := qubit.Ref(9)
	frontend.register.Track(measured)

	env, err := wire.Encode(wire.TagModifyMeasurement, wire.ModifyMeasurementMsg{
		Result: wire.ToMeasurementResultWire(qubit.MeasurementResult{Qubit: measured, Value: qubit.Zero}),
	})
	require.NoError(t, err)
	frontend.handleDownstreamModifyMeasurement(env)

	got, err := frontend.register.Get(measured)
	require.NoError(t, err)
	assert.Equal(t, qubit.Zero, got.Value)
}
