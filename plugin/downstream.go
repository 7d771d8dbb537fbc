package plugin

import (
	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/logger"
	"github.com/dqcsim/dqcsim-go/qubit"
	"github.com/dqcsim/dqcsim-go/wire"
)

// downstreamRoundTrip sends (tag, payload) to the downstream channel
// and blocks until the correlated Response arrives, transparently
// handling ModifyMeasurement and Log messages the downstream peer may
// interleave before replying.
func (rt *Runtime) downstreamRoundTrip(tag wire.Tag, payload interface{}) (wire.Response, error) {
	if rt.downstream == nil {
		return wire.Response{}, dqerrors.InvalidOperation("plugin %s has no downstream connection", rt.meta.Name)
	}
	env, err := wire.Encode(tag, payload)
	if err != nil {
		return wire.Response{}, err
	}
	if err := rt.downstream.Send(env); err != nil {
		return wire.Response{}, err
	}

	for {
		reply, err := rt.downstream.Recv()
		if err != nil {
			return wire.Response{}, err
		}
		switch reply.Tag {
		case wire.TagResponse:
			var resp wire.Response
			if err := reply.Decode(&resp); err != nil {
				return wire.Response{}, err
			}
			return resp, nil
		case wire.TagModifyMeasurement:
			rt.handleDownstreamModifyMeasurement(reply)
		case wire.TagLog:
			rt.handleDownstreamLog(reply)
		default:
			return wire.Response{}, dqerrors.ProtocolFailure("unexpected message %s while awaiting response", reply.Tag)
		}
	}
}

// handleDownstreamModifyMeasurement relays a deferred measurement
// correction pushed by the downstream peer: it runs this plugin's own
// modify_measurement callback (pass-through by default), records each
// resulting value locally, and — unless this plugin is the frontend,
// which has no further gate-stream peer to relay to — pushes every
// result on upstream via sendModifyMeasurement.
func (rt *Runtime) handleDownstreamModifyMeasurement(env wire.Envelope) {
	var msg wire.ModifyMeasurementMsg
	if err := env.Decode(&msg); err != nil {
		logger.Warnw("failed to decode deferred modify_measurement", "error", err.Error())
		return
	}
	result, err := wire.FromMeasurementResultWire(msg.Result)
	if err != nil {
		logger.Warnw("failed to decode deferred measurement result", "error", err.Error())
		return
	}

	var out []qubit.MeasurementResult
	if rt.cb.ModifyMeasurement != nil {
		out, err = rt.cb.ModifyMeasurement(rt.ctx, result)
		if err != nil {
			logger.Warnw("modify_measurement callback failed", "error", err.Error())
			return
		}
	} else {
		out = []qubit.MeasurementResult{result}
	}

	for _, r := range out {
		if err := rt.register.Record(r, rt.downCycles.Value()); err != nil {
			logger.Warnw("dropping deferred measurement result for untracked qubit", "qubit", uint64(r.Qubit))
		}
	}

	if rt.meta.Type == Frontend {
		return
	}
	for _, r := range out {
		if err := rt.sendModifyMeasurement(r); err != nil {
			logger.Warnw("failed to relay deferred measurement result upstream", "qubit", uint64(r.Qubit), "error", err.Error())
		}
	}
}

// sendModifyMeasurement pushes result upstream as an asynchronous,
// unacknowledged ModifyMeasurement message: the deferred-delivery half
// of the measurement-gate contract, used both by a plugin originating
// a deferred correction and by one relaying a downstream peer's.
func (rt *Runtime) sendModifyMeasurement(result qubit.MeasurementResult) error {
	env, err := wire.Encode(wire.TagModifyMeasurement, wire.ModifyMeasurementMsg{Result: wire.ToMeasurementResultWire(result)})
	if err != nil {
		return err
	}
	return rt.upstream.Send(env)
}

func (rt *Runtime) handleDownstreamLog(env wire.Envelope) {
	var msg wire.LogMsg
	if err := env.Decode(&msg); err != nil {
		return
	}
	logger.Infow(msg.Message, "logger_name", msg.LoggerName, "module", msg.Module)
}

func (rt *Runtime) downstreamAllocate(count int, cmds []*arb.ArbCmd) ([]qubit.Ref, error) {
	wireCmds := make([]wire.ArbCmdWire, len(cmds))
	for i, c := range cmds {
		wireCmds[i] = wire.ToArbCmdWire(c)
	}
	resp, err := rt.downstreamRoundTrip(wire.TagAllocate, wire.AllocateMsg{Count: count, Cmds: wireCmds})
	if err != nil {
		return nil, err
	}
	var result wire.AllocateResultMsg
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	refs := make([]qubit.Ref, len(result.Qubits))
	for i, q := range result.Qubits {
		refs[i] = qubit.Ref(q)
	}
	return refs, nil
}

func (rt *Runtime) downstreamFree(qubits []qubit.Ref) error {
	ids := make([]uint64, len(qubits))
	for i, q := range qubits {
		ids[i] = uint64(q)
	}
	resp, err := rt.downstreamRoundTrip(wire.TagFree, wire.FreeMsg{Qubits: ids})
	if err != nil {
		return err
	}
	return resp.Decode(nil)
}

func (rt *Runtime) downstreamGate(g *gate.Gate) ([]qubit.MeasurementResult, error) {
	resp, err := rt.downstreamRoundTrip(wire.TagGate, wire.GateMsg{Gate: wire.ToGateWire(g)})
	if err != nil {
		return nil, err
	}
	var result wire.GateResultMsg
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	out := make([]qubit.MeasurementResult, len(result.Results))
	for i, r := range result.Results {
		mr, err := wire.FromMeasurementResultWire(r)
		if err != nil {
			return nil, err
		}
		out[i] = mr
	}
	return out, nil
}

func (rt *Runtime) downstreamAdvance(cycles int64) error {
	resp, err := rt.downstreamRoundTrip(wire.TagAdvance, wire.AdvanceMsg{Cycles: cycles})
	if err != nil {
		return err
	}
	if err := resp.Decode(nil); err != nil {
		return err
	}
	rt.downCycles.Advance(cycles)
	return nil
}

func (rt *Runtime) downstreamArb(cmd *arb.ArbCmd) (*arb.ArbData, error) {
	resp, err := rt.downstreamRoundTrip(wire.TagUpstreamArb, wire.ArbMsg{Cmd: wire.ToArbCmdWire(cmd)})
	if err != nil {
		return nil, err
	}
	var result wire.ArbResultMsg
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	return wire.FromArbDataWire(result.Data)
}
