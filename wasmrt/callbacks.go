package wasmrt

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/plugin"
	"github.com/dqcsim/dqcsim-go/qubit"
	"github.com/dqcsim/dqcsim-go/wire"
)

// Callbacks builds a plugin.Callbacks bundle whose gate-stream and
// arb slots forward into h, so a plugin.Runtime can drive a WASM
// guest exactly like any other in-process callback bundle. Slots the
// guest doesn't implement are left nil, falling back to the same
// forwarding defaults plugin.Runtime applies to any other plugin.
func Callbacks(h *Host, implemented map[CallKind]bool) plugin.Callbacks {
	cb := plugin.Callbacks{}
	if implemented[CallInitialize] {
		cb.Initialize = func(_ *plugin.Context, cmds []*arb.ArbCmd) error {
			wireCmds := make([]wire.ArbCmdWire, len(cmds))
			for i, c := range cmds {
				wireCmds[i] = wire.ToArbCmdWire(c)
			}
			_, err := h.callCBOR(CallInitialize, struct {
				Cmds []wire.ArbCmdWire
			}{wireCmds}, nil)
			return err
		}
	}
	if implemented[CallDrop] {
		cb.Drop = func(_ *plugin.Context) error {
			_, err := h.callCBOR(CallDrop, struct{}{}, nil)
			return err
		}
	}
	if implemented[CallAllocate] {
		cb.Allocate = func(_ *plugin.Context, count int, cmds []*arb.ArbCmd) ([]qubit.Ref, error) {
			wireCmds := make([]wire.ArbCmdWire, len(cmds))
			for i, c := range cmds {
				wireCmds[i] = wire.ToArbCmdWire(c)
			}
			var result struct{ Qubits []uint64 }
			if _, err := h.callCBOR(CallAllocate, struct {
				Count int
				Cmds  []wire.ArbCmdWire
			}{count, wireCmds}, &result); err != nil {
				return nil, err
			}
			refs := make([]qubit.Ref, len(result.Qubits))
			for i, q := range result.Qubits {
				refs[i] = qubit.Ref(q)
			}
			return refs, nil
		}
	}
	if implemented[CallFree] {
		cb.Free = func(_ *plugin.Context, qubits []qubit.Ref) error {
			ids := make([]uint64, len(qubits))
			for i, q := range qubits {
				ids[i] = uint64(q)
			}
			_, err := h.callCBOR(CallFree, struct{ Qubits []uint64 }{ids}, nil)
			return err
		}
	}
	if implemented[CallGate] {
		cb.Gate = func(_ *plugin.Context, g *gate.Gate) ([]qubit.MeasurementResult, error) {
			var result struct{ Results []wire.MeasurementResultWire }
			if _, err := h.callCBOR(CallGate, struct{ Gate wire.GateWire }{wire.ToGateWire(g)}, &result); err != nil {
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
	}
	if implemented[CallAdvance] {
		cb.Advance = func(_ *plugin.Context, cycles int64) error {
			_, err := h.callCBOR(CallAdvance, struct{ Cycles int64 }{cycles}, nil)
			return err
		}
	}
	if implemented[CallUpstreamArb] {
		cb.UpstreamArb = arbCallback(h, CallUpstreamArb)
	}
	if implemented[CallHostArb] {
		cb.HostArb = arbCallback(h, CallHostArb)
	}
	if implemented[CallModifyMeasurement] {
		cb.ModifyMeasurement = func(_ *plugin.Context, result qubit.MeasurementResult) ([]qubit.MeasurementResult, error) {
			var out struct{ Results []wire.MeasurementResultWire }
			if _, err := h.callCBOR(CallModifyMeasurement, struct{ Result wire.MeasurementResultWire }{wire.ToMeasurementResultWire(result)}, &out); err != nil {
				return nil, err
			}
			results := make([]qubit.MeasurementResult, len(out.Results))
			for i, r := range out.Results {
				mr, err := wire.FromMeasurementResultWire(r)
				if err != nil {
					return nil, err
				}
				results[i] = mr
			}
			return results, nil
		}
	}
	return cb
}

func arbCallback(h *Host, kind CallKind) plugin.ArbFunc {
	return func(_ *plugin.Context, cmd *arb.ArbCmd) (*arb.ArbData, error) {
		var result struct{ Data wire.ArbDataWire }
		if _, err := h.callCBOR(kind, struct{ Cmd wire.ArbCmdWire }{wire.ToArbCmdWire(cmd)}, &result); err != nil {
			return nil, err
		}
		return wire.FromArbDataWire(result.Data)
	}
}

// callCBOR is the CBOR-aware convenience wrapper around Host.Call:
// it marshals args, invokes kind, and unmarshals the guest's response
// into out (which may be nil if the callback has no result payload).
func (h *Host) callCBOR(kind CallKind, args interface{}, out interface{}) ([]byte, error) {
	argBytes, err := cbor.Marshal(args)
	if err != nil {
		return nil, dqerrors.ProtocolFailure("failed to encode wasm call %d args: %s", kind, err)
	}
	resultBytes, err := h.Call(kind, argBytes)
	if err != nil {
		return nil, err
	}
	if out != nil && len(resultBytes) > 0 {
		if err := cbor.Unmarshal(resultBytes, out); err != nil {
			return nil, dqerrors.ProtocolFailure("failed to decode wasm call %d result: %s", kind, err)
		}
	}
	return resultBytes, nil
}
