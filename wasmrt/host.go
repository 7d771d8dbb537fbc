// Package wasmrt runs a single plugin compiled to WebAssembly in
// process, sandboxed by wazero, as the "in-process + callback bundle"
// transport realization of a plugin configuration: no subprocess, no
// socket, no CBOR envelope framing — just a guest module and a narrow
// alloc/call/dealloc ABI.
package wasmrt

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// CallKind identifies which plugin callback a Call invokes inside the
// guest module.
type CallKind uint32

const (
	CallInitialize CallKind = iota
	CallDrop
	CallAllocate
	CallFree
	CallGate
	CallAdvance
	CallUpstreamArb
	CallHostArb
	CallModifyMeasurement
)

// Host wraps a wazero runtime around one compiled guest module. The
// guest must export dqcsim_alloc(size) -> ptr, dqcsim_dealloc(ptr,
// size), and dqcsim_call(kind, ptr, len) -> packed (ptr<<32|len); a
// single instance is reused for every call, serialized by a mutex
// since wazero module instances are not safe for concurrent calls.
type Host struct {
	ctx      context.Context
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	mod      api.Module

	alloc   api.Function
	dealloc api.Function
	call    api.Function

	mu sync.Mutex
}

// New compiles and instantiates wasmBytes, validating that it exports
// the required ABI functions.
func New(ctx context.Context, wasmBytes []byte) (*Host, error) {
	r := wazero.NewRuntime(ctx)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, dqerrors.ProtocolFailure("wasm guest failed to compile: %s", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		r.Close(ctx)
		return nil, dqerrors.ProtocolFailure("wasm guest failed to instantiate: %s", err)
	}

	h := &Host{
		ctx:      ctx,
		runtime:  r,
		compiled: compiled,
		mod:      mod,
		alloc:    mod.ExportedFunction("dqcsim_alloc"),
		dealloc:  mod.ExportedFunction("dqcsim_dealloc"),
		call:     mod.ExportedFunction("dqcsim_call"),
	}
	if h.alloc == nil || h.dealloc == nil || h.call == nil {
		h.Close()
		return nil, dqerrors.ProtocolFailure("wasm guest missing required export (need dqcsim_alloc, dqcsim_dealloc, dqcsim_call)")
	}
	return h, nil
}

// Close releases the guest module and its runtime.
func (h *Host) Close() error {
	return h.runtime.Close(h.ctx)
}

// Call marshals argCBOR into guest memory, invokes dqcsim_call(kind,
// ptr, len), and returns the CBOR-encoded result the guest produced.
func (h *Host) Call(kind CallKind, argCBOR []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var argPtr, argLen uint64
	argLen = uint64(len(argCBOR))
	if argLen > 0 {
		results, err := h.alloc.Call(h.ctx, argLen)
		if err != nil {
			return nil, dqerrors.ProtocolFailure("wasm alloc failed: %s", err)
		}
		argPtr = results[0]
		if argPtr == 0 {
			return nil, dqerrors.ProtocolFailure("wasm alloc returned null")
		}
		if !h.mod.Memory().Write(uint32(argPtr), argCBOR) {
			h.dealloc.Call(h.ctx, argPtr, argLen)
			return nil, dqerrors.ProtocolFailure("wasm memory write out of range")
		}
	}

	results, err := h.call.Call(h.ctx, uint64(kind), argPtr, argLen)
	if argLen > 0 {
		h.dealloc.Call(h.ctx, argPtr, argLen)
	}
	if err != nil {
		return nil, dqerrors.CallbackFailure(fmt.Errorf("wasm dqcsim_call(%d) failed: %w", kind, err))
	}

	packed := results[0]
	resultPtr := uint32(packed >> 32)
	resultLen := uint32(packed & 0xFFFFFFFF)
	if resultLen == 0 {
		return nil, nil
	}

	resultBytes, ok := h.mod.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, dqerrors.ProtocolFailure("wasm memory read out of range")
	}
	out := make([]byte, len(resultBytes))
	copy(out, resultBytes)
	h.dealloc.Call(h.ctx, uint64(resultPtr), uint64(resultLen))
	return out, nil
}
