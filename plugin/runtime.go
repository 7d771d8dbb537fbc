package plugin

import (
	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/handle"
	"github.com/dqcsim/dqcsim-go/logger"
	"github.com/dqcsim/dqcsim-go/prng"
	"github.com/dqcsim/dqcsim-go/qubit"
	"github.com/dqcsim/dqcsim-go/transport"
	"github.com/dqcsim/dqcsim-go/wire"
)

// Runtime drives one plugin's event loop: the bootstrap handshake, the
// gate-stream or host-interface state machine appropriate to its Type,
// and the downstream client calls its callbacks use.
type Runtime struct {
	meta Metadata
	cb   Callbacks

	upstream   transport.Channel
	downstream transport.Channel // nil for Backend

	prng       *prng.Generator
	register   *qubit.Register
	handles    *handle.Table
	downCycles *qubit.CycleCounter
	ctx        *Context

	fsm *frontendState // Frontend only
}

// New constructs a Runtime. downstream may be nil at construction time
// (e.g. while it is still being dialed) and attached later with
// SetDownstream; it is expected to be nil permanently only for a
// Backend.
func New(meta Metadata, cb Callbacks, upstream, downstream transport.Channel, seed uint64) *Runtime {
	rt := &Runtime{
		meta:       meta,
		cb:         cb,
		upstream:   upstream,
		downstream: downstream,
		prng:       prng.NewGenerator(seed, meta.Name),
		register:   qubit.NewRegister(),
		handles:    handle.New(),
		downCycles: &qubit.CycleCounter{},
	}
	rt.ctx = &Context{rt: rt}
	if meta.Type == Frontend {
		rt.fsm = newFrontendState()
	}
	return rt
}

// Handshake runs the bootstrap sequence a spawned plugin process
// performs over its freshly dialed upstream connection, before a
// Runtime can be constructed (the driver's reply carries the seed and
// downstream endpoint New needs): send HelloPlugin, receive
// HelloDriver.
func Handshake(upstream transport.Channel, meta Metadata) (wire.HelloDriverMsg, error) {
	env, err := wire.Encode(wire.TagHelloPlugin, wire.HelloPluginMsg{
		Type:                wire.PluginKind(meta.Type),
		Name:                meta.Name,
		Author:              meta.Author,
		Version:             meta.Version,
		FrameworkConstraint: meta.FrameworkConstraint,
	})
	if err != nil {
		return wire.HelloDriverMsg{}, err
	}
	if err := upstream.Send(env); err != nil {
		return wire.HelloDriverMsg{}, err
	}

	reply, err := upstream.Recv()
	if err != nil {
		return wire.HelloDriverMsg{}, err
	}
	if reply.Tag != wire.TagHelloDriver {
		return wire.HelloDriverMsg{}, dqerrors.ProtocolFailure("expected HelloDriver, got %s", reply.Tag)
	}
	var hello wire.HelloDriverMsg
	if err := reply.Decode(&hello); err != nil {
		return wire.HelloDriverMsg{}, err
	}
	return hello, nil
}

// Initialize runs the plugin's Initialize callback, if any, with the
// driver-supplied init-command list.
func (rt *Runtime) Initialize(cmds []wire.ArbCmdWire) error {
	if rt.cb.Initialize == nil {
		return nil
	}
	parsed := make([]*arb.ArbCmd, 0, len(cmds))
	for _, c := range cmds {
		cmd, err := wire.FromArbCmdWire(c)
		if err != nil {
			return err
		}
		parsed = append(parsed, cmd)
	}
	return rt.cb.Initialize(rt.ctx, parsed)
}

// SetDownstream attaches the downstream connection once it has been
// dialed, for plugin types that have one.
func (rt *Runtime) SetDownstream(ch transport.Channel) {
	rt.downstream = ch
}

// Shutdown runs the plugin's Drop callback, if any.
func (rt *Runtime) Shutdown() error {
	if rt.cb.Drop == nil {
		return nil
	}
	return rt.cb.Drop(rt.ctx)
}

// Close cascades the shutdown signal downstream and releases the
// downstream connection, completing the lifecycle's "close downstream;
// exit" step. It is a no-op for a Backend.
func (rt *Runtime) Close() error {
	if rt.downstream == nil {
		return nil
	}
	env, err := wire.Encode(wire.TagShutdown, wire.ShutdownMsg{})
	if err == nil {
		_ = rt.downstream.Send(env)
	}
	return rt.downstream.Close()
}

// Serve runs the main event loop until upstream closes or a Shutdown
// message is received.
func (rt *Runtime) Serve() error {
	for {
		env, err := rt.upstream.Recv()
		if err != nil {
			return nil
		}
		if env.Tag == wire.TagShutdown {
			return nil
		}

		resp, handled := rt.dispatch(env)
		if !handled {
			continue
		}
		respEnv, err := wire.Encode(wire.TagResponse, resp)
		if err != nil {
			return err
		}
		if err := rt.upstream.Send(respEnv); err != nil {
			return err
		}
	}
}

// ServeArbControl runs a second, independent event loop over ch,
// handling only driver-initiated HostArb requests. Operators and
// backends serve this alongside their main upstream loop so the
// driver can reach their host-arb callback directly without
// interfering with the pipeline relay carrying their ordinary
// gate-stream traffic.
func (rt *Runtime) ServeArbControl(ch transport.Channel) error {
	for {
		env, err := ch.Recv()
		if err != nil {
			return nil
		}
		if env.Tag == wire.TagShutdown {
			return nil
		}
		var resp wire.Response
		if env.Tag == wire.TagHostArb {
			resp = rt.handleHostArb(env)
		} else {
			resp = wire.ErrResponse(dqerrors.ProtocolFailure("unexpected message %s on arb control channel", env.Tag))
		}
		respEnv, err := wire.Encode(wire.TagResponse, resp)
		if err != nil {
			return err
		}
		if err := ch.Send(respEnv); err != nil {
			return err
		}
	}
}

func (rt *Runtime) dispatch(env wire.Envelope) (wire.Response, bool) {
	switch env.Tag {
	case wire.TagHostArb:
		return rt.handleHostArb(env), true
	case wire.TagStart:
		return rt.handleStart(env), true
	case wire.TagWait:
		return rt.handleWait(), true
	case wire.TagSend:
		return rt.handleSend(env), true
	case wire.TagRecv:
		return rt.handleRecv(), true
	case wire.TagYield:
		return rt.handleYield(), true
	case wire.TagAllocate:
		return rt.handleAllocate(env), true
	case wire.TagFree:
		return rt.handleFree(env), true
	case wire.TagGate:
		return rt.handleGate(env), true
	case wire.TagAdvance:
		return rt.handleAdvance(env), true
	case wire.TagUpstreamArb:
		return rt.handleUpstreamArb(env), true
	default:
		return wire.ErrResponse(dqerrors.ProtocolFailure("unexpected message %s", env.Tag)), true
	}
}

// --- Frontend host-interface handlers ---

func (rt *Runtime) handleHostArb(env wire.Envelope) wire.Response {
	var msg wire.ArbMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}
	cmd, err := wire.FromArbCmdWire(msg.Cmd)
	if err != nil {
		return wire.ErrResponse(err)
	}
	if rt.cb.HostArb == nil {
		return wire.ErrResponse(dqerrors.InvalidOperation("plugin %s has no host-arb handler", rt.meta.Name))
	}
	result, err := rt.cb.HostArb(rt.ctx, cmd)
	if err != nil {
		return wire.ErrResponse(err)
	}
	resp, err := wire.OKResponse(wire.ArbResultMsg{Data: wire.ToArbDataWire(result)})
	if err != nil {
		return wire.ErrResponse(err)
	}
	return resp
}

func (rt *Runtime) handleStart(env wire.Envelope) wire.Response {
	var msg wire.StartMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}
	arg, err := wire.FromArbDataWire(msg.Data)
	if err != nil {
		return wire.ErrResponse(err)
	}
	if rt.cb.Run == nil {
		return wire.ErrResponse(dqerrors.InvalidOperation("frontend plugin has no run callback"))
	}
	err = rt.fsm.start(func() (*arb.ArbData, error) { return rt.cb.Run(rt.ctx, arg) })
	if err != nil {
		return wire.ErrResponse(err)
	}
	resp, _ := wire.OKResponse(wire.AckMsg{})
	return resp
}

func (rt *Runtime) handleWait() wire.Response {
	result, err := rt.fsm.wait()
	if err != nil {
		return wire.ErrResponse(err)
	}
	resp, err := wire.OKResponse(wire.StartMsg{Data: wire.ToArbDataWire(result)})
	if err != nil {
		return wire.ErrResponse(err)
	}
	return resp
}

func (rt *Runtime) handleSend(env wire.Envelope) wire.Response {
	var msg wire.SendMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}
	data, err := wire.FromArbDataWire(msg.Data)
	if err != nil {
		return wire.ErrResponse(err)
	}
	if err := rt.fsm.hostSend(data); err != nil {
		return wire.ErrResponse(err)
	}
	resp, _ := wire.OKResponse(wire.AckMsg{})
	return resp
}

func (rt *Runtime) handleRecv() wire.Response {
	data, err := rt.fsm.hostRecv()
	if err != nil {
		return wire.ErrResponse(err)
	}
	resp, err := wire.OKResponse(wire.SendMsg{Data: wire.ToArbDataWire(data)})
	if err != nil {
		return wire.ErrResponse(err)
	}
	return resp
}

func (rt *Runtime) handleYield() wire.Response {
	rt.fsm.yield()
	resp, _ := wire.OKResponse(wire.AckMsg{})
	return resp
}

// --- Operator/backend gate-stream handlers ---

func (rt *Runtime) handleAllocate(env wire.Envelope) wire.Response {
	var msg wire.AllocateMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}
	cmds := make([]*arb.ArbCmd, 0, len(msg.Cmds))
	for _, c := range msg.Cmds {
		cmd, err := wire.FromArbCmdWire(c)
		if err != nil {
			return wire.ErrResponse(err)
		}
		cmds = append(cmds, cmd)
	}

	var refs []qubit.Ref
	var err error
	switch {
	case rt.cb.Allocate != nil:
		refs, err = rt.cb.Allocate(rt.ctx, msg.Count, cmds)
	case rt.meta.Type == Operator:
		refs, err = rt.downstreamAllocate(msg.Count, cmds)
	default:
		err = dqerrors.InvalidOperation("backend plugin has no allocate callback")
	}
	if err != nil {
		return wire.ErrResponse(err)
	}
	for _, r := range refs {
		rt.register.Track(r)
	}

	result := wire.AllocateResultMsg{Qubits: make([]uint64, len(refs))}
	for i, r := range refs {
		result.Qubits[i] = uint64(r)
	}
	resp, err := wire.OKResponse(result)
	if err != nil {
		return wire.ErrResponse(err)
	}
	return resp
}

func (rt *Runtime) handleFree(env wire.Envelope) wire.Response {
	var msg wire.FreeMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}
	refs := make([]qubit.Ref, len(msg.Qubits))
	for i, q := range msg.Qubits {
		refs[i] = qubit.Ref(q)
	}

	var err error
	switch {
	case rt.cb.Free != nil:
		err = rt.cb.Free(rt.ctx, refs)
	case rt.meta.Type == Operator:
		err = rt.downstreamFree(refs)
	default:
		err = dqerrors.InvalidOperation("backend plugin has no free callback")
	}
	if err != nil {
		return wire.ErrResponse(err)
	}
	for _, r := range refs {
		rt.register.Deallocate(r)
	}
	resp, _ := wire.OKResponse(wire.AckMsg{})
	return resp
}

func (rt *Runtime) handleGate(env wire.Envelope) wire.Response {
	var msg wire.GateMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}
	g, err := wire.FromGateWire(msg.Gate)
	if err != nil {
		return wire.ErrResponse(err)
	}

	var results []qubit.MeasurementResult
	switch {
	case rt.cb.Gate != nil:
		results, err = rt.cb.Gate(rt.ctx, g)
	case rt.meta.Type == Operator:
		results, err = rt.downstreamGate(g)
	default:
		err = dqerrors.InvalidOperation("backend plugin has no gate callback")
	}
	if err != nil {
		return wire.ErrResponse(err)
	}
	results = reconcileMeasurements(g, results)
	for _, r := range results {
		_ = rt.register.Record(r, rt.downCycles.Value())
	}

	payload := wire.GateResultMsg{Results: make([]wire.MeasurementResultWire, len(results))}
	for i, r := range results {
		payload.Results[i] = wire.ToMeasurementResultWire(r)
	}
	resp, err := wire.OKResponse(payload)
	if err != nil {
		return wire.ErrResponse(err)
	}
	return resp
}

// reconcileMeasurements enforces spec §4.3's measurement-gate
// contract: exactly one result per qubit in g.Measures. Missing
// qubits are reported Undefined; spurious ones are dropped with a
// warning.
func reconcileMeasurements(g *gate.Gate, results []qubit.MeasurementResult) []qubit.MeasurementResult {
	want := make(map[qubit.Ref]bool, len(g.Measures))
	for _, q := range g.Measures {
		want[q] = true
	}
	seen := make(map[qubit.Ref]qubit.MeasurementResult, len(results))
	for _, r := range results {
		if !want[r.Qubit] {
			logger.Warnw("dropping measurement result for qubit not in gate's measure set", "qubit", uint64(r.Qubit))
			continue
		}
		seen[r.Qubit] = r
	}
	out := make([]qubit.MeasurementResult, 0, len(g.Measures))
	for _, q := range g.Measures {
		if r, ok := seen[q]; ok {
			out = append(out, r)
		} else {
			logger.Warnw("measurement result missing for measured qubit, reporting undefined", "qubit", uint64(q))
			out = append(out, qubit.MeasurementResult{Qubit: q, Value: qubit.Undefined})
		}
	}
	return out
}

func (rt *Runtime) handleAdvance(env wire.Envelope) wire.Response {
	var msg wire.AdvanceMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}

	var err error
	switch {
	case rt.cb.Advance != nil:
		// A custom callback is responsible for its own forwarding; if
		// it calls ctx.Advance, downstreamAdvance advances the counter.
		// If it doesn't forward, the counter intentionally stays put.
		err = rt.cb.Advance(rt.ctx, msg.Cycles)
	case rt.meta.Type == Operator:
		err = rt.downstreamAdvance(msg.Cycles)
	default:
		rt.downCycles.Advance(msg.Cycles)
	}
	if err != nil {
		return wire.ErrResponse(err)
	}
	resp, _ := wire.OKResponse(wire.AckMsg{})
	return resp
}

func (rt *Runtime) handleUpstreamArb(env wire.Envelope) wire.Response {
	var msg wire.ArbMsg
	if err := env.Decode(&msg); err != nil {
		return wire.ErrResponse(err)
	}
	cmd, err := wire.FromArbCmdWire(msg.Cmd)
	if err != nil {
		return wire.ErrResponse(err)
	}

	var result *arb.ArbData
	switch {
	case rt.cb.UpstreamArb != nil:
		result, err = rt.cb.UpstreamArb(rt.ctx, cmd)
	case rt.meta.Type == Operator:
		result, err = rt.downstreamArb(cmd)
	default:
		err = dqerrors.InvalidOperation("backend plugin has no upstream-arb callback")
	}
	if err != nil {
		return wire.ErrResponse(err)
	}
	resp, err := wire.OKResponse(wire.ArbResultMsg{Data: wire.ToArbDataWire(result)})
	if err != nil {
		return wire.ErrResponse(err)
	}
	return resp
}
