// Package sim implements the simulation driver: the process that
// validates a plugin pipeline, spawns each plugin in the right order,
// completes their bootstrap handshakes, relays each plugin's downstream
// link to the next plugin's upstream connection, and exposes the host-facing start/wait/send/recv/
// yield/arb API described by spec.md §4.4.
package sim

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/host"
	"github.com/dqcsim/dqcsim-go/logger"
	"github.com/dqcsim/dqcsim-go/plugin"
	"github.com/dqcsim/dqcsim-go/prng"
	"github.com/dqcsim/dqcsim-go/transport"
	"github.com/dqcsim/dqcsim-go/wire"
)

// DefaultTeardownTimeout bounds how long Teardown waits for a spawned
// plugin process to exit cleanly before killing it.
const DefaultTeardownTimeout = 5 * time.Second

// DefaultLinkAcceptTimeout bounds how long the driver waits for a
// spawned plugin to dial back its arb-control or downstream link.
const DefaultLinkAcceptTimeout = 5 * time.Second

// pluginHandle is the driver's bookkeeping for one spawned plugin: the
// connection it dialed back on spawn (used directly for the frontend,
// relayed to the next plugin's upstream for everyone else), its
// optional dedicated arb-control link, and its optional downstream
// dial-out link.
type pluginHandle struct {
	cfg   PluginConfig
	index int

	process  *transport.ProcessChannel
	upstream transport.Channel // == process, kept distinctly named for clarity

	ctlListener net.Listener
	ctl         transport.Channel

	downListener net.Listener
	down         transport.Channel

	// rt and exited are set only for an in-process plugin (cfg.Callbacks
	// != nil): rt is the Runtime the driver runs directly as a
	// goroutine instead of a subprocess, and exited closes once that
	// goroutine's Serve loop (and its shutdown cascade) has returned.
	rt     *plugin.Runtime
	exited chan struct{}
}

// Driver owns one running simulation: its spawned plugin processes and
// the links between them.
type Driver struct {
	cfg     *Config
	plugins []*pluginHandle
	host    *host.Client
	repro   ReproductionSink

	teardownTimeout time.Duration
	linkTimeout     time.Duration
}

// New validates cfg's plugin pipeline, assigns default names, and
// returns a Driver ready to Spawn. repro may be nil.
func New(cfg *Config, repro ReproductionSink) (*Driver, error) {
	if err := AssignDefaultNames(cfg.Plugins); err != nil {
		return nil, err
	}
	if err := ValidatePipeline(cfg.Plugins); err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:             cfg,
		repro:           repro,
		teardownTimeout: DefaultTeardownTimeout,
		linkTimeout:     DefaultLinkAcceptTimeout,
	}
	for i, pc := range cfg.Plugins {
		d.plugins = append(d.plugins, &pluginHandle{cfg: pc, index: i})
	}
	if d.repro != nil {
		d.repro.RecordConfig(cfg.MasterSeed, cfg.Plugins)
	}
	return d, nil
}

// Spawn launches every plugin process backend-first, frontend-last, so
// that each plugin's downstream dial target is already spawned and
// listening on its upstream connection by the time it connects.
func (d *Driver) Spawn(ctx context.Context) error {
	n := len(d.plugins)
	for i := n - 1; i >= 0; i-- {
		if err := d.spawnOne(ctx, i); err != nil {
			return fmt.Errorf("spawning plugin %s: %w", d.plugins[i].cfg.Name, err)
		}
	}
	d.host = host.New(d.plugins[0].upstream)
	return nil
}

func (d *Driver) spawnOne(ctx context.Context, i int) error {
	if d.plugins[i].cfg.Callbacks != nil {
		return d.spawnInProcess(i)
	}

	ph := d.plugins[i]
	n := len(d.plugins)

	// The frontend needs no arb-control listener: HostArb reaches it
	// directly over its main connection.
	if ph.cfg.Type == plugin.Operator || ph.cfg.Type == plugin.Backend {
		l, err := transport.Listen("tcp://127.0.0.1:0")
		if err != nil {
			return err
		}
		ph.ctlListener = l
	}
	if i < n-1 {
		l, err := transport.Listen("tcp://127.0.0.1:0")
		if err != nil {
			return err
		}
		ph.downListener = l
	}

	proc, err := transport.Spawn(ctx, transport.ProcessSpec{
		Path: ph.cfg.Path,
		Args: ph.cfg.Args,
		Env:  envPairs(ph.cfg.Env),
	})
	if err != nil {
		return err
	}
	ph.process = proc
	ph.upstream = proc

	env, err := ph.upstream.Recv()
	if err != nil {
		return err
	}
	if env.Tag != wire.TagHelloPlugin {
		return dqerrors.ProtocolFailure("expected HelloPlugin from %s, got %s", ph.cfg.Name, env.Tag)
	}
	var hello wire.HelloPluginMsg
	if err := env.Decode(&hello); err != nil {
		return err
	}
	if plugin.Type(hello.Type) != ph.cfg.Type {
		return dqerrors.ProtocolFailure("plugin %s declared type %s, configured as %s",
			ph.cfg.Name, plugin.Type(hello.Type), ph.cfg.Type)
	}
	if err := plugin.CheckFrameworkCompatibility(hello.FrameworkConstraint); err != nil {
		return dqerrors.ProtocolFailure("plugin %s incompatible: %s", ph.cfg.Name, err)
	}

	seed := prng.DerivePluginSeed(d.cfg.MasterSeed, i, ph.cfg.Name)
	ctlAddr, downAddr := "", ""
	if ph.ctlListener != nil {
		ctlAddr = listenerEndpoint(ph.ctlListener)
	}
	if ph.downListener != nil {
		downAddr = listenerEndpoint(ph.downListener)
	}

	helloDriver := wire.HelloDriverMsg{
		AssignedName:       ph.cfg.Name,
		UpstreamEndpoint:   ctlAddr,
		DownstreamEndpoint: downAddr,
		Seed:               seed,
		StderrLevel:        "info",
	}
	replyEnv, err := wire.Encode(wire.TagHelloDriver, helloDriver)
	if err != nil {
		return err
	}
	if err := ph.upstream.Send(replyEnv); err != nil {
		return err
	}

	if ph.ctlListener != nil {
		ch, err := transport.Accept(ph.ctlListener, d.linkTimeout)
		if err != nil {
			return dqerrors.TimeoutError("plugin %s did not connect its arb-control link: %s", ph.cfg.Name, err)
		}
		ph.ctl = ch
	}
	if ph.downListener != nil {
		ch, err := transport.Accept(ph.downListener, d.linkTimeout)
		if err != nil {
			return dqerrors.TimeoutError("plugin %s did not connect its downstream link: %s", ph.cfg.Name, err)
		}
		ph.down = ch
		go relay(ph.down, d.plugins[i+1].upstream)
	}
	return nil
}

// spawnInProcess wires plugin i's configured callback bundle directly
// to a transport.InProcessChannel pair and runs it as a goroutine
// instead of spawning a subprocess: spec.md §3's "in-process +
// callback bundle" transport variant of a plugin configuration.
func (d *Driver) spawnInProcess(i int) error {
	ph := d.plugins[i]
	n := len(d.plugins)

	meta := plugin.Metadata{
		Type:    ph.cfg.Type,
		Name:    ph.cfg.Name,
		Author:  "dqcsim",
		Version: plugin.FrameworkVersion,
	}

	driverUpstream, pluginUpstream := transport.NewInProcessPair(8)
	ph.upstream = driverUpstream

	var pluginDownstream transport.Channel
	if i < n-1 {
		driverDown, pluginDown := transport.NewInProcessPair(8)
		ph.down = driverDown
		pluginDownstream = pluginDown
	}

	seed := prng.DerivePluginSeed(d.cfg.MasterSeed, i, ph.cfg.Name)
	rt := plugin.New(meta, *ph.cfg.Callbacks, pluginUpstream, pluginDownstream, seed)
	ph.rt = rt

	if ph.cfg.Type == plugin.Operator || ph.cfg.Type == plugin.Backend {
		driverCtl, pluginCtl := transport.NewInProcessPair(8)
		ph.ctl = driverCtl
		go func() {
			if err := rt.ServeArbControl(pluginCtl); err != nil {
				logger.Warnw("in-process plugin arb-control loop exited", "plugin", ph.cfg.Name, "error", err.Error())
			}
		}()
	}

	if err := rt.Initialize(nil); err != nil {
		return fmt.Errorf("initializing in-process plugin %s: %w", ph.cfg.Name, err)
	}

	ph.exited = make(chan struct{})
	go func() {
		defer close(ph.exited)
		if err := rt.Serve(); err != nil {
			logger.Warnw("in-process plugin serve loop exited with error", "plugin", ph.cfg.Name, "error", err.Error())
		}
		if err := rt.Shutdown(); err != nil {
			logger.Warnw("in-process plugin drop callback failed", "plugin", ph.cfg.Name, "error", err.Error())
		}
		if err := rt.Close(); err != nil {
			logger.Warnw("in-process plugin close failed", "plugin", ph.cfg.Name, "error", err.Error())
		}
	}()

	if ph.down != nil {
		go relay(ph.down, d.plugins[i+1].upstream)
	}
	return nil
}

func envPairs(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}

func listenerEndpoint(l net.Listener) string {
	if tcpAddr, ok := l.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("tcp://127.0.0.1:%d", tcpAddr.Port)
	}
	return "tcp://" + l.Addr().String()
}

// --- host-facing API ---

func (d *Driver) record(call HostCall) {
	if d.repro != nil {
		d.repro.RecordCall(call)
	}
}

// Start transitions the frontend Idle -> Running.
func (d *Driver) Start(arg *arb.ArbData) error {
	d.record(HostCall{Kind: "start", Arg: arg})
	return d.host.Start(arg)
}

// Wait blocks until the frontend's run callback returns or a deadlock
// is detected.
func (d *Driver) Wait() (*arb.ArbData, error) {
	d.record(HostCall{Kind: "wait"})
	return d.host.Wait()
}

// Send delivers data to the frontend's next recv().
func (d *Driver) Send(data *arb.ArbData) error {
	d.record(HostCall{Kind: "send", Arg: data})
	return d.host.Send(data)
}

// Recv blocks for data the accelerator sends.
func (d *Driver) Recv() (*arb.ArbData, error) {
	d.record(HostCall{Kind: "recv"})
	return d.host.Recv()
}

// Yield blocks until the accelerator next suspends.
func (d *Driver) Yield() error {
	d.record(HostCall{Kind: "yield"})
	return d.host.Yield()
}

// Arb delivers cmd to the named plugin's host-arb callback.
func (d *Driver) Arb(name string, cmd *arb.ArbCmd) (*arb.ArbData, error) {
	ph, err := d.byName(name)
	if err != nil {
		return nil, err
	}
	d.record(HostCall{Kind: "arb", Cmd: cmd})
	return d.arbTo(ph, cmd)
}

// ArbIdx delivers cmd to the plugin at pipeline index i (0 = frontend,
// increasing toward the backend; negative indices count from the
// backend, -1 = backend).
func (d *Driver) ArbIdx(i int, cmd *arb.ArbCmd) (*arb.ArbData, error) {
	ph, err := d.byIndex(i)
	if err != nil {
		return nil, err
	}
	d.record(HostCall{Kind: "arb", Cmd: cmd})
	return d.arbTo(ph, cmd)
}

func (d *Driver) byName(name string) (*pluginHandle, error) {
	for _, ph := range d.plugins {
		if ph.cfg.Name == name {
			return ph, nil
		}
	}
	return nil, dqerrors.InvalidArgument("plugin %s not found", name)
}

func (d *Driver) byIndex(i int) (*pluginHandle, error) {
	n := len(d.plugins)
	idx := i
	if idx < 0 {
		idx = n + idx
	}
	if idx < 0 || idx >= n {
		return nil, dqerrors.InvalidArgument("index %d out of range", i)
	}
	return d.plugins[idx], nil
}

func (d *Driver) arbTo(ph *pluginHandle, cmd *arb.ArbCmd) (*arb.ArbData, error) {
	if ph.cfg.Type == plugin.Frontend {
		return d.host.Arb(cmd)
	}
	env, err := wire.Encode(wire.TagHostArb, wire.ArbMsg{Cmd: wire.ToArbCmdWire(cmd)})
	if err != nil {
		return nil, err
	}
	if err := ph.ctl.Send(env); err != nil {
		return nil, err
	}
	reply, err := ph.ctl.Recv()
	if err != nil {
		return nil, err
	}
	var resp wire.Response
	if err := reply.Decode(&resp); err != nil {
		return nil, err
	}
	var result wire.ArbResultMsg
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	return wire.FromArbDataWire(result.Data)
}

// Teardown signals the frontend to shut down (which cascades down the
// pipeline) and waits up to timeout for every plugin process to exit,
// killing stragglers. timeout <= 0 uses DefaultTeardownTimeout.
func (d *Driver) Teardown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = d.teardownTimeout
	}

	if err := d.host.Shutdown(); err != nil {
		return err
	}
	for _, ph := range d.plugins {
		if ph.ctl != nil {
			ph.ctl.Close()
		}
	}

	done := make(chan error, len(d.plugins))
	for _, ph := range d.plugins {
		ph := ph
		go func() {
			if ph.process != nil {
				done <- ph.process.Wait()
				return
			}
			if ph.exited != nil {
				<-ph.exited
			}
			done <- nil
		}()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for range d.plugins {
		select {
		case <-done:
		case <-timer.C:
			for _, ph := range d.plugins {
				if ph.process != nil {
					ph.process.Kill()
				} else if ph.upstream != nil {
					ph.upstream.Close()
				}
			}
		}
	}

	var firstErr error
	for _, ph := range d.plugins {
		if ph.process != nil {
			if err := ph.process.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if ph.downListener != nil {
			ph.downListener.Close()
		}
		if ph.ctlListener != nil {
			ph.ctlListener.Close()
		}
	}
	return firstErr
}
