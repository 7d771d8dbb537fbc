// Command dqcsim-null-backend is a minimal backend plugin: it
// allocates and frees qubit references without simulating any state,
// and answers every measurement with a PRNG-drawn bit. Useful as the
// backend half of a null simulation and as a baseline for exercising
// the gate-stream state machine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dqcsim/dqcsim-go/arb"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/logger"
	"github.com/dqcsim/dqcsim-go/plugin"
	"github.com/dqcsim/dqcsim-go/qubit"
	"github.com/dqcsim/dqcsim-go/transport"
)

var meta = plugin.Metadata{
	Type:    plugin.Backend,
	Name:    "null-backend",
	Author:  "dqcsim",
	Version: "0.1.0",
}

type backend struct {
	alloc *qubit.Allocator
}

func (b *backend) allocate(ctx *plugin.Context, count int, cmds []*arb.ArbCmd) ([]qubit.Ref, error) {
	return b.alloc.Allocate(count), nil
}

func (b *backend) free(ctx *plugin.Context, qubits []qubit.Ref) error {
	return b.alloc.Free(qubits)
}

func (b *backend) gateFn(ctx *plugin.Context, g *gate.Gate) ([]qubit.MeasurementResult, error) {
	results := make([]qubit.MeasurementResult, len(g.Measures))
	for i, q := range g.Measures {
		bit := qubit.Value(ctx.RandomU64() & 1)
		results[i] = qubit.MeasurementResult{Qubit: q, Value: bit}
	}
	return results, nil
}

func main() {
	logLevel := flag.String("log-level", "info", "log level name (trace, debug, info, warn, error, fatal); accepted but not applied to log output")
	jsonLog := flag.Bool("json-log", false, "emit structured JSON logs instead of console output")
	flag.Parse()

	if err := logger.Initialize(*jsonLog); err != nil {
		fmt.Fprintf(os.Stderr, "dqcsim-null-backend: failed to initialize logger: %s\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	if flag.NArg() < 1 {
		logger.Errorw("missing upstream endpoint argument", "usage", "dqcsim-null-backend <endpoint>")
		os.Exit(1)
	}

	if err := runPlugin(flag.Arg(0), *logLevel); err != nil {
		logger.Errorw("plugin exited with error", "error", err)
		os.Exit(1)
	}
}

func runPlugin(endpoint, logLevel string) error {
	upstream, err := transport.Dial(endpoint)
	if err != nil {
		return fmt.Errorf("dialing upstream %s: %w", endpoint, err)
	}

	hello, err := plugin.Handshake(upstream, meta)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	logger.Infow("connected to driver", "assigned_name", hello.AssignedName)

	b := &backend{alloc: qubit.NewAllocator()}
	cb := plugin.Callbacks{
		Allocate: b.allocate,
		Free:     b.free,
		Gate:     b.gateFn,
	}
	rt := plugin.New(meta, cb, upstream, nil, hello.Seed)

	if err := rt.Initialize(hello.InitCmds); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if hello.UpstreamEndpoint != "" {
		ctl, err := transport.Dial(hello.UpstreamEndpoint)
		if err != nil {
			return fmt.Errorf("dialing arb-control endpoint %s: %w", hello.UpstreamEndpoint, err)
		}
		go func() {
			if err := rt.ServeArbControl(ctl); err != nil {
				logger.Warnw("arb-control loop exited", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			upstream.Close()
		case <-ctx.Done():
		}
	}()

	serveErr := rt.Serve()
	cancel()

	if err := rt.Shutdown(); err != nil {
		logger.Warnw("drop callback failed", "error", err)
	}
	if err := rt.Close(); err != nil {
		logger.Warnw("error closing downstream", "error", err)
	}
	return serveErr
}
