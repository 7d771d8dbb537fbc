// Command dqcsim-forward-operator is an operator plugin with no
// gate-stream callbacks of its own: every Allocate, Free, Gate, and
// Advance request falls through to the Runtime's default downstream
// forwarding, passing the pipeline through unchanged. It answers
// HostArb commands addressed to it by name with an echo of the
// command's interface, operation, and value, so a host can use it to
// verify arb routing reaches the intended plugin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dqcsim/dqcsim-go/arb"
	"github.com/dqcsim/dqcsim-go/logger"
	"github.com/dqcsim/dqcsim-go/plugin"
	"github.com/dqcsim/dqcsim-go/transport"
)

var meta = plugin.Metadata{
	Type:    plugin.Operator,
	Name:    "forward-operator",
	Author:  "dqcsim",
	Version: "0.1.0",
}

func hostArb(ctx *plugin.Context, cmd *arb.ArbCmd) (*arb.ArbData, error) {
	var value interface{}
	if err := cmd.Value(&value); err != nil {
		return nil, err
	}
	echo := map[string]interface{}{
		"x": []interface{}{cmd.Interface, cmd.Operation, value},
	}
	args := append(append([][]byte{}, cmd.Args()...), []byte(meta.Name))
	return arb.New(echo, args...)
}

func main() {
	logLevel := flag.String("log-level", "info", "log level name (trace, debug, info, warn, error, fatal); accepted but not applied to log output")
	jsonLog := flag.Bool("json-log", false, "emit structured JSON logs instead of console output")
	flag.Parse()

	if err := logger.Initialize(*jsonLog); err != nil {
		fmt.Fprintf(os.Stderr, "dqcsim-forward-operator: failed to initialize logger: %s\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	if flag.NArg() < 1 {
		logger.Errorw("missing upstream endpoint argument", "usage", "dqcsim-forward-operator <endpoint>")
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

	var downstream transport.Channel
	if hello.DownstreamEndpoint != "" {
		downstream, err = transport.Dial(hello.DownstreamEndpoint)
		if err != nil {
			return fmt.Errorf("dialing downstream %s: %w", hello.DownstreamEndpoint, err)
		}
	}

	cb := plugin.Callbacks{HostArb: hostArb}
	rt := plugin.New(meta, cb, upstream, downstream, hello.Seed)

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
