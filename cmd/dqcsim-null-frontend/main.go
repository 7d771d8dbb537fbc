// Command dqcsim-null-frontend is a frontend plugin whose run callback
// does nothing: it returns the argument it was started with. Useful as
// the frontend half of a null simulation, and as a baseline for
// exercising the host-interface state machine without any accelerator
// logic getting in the way.
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
	Type:    plugin.Frontend,
	Name:    "null-frontend",
	Author:  "dqcsim",
	Version: "0.1.0",
}

func run(ctx *plugin.Context, arg *arb.ArbData) (*arb.ArbData, error) {
	return arg, nil
}

func main() {
	logLevel := flag.String("log-level", "info", "log level name (trace, debug, info, warn, error, fatal); accepted but not applied to log output")
	jsonLog := flag.Bool("json-log", false, "emit structured JSON logs instead of console output")
	flag.Parse()

	if err := logger.Initialize(*jsonLog); err != nil {
		fmt.Fprintf(os.Stderr, "dqcsim-null-frontend: failed to initialize logger: %s\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	if flag.NArg() < 1 {
		logger.Errorw("missing upstream endpoint argument", "usage", "dqcsim-null-frontend <endpoint>")
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

	cb := plugin.Callbacks{Run: run}
	rt := plugin.New(meta, cb, upstream, downstream, hello.Seed)

	if err := rt.Initialize(hello.InitCmds); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
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
