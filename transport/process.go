package transport

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-getter"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/logger"
)

// DefaultAcceptTimeout is the time the driver waits for a spawned
// plugin process to connect back before giving up. Spawn uses it when
// ProcessSpec.AcceptTimeout is 0; a negative AcceptTimeout means wait
// indefinitely.
const DefaultAcceptTimeout = 5 * time.Second

// ProcessChannel is a Channel to a plugin running as a spawned OS
// process. The driver listens on a unix or tcp endpoint, passes the
// endpoint descriptor to the process as argv[1], and accepts the
// resulting connection; the plugin process dials it back with Dial.
type ProcessChannel struct {
	*socketChannel
	cmd      *exec.Cmd
	listener net.Listener
}

// ProcessSpec describes a plugin process to spawn.
type ProcessSpec struct {
	// Path to the plugin executable or script. A leading "~/" is
	// expanded to the home directory; relative paths are resolved
	// against the working directory.
	Path string
	// Args are additional arguments appended after the endpoint
	// descriptor.
	Args []string
	// Endpoint, if non-empty, fixes the listen address (e.g.
	// "unix:///tmp/dqcsim-front.sock"); otherwise a loopback TCP port
	// is chosen automatically.
	Endpoint string
	// AcceptTimeout bounds how long Spawn waits for the process to
	// connect back. Zero means DefaultAcceptTimeout; negative means
	// wait indefinitely.
	AcceptTimeout time.Duration
	// Env holds additional "KEY=VALUE" environment entries appended to
	// the spawned process's inherited environment.
	Env []string
}

// resolvePath expands "~" and relative paths the way spec'd path
// lookups elsewhere in the driver do, using go-getter's safe path
// detection rather than hand-rolled string surgery.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", dqerrors.InvalidOperation("failed to resolve home directory: %s", err)
		}
		path = filepath.Join(home, path[2:])
	}
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	detected, err := getter.Detect(path, pwd, getter.Detectors)
	if err != nil {
		return "", dqerrors.InvalidArgument("invalid plugin path %q: %s", path, err)
	}
	if strings.HasPrefix(detected, "file://") {
		return strings.TrimPrefix(detected, "file://"), nil
	}
	return path, nil
}

// Spawn launches the plugin process described by spec and blocks
// until it connects back or the accept timeout elapses.
func Spawn(ctx context.Context, spec ProcessSpec) (*ProcessChannel, error) {
	binary, err := resolvePath(spec.Path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(binary); err != nil {
		return nil, dqerrors.InvalidArgument("plugin binary not found: %s", binary)
	}

	endpoint := spec.Endpoint
	if endpoint == "" {
		endpoint = "tcp://127.0.0.1:0"
	}
	listener, err := Listen(endpoint)
	if err != nil {
		return nil, err
	}
	actual := endpoint
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		actual = "tcp://127.0.0.1:" + strconv.Itoa(tcpAddr.Port)
	}

	args := append([]string{actual}, spec.Args...)
	cmd := exec.CommandContext(ctx, binary, args...)
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = logger.NewLineWriter(func(line string) { logger.Infow(line, "plugin", filepath.Base(binary)) })
	cmd.Stderr = logger.NewLineWriter(func(line string) { logger.Warnw(line, "plugin", filepath.Base(binary)) })

	if err := cmd.Start(); err != nil {
		listener.Close()
		return nil, dqerrors.ProtocolFailure("failed to start plugin %s: %s", binary, err)
	}

	timeout := spec.AcceptTimeout
	if timeout == 0 {
		timeout = DefaultAcceptTimeout
	}

	conn, err := acceptWithTimeout(listener, timeout)
	if err != nil {
		cmd.Process.Kill()
		listener.Close()
		return nil, dqerrors.TimeoutError("plugin %s did not connect within %s: %s", binary, timeout, err)
	}

	return &ProcessChannel{socketChannel: newSocketChannel(conn), cmd: cmd, listener: listener}, nil
}

func acceptWithTimeout(listener net.Listener, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		ch <- result{conn, err}
	}()

	if timeout < 0 {
		r := <-ch
		return r.conn, r.err
	}
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-time.After(timeout):
		return nil, dqerrors.TimeoutError("accept timed out after %s", timeout)
	}
}

// Wait blocks until the plugin process exits.
func (p *ProcessChannel) Wait() error {
	return p.cmd.Wait()
}

// Close closes the underlying connection and listener. It does not
// kill the process; the normal shutdown handshake (wire.TagShutdown)
// should have already asked it to exit.
func (p *ProcessChannel) Close() error {
	p.listener.Close()
	return p.socketChannel.Close()
}

// Kill forcibly terminates the plugin process, used when the normal
// shutdown handshake fails or times out.
func (p *ProcessChannel) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

