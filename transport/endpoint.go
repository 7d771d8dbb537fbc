package transport

import (
	"net"
	"strings"
	"time"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// splitEndpoint parses an endpoint descriptor of the form
// "unix://<path>" or "tcp://<host:port>" into the net package's
// (network, address) pair.
func splitEndpoint(endpoint string) (network, address string, err error) {
	switch {
	case strings.HasPrefix(endpoint, "unix://"):
		return "unix", strings.TrimPrefix(endpoint, "unix://"), nil
	case strings.HasPrefix(endpoint, "tcp://"):
		return "tcp", strings.TrimPrefix(endpoint, "tcp://"), nil
	default:
		return "", "", dqerrors.InvalidArgument("endpoint %q must begin with unix:// or tcp://", endpoint)
	}
}

// Listen opens a listener for endpoint ("unix://path" or
// "tcp://host:port"). For "tcp://host:" (empty port) the OS assigns a
// free port; the listener's actual address can be read back from
// listener.Addr().
func Listen(endpoint string) (net.Listener, error) {
	network, address, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, dqerrors.ProtocolFailure("failed to listen on %s: %s", endpoint, err)
	}
	return l, nil
}

// Dial connects to endpoint and wraps the connection as a Channel,
// used by plugin processes to connect back to the driver's listener
// described by their argv[1] endpoint descriptor.
func Dial(endpoint string) (Channel, error) {
	network, address, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, dqerrors.ProtocolFailure("failed to dial %s: %s", endpoint, err)
	}
	return newSocketChannel(conn), nil
}

// Accept blocks for a single incoming connection on listener, wrapping
// it as a Channel, used by a driver to complete a peer-to-peer link it
// handed a dial target to in a HelloDriver message. timeout <= 0 waits
// indefinitely; a positive timeout bounds the wait.
func Accept(listener net.Listener, timeout time.Duration) (Channel, error) {
	if timeout <= 0 {
		timeout = -1
	}
	conn, err := acceptWithTimeout(listener, timeout)
	if err != nil {
		return nil, err
	}
	return newSocketChannel(conn), nil
}
