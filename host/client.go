// Package host implements the driver side of the host-interface
// protocol: the accelerator-control calls (start, wait, send, recv,
// yield, arb) a simulation driver issues against a running Frontend
// plugin. The frontend's own blocking/deadlock bookkeeping lives with
// the plugin (see the plugin package's frontend state machine); this
// client is a thin, synchronous request/response wrapper around the
// wire protocol the two sides share.
package host

import (
	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/logger"
	"github.com/dqcsim/dqcsim-go/transport"
	"github.com/dqcsim/dqcsim-go/wire"
)

// Client drives the host-interface commands against a single Frontend
// plugin over ch.
type Client struct {
	ch transport.Channel
}

// New wraps ch as a host-interface client.
func New(ch transport.Channel) *Client {
	return &Client{ch: ch}
}

// roundTrip sends (tag, payload) and blocks for the correlated
// Response, transparently draining any Log messages the plugin
// interleaves ahead of it.
func (c *Client) roundTrip(tag wire.Tag, payload interface{}) (wire.Response, error) {
	env, err := wire.Encode(tag, payload)
	if err != nil {
		return wire.Response{}, err
	}
	if err := c.ch.Send(env); err != nil {
		return wire.Response{}, err
	}

	for {
		reply, err := c.ch.Recv()
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
		case wire.TagLog:
			var msg wire.LogMsg
			if err := reply.Decode(&msg); err == nil {
				logger.Infow(msg.Message, "logger_name", msg.LoggerName, "module", msg.Module)
			}
		default:
			return wire.Response{}, dqerrors.ProtocolFailure("unexpected message %s while awaiting response", reply.Tag)
		}
	}
}

// Start transitions the frontend Idle -> Running, passing arg to its
// run callback.
func (c *Client) Start(arg *arb.ArbData) error {
	resp, err := c.roundTrip(wire.TagStart, wire.StartMsg{Data: wire.ToArbDataWire(arg)})
	if err != nil {
		return err
	}
	return resp.Decode(nil)
}

// Wait blocks until the frontend's run callback returns, or a
// deadlock between the host and the accelerator is detected.
func (c *Client) Wait() (*arb.ArbData, error) {
	resp, err := c.roundTrip(wire.TagWait, wire.WaitMsg{})
	if err != nil {
		return nil, err
	}
	var msg wire.StartMsg
	if err := resp.Decode(&msg); err != nil {
		return nil, err
	}
	return wire.FromArbDataWire(msg.Data)
}

// Send delivers data to the frontend's next recv() call.
func (c *Client) Send(data *arb.ArbData) error {
	resp, err := c.roundTrip(wire.TagSend, wire.SendMsg{Data: wire.ToArbDataWire(data)})
	if err != nil {
		return err
	}
	return resp.Decode(nil)
}

// Recv blocks until the accelerator sends data, or a deadlock is
// detected.
func (c *Client) Recv() (*arb.ArbData, error) {
	resp, err := c.roundTrip(wire.TagRecv, wire.RecvMsg{})
	if err != nil {
		return nil, err
	}
	var msg wire.SendMsg
	if err := resp.Decode(&msg); err != nil {
		return nil, err
	}
	return wire.FromArbDataWire(msg.Data)
}

// Yield blocks until the accelerator next suspends (on recv, or on
// returning from run).
func (c *Client) Yield() error {
	resp, err := c.roundTrip(wire.TagYield, wire.YieldMsg{})
	if err != nil {
		return err
	}
	return resp.Decode(nil)
}

// Arb issues an out-of-band command directly to the frontend.
func (c *Client) Arb(cmd *arb.ArbCmd) (*arb.ArbData, error) {
	resp, err := c.roundTrip(wire.TagHostArb, wire.ArbMsg{Cmd: wire.ToArbCmdWire(cmd)})
	if err != nil {
		return nil, err
	}
	var msg wire.ArbResultMsg
	if err := resp.Decode(&msg); err != nil {
		return nil, err
	}
	return wire.FromArbDataWire(msg.Data)
}

// Shutdown sends the framework's teardown signal; the frontend does
// not reply, it simply stops serving once this message is seen.
func (c *Client) Shutdown() error {
	env, err := wire.Encode(wire.TagShutdown, wire.ShutdownMsg{})
	if err != nil {
		return err
	}
	return c.ch.Send(env)
}
