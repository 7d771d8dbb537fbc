package transport

import (
	"sync"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/wire"
)

// InProcessChannel is a Channel backed by a pair of buffered Go
// channels, used to connect plugins that run as goroutines in the
// same process (operators loaded as Go packages, wasmrt callback
// bundles) without paying for socket I/O or CBOR framing overhead.
type InProcessChannel struct {
	out    chan wire.Envelope
	in     chan wire.Envelope
	mu     sync.Mutex
	closed bool
}

// NewInProcessPair returns two InProcessChannels wired to each other:
// sending on one delivers to Recv on the other.
func NewInProcessPair(buffer int) (a, b *InProcessChannel) {
	c1 := make(chan wire.Envelope, buffer)
	c2 := make(chan wire.Envelope, buffer)
	a = &InProcessChannel{out: c1, in: c2}
	b = &InProcessChannel{out: c2, in: c1}
	return a, b
}

// Send delivers env to the peer's Recv.
func (c *InProcessChannel) Send(env wire.Envelope) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return dqerrors.ProtocolFailure("in-process channel closed")
	}
	c.mu.Unlock()
	c.out <- env
	return nil
}

// Recv blocks until the peer sends an envelope or the channel closes.
func (c *InProcessChannel) Recv() (wire.Envelope, error) {
	env, ok := <-c.in
	if !ok {
		return wire.Envelope{}, dqerrors.ProtocolFailure("in-process channel closed")
	}
	return env, nil
}

// Close closes this end's outgoing channel, causing the peer's Recv
// to observe closure. Safe to call more than once.
func (c *InProcessChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.out)
	return nil
}
