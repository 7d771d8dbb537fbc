// Package transport implements the two ways a gate-stream or
// measurement-stream connection between adjacent plugins can be
// realized: a real OS process talking over a socket (ProcessChannel),
// or a pair of in-process Go channels (InProcessChannel) used when a
// plugin runs in the same address space as its neighbor (an operator
// loaded as a Go package, or a wasmrt callback bundle).
package transport

import (
	"github.com/dqcsim/dqcsim-go/wire"
)

// Channel is one bidirectional connection carrying wire.Envelope
// frames. Both ends of a pipeline stage use the same interface,
// whether the peer is a subprocess or an in-process goroutine.
type Channel interface {
	Send(env wire.Envelope) error
	Recv() (wire.Envelope, error)
	Close() error
}
