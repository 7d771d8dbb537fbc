package transport

import (
	"bufio"
	"net"
	"sync"

	"github.com/dqcsim/dqcsim-go/wire"
)

// socketChannel adapts a net.Conn to Channel using the length-prefixed
// CBOR framing in package wire. Writes are serialized; reads are not
// expected to be concurrent (each plugin connection has one reader).
type socketChannel struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

func newSocketChannel(conn net.Conn) *socketChannel {
	return &socketChannel{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *socketChannel) Send(env wire.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wire.WriteFrame(c.conn, env)
}

func (c *socketChannel) Recv() (wire.Envelope, error) {
	return wire.ReadFrame(c.reader)
}

func (c *socketChannel) Close() error {
	return c.conn.Close()
}
