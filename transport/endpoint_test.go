package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEndpointUnix(t *testing.T) {
	network, address, err := splitEndpoint("unix:///tmp/dqcsim-front.sock")
	require.NoError(t, err)
	assert.Equal(t, "unix", network)
	assert.Equal(t, "/tmp/dqcsim-front.sock", address)
}

func TestSplitEndpointTCP(t *testing.T) {
	network, address, err := splitEndpoint("tcp://127.0.0.1:12345")
	require.NoError(t, err)
	assert.Equal(t, "tcp", network)
	assert.Equal(t, "127.0.0.1:12345", address)
}

func TestSplitEndpointRejectsUnknownScheme(t *testing.T) {
	_, _, err := splitEndpoint("http://example.com")
	require.Error(t, err)
}

func TestListenAndDialTCP(t *testing.T) {
	l, err := Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	done := make(chan error, 1)
	go func() {
		conn, acceptErr := l.Accept()
		if acceptErr == nil {
			conn.Close()
		}
		done <- acceptErr
	}()

	addr := l.Addr().String()
	ch, err := Dial("tcp://" + addr)
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, <-done)
}
