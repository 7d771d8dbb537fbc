package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dqcsim/dqcsim-go/wire"
)

func TestInProcessChannelSendRecv(t *testing.T) {
	a, b := NewInProcessPair(4)
	defer a.Close()
	defer b.Close()

	env, err := wire.Encode(wire.TagAdvance, wire.AdvanceMsg{Cycles: 3})
	require.NoError(t, err)
	require.NoError(t, a.Send(env))

	got, err := b.Recv()
	require.NoError(t, err)
	assert.Equal(t, wire.TagAdvance, got.Tag)
}

func TestInProcessChannelBidirectional(t *testing.T) {
	a, b := NewInProcessPair(4)
	defer a.Close()
	defer b.Close()

	toB, _ := wire.Encode(wire.TagYield, wire.YieldMsg{})
	toA, _ := wire.Encode(wire.TagWait, wire.WaitMsg{})

	require.NoError(t, a.Send(toB))
	require.NoError(t, b.Send(toA))

	gotByB, err := b.Recv()
	require.NoError(t, err)
	assert.Equal(t, wire.TagYield, gotByB.Tag)

	gotByA, err := a.Recv()
	require.NoError(t, err)
	assert.Equal(t, wire.TagWait, gotByA.Tag)
}

func TestInProcessChannelCloseSignalsRecv(t *testing.T) {
	a, b := NewInProcessPair(1)
	require.NoError(t, a.Close())

	_, err := b.Recv()
	require.Error(t, err)
}

func TestInProcessChannelSendAfterCloseFails(t *testing.T) {
	a, b := NewInProcessPair(1)
	defer b.Close()
	require.NoError(t, a.Close())

	err := a.Send(wire.Envelope{Tag: wire.TagYield})
	require.Error(t, err)
}
