package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dqcsim/dqcsim-go/arb"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/qubit"
)

func TestArbDataWireRoundTrip(t *testing.T) {
	d, err := arb.New(map[string]interface{}{"theta": 1.5}, []byte{1, 2}, []byte{3})
	require.NoError(t, err)

	w := ToArbDataWire(d)
	back, err := FromArbDataWire(w)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, back.Value(&got))
	assert.Equal(t, 1.5, got["theta"])
	assert.Equal(t, d.Args(), back.Args())
}

func TestArbCmdWireRoundTrip(t *testing.T) {
	c, err := arb.NewCmd("dqcsim.example", "frobnicate", map[string]interface{}{"n": 3})
	require.NoError(t, err)

	w := ToArbCmdWire(c)
	back, err := FromArbCmdWire(w)
	require.NoError(t, err)

	assert.Equal(t, c.Interface, back.Interface)
	assert.Equal(t, c.Operation, back.Operation)

	var got map[string]interface{}
	require.NoError(t, back.Value(&got))
	assert.Equal(t, uint64(3), got["n"])
}

func TestMatrixWireRoundTrip(t *testing.T) {
	m := gate.Matrix{
		{complex(0, 0), complex(1, 0)},
		{complex(1, 0), complex(0, 0)},
	}
	w := ToMatrixWire(&m)
	require.NotNil(t, w)
	assert.Equal(t, 2, w.Dim)

	back := FromMatrixWire(w)
	require.NotNil(t, back)
	assert.Equal(t, m, *back)
}

func TestMatrixWireNil(t *testing.T) {
	assert.Nil(t, ToMatrixWire(nil))
	assert.Nil(t, FromMatrixWire(nil))
}

func TestGateWireRoundTrip(t *testing.T) {
	g, err := gate.NewUnitary([]qubit.Ref{1}, nil, gate.Matrix{
		{complex(0, 0), complex(1, 0)},
		{complex(1, 0), complex(0, 0)},
	})
	require.NoError(t, err)

	w := ToGateWire(g)
	back, err := FromGateWire(w)
	require.NoError(t, err)

	assert.Equal(t, g.Kind, back.Kind)
	assert.Equal(t, g.Targets, back.Targets)
	assert.Equal(t, *g.Matrix, *back.Matrix)
}

func TestMeasurementResultWireRoundTrip(t *testing.T) {
	r := qubit.MeasurementResult{Qubit: 5, Value: qubit.One, Data: *arb.Empty()}
	w := ToMeasurementResultWire(r)
	back, err := FromMeasurementResultWire(w)
	require.NoError(t, err)

	assert.Equal(t, r.Qubit, back.Qubit)
	assert.Equal(t, r.Value, back.Value)
}

func TestResponseOKRoundTrip(t *testing.T) {
	resp, err := OKResponse(AdvanceMsg{Cycles: 42})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	var got AdvanceMsg
	require.NoError(t, resp.Decode(&got))
	assert.Equal(t, int64(42), got.Cycles)
}

func TestResponseErrRoundTrip(t *testing.T) {
	resp := ErrResponse(dqTestErr())
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Err, "boom")

	err := resp.Decode(nil)
	require.Error(t, err)
}

func dqTestErr() error {
	return &testErr{}
}

type testErr struct{}

func (e *testErr) Error() string { return "Invalid argument: boom" }
