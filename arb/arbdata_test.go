package arb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresMapRoot(t *testing.T) {
	_, err := New([]int{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid argument")
}

func TestValueRoundTrip(t *testing.T) {
	d, err := New(map[string]interface{}{"a": "b", "n": 42.0})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, d.Value(&out))
	assert.Equal(t, "b", out["a"])
	assert.Equal(t, 42.0, out["n"])
}

func TestCBORJSONRoundTrip(t *testing.T) {
	d, err := New(map[string]interface{}{"x": 1.0, "y": []interface{}{"a", "b"}})
	require.NoError(t, err)

	raw := d.CBOR()
	reconstructed, err := FromCBOR(raw)
	require.NoError(t, err)

	j1, err := d.JSON()
	require.NoError(t, err)
	j2, err := reconstructed.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(j1), string(j2))
}

func TestFromJSONRequiresObjectRoot(t *testing.T) {
	_, err := FromJSON([]byte(`[1,2,3]`))
	require.Error(t, err)

	d, err := FromJSON([]byte(`{"a":1}`))
	require.NoError(t, err)
	j, err := d.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(j))
}

func TestArgsPushPopGetSet(t *testing.T) {
	d := Empty()
	d.PushArg([]byte("one"))
	d.PushArg([]byte("two"))
	d.PushArg([]byte("three"))
	assert.Equal(t, 3, d.NumArgs())

	v, err := d.GetArg(-1)
	require.NoError(t, err)
	assert.Equal(t, "three", string(v))

	require.NoError(t, d.SetArg(0, []byte("ONE")))
	v, err = d.GetArg(0)
	require.NoError(t, err)
	assert.Equal(t, "ONE", string(v))

	popped, err := d.PopArg()
	require.NoError(t, err)
	assert.Equal(t, "three", string(popped))
	assert.Equal(t, 2, d.NumArgs())
}

func TestArgsInsertRemove(t *testing.T) {
	d := Empty()
	d.PushArg([]byte("a"))
	d.PushArg([]byte("c"))

	require.NoError(t, d.InsertArg(1, []byte("b")))
	vals := d.Args()
	require.Len(t, vals, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{string(vals[0]), string(vals[1]), string(vals[2])})

	removed, err := d.RemoveArg(1)
	require.NoError(t, err)
	assert.Equal(t, "b", string(removed))
	assert.Equal(t, 2, d.NumArgs())
}

func TestNegativeIndexBoundary(t *testing.T) {
	d := Empty()
	d.PushArg([]byte("a"))
	d.PushArg([]byte("b"))

	// -1 and -2 reach the last and first elements.
	v, err := d.GetArg(-2)
	require.NoError(t, err)
	assert.Equal(t, "a", string(v))

	// -3 (== -(len+1)) and smaller fail.
	_, err = d.GetArg(-3)
	require.Error(t, err)
}

func TestInsertAllowsAppendAtLength(t *testing.T) {
	d := Empty()
	d.PushArg([]byte("a"))
	require.NoError(t, d.InsertArg(1, []byte("b")))
	assert.Equal(t, 2, d.NumArgs())
}
