package arb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCmdRequiresNonEmptyIdentifiers(t *testing.T) {
	_, err := NewCmd("", "op", nil)
	require.Error(t, err)

	_, err = NewCmd("iface", "", nil)
	require.Error(t, err)
}

func TestNewCmdCarriesArbData(t *testing.T) {
	cmd, err := NewCmd("dqcsim.example", "echo", map[string]interface{}{"a": "b"}, []byte("test"))
	require.NoError(t, err)
	assert.Equal(t, "dqcsim.example", cmd.Interface)
	assert.Equal(t, "echo", cmd.Operation)

	var v map[string]interface{}
	require.NoError(t, cmd.Value(&v))
	assert.Equal(t, "b", v["a"])

	args := cmd.Args()
	require.Len(t, args, 1)
	assert.Equal(t, "test", string(args[0]))
}
