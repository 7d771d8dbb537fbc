package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dqcsim/dqcsim-go/qubit"
)

func identity(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]complex128, n)
		m[i][i] = 1
	}
	return m
}

func TestNewUnitaryDimensionCheck(t *testing.T) {
	targets := []qubit.Ref{1, 2}
	_, err := NewUnitary(targets, nil, identity(2))
	require.Error(t, err)
	assert.Equal(t, "Invalid argument: the matrix is expected to be of size 4 but was 2", err.Error())

	g, err := NewUnitary(targets, nil, identity(4))
	require.NoError(t, err)
	assert.Equal(t, Unitary, g.Kind)
}

func TestDisjointnessInvariant(t *testing.T) {
	_, err := NewUnitary([]qubit.Ref{1, 2}, []qubit.Ref{2}, identity(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pairwise disjoint")
}

func TestMeasurementRequiresMatrix(t *testing.T) {
	_, err := NewMeasurement([]qubit.Ref{1}, Matrix{})
	require.Error(t, err)
}

func TestDecomposeRoundTrip(t *testing.T) {
	targets := []qubit.Ref{1, 2}
	controls := []qubit.Ref{3}
	m := identity(4)
	g, err := NewUnitary(targets, controls, m)
	require.NoError(t, err)

	assert.ElementsMatch(t, targets, g.Targets)
	assert.ElementsMatch(t, controls, g.Controls)
	assert.Equal(t, m.Dim(), g.Matrix.Dim())
}

func TestCustomGateRequiresName(t *testing.T) {
	_, err := NewCustom("", nil, nil, nil, nil, nil)
	require.Error(t, err)

	g, err := NewCustom("swap", []qubit.Ref{1}, nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Custom, g.Kind)
	assert.Equal(t, "swap", g.Name)
}

func TestAllQubits(t *testing.T) {
	g := &Gate{Targets: []qubit.Ref{1}, Controls: []qubit.Ref{2}, Measures: []qubit.Ref{3}}
	assert.Equal(t, []qubit.Ref{1, 2, 3}, g.AllQubits())
}
