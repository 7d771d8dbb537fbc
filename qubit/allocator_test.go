package qubit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateMonotonicAndNonZero(t *testing.T) {
	a := NewAllocator()
	first := a.Allocate(3)
	require.Len(t, first, 3)
	for _, r := range first {
		assert.True(t, r.Valid())
	}

	second := a.Allocate(2)
	require.Len(t, second, 2)
	assert.Greater(t, uint64(second[0]), uint64(first[len(first)-1]))
}

func TestAllocateZeroReturnsEmpty(t *testing.T) {
	a := NewAllocator()
	refs := a.Allocate(0)
	assert.Empty(t, refs)
}

func TestFreeEmptySetSucceeds(t *testing.T) {
	a := NewAllocator()
	assert.NoError(t, a.Free(nil))
}

func TestFreeUnallocatedFails(t *testing.T) {
	a := NewAllocator()
	err := a.Free([]Ref{42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid argument: qubit 42 is not allocated")
}

func TestFreedRefsNeverReissued(t *testing.T) {
	a := NewAllocator()
	refs := a.Allocate(5)
	require.NoError(t, a.Free(refs))

	more := a.Allocate(5)
	for _, freed := range refs {
		for _, m := range more {
			assert.NotEqual(t, freed, m)
		}
	}
	assert.True(t, a.IsFreed(refs[0]))
	assert.False(t, a.IsLive(refs[0]))
}
