package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndGet(t *testing.T) {
	tbl := New()
	h := tbl.New("hello")

	v, err := tbl.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestUnknownHandleFails(t *testing.T) {
	tbl := New()
	_, err := tbl.Get(Handle(999))
	require.Error(t, err)
	assert.Equal(t, "Invalid argument: handle 999 is invalid", err.Error())
}

func TestHandlesNeverReused(t *testing.T) {
	tbl := New()
	h1 := tbl.New(1)
	require.NoError(t, tbl.Delete(h1))
	h2 := tbl.New(2)
	assert.NotEqual(t, h1, h2)
	assert.Greater(t, uint64(h2), uint64(h1))
}

func TestDeleteUnknownFails(t *testing.T) {
	tbl := New()
	err := tbl.Delete(Handle(5))
	require.Error(t, err)
}

func TestType(t *testing.T) {
	tbl := New()
	h := tbl.New(42)
	typeName, err := tbl.Type(h)
	require.NoError(t, err)
	assert.Equal(t, "int", typeName)
}

func TestLeakCheckSuccessIffEmpty(t *testing.T) {
	tbl := New()
	assert.NoError(t, tbl.LeakCheck())

	h := tbl.New("leaked")
	err := tbl.LeakCheck()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Leak check: 1 handles remain")

	require.NoError(t, tbl.Delete(h))
	assert.NoError(t, tbl.LeakCheck())
}

func TestDeleteAll(t *testing.T) {
	tbl := New()
	tbl.New(1)
	tbl.New(2)
	assert.Equal(t, 2, tbl.Len())

	tbl.DeleteAll()
	assert.Equal(t, 0, tbl.Len())
	assert.NoError(t, tbl.LeakCheck())
}

func TestDump(t *testing.T) {
	tbl := New()
	tbl.New("a")
	tbl.New(2)

	dump := tbl.Dump()
	assert.Contains(t, dump, "string")
	assert.Contains(t, dump, "int")
}
