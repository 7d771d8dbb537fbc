package qubit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmeasuredQubitReturnsUndefinedWithSinceMinusOne(t *testing.T) {
	r := NewRegister()
	r.Track(1)

	res, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, Undefined, res.Value)
	assert.EqualValues(t, -1, r.CyclesSinceMeasure(1, 10))
	assert.EqualValues(t, -1, r.CyclesBetweenMeasures(1))
}

func TestRecordAndCycleTimestamps(t *testing.T) {
	r := NewRegister()
	r.Track(1)

	require.NoError(t, r.Record(MeasurementResult{Qubit: 1, Value: One}, 5))
	assert.EqualValues(t, 3, r.CyclesSinceMeasure(1, 8))
	assert.EqualValues(t, -1, r.CyclesBetweenMeasures(1))

	require.NoError(t, r.Record(MeasurementResult{Qubit: 1, Value: Zero}, 9))
	assert.EqualValues(t, 0, r.CyclesSinceMeasure(1, 9))
	assert.EqualValues(t, 4, r.CyclesBetweenMeasures(1))

	res, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, Zero, res.Value)
}

func TestDeallocatedQubitFailsOnGet(t *testing.T) {
	r := NewRegister()
	r.Track(1)
	r.Deallocate(1)

	_, err := r.Get(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid argument")
	assert.EqualValues(t, -1, r.CyclesSinceMeasure(1, 100))
}

func TestRecordAfterDeallocationFails(t *testing.T) {
	r := NewRegister()
	r.Track(1)
	r.Deallocate(1)

	err := r.Record(MeasurementResult{Qubit: 1, Value: One}, 5)
	require.Error(t, err)
}

func TestSetGetRoundTrip(t *testing.T) {
	r := NewRegister()
	r.Track(7)

	want := MeasurementResult{Qubit: 7, Value: One}
	require.NoError(t, r.Record(want, 2))

	got, err := r.Get(7)
	require.NoError(t, err)
	assert.Equal(t, want.Qubit, got.Qubit)
	assert.Equal(t, want.Value, got.Value)
}

func TestCycleCounterAdvance(t *testing.T) {
	c := &CycleCounter{}
	assert.EqualValues(t, 0, c.Value())
	assert.EqualValues(t, 3, c.Advance(3))
	assert.EqualValues(t, 8, c.Advance(5))
}
