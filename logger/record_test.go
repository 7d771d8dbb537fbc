package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("warn")
	require.True(t, ok)
	assert.Equal(t, Warn, lvl)

	_, ok = ParseLevel("bogus")
	assert.False(t, ok)
}

func TestMuxDeliversToAcceptingSinksOnly(t *testing.T) {
	var got []Record
	cb := NewCallbackSink(Warn, func(rec Record) { got = append(got, rec) })
	mux := NewMux(cb)

	mux.Log(Record{Message: "debug noise", Level: Debug})
	mux.Log(Record{Message: "something bad", Level: Error})

	require.Len(t, got, 1)
	assert.Equal(t, "something bad", got[0].Message)
}

func TestMuxPassLevelNeverDelivered(t *testing.T) {
	var got []Record
	cb := NewCallbackSink(Trace, func(rec Record) { got = append(got, rec) })
	mux := NewMux(cb)

	mux.Log(Record{Message: "raw passthrough bytes", Level: Pass})
	assert.Empty(t, got)
}

func TestClampSourceLevel(t *testing.T) {
	mux := NewMux(NewStderrSink(Warn), NewCallbackSink(Info, func(Record) {}))

	// Requesting Error, well above the most permissive sink (Info), is
	// clamped down to Info as well.
	assert.Equal(t, Info, mux.ClampSourceLevel(Error))

	// Requesting something stricter than the most permissive sink (Info)
	// is clamped down to Info so that sink is not starved.
	assert.Equal(t, Info, mux.ClampSourceLevel(Note))

	// Pass is never clamped.
	assert.Equal(t, Pass, mux.ClampSourceLevel(Pass))
}

func TestMuxNoSinksMostPermissiveIsFatal(t *testing.T) {
	mux := NewMux()
	assert.Equal(t, Fatal, mux.MostPermissiveSinkLevel())
}

func TestTeeFileSinkWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tee.log")

	sink, err := NewTeeFileSink(path, Info)
	require.NoError(t, err)

	mux := NewMux(sink)
	require.NoError(t, mux.Log(Record{
		Message:    "hello",
		LoggerName: "dqcsim.backend",
		Level:      Info,
		File:       "backend.go",
		Line:       42,
		WallClock:  time.Now(),
	}))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "hello")
	assert.Contains(t, string(contents), "dqcsim.backend")
}
