package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is the severity of a LogRecord, ordered from most to least
// verbose exactly as spec §4.6 enumerates: trace, debug, info, note,
// warn, error, fatal.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Note
	Warn
	Error
	Fatal
)

// Pass is a sentinel used by stdout/stderr capture configuration to
// mean "forward the captured bytes unchanged instead of converting
// them to LogRecords at a fixed level".
const Pass Level = -1

func (l Level) String() string {
	switch l {
	case Trace:
		return "trace"
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Note:
		return "note"
	case Warn:
		return "warn"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	case Pass:
		return "pass"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses one of the §4.6 level names (or "pass")
// case-sensitively as lowercase, returning false for anything else
// (the caller turns that into an errors.InvalidArgument as needed).
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "trace":
		return Trace, true
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "note":
		return Note, true
	case "warn":
		return Warn, true
	case "error":
		return Error, true
	case "fatal":
		return Fatal, true
	case "pass":
		return Pass, true
	}
	return 0, false
}

// Record is the structured log record every plugin and the driver
// emit, carrying exactly the metadata spec §4.6 names.
type Record struct {
	Message    string
	LoggerName string
	Level      Level
	Module     string
	File       string
	Line       int
	WallClock  time.Time
	PID        int
	TID        int64
}

// Sink receives filtered records. Implementations must not block the
// caller indefinitely; the multiplexer is on the driver's single
// logging goroutine.
type Sink interface {
	// Accept returns whether records at lvl should be delivered to
	// this sink at all, prior to Write being called.
	Accept(lvl Level) bool
	Write(rec Record) error
}

// levelSink is the common shape shared by the stderr sink, the
// callback sink, and tee-file sinks: a minimum level plus a delivery
// function.
type levelSink struct {
	min     Level
	deliver func(Record) error
}

func (s *levelSink) Accept(lvl Level) bool { return lvl != Pass && lvl >= s.min }
func (s *levelSink) Write(rec Record) error { return s.deliver(rec) }

// NewStderrSink returns a sink that writes a plain-text rendering of
// records at or above min to stderr.
func NewStderrSink(min Level) Sink {
	return &levelSink{min: min, deliver: func(rec Record) error {
		_, err := fmt.Fprintf(os.Stderr, "%s [%s] %s: %s (%s:%d)\n",
			rec.WallClock.Format(time.RFC3339Nano), rec.Level, rec.LoggerName, rec.Message, rec.File, rec.Line)
		return err
	}}
}

// CallbackFunc is the shape of a user-supplied global log callback.
type CallbackFunc func(Record)

// NewCallbackSink adapts a user callback into a Sink.
func NewCallbackSink(min Level, cb CallbackFunc) Sink {
	return &levelSink{min: min, deliver: func(rec Record) error {
		cb(rec)
		return nil
	}}
}

// NewTeeFileSink returns a sink that appends a plain-text rendering of
// records at or above min to the file at path, opening it immediately
// and keeping it open for the sink's lifetime.
func NewTeeFileSink(path string, min Level) (Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &levelSink{min: min, deliver: func(rec Record) error {
		_, err := fmt.Fprintf(f, "%s [%s] %s: %s (%s:%d)\n",
			rec.WallClock.Format(time.RFC3339Nano), rec.Level, rec.LoggerName, rec.Message, rec.File, rec.Line)
		return err
	}}, nil
}

// Mux multiplexes LogRecords from every plugin and the driver into a
// chain of sinks, as spec §4.6 describes. It also answers the
// source-filter clamping question invariant 6 requires: a plugin's
// own filter level must never be stricter than the most permissive
// sink, or that sink would never see records it was configured to
// receive.
type Mux struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewMux constructs a multiplexer with the given sinks. A nil or empty
// sinks list is valid; Log becomes a no-op.
func NewMux(sinks ...Sink) *Mux {
	return &Mux{sinks: append([]Sink{}, sinks...)}
}

// AddSink registers an additional sink at runtime (e.g. a tee file
// added after a plugin config is parsed).
func (m *Mux) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Log delivers rec to every sink that accepts its level. The first
// write error encountered is returned after all sinks have been
// attempted, so one broken tee file does not swallow stderr output.
func (m *Mux) Log(rec Record) error {
	m.mu.Lock()
	sinks := append([]Sink{}, m.sinks...)
	m.mu.Unlock()

	var firstErr error
	for _, s := range sinks {
		if !s.Accept(rec.Level) {
			continue
		}
		if err := s.Write(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MostPermissiveSinkLevel returns the lowest (most verbose) min-level
// among registered sinks that expose one via levelSink, or Fatal if no
// sink has been registered (nothing should be let through).
func (m *Mux) MostPermissiveSinkLevel() Level {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := Fatal
	for _, s := range m.sinks {
		if ls, ok := s.(*levelSink); ok && ls.min < best {
			best = ls.min
		}
	}
	return best
}

// ClampSourceLevel implements invariant 6: a plugin's requested source
// filter is clamped so it is never stricter (numerically higher) than
// the most permissive sink, since a stricter source filter would
// silently starve that sink of records it asked for.
func (m *Mux) ClampSourceLevel(requested Level) Level {
	if requested == Pass {
		return Pass
	}
	if permissive := m.MostPermissiveSinkLevel(); requested > permissive {
		return permissive
	}
	return requested
}
