package wire

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/gate"
	"github.com/dqcsim/dqcsim-go/qubit"
)

// ArbDataWire is the wire representation of an arb.ArbData.
type ArbDataWire struct {
	Value cbor.RawMessage
	Args  [][]byte
}

// ToArbDataWire converts a domain ArbData to its wire form.
func ToArbDataWire(d *arb.ArbData) ArbDataWire {
	if d == nil {
		d = arb.Empty()
	}
	return ArbDataWire{Value: d.CBOR(), Args: d.Args()}
}

// FromArbDataWire reconstructs an ArbData from its wire form.
func FromArbDataWire(w ArbDataWire) (*arb.ArbData, error) {
	return arb.FromCBOR(w.Value, w.Args...)
}

// ArbCmdWire is the wire representation of an arb.ArbCmd.
type ArbCmdWire struct {
	Interface string
	Operation string
	Value     cbor.RawMessage
	Args      [][]byte
}

func ToArbCmdWire(c *arb.ArbCmd) ArbCmdWire {
	return ArbCmdWire{
		Interface: c.Interface,
		Operation: c.Operation,
		Value:     c.CBOR(),
		Args:      c.Args(),
	}
}

func FromArbCmdWire(w ArbCmdWire) (*arb.ArbCmd, error) {
	return arb.NewCmdFromCBOR(w.Interface, w.Operation, w.Value, w.Args...)
}

// MatrixWire flattens a complex matrix row-major for CBOR transport
// (CBOR has no native complex number type).
type MatrixWire struct {
	Dim  int
	Real []float64
	Imag []float64
}

func ToMatrixWire(m *gate.Matrix) *MatrixWire {
	if m == nil {
		return nil
	}
	dim := m.Dim()
	w := &MatrixWire{Dim: dim, Real: make([]float64, dim*dim), Imag: make([]float64, dim*dim)}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			v := (*m)[i][j]
			w.Real[i*dim+j] = real(v)
			w.Imag[i*dim+j] = imag(v)
		}
	}
	return w
}

func FromMatrixWire(w *MatrixWire) *gate.Matrix {
	if w == nil {
		return nil
	}
	m := make(gate.Matrix, w.Dim)
	for i := 0; i < w.Dim; i++ {
		m[i] = make([]complex128, w.Dim)
		for j := 0; j < w.Dim; j++ {
			idx := i*w.Dim + j
			m[i][j] = complex(w.Real[idx], w.Imag[idx])
		}
	}
	return &m
}

func refsToUint64(refs []qubit.Ref) []uint64 {
	out := make([]uint64, len(refs))
	for i, r := range refs {
		out[i] = uint64(r)
	}
	return out
}

func refsFromUint64(vals []uint64) []qubit.Ref {
	out := make([]qubit.Ref, len(vals))
	for i, v := range vals {
		out[i] = qubit.Ref(v)
	}
	return out
}

// GateWire is the wire representation of a gate.Gate.
type GateWire struct {
	Kind     uint8
	Targets  []uint64
	Controls []uint64
	Measures []uint64
	Matrix   *MatrixWire
	Name     string
	Data     *ArbDataWire
}

func ToGateWire(g *gate.Gate) GateWire {
	w := GateWire{
		Kind:     uint8(g.Kind),
		Targets:  refsToUint64(g.Targets),
		Controls: refsToUint64(g.Controls),
		Measures: refsToUint64(g.Measures),
		Matrix:   ToMatrixWire(g.Matrix),
		Name:     g.Name,
	}
	if g.Data != nil {
		dw := ToArbDataWire(g.Data)
		w.Data = &dw
	}
	return w
}

func FromGateWire(w GateWire) (*gate.Gate, error) {
	g := &gate.Gate{
		Kind:     gate.Kind(w.Kind),
		Targets:  refsFromUint64(w.Targets),
		Controls: refsFromUint64(w.Controls),
		Measures: refsFromUint64(w.Measures),
		Matrix:   FromMatrixWire(w.Matrix),
		Name:     w.Name,
	}
	if w.Data != nil {
		d, err := FromArbDataWire(*w.Data)
		if err != nil {
			return nil, err
		}
		g.Data = d
	}
	return g, nil
}

// MeasurementResultWire is the wire representation of a
// qubit.MeasurementResult.
type MeasurementResultWire struct {
	Qubit uint64
	Value uint8
	Data  ArbDataWire
}

func ToMeasurementResultWire(r qubit.MeasurementResult) MeasurementResultWire {
	return MeasurementResultWire{
		Qubit: uint64(r.Qubit),
		Value: uint8(r.Value),
		Data:  ToArbDataWire(&r.Data),
	}
}

func FromMeasurementResultWire(w MeasurementResultWire) (qubit.MeasurementResult, error) {
	d, err := FromArbDataWire(w.Data)
	if err != nil {
		return qubit.MeasurementResult{}, err
	}
	return qubit.MeasurementResult{Qubit: qubit.Ref(w.Qubit), Value: qubit.Value(w.Value), Data: *d}, nil
}

// Gate-stream messages (driver/operator/backend).

type AllocateMsg struct {
	Count int
	Cmds  []ArbCmdWire
}

type FreeMsg struct {
	Qubits []uint64
}

type GateMsg struct {
	Gate GateWire
}

type AdvanceMsg struct {
	Cycles int64
}

type ArbMsg struct {
	Cmd ArbCmdWire
}

type ModifyMeasurementMsg struct {
	Result MeasurementResultWire
}

// Host-interface messages.

type StartMsg struct {
	Data ArbDataWire
}

type SendMsg struct {
	Data ArbDataWire
}

type WaitMsg struct{}
type RecvMsg struct{}
type YieldMsg struct{}
type ShutdownMsg struct{}

// Bootstrap messages.

type PluginKind uint8

const (
	PluginFrontend PluginKind = iota
	PluginOperator
	PluginBackend
)

type HelloPluginMsg struct {
	Type    PluginKind
	Name    string
	Author  string
	Version string
	// FrameworkConstraint is a semver constraint (e.g. ">= 0.1.0, <
	// 0.2.0") this plugin requires of the driver's framework version.
	// Empty means no constraint.
	FrameworkConstraint string
}

type HelloDriverMsg struct {
	AssignedName string
	// UpstreamEndpoint, if non-empty, is a dial target the plugin must
	// connect to and serve driver-initiated HostArb requests on,
	// independent of its main upstream connection. Empty for the
	// frontend, which already receives those over its main connection.
	UpstreamEndpoint string
	// DownstreamEndpoint is the dial target for this plugin's
	// downstream peer; empty for the backend.
	DownstreamEndpoint string
	Seed               uint64
	InitCmds           []ArbCmdWire
	StderrLevel        string
}

// Response wraps the outcome of any request/response pair: Gate,
// Allocate, Arb, Start/Wait/Send/Recv/Yield, etc.
type Response struct {
	OK      bool
	Err     string
	ErrKind string
	Payload cbor.RawMessage
}

// OKResponse builds a successful Response carrying payload.
func OKResponse(payload interface{}) (Response, error) {
	raw, err := encMode.Marshal(payload)
	if err != nil {
		return Response{}, dqerrors.ProtocolFailure("failed to encode response payload: %s", err)
	}
	return Response{OK: true, Payload: raw}, nil
}

// ErrResponse builds a failure Response from err, tagging its taxonomy
// Kind and bare message when known so the far end can reconstruct an
// equivalent error (prefix and all) rather than a generic failure.
func ErrResponse(err error) Response {
	if msg, ok := dqerrors.MessageOf(err); ok {
		kind, _ := dqerrors.KindOf(err)
		return Response{OK: false, Err: msg, ErrKind: string(kind)}
	}
	return Response{OK: false, Err: err.Error()}
}

// Decode unmarshals a successful response's payload into v, or returns
// the carried error otherwise, reconstructed with its original
// taxonomy Kind (and therefore its original message prefix) when one
// was carried.
func (r Response) Decode(v interface{}) error {
	if !r.OK {
		if r.ErrKind != "" {
			return dqerrors.ByKind(dqerrors.Kind(r.ErrKind), r.Err)
		}
		return dqerrors.ProtocolFailure("%s", r.Err)
	}
	if v == nil {
		return nil
	}
	return decMode.Unmarshal(r.Payload, v)
}

// Result payloads carried inside a successful Response.

type AllocateResultMsg struct {
	Qubits []uint64
}

type GateResultMsg struct {
	Results []MeasurementResultWire
}

type ArbResultMsg struct {
	Data ArbDataWire
}

// AckMsg is the empty successful-response payload for requests that
// carry no result data (Free, Advance, Start, Send, Yield). Shutdown
// gets no response at all.
type AckMsg struct{}

// LogMsg is the wire form of a logger.Record.
type LogMsg struct {
	Message    string
	LoggerName string
	Level      int8
	Module     string
	File       string
	Line       int
	WallClock  int64 // unix nanoseconds
	PID        int
	TID        int64
}
