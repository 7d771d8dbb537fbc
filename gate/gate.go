// Package gate implements the Gate tagged union spec §3 defines: a
// value with four variants (Unitary, Measurement, Prep, Custom)
// carrying qubit-reference sets, an optional matrix, and — for Custom
// gates — a name and an ArbData payload.
package gate

import (
	"github.com/dqcsim/dqcsim-go/arb"
	dqerrors "github.com/dqcsim/dqcsim-go/errors"
	"github.com/dqcsim/dqcsim-go/qubit"
)

// Kind discriminates the four Gate variants.
type Kind int

const (
	Unitary Kind = iota
	Measurement
	Prep
	Custom
)

func (k Kind) String() string {
	switch k {
	case Unitary:
		return "unitary"
	case Measurement:
		return "measurement"
	case Prep:
		return "prep"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Matrix is a dense complex matrix used as a unitary or measurement
// basis. Rows need not be square for Measurement/Prep basis matrices,
// but a Unitary gate's matrix must be 2^|targets| square.
type Matrix [][]complex128

// Dim returns the matrix's row count (its dimension, for a square
// matrix).
func (m Matrix) Dim() int { return len(m) }

// Gate is the tagged union spec §3 describes. Only the fields relevant
// to Kind are meaningful; constructors enforce that.
type Gate struct {
	Kind     Kind
	Targets  []qubit.Ref
	Controls []qubit.Ref
	Measures []qubit.Ref
	Matrix   *Matrix
	Name     string // Custom only
	Data     *arb.ArbData // Custom only
}

func disjoint(sets ...[]qubit.Ref) bool {
	seen := make(map[qubit.Ref]struct{})
	for _, set := range sets {
		for _, r := range set {
			if _, ok := seen[r]; ok {
				return false
			}
			seen[r] = struct{}{}
		}
	}
	return true
}

func validateCommon(g *Gate) error {
	if !disjoint(g.Targets, g.Controls, g.Measures) {
		return dqerrors.InvalidArgument("target/control/measure qubit sets must be pairwise disjoint")
	}
	return nil
}

// NewUnitary constructs a Unitary gate. The matrix must be square with
// dimension 2^len(targets).
func NewUnitary(targets, controls []qubit.Ref, matrix Matrix) (*Gate, error) {
	want := 1 << uint(len(targets))
	if matrix.Dim() != want {
		return nil, dqerrors.InvalidArgument("the matrix is expected to be of size %d but was %d", want, matrix.Dim())
	}
	for _, row := range matrix {
		if len(row) != want {
			return nil, dqerrors.InvalidArgument("the matrix is expected to be square but a row has %d entries", len(row))
		}
	}
	g := &Gate{Kind: Unitary, Targets: targets, Controls: controls, Matrix: &matrix}
	if err := validateCommon(g); err != nil {
		return nil, err
	}
	return g, nil
}

// NewMeasurement constructs a Measurement gate over the given qubits
// in the given basis.
func NewMeasurement(qubits []qubit.Ref, basis Matrix) (*Gate, error) {
	g := &Gate{Kind: Measurement, Measures: qubits, Matrix: &basis}
	if g.Matrix == nil || g.Matrix.Dim() == 0 {
		return nil, dqerrors.InvalidArgument("non-custom gates require a matrix")
	}
	if err := validateCommon(g); err != nil {
		return nil, err
	}
	return g, nil
}

// NewPrep constructs a Prep gate initializing the given qubits to the
// given basis state.
func NewPrep(qubits []qubit.Ref, basis Matrix) (*Gate, error) {
	g := &Gate{Kind: Prep, Targets: qubits, Matrix: &basis}
	if g.Matrix == nil || g.Matrix.Dim() == 0 {
		return nil, dqerrors.InvalidArgument("non-custom gates require a matrix")
	}
	if err := validateCommon(g); err != nil {
		return nil, err
	}
	return g, nil
}

// NewCustom constructs a Custom gate. Any combination of
// targets/controls/measures/matrix/data may be supplied; name must be
// non-empty.
func NewCustom(name string, targets, controls, measures []qubit.Ref, matrix *Matrix, data *arb.ArbData) (*Gate, error) {
	if name == "" {
		return nil, dqerrors.InvalidArgument("custom gate name must not be empty")
	}
	g := &Gate{
		Kind: Custom, Name: name,
		Targets: targets, Controls: controls, Measures: measures,
		Matrix: matrix, Data: data,
	}
	if err := validateCommon(g); err != nil {
		return nil, err
	}
	return g, nil
}

// AllQubits returns the union of targets, controls, and measures, in
// that order, with no deduplication (the disjointness invariant makes
// that unnecessary).
func (g *Gate) AllQubits() []qubit.Ref {
	out := make([]qubit.Ref, 0, len(g.Targets)+len(g.Controls)+len(g.Measures))
	out = append(out, g.Targets...)
	out = append(out, g.Controls...)
	out = append(out, g.Measures...)
	return out
}
