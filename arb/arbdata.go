// Package arb implements ArbData and ArbCmd, the dynamically typed
// payload types carried across every plugin boundary (spec §3):
// a CBOR-encoded structured value whose root is a map, plus an
// ordered list of opaque byte-string "unstructured arguments".
package arb

import (
	"encoding/json"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// ArbData pairs a CBOR-encoded document, whose root must be a map,
// with an ordered sequence of opaque byte strings. Constructors and
// Args copy their byte slices; a plain struct copy of an ArbData shares
// its backing slices with the original.
type ArbData struct {
	value cbor.RawMessage
	args  [][]byte
}

// emptyMapCBOR is the canonical encoding of {}.
var emptyMapCBOR = cbor.RawMessage{0xa0}

// New constructs an ArbData from a Go map (or any value that encodes
// to a CBOR map) and a list of unstructured byte-string arguments.
// The arguments slice is copied defensively.
func New(value interface{}, args ...[]byte) (*ArbData, error) {
	if value == nil {
		value = map[string]interface{}{}
	}
	raw, err := encMode.Marshal(value)
	if err != nil {
		return nil, dqerrors.InvalidArgument("arb value does not encode to CBOR: %s", err)
	}
	if err := requireMapRoot(raw); err != nil {
		return nil, err
	}
	return &ArbData{value: raw, args: copyArgs(args)}, nil
}

// Empty returns an ArbData with an empty structured value and no
// unstructured arguments.
func Empty() *ArbData {
	d, _ := New(map[string]interface{}{})
	return d
}

// FromCBOR constructs an ArbData from an already-encoded CBOR document.
// raw's root must be a map.
func FromCBOR(raw []byte, args ...[]byte) (*ArbData, error) {
	if err := requireMapRoot(raw); err != nil {
		return nil, err
	}
	cp := make(cbor.RawMessage, len(raw))
	copy(cp, raw)
	return &ArbData{value: cp, args: copyArgs(args)}, nil
}

// FromJSON constructs an ArbData by reinterpreting a JSON document
// (whose root must be an object) as the structured value.
func FromJSON(data []byte, args ...[]byte) (*ArbData, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, dqerrors.InvalidArgument("arb value is not valid JSON: %s", err)
	}
	if _, ok := v.(map[string]interface{}); !ok {
		return nil, dqerrors.InvalidArgument("arb JSON value must have an object root")
	}
	return New(v, args...)
}

func requireMapRoot(raw []byte) error {
	if len(raw) == 0 {
		return dqerrors.InvalidArgument("arb value is empty")
	}
	majorType := raw[0] >> 5
	const cborMap = 5
	if majorType != cborMap {
		return dqerrors.InvalidArgument("arb value root must be a CBOR map")
	}
	return nil
}

func copyArgs(args [][]byte) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		cp := make([]byte, len(a))
		copy(cp, a)
		out[i] = cp
	}
	return out
}

// Value decodes the structured value into v, following the same rules
// as cbor.Unmarshal.
func (d *ArbData) Value(v interface{}) error {
	if d == nil {
		return decMode.Unmarshal(emptyMapCBOR, v)
	}
	return decMode.Unmarshal(d.value, v)
}

// SetValue replaces the structured value. value must encode to a CBOR
// map at its root.
func (d *ArbData) SetValue(value interface{}) error {
	raw, err := encMode.Marshal(value)
	if err != nil {
		return dqerrors.InvalidArgument("arb value does not encode to CBOR: %s", err)
	}
	if err := requireMapRoot(raw); err != nil {
		return err
	}
	d.value = raw
	return nil
}

// CBOR returns the raw CBOR encoding of the structured value.
func (d *ArbData) CBOR() []byte {
	if d == nil {
		return append([]byte{}, emptyMapCBOR...)
	}
	return append([]byte{}, d.value...)
}

// JSON renders the structured value as JSON, the subset of ArbData
// documents spec §3 calls out as "the subset used when serializing to
// string". Fails if the CBOR value contains anything not representable
// in JSON (non-string map keys, NaN/Inf floats); byte strings are
// rendered as base64 strings.
func (d *ArbData) JSON() ([]byte, error) {
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]interface{}(nil))}.DecMode()
	if err != nil {
		return nil, dqerrors.ProtocolFailure("arb value failed to decode: %s", err)
	}
	var v interface{}
	if err := dm.Unmarshal(d.CBOR(), &v); err != nil {
		return nil, dqerrors.ProtocolFailure("arb value failed to decode: %s", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, dqerrors.InvalidArgument("arb value is not JSON-representable: %s", err)
	}
	return out, nil
}

// Args returns a defensive copy of the unstructured argument list.
func (d *ArbData) Args() [][]byte {
	if d == nil {
		return nil
	}
	return copyArgs(d.args)
}

// NumArgs returns the number of unstructured arguments.
func (d *ArbData) NumArgs() int {
	if d == nil {
		return 0
	}
	return len(d.args)
}

// resolveIndex translates a possibly-negative index against a
// collection of length n, per spec §8: "negative indices reach element
// N + |args|; -|args|-1 and smaller fail". allowEnd permits idx == n
// (used by Insert, which may append).
func resolveIndex(idx, n int, allowEnd bool) (int, error) {
	resolved := idx
	if idx < 0 {
		resolved = n + idx
	}
	limit := n - 1
	if allowEnd {
		limit = n
	}
	if resolved < 0 || resolved > limit {
		return 0, dqerrors.InvalidArgument("arg index %d out of range for %d argument(s)", idx, n)
	}
	return resolved, nil
}

// GetArg returns the unstructured argument at idx (negative counts
// from the end).
func (d *ArbData) GetArg(idx int) ([]byte, error) {
	i, err := resolveIndex(idx, len(d.args), false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(d.args[i]))
	copy(out, d.args[i])
	return out, nil
}

// SetArg overwrites the unstructured argument at idx.
func (d *ArbData) SetArg(idx int, value []byte) error {
	i, err := resolveIndex(idx, len(d.args), false)
	if err != nil {
		return err
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	d.args[i] = cp
	return nil
}

// InsertArg inserts value before idx (idx == NumArgs() appends).
func (d *ArbData) InsertArg(idx int, value []byte) error {
	i, err := resolveIndex(idx, len(d.args), true)
	if err != nil {
		return err
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	d.args = append(d.args, nil)
	copy(d.args[i+1:], d.args[i:])
	d.args[i] = cp
	return nil
}

// RemoveArg removes and returns the argument at idx.
func (d *ArbData) RemoveArg(idx int) ([]byte, error) {
	i, err := resolveIndex(idx, len(d.args), false)
	if err != nil {
		return nil, err
	}
	removed := d.args[i]
	d.args = append(d.args[:i], d.args[i+1:]...)
	return removed, nil
}

// PushArg appends value to the end of the argument list.
func (d *ArbData) PushArg(value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	d.args = append(d.args, cp)
}

// PopArg removes and returns the last argument.
func (d *ArbData) PopArg() ([]byte, error) {
	return d.RemoveArg(-1)
}
