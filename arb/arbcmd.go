package arb

import dqerrors "github.com/dqcsim/dqcsim-go/errors"

// ArbCmd is an ArbData augmented with two non-empty identifier
// strings naming the interface and operation it addresses (spec §3).
// It is the payload of every Arb / UpstreamArb / HostArb message.
type ArbCmd struct {
	ArbData
	Interface string
	Operation string
}

// NewCmd constructs an ArbCmd. Both iface and oper must be non-empty.
func NewCmd(iface, oper string, value interface{}, args ...[]byte) (*ArbCmd, error) {
	if iface == "" {
		return nil, dqerrors.InvalidArgument("arb interface identifier must not be empty")
	}
	if oper == "" {
		return nil, dqerrors.InvalidArgument("arb operation identifier must not be empty")
	}
	data, err := New(value, args...)
	if err != nil {
		return nil, err
	}
	return &ArbCmd{ArbData: *data, Interface: iface, Operation: oper}, nil
}

// NewCmdFromCBOR constructs an ArbCmd from an already-encoded CBOR
// document, used when reconstructing a command from the wire.
func NewCmdFromCBOR(iface, oper string, raw []byte, args ...[]byte) (*ArbCmd, error) {
	if iface == "" {
		return nil, dqerrors.InvalidArgument("arb interface identifier must not be empty")
	}
	if oper == "" {
		return nil, dqerrors.InvalidArgument("arb operation identifier must not be empty")
	}
	data, err := FromCBOR(raw, args...)
	if err != nil {
		return nil, err
	}
	return &ArbCmd{ArbData: *data, Interface: iface, Operation: oper}, nil
}
