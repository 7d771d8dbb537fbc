// Package wire implements the binary, length-prefixed, CBOR-encoded
// message protocol spec §6 mandates: every message begins with a
// discriminator tag from a fixed enumeration and carries a
// CBOR-encoded payload.
package wire

import (
	"github.com/fxamacker/cbor/v2"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// Tag is the message discriminator spec §6 enumerates.
type Tag uint8

const (
	TagAllocate Tag = iota
	TagFree
	TagGate
	TagAdvance
	TagUpstreamArb
	TagModifyMeasurement
	TagStart
	TagWait
	TagSend
	TagRecv
	TagYield
	TagHostArb
	TagShutdown
	TagLog
	TagHelloPlugin
	TagHelloDriver
	TagResponse
)

func (t Tag) String() string {
	switch t {
	case TagAllocate:
		return "Allocate"
	case TagFree:
		return "Free"
	case TagGate:
		return "Gate"
	case TagAdvance:
		return "Advance"
	case TagUpstreamArb:
		return "UpstreamArb"
	case TagModifyMeasurement:
		return "ModifyMeasurement"
	case TagStart:
		return "Start"
	case TagWait:
		return "Wait"
	case TagSend:
		return "Send"
	case TagRecv:
		return "Recv"
	case TagYield:
		return "Yield"
	case TagHostArb:
		return "HostArb"
	case TagShutdown:
		return "Shutdown"
	case TagLog:
		return "Log"
	case TagHelloPlugin:
		return "HelloPlugin"
	case TagHelloDriver:
		return "HelloDriver"
	case TagResponse:
		return "Response"
	default:
		return "Unknown"
	}
}

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

// Envelope is the wire-level frame: a tag plus its raw CBOR payload.
type Envelope struct {
	Tag     Tag
	Payload cbor.RawMessage
}

// Encode builds an Envelope carrying payload, which must be
// CBOR-marshalable.
func Encode(tag Tag, payload interface{}) (Envelope, error) {
	raw, err := encMode.Marshal(payload)
	if err != nil {
		return Envelope{}, dqerrors.ProtocolFailure("failed to encode %s payload: %s", tag, err)
	}
	return Envelope{Tag: tag, Payload: raw}, nil
}

// Decode unmarshals the envelope's payload into v.
func (e Envelope) Decode(v interface{}) error {
	if err := decMode.Unmarshal(e.Payload, v); err != nil {
		return dqerrors.ProtocolFailure("failed to decode %s payload: %s", e.Tag, err)
	}
	return nil
}

// Marshal encodes the envelope itself (tag + raw payload) to CBOR, for
// framing onto the wire.
func (e Envelope) Marshal() ([]byte, error) {
	out, err := encMode.Marshal(e)
	if err != nil {
		return nil, dqerrors.ProtocolFailure("failed to encode envelope: %s", err)
	}
	return out, nil
}

// Unmarshal decodes raw bytes into an Envelope.
func Unmarshal(raw []byte) (Envelope, error) {
	var e Envelope
	if err := decMode.Unmarshal(raw, &e); err != nil {
		return Envelope{}, dqerrors.ProtocolFailure("failed to decode envelope: %s", err)
	}
	return e, nil
}
