package wire

import (
	"encoding/binary"
	"io"

	dqerrors "github.com/dqcsim/dqcsim-go/errors"
)

// maxFrameLen guards against a corrupt or hostile length prefix causing
// an unbounded allocation.
const maxFrameLen = 64 << 20 // 64 MiB

// WriteFrame writes env to w as a 4-byte big-endian length prefix
// followed by its CBOR-encoded bytes.
func WriteFrame(w io.Writer, env Envelope) error {
	body, err := env.Marshal()
	if err != nil {
		return err
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return dqerrors.ProtocolFailure("failed to write frame length: %s", err)
	}
	if _, err := w.Write(body); err != nil {
		return dqerrors.ProtocolFailure("failed to write frame body: %s", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and decodes it into
// an Envelope.
func ReadFrame(r io.Reader) (Envelope, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		if err == io.EOF {
			return Envelope{}, err
		}
		return Envelope{}, dqerrors.ProtocolFailure("failed to read frame length: %s", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxFrameLen {
		return Envelope{}, dqerrors.ProtocolFailure("frame length %d exceeds maximum %d", n, maxFrameLen)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, dqerrors.ProtocolFailure("failed to read frame body: %s", err)
	}
	return Unmarshal(body)
}
