package quic

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Reliable payloads travel on the bidirectional stream as length-prefixed
// frames. Unreliable payloads and ping probes travel as datagrams tagged
// with a leading kind byte.
const (
	datagramData byte = 0x01
	datagramPing byte = 0x02
	datagramPong byte = 0x03

	// maxFrameSize caps a single stream frame. Larger payloads indicate a
	// corrupt or hostile peer.
	maxFrameSize = 1 << 20
)

// writeFrame emits one length-prefixed payload. A zero-length frame is the
// hello the dialer sends to force stream creation on the accept side.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", len(payload))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	if n == 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func encodeDataDatagram(payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = datagramData
	copy(out[1:], payload)
	return out
}

func encodeProbe(kind byte, at time.Time) []byte {
	var out [9]byte
	out[0] = kind
	binary.BigEndian.PutUint64(out[1:], uint64(at.UnixNano()))
	return out[:]
}

func decodeProbe(dgram []byte) (time.Time, bool) {
	if len(dgram) != 9 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(dgram[1:]))), true
}
