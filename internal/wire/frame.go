package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's payload. A peer announcing a
// bigger frame is treated as hostile and dropped.
const MaxFrameSize = 4 << 20

const frameHeaderSize = 4

// WriteFrame encodes a term and writes it length-prefixed (4-byte
// big-endian unsigned) to w.
func WriteFrame(w io.Writer, t Term) error {
	payload, err := Encode(t)
	if err != nil {
		return err
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("wire: frame payload %d exceeds max %d", len(payload), MaxFrameSize)
	}
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r and decodes it. An
// io.EOF at a frame boundary is returned as-is so callers can tell an
// orderly close from a truncated frame.
func ReadFrame(r io.Reader) (Term, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame size %d exceeds max %d", ErrDecode, size, MaxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return Decode(payload)
}
