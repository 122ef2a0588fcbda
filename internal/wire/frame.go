package wire

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size of the frame length prefix in bytes.
	HeaderSize = 4

	// MaxFrameSize bounds the payload of a single frame. A device listing
	// for a few thousand devices fits comfortably.
	MaxFrameSize = 1 << 20
)

// WriteFrame writes payload preceded by its big-endian length.
//
// Header and payload go out in a single Write call so concurrent writers on
// distinct connections never observe a split frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:HeaderSize], uint32(len(payload))) //nolint:gosec // bounded by MaxFrameSize
	copy(buf[HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame and returns its payload.
//
// Returns:
//   - io.EOF if the peer closed the stream on a frame boundary (clean end of session)
//   - ErrTruncatedFrame if the stream ended part way through a frame
//   - ErrFrameTooLarge if the announced length exceeds MaxFrameSize
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, classifyReadErr(err, "header")
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes announced", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if size == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, classifyReadErr(err, "payload")
	}
	return payload, nil
}

// classifyReadErr maps io.ReadFull results onto the framing contract.
// A read that returned no bytes at all is a clean close.
func classifyReadErr(err error, part string) error {
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: short %s", ErrTruncatedFrame, part)
	default:
		return fmt.Errorf("read %s: %w", part, err)
	}
}

// WriteMessage serializes m and writes it as one frame.
func WriteMessage(w io.Writer, m encoding.BinaryMarshaler) error {
	payload, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads one frame and decodes it into m.
// io.EOF is returned unwrapped so callers can detect a clean close.
func ReadMessage(r io.Reader, m encoding.BinaryUnmarshaler) error {
	payload, err := ReadFrame(r)
	if err != nil {
		return err
	}
	return m.UnmarshalBinary(payload)
}
