package wire

import "errors"

// Domain errors for the wire package.
var (
	// ErrTruncatedFrame is returned when the peer closes the stream part way
	// through a frame header or payload.
	ErrTruncatedFrame = errors.New("wire: truncated frame")

	// ErrFrameTooLarge is returned when a frame header announces a payload
	// larger than MaxFrameSize. The stream cannot be resynchronised after this.
	ErrFrameTooLarge = errors.New("wire: frame too large")

	// ErrMalformed is returned when a payload is not a valid encoding of the
	// expected message.
	ErrMalformed = errors.New("wire: malformed message")
)
