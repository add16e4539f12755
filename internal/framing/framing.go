// Package framing implements the length-prefixed record format shared by file
// spools and queue messages: a 4-byte big-endian length followed by that many
// payload bytes.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the sanity cap on a single frame payload (1 GiB). Lengths
// above it are treated as corruption so that a torn file cannot force an
// arbitrarily large allocation.
const MaxFrameSize = 1 << 30

var (
	// ErrCorruptedFrame indicates a torn length prefix, a truncated payload,
	// or a length prefix above MaxFrameSize.
	ErrCorruptedFrame = errors.New("corrupted frame")

	// ErrPayloadTooLarge indicates a payload above MaxFrameSize at write time.
	ErrPayloadTooLarge = errors.New("payload too large for frame")
)

// WriteFrame writes payload to w preceded by its 4-byte big-endian length.
// On a partial write the sink is left corrupted; callers must not append to it
// again without truncating.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write frame length: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("failed to write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame returns the next frame payload from r. A clean end of input before
// any length byte is reported as io.EOF. An end of input between the length
// prefix and the last payload byte, or a decoded length above MaxFrameSize,
// is reported as ErrCorruptedFrame. The payload buffer is only allocated after
// the length has been validated.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: incomplete length prefix", ErrCorruptedFrame)
		}
		return nil, fmt.Errorf("failed to read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: length prefix %d exceeds cap", ErrCorruptedFrame, length)
	}

	payload := make([]byte, length)
	if length > 0 {
		n, err := io.ReadFull(r, payload)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: payload truncated at %d of %d bytes", ErrCorruptedFrame, n, length)
			}
			return nil, fmt.Errorf("failed to read frame payload: %w", err)
		}
	}
	return payload, nil
}
