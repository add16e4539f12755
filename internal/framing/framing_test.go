package framing

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{0x5A},
		[]byte("frame payload with some length"),
	}
	long := make([]byte, 64*1024)
	rand.Read(long)
	payloads = append(payloads, long)

	for _, payload := range payloads {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, payload))

		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, payload, got)

		_, err = ReadFrame(&buf)
		assert.Equal(t, io.EOF, err)
	}
}

func TestFrameLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{0x5A}))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01, 0x5A}, buf.Bytes())
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(MaxFrameSize+1))
	buf.Write([]byte{0x01, 0x02})

	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrCorruptedFrame)
}

func TestReadFrameDetectsEveryTruncationPoint(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	var full bytes.Buffer
	require.NoError(t, WriteFrame(&full, payload))
	encoded := full.Bytes()

	// Cutting anywhere after the first length byte and before the last
	// payload byte must surface corruption, never a frame and never a silent
	// end.
	for cut := 1; cut < len(encoded); cut++ {
		_, err := ReadFrame(bytes.NewReader(encoded[:cut]))
		require.ErrorIs(t, err, ErrCorruptedFrame, "truncation at byte %d", cut)
	}

	// Cutting before any length byte is a clean end.
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestConcatenatedFrames(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{
		[]byte("first"),
		{},
		[]byte("third"),
	}
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&buf, p))
	}

	for _, want := range payloads {
		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}
