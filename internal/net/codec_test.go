package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	wire := EncodeFrame(0x0221, []byte{1, 2, 3, 4})
	frames, rest, err := DecodeFrames(wire, 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Empty(t, rest)
	assert.Equal(t, uint16(0x0221), frames[0].Opcode)
	assert.Equal(t, []byte{1, 2, 3, 4}, frames[0].Payload)
}

func TestCodecMultipleFrames(t *testing.T) {
	wire := append(EncodeFrame(1, []byte("a")), EncodeFrame(2, []byte("bb"))...)
	frames, rest, err := DecodeFrames(wire, 0)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Empty(t, rest)
	assert.Equal(t, uint16(1), frames[0].Opcode)
	assert.Equal(t, uint16(2), frames[1].Opcode)
}

func TestCodecPartialFrameKept(t *testing.T) {
	wire := EncodeFrame(7, []byte("payload"))
	cut := wire[:len(wire)-3]

	frames, rest, err := DecodeFrames(cut, 0)
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, cut, rest)

	// Completing the buffer yields the frame.
	frames, rest, err = DecodeFrames(append(rest, wire[len(wire)-3:]...), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Empty(t, rest)
	assert.Equal(t, []byte("payload"), frames[0].Payload)
}

func TestCodecEmptyPayload(t *testing.T) {
	frames, _, err := DecodeFrames(EncodeFrame(9, nil), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Empty(t, frames[0].Payload)
}

func TestCodecOversizedFrameFatal(t *testing.T) {
	wire := EncodeFrame(1, make([]byte, 100))
	_, _, err := DecodeFrames(wire, 50)
	assert.ErrorIs(t, err, ErrTruncatedOrOversized)
}

func TestCodecLengthTooShortForOpcode(t *testing.T) {
	// Varint length 1 cannot hold the 2-byte opcode.
	_, _, err := DecodeFrames([]byte{0x01, 0xFF}, 0)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
