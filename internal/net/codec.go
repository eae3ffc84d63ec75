package net

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame is one decoded wire frame: a 16-bit opcode and its payload.
// Wire format: [length:uvarint][opcode:u16 LE][payload:length-2 bytes],
// where length counts everything after the varint itself.
type Frame struct {
	Opcode  uint16
	Payload []byte
}

var (
	// ErrMalformedFrame is returned for impossible frame lengths.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrTruncatedOrOversized is returned when a frame declares a length
	// beyond the hard limit. Oversized frames are unrecoverable because the
	// stream position can no longer be trusted.
	ErrTruncatedOrOversized = errors.New("frame exceeds size limit")
)

// DefaultMaxFrameSize bounds a single frame's declared length.
const DefaultMaxFrameSize = 8192

// DecodeFrames consumes as many complete frames as possible from buf and
// returns them together with the unconsumed remainder. A partial frame at
// the tail is not an error; the caller keeps the remainder and appends the
// next TCP read to it. The returned payloads alias buf, so the caller must
// copy them if buf is reused.
func DecodeFrames(buf []byte, maxFrame int) ([]Frame, []byte, error) {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	var frames []Frame
	for {
		length, n := binary.Uvarint(buf)
		if n == 0 {
			return frames, buf, nil // need more bytes for the varint
		}
		if n < 0 || length > uint64(maxFrame) {
			return frames, buf, fmt.Errorf("%w: declared %d, limit %d", ErrTruncatedOrOversized, length, maxFrame)
		}
		if length < 2 {
			return frames, buf, fmt.Errorf("%w: length %d cannot hold an opcode", ErrMalformedFrame, length)
		}
		if uint64(len(buf)-n) < length {
			return frames, buf, nil // incomplete frame, wait for more
		}
		body := buf[n : n+int(length)]
		frames = append(frames, Frame{
			Opcode:  binary.LittleEndian.Uint16(body[:2]),
			Payload: body[2:],
		})
		buf = buf[n+int(length):]
	}
}

// EncodeFrame builds one outbound frame.
func EncodeFrame(opcode uint16, payload []byte) []byte {
	length := uint64(2 + len(payload))
	buf := make([]byte, 0, binary.MaxVarintLen32+int(length))
	var varint [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varint[:], length)
	buf = append(buf, varint[:n]...)
	var op [2]byte
	binary.LittleEndian.PutUint16(op[:], opcode)
	buf = append(buf, op[:]...)
	buf = append(buf, payload...)
	return buf
}
