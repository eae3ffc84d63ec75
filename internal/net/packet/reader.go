package packet

import (
	"errors"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// ErrUnexpectedEOF is returned when a length-prefixed field declares more
// data than the payload holds.
var ErrUnexpectedEOF = errors.New("unexpected end of packet")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Reader decodes the bit-packed fields of a WildStar payload. Integers are
// accumulated LSB-first across byte boundaries, matching the client's bit
// writer. Fixed-width reads past the end return zero and set a sticky
// error; string reads fail fast because a bad length poisons everything
// after it.
type Reader struct {
	data   []byte
	bitPos uint64
	err    error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err reports the first overrun encountered by a fixed-width read.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of whole unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - int((r.bitPos+7)/8)
}

// ReadUint reads an n-bit unsigned integer, n in [1,64].
func (r *Reader) ReadUint(bits uint) uint64 {
	if r.err != nil {
		return 0
	}
	if r.bitPos+uint64(bits) > uint64(len(r.data))*8 {
		r.err = ErrUnexpectedEOF
		return 0
	}
	var v uint64
	for i := uint(0); i < bits; i++ {
		byteIdx := (r.bitPos + uint64(i)) / 8
		bitIdx := (r.bitPos + uint64(i)) % 8
		if r.data[byteIdx]>>(bitIdx)&1 == 1 {
			v |= 1 << i
		}
	}
	r.bitPos += uint64(bits)
	return v
}

// ReadByte reads 8 bits.
func (r *Reader) ReadByte() byte {
	return byte(r.ReadUint(8))
}

// ReadUint16 reads 16 bits little-endian.
func (r *Reader) ReadUint16() uint16 {
	return uint16(r.ReadUint(16))
}

// ReadUint32 reads 32 bits little-endian.
func (r *Reader) ReadUint32() uint32 {
	return uint32(r.ReadUint(32))
}

// ReadUint64 reads 64 bits little-endian.
func (r *Reader) ReadUint64() uint64 {
	return r.ReadUint(64)
}

// ReadBool reads a single bit.
func (r *Reader) ReadBool() bool {
	return r.ReadUint(1) == 1
}

// ReadFloat32 reads an IEEE-754 single.
func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(r.ReadUint32())
}

// ReadBytes reads n whole bytes.
func (r *Reader) ReadBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = r.ReadByte()
	}
	if r.err != nil {
		return nil
	}
	return out
}

// ReadStringPacked reads a bit-packed wide string: one extension bit, then
// a 7-bit (or 15-bit when extended) code-unit count, then that many
// UTF-16LE code units.
func (r *Reader) ReadStringPacked() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	extended := r.ReadBool()
	var count uint64
	if extended {
		count = r.ReadUint(15)
	} else {
		count = r.ReadUint(7)
	}
	return r.readWide(count)
}

// ReadStringFixed reads the legacy fixed-length wide string: a uint16
// code-unit count that includes the null terminator, then the UTF-16LE
// units. The terminator is stripped.
func (r *Reader) ReadStringFixed() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	count := uint64(r.ReadUint16())
	if count == 0 {
		return "", nil
	}
	s, err := r.readWide(count)
	if err != nil {
		return "", err
	}
	// Strip the encoded null and anything after it.
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return s[:i], nil
		}
	}
	return s, nil
}

// ReadStringASCII reads a null-terminated single-byte string (used by the
// realm address field).
func (r *Reader) ReadStringASCII() (string, error) {
	var out []byte
	for {
		b := r.ReadByte()
		if r.err != nil {
			return "", r.err
		}
		if b == 0 {
			return string(out), nil
		}
		out = append(out, b)
	}
}

func (r *Reader) readWide(codeUnits uint64) (string, error) {
	if r.bitPos+codeUnits*16 > uint64(len(r.data))*8 {
		r.err = ErrUnexpectedEOF
		return "", ErrUnexpectedEOF
	}
	raw := make([]byte, codeUnits*2)
	for i := range raw {
		raw[i] = r.ReadByte()
	}
	decoded, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
