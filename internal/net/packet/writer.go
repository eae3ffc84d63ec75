package packet

import "math"

// Writer builds a bit-packed WildStar payload. Mirror image of Reader:
// integers are emitted LSB-first across byte boundaries. Bytes() pads the
// final partial byte with zero bits.
type Writer struct {
	buf    []byte
	bitPos uint64
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteUint writes the low n bits of v.
func (w *Writer) WriteUint(v uint64, bits uint) {
	for i := uint(0); i < bits; i++ {
		byteIdx := int((w.bitPos + uint64(i)) / 8)
		bitIdx := (w.bitPos + uint64(i)) % 8
		for byteIdx >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if v>>i&1 == 1 {
			w.buf[byteIdx] |= 1 << bitIdx
		}
	}
	w.bitPos += uint64(bits)
}

func (w *Writer) WriteByte(v byte)     { w.WriteUint(uint64(v), 8) }
func (w *Writer) WriteUint16(v uint16) { w.WriteUint(uint64(v), 16) }
func (w *Writer) WriteUint32(v uint32) { w.WriteUint(uint64(v), 32) }
func (w *Writer) WriteUint64(v uint64) { w.WriteUint(v, 64) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint(1, 1)
	} else {
		w.WriteUint(0, 1)
	}
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteBytes(b []byte) {
	for _, v := range b {
		w.WriteByte(v)
	}
}

// WriteStringPacked writes a bit-packed wide string: extension bit, 7- or
// 15-bit code-unit count, UTF-16LE units. Strings of 127 code units or
// fewer use the short form.
func (w *Writer) WriteStringPacked(s string) {
	raw := encodeWide(s)
	count := uint64(len(raw) / 2)
	if count > 127 {
		w.WriteBool(true)
		w.WriteUint(count, 15)
	} else {
		w.WriteBool(false)
		w.WriteUint(count, 7)
	}
	w.WriteBytes(raw)
}

// WriteStringFixed writes the legacy fixed-length wide string: uint16
// code-unit count including the null terminator, then the units.
func (w *Writer) WriteStringFixed(s string) {
	raw := encodeWide(s)
	w.WriteUint16(uint16(len(raw)/2 + 1))
	w.WriteBytes(raw)
	w.WriteUint16(0) // null terminator
}

// WriteStringASCII writes a null-terminated single-byte string.
func (w *Writer) WriteStringASCII(s string) {
	w.WriteBytes([]byte(s))
	w.WriteByte(0)
}

// Bytes returns the packed payload, padding the trailing partial byte.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the payload length in whole bytes.
func (w *Writer) Len() int {
	return len(w.buf)
}

func encodeWide(s string) []byte {
	encoded, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// Encoder only fails on invalid UTF-8; drop the offending string
		// rather than corrupting the bit stream.
		return nil
	}
	return encoded
}
