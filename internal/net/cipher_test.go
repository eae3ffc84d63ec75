package net

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(s string) [SessionKeyLen]byte {
	return [SessionKeyLen]byte([]byte(s))
}

func TestCipherRoundTrip(t *testing.T) {
	key := testKey("0123456789abcdef")
	enc := NewCipher(key)
	dec := NewCipher(key)

	plain := []byte("the quick brown fox jumps over the lazy dog")
	wire := enc.Apply(append([]byte(nil), plain...))
	assert.False(t, bytes.Equal(plain, wire), "ciphertext must differ from plaintext")

	got := dec.Apply(wire)
	assert.Equal(t, plain, got)
}

func TestCipherStreamPosition(t *testing.T) {
	key := testKey("0123456789abcdef")
	enc := NewCipher(key)
	dec := NewCipher(key)

	// Split the stream at awkward boundaries; the counter must carry
	// across Apply calls.
	plain := []byte("split across multiple frames")
	var wire []byte
	for _, chunk := range [][]byte{plain[:1], plain[1:7], plain[7:]} {
		wire = append(wire, enc.Apply(append([]byte(nil), chunk...))...)
	}
	got := dec.Apply(wire)
	assert.Equal(t, plain, got)
	assert.Equal(t, uint64(len(plain)), enc.Counter())
}

func TestCipherKeySensitivity(t *testing.T) {
	a := NewCipher(testKey("0123456789abcdef"))
	b := NewCipher(testKey("0123456789abcdeF"))

	plain := []byte("identical input")
	wa := a.Apply(append([]byte(nil), plain...))
	wb := b.Apply(append([]byte(nil), plain...))
	assert.False(t, bytes.Equal(wa, wb), "different keys must give different streams")
}

func TestCipherDeterministicSchedule(t *testing.T) {
	key := testKey("0123456789abcdef")
	a := NewCipher(key)
	b := NewCipher(key)
	require.Equal(t, a.key, b.key)
}
