package net

// Cipher is the WildStar session stream cipher: a keyed XOR keystream over
// 1024 bits of key material with a running 64-bit counter. Both directions
// use the same algorithm; a session keeps two independent states so that
// encrypt and decrypt each see their own on-wire byte order.
//
// The counter advances once per byte, so applying the cipher out of wire
// order produces garbage. Callers must thread one state per direction and
// never share it across goroutines.
type Cipher struct {
	key     [128]byte // 1024-bit key schedule expanded from the session key
	counter uint64
}

const (
	// Odd multiplier driving both the key schedule and the keystream walk.
	cipherMultiplier = 0x9e3779b97f4a7c15
	cipherSeed       = 0x718da9347c4f3422
)

// SessionKeyLen is the session key size the auth handshake derives. The
// constructor takes a fixed-size array so a truncated or empty key cannot
// reach the key schedule.
const SessionKeyLen = 16

// NewCipher expands the session key issued by the auth handshake into the
// 1024-bit key schedule. The same session key always yields the same
// schedule, which is what keeps client and server in sync.
func NewCipher(sessionKey [SessionKeyLen]byte) *Cipher {
	c := &Cipher{}
	acc := uint64(cipherSeed)
	for i := range c.key {
		acc = acc*cipherMultiplier + uint64(sessionKey[i%SessionKeyLen]) + uint64(i)
		c.key[i] = byte(acc >> 56)
	}
	return c
}

// Apply XORs the keystream into data in place and returns it. The keystream
// depends only on (key, counter), so Apply is its own inverse when run
// against a peer state at the same counter position: encrypt and decrypt
// are the same operation on mirrored states.
func (c *Cipher) Apply(data []byte) []byte {
	for i := range data {
		k := c.counter * cipherMultiplier
		data[i] ^= c.key[(k>>57)&127] ^ byte(k>>32)
		c.counter++
	}
	return data
}

// Counter exposes the stream position for tests and resync diagnostics.
func (c *Cipher) Counter() uint64 {
	return c.counter
}
