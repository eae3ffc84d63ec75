// Package auth implements account credential verification: an SRP6
// password proof over a 1024-bit group, with the client's private key
// derived through Argon2id so stolen verifier databases resist offline
// guessing.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"math/big"
)

var (
	ErrInvalidPublicKey = errors.New("client public key is zero mod N")
	ErrProofMismatch    = errors.New("client proof does not match")
)

// 1024-bit safe prime group. Fixed for the protocol's lifetime; both
// sides hard-code it.
var (
	srpN, _ = new(big.Int).SetString(
		"EEAF0AB9ADB38DD69C33F80AFA8FC5E86072618775FF3C0B9EA2314C"+
			"9C256576D674DF7496EA81D3383B4813D692C6E0E0D5D8E250B98BE4"+
			"8E495C1D6089DAD15DC7D7B46154D6B6CE8EF4AD69B15D4982559B29"+
			"7BCF1885C529F566660E57EC68EDBC3C05726CC02FD4CBF4976EAA9A"+
			"FD5138FE8376435B9FC61D2FC0EB06E3", 16)
	srpG = big.NewInt(2)
	srpK = computeK()
)

func computeK() *big.Int {
	// k = H(N | pad(g)), SRP-6a.
	nBytes := srpN.Bytes()
	gBytes := leftPad(srpG.Bytes(), len(nBytes))
	h := sha256.Sum256(append(nBytes, gBytes...))
	return new(big.Int).SetBytes(h[:])
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func hashBig(parts ...[]byte) *big.Int {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// GenerateSalt returns a fresh 32-byte SRP salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// ComputeVerifier derives the stored verifier v = g^x mod N for an
// account. x comes from DerivePrivateKey, so the expensive Argon2id work
// happens exactly once per login attempt on either side.
func ComputeVerifier(identity, password string, salt []byte) []byte {
	x := DerivePrivateKey(identity, password, salt)
	v := new(big.Int).Exp(srpG, x, srpN)
	return v.Bytes()
}

// ServerSession is the server half of one SRP6 handshake. Single
// goroutine use; a session is abandoned after Verify either way.
type ServerSession struct {
	salt     []byte
	verifier *big.Int
	b        *big.Int // server private ephemeral
	pubB     *big.Int
	key      []byte // shared session key, set by Verify
}

// NewServerSession starts a handshake against the stored (salt, verifier)
// pair and picks the server ephemeral.
func NewServerSession(salt, verifier []byte) (*ServerSession, error) {
	bRaw := make([]byte, 32)
	if _, err := rand.Read(bRaw); err != nil {
		return nil, err
	}
	s := &ServerSession{
		salt:     salt,
		verifier: new(big.Int).SetBytes(verifier),
		b:        new(big.Int).SetBytes(bRaw),
	}
	// B = kv + g^b mod N
	kv := new(big.Int).Mul(srpK, s.verifier)
	gb := new(big.Int).Exp(srpG, s.b, srpN)
	s.pubB = new(big.Int).Mod(new(big.Int).Add(kv, gb), srpN)
	return s, nil
}

// Salt returns the account salt sent in the challenge.
func (s *ServerSession) Salt() []byte { return s.salt }

// PublicB returns the server ephemeral sent in the challenge.
func (s *ServerSession) PublicB() []byte { return s.pubB.Bytes() }

// Verify checks the client's (A, M1) proof. On success the shared session
// key is available through SessionKey and the returned M2 proves the
// server side to the client.
func (s *ServerSession) Verify(clientA, clientM1 []byte) (serverM2 []byte, err error) {
	a := new(big.Int).SetBytes(clientA)
	if new(big.Int).Mod(a, srpN).Sign() == 0 {
		return nil, ErrInvalidPublicKey
	}

	// u = H(pad(A) | pad(B))
	size := len(srpN.Bytes())
	u := hashBig(leftPad(a.Bytes(), size), leftPad(s.pubB.Bytes(), size))

	// S = (A * v^u)^b mod N
	vu := new(big.Int).Exp(s.verifier, u, srpN)
	base := new(big.Int).Mod(new(big.Int).Mul(a, vu), srpN)
	secret := new(big.Int).Exp(base, s.b, srpN)

	keyHash := sha256.Sum256(secret.Bytes())
	key := keyHash[:]

	// M1 = H(A | B | K)
	expected := hashBig(a.Bytes(), s.pubB.Bytes(), key).Bytes()
	if subtle.ConstantTimeCompare(leftPad(expected, 32), leftPad(clientM1, 32)) != 1 {
		return nil, ErrProofMismatch
	}
	s.key = key

	// M2 = H(A | M1 | K)
	return hashBig(a.Bytes(), clientM1, key).Bytes(), nil
}

// SessionKey returns the 32-byte shared key after a successful Verify,
// nil before.
func (s *ServerSession) SessionKey() []byte { return s.key }
