package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// srpClient runs the client half of the handshake the way the game client
// does: ephemeral A, shared key from (B, salt, x), then the M1 proof.
type srpClient struct {
	identity string
	password string
	a        *big.Int
	pubA     *big.Int
}

func newSRPClient(t *testing.T, identity, password string) *srpClient {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	a := new(big.Int).SetBytes(raw)
	return &srpClient{
		identity: identity,
		password: password,
		a:        a,
		pubA:     new(big.Int).Exp(srpG, a, srpN),
	}
}

// proof computes (A, M1) against the server's challenge.
func (c *srpClient) proof(salt, serverB []byte) (clientA, clientM1, key []byte) {
	b := new(big.Int).SetBytes(serverB)
	size := len(srpN.Bytes())
	u := hashBig(leftPad(c.pubA.Bytes(), size), leftPad(b.Bytes(), size))
	x := DerivePrivateKey(c.identity, c.password, salt)

	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(srpG, x, srpN)
	kgx := new(big.Int).Mul(srpK, gx)
	base := new(big.Int).Mod(new(big.Int).Sub(b, kgx), srpN)
	exp := new(big.Int).Add(c.a, new(big.Int).Mul(u, x))
	secret := new(big.Int).Exp(base, exp, srpN)

	keyHash := sha256.Sum256(secret.Bytes())
	key = keyHash[:]
	m1 := hashBig(c.pubA.Bytes(), b.Bytes(), key).Bytes()
	return c.pubA.Bytes(), m1, key
}

func TestFullHandshake(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	verifier := ComputeVerifier("user@nexus.test", "hunter2", salt)

	srv, err := NewServerSession(salt, verifier)
	require.NoError(t, err)
	assert.Equal(t, salt, srv.Salt())
	assert.Nil(t, srv.SessionKey(), "no key before Verify")

	client := newSRPClient(t, "user@nexus.test", "hunter2")
	clientA, clientM1, clientKey := client.proof(srv.Salt(), srv.PublicB())

	m2, err := srv.Verify(clientA, clientM1)
	require.NoError(t, err)
	require.NotEmpty(t, m2)

	// Both sides end up with the same session key and the client can check
	// the server's M2.
	assert.Equal(t, clientKey, srv.SessionKey())
	expectedM2 := hashBig(clientA, clientM1, clientKey).Bytes()
	assert.Equal(t, expectedM2, m2)
}

func TestWrongPasswordRejected(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	verifier := ComputeVerifier("user@nexus.test", "hunter2", salt)

	srv, err := NewServerSession(salt, verifier)
	require.NoError(t, err)

	client := newSRPClient(t, "user@nexus.test", "wrong-password")
	clientA, clientM1, _ := client.proof(srv.Salt(), srv.PublicB())

	_, err = srv.Verify(clientA, clientM1)
	assert.ErrorIs(t, err, ErrProofMismatch)
	assert.Nil(t, srv.SessionKey())
}

func TestZeroPublicKeyRejected(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	verifier := ComputeVerifier("user@nexus.test", "hunter2", salt)

	srv, err := NewServerSession(salt, verifier)
	require.NoError(t, err)

	// A = 0 and A = N both collapse the shared secret; the server must
	// refuse before computing anything.
	_, err = srv.Verify([]byte{0}, make([]byte, 32))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = srv.Verify(srpN.Bytes(), make([]byte, 32))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestVerifierDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	v1 := ComputeVerifier("id", "pw", salt)
	v2 := ComputeVerifier("id", "pw", salt)
	assert.Equal(t, v1, v2)

	assert.NotEqual(t, v1, ComputeVerifier("id", "other", salt))
	assert.NotEqual(t, v1, ComputeVerifier("other", "pw", salt))
	assert.NotEqual(t, v1, ComputeVerifier("id", "pw", []byte("ffffffffffffffffffffffffffffffff")))
}

func TestEphemeralsVaryPerSession(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	verifier := ComputeVerifier("id", "pw", salt)

	s1, err := NewServerSession(salt, verifier)
	require.NoError(t, err)
	s2, err := NewServerSession(salt, verifier)
	require.NoError(t, err)
	assert.NotEqual(t, s1.PublicB(), s2.PublicB())
}

func TestGenerateSessionKeyLength(t *testing.T) {
	k1, err := GenerateSessionKey()
	require.NoError(t, err)
	assert.Len(t, k1, 16)

	k2, err := GenerateSessionKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
