package auth

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Changing them invalidates every stored verifier,
// so bump them only alongside a re-registration migration.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
)

// DerivePrivateKey computes the SRP private key x from the account
// identity and password: x = Argon2id(identity | ":" | password, salt).
// Argon2id here replaces SRP's traditional double-SHA1 so the stored
// verifier costs real memory and time to brute-force.
func DerivePrivateKey(identity, password string, salt []byte) *big.Int {
	material := identity + ":" + password
	key := argon2.IDKey([]byte(material), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return new(big.Int).SetBytes(key)
}

// GenerateSessionKey returns the 16-byte key the realm server issues for
// the world connection's stream cipher.
func GenerateSessionKey() ([]byte, error) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
