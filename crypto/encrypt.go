package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the size of the iv carried with every sealed payload.
	NonceSize = 24
	// TagSize is the size of the Poly1305 authentication tag.
	TagSize = secretbox.Overhead
	// MaxMessageSize bounds a single plaintext (1MB to prevent excessive memory usage).
	MaxMessageSize = 1024 * 1024
)

// Nonce is a 24-byte value used for encryption.
type Nonce [NonceSize]byte

// Sealed is the output of Encrypt, split into its wire components.
type Sealed struct {
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

// GenerateNonce creates a cryptographically secure random nonce.
func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	_, err := rand.Read(nonce[:])
	if err != nil {
		return Nonce{}, err
	}
	return nonce, nil
}

// Encrypt seals plaintext for the holder of recipientPK. The key is derived
// from senderSK and recipientPK; the nonce is freshly random on every call.
func Encrypt(plaintext []byte, recipientPK, senderSK [32]byte) (*Sealed, error) {
	if len(plaintext) == 0 {
		return nil, errors.New("empty message")
	}

	if len(plaintext) > MaxMessageSize {
		return nil, errors.New("message too large")
	}

	key, err := DeriveSharedSecret(senderSK, recipientPK)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key[:])

	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}

	// secretbox output is tag || ciphertext
	out := secretbox.Seal(nil, plaintext, (*[24]byte)(&nonce), &key)

	return &Sealed{
		IV:         nonce[:],
		Tag:        out[:TagSize],
		Ciphertext: out[TagSize:],
	}, nil
}
