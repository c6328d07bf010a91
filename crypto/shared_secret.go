package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// sharedSecretInfo binds derived keys to their single use: sealing notes.
var sharedSecretInfo = []byte("peernotes note key v1")

// DeriveSharedSecret computes the 32-byte symmetric key shared by the owner of
// mySecretKey and the owner of theirPublicKey. The result is the same from
// both sides: DeriveSharedSecret(a.Private, b.Public) == DeriveSharedSecret(b.Private, a.Public).
func DeriveSharedSecret(mySecretKey, theirPublicKey [32]byte) ([32]byte, error) {
	logrus.WithFields(logrus.Fields{
		"function":        "DeriveSharedSecret",
		"peer_key_prefix": KeyPrefix(theirPublicKey[:]),
	}).Debug("Computing shared secret using X25519")

	// Create copies of the keys to prevent modification
	var privateKeyCopy [32]byte
	copy(privateKeyCopy[:], mySecretKey[:])
	defer ZeroBytes(privateKeyCopy[:])

	point, err := curve25519.X25519(privateKeyCopy[:], theirPublicKey[:])
	if err != nil {
		NewLogger("DeriveSharedSecret").
			WithError(err, "x25519", "scalar_mult").
			Warn("X25519 computation failed")
		return [32]byte{}, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	defer ZeroBytes(point)

	var result [32]byte
	kdf := hkdf.New(sha256.New, point, nil, sharedSecretInfo)
	if _, err := io.ReadFull(kdf, result[:]); err != nil {
		return [32]byte{}, fmt.Errorf("failed to expand shared secret: %w", err)
	}

	return result, nil
}
