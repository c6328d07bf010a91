package crypto

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/secretbox"
)

// Decrypt opens a payload produced by Encrypt. It returns ok == false, never
// a wrong plaintext, when the payload is malformed, was sealed for someone
// else, or has been tampered with.
func Decrypt(sealed *Sealed, senderPK, recipientSK [32]byte) ([]byte, bool) {
	if sealed == nil || len(sealed.IV) != NonceSize || len(sealed.Tag) != TagSize {
		logrus.WithFields(logrus.Fields{
			"function": "Decrypt",
		}).Debug("Rejecting malformed sealed payload")
		return nil, false
	}

	key, err := DeriveSharedSecret(recipientSK, senderPK)
	if err != nil {
		return nil, false
	}
	defer ZeroBytes(key[:])

	var nonce Nonce
	copy(nonce[:], sealed.IV)

	boxed := make([]byte, 0, len(sealed.Tag)+len(sealed.Ciphertext))
	boxed = append(boxed, sealed.Tag...)
	boxed = append(boxed, sealed.Ciphertext...)

	out, ok := secretbox.Open(nil, boxed, (*[24]byte)(&nonce), &key)
	if !ok {
		return nil, false
	}
	if out == nil {
		out = []byte{}
	}
	return out, true
}
