package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the number of iterations for passphrase key derivation.
	PBKDF2Iterations = 100000
	// EncryptionVersion is the current sealed blob format version.
	EncryptionVersion = 1
	// SaltSize is the size of the per-blob PBKDF2 salt.
	SaltSize = 32
)

// sealedMagic prefixes every passphrase sealed blob so it can be told apart
// from plaintext JSON.
var sealedMagic = []byte("PNSEAL")

var (
	// ErrEmptyPassphrase indicates an empty passphrase given to SealWithPassphrase.
	ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

	// ErrWrongPassphrase indicates a sealed blob that failed authentication.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted data")
)

// IsSealed reports whether data was produced by SealWithPassphrase.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedMagic)
}

// SealWithPassphrase encrypts plaintext with AES-256-GCM under a key derived
// from passphrase. Format: magic || version:2 || salt:32 || nonce:12 || ciphertext+tag.
func SealWithPassphrase(plaintext, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := passphraseAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+2+SaltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, sealedMagic...)
	out = binary.BigEndian.AppendUint16(out, EncryptionVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// OpenWithPassphrase decrypts a blob produced by SealWithPassphrase.
func OpenWithPassphrase(data, passphrase []byte) ([]byte, error) {
	if !IsSealed(data) {
		return nil, errors.New("data is not sealed")
	}
	data = data[len(sealedMagic):]

	if len(data) < 2+SaltSize+12+16 {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(data))
	}
	if version := binary.BigEndian.Uint16(data[:2]); version != EncryptionVersion {
		return nil, fmt.Errorf("unsupported encryption version: %d (expected %d)", version, EncryptionVersion)
	}
	salt := data[2 : 2+SaltSize]

	gcm, err := passphraseAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	rest := data[2+SaltSize:]
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		NewLogger("OpenWithPassphrase").
			WithFields(SecureFieldHash(salt, "salt")).
			Debug("Sealed data failed authentication")
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

func passphraseAEAD(passphrase, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(passphrase, salt, PBKDF2Iterations, 32, sha256.New)
	defer ZeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
