package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Signature represents an Ed25519 signature.
type Signature [SignatureSize]byte

// Hex returns the hex encoding of the signature.
func (s Signature) Hex() string {
	return hex.EncodeToString(s[:])
}

// ParseSignature decodes a hex encoded signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw, err := hex.DecodeString(s)
	if err != nil {
		return sig, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(raw) != SignatureSize {
		return sig, fmt.Errorf("invalid signature length: got %d, want %d", len(raw), SignatureSize)
	}
	copy(sig[:], raw)
	return sig, nil
}

// SigningKeyPair is the Ed25519 key pair that forms a peer's public identity.
type SigningKeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateSigningKeyPair creates a new random Ed25519 key pair.
func GenerateSigningKeyPair() (*SigningKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SigningKeyPair{Public: pub, Private: priv}, nil
}

// SigningKeyPairFromPrivate rebuilds a key pair from a 64-byte Ed25519 private key.
func SigningKeyPairFromPrivate(priv []byte) (*SigningKeyPair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid signing key length: got %d, want %d", len(priv), ed25519.PrivateKeySize)
	}
	key := ed25519.PrivateKey(append([]byte(nil), priv...))
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("unexpected public key type")
	}
	return &SigningKeyPair{Public: pub, Private: key}, nil
}

// PublicKeyHex returns the hex encoding of the public key, the peer's identity.
func (kp *SigningKeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.Public)
}

// SignBytes signs raw bytes. Callers signing structured values should use Sign.
func (kp *SigningKeyPair) SignBytes(message []byte) []byte {
	return ed25519.Sign(kp.Private, message)
}

// Sign creates an Ed25519 signature over the canonical serialization of obj.
func Sign(obj interface{}, privateKey ed25519.PrivateKey) (Signature, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return Signature{}, errors.New("invalid private key")
	}

	message, err := Canonicalize(obj)
	if err != nil {
		return Signature{}, fmt.Errorf("canonicalize: %w", err)
	}

	var signature Signature
	copy(signature[:], ed25519.Sign(privateKey, message))
	return signature, nil
}

// Verify checks a signature made by Sign against the hex encoded public key
// of the signer. Any decoding problem counts as an invalid signature.
func Verify(obj interface{}, signature Signature, signerPublicKeyHex string) bool {
	publicKey, err := hex.DecodeString(signerPublicKeyHex)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return false
	}

	message, err := Canonicalize(obj)
	if err != nil {
		return false
	}

	return ed25519.Verify(publicKey, message, signature[:])
}

// VerifyBytes checks a raw Ed25519 signature.
func VerifyBytes(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}
