// Package identity owns the local peer's long-term key material.
//
// An identity is two key pairs: the Ed25519 signing pair whose public half is
// the peer's stable identity on the network, and the X25519 encryption pair
// announced during the hello handshake. Both are created once per store path
// and loaded unchanged on every later run.
//
//	id, err := identity.LoadOrCreate(filepath.Join(dataDir, "identity.json"))
//	if err != nil {
//	    log.Fatal(err) // no usable identity, the process must not proceed
//	}
//	fmt.Println("public key:", id.PublicKeyHex())
package identity

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/sirupsen/logrus"
)

// Identity holds the local signing and encryption key pairs.
type Identity struct {
	Signing    *crypto.SigningKeyPair
	Encryption *crypto.KeyPair
}

// StorageError reports a failure to read or persist identity material.
type StorageError struct {
	Path string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("identity storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type keyPairFile struct {
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
}

type identityFile struct {
	Signing    keyPairFile `json:"signing"`
	Encryption keyPairFile `json:"encryption"`
}

// Generate creates a fresh identity without persisting it.
func Generate() (*Identity, error) {
	signing, err := crypto.GenerateSigningKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate signing key pair: %w", err)
	}
	encryption, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate encryption key pair: %w", err)
	}
	return &Identity{Signing: signing, Encryption: encryption}, nil
}

// ErrPassphraseRequired indicates a sealed identity file opened without a passphrase.
var ErrPassphraseRequired = errors.New("identity file is passphrase protected")

// LoadOrCreate returns the identity stored at path, creating and persisting a
// new one if no file exists yet. An existing but unreadable file is an error;
// it is never silently replaced.
func LoadOrCreate(path string) (*Identity, error) {
	return LoadOrCreateWithPassphrase(path, nil)
}

// LoadOrCreateWithPassphrase is LoadOrCreate for identity files sealed at
// rest. A new identity is sealed when passphrase is non-empty. A plaintext
// file is still accepted so an existing identity survives enabling a passphrase.
func LoadOrCreateWithPassphrase(path string, passphrase []byte) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id, err := open(data, passphrase)
		if err != nil {
			return nil, &StorageError{Path: path, Op: "decode", Err: err}
		}
		logrus.WithFields(logrus.Fields{
			"function":   "LoadOrCreate",
			"path":       path,
			"public_key": crypto.HexPrefix(id.PublicKeyHex()),
			"sealed":     crypto.IsSealed(data),
		}).Info("Loaded existing identity")
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}

	id, err := Generate()
	if err != nil {
		return nil, &StorageError{Path: path, Op: "generate", Err: err}
	}
	if err := save(path, id, passphrase); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "LoadOrCreate",
		"path":       path,
		"public_key": crypto.HexPrefix(id.PublicKeyHex()),
		"sealed":     len(passphrase) > 0,
	}).Info("Created new identity")
	return id, nil
}

func open(data, passphrase []byte) (*Identity, error) {
	if !crypto.IsSealed(data) {
		return decode(data)
	}
	if len(passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}
	plain, err := crypto.OpenWithPassphrase(data, passphrase)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(plain)
	return decode(plain)
}

// Wipe erases both private keys. The identity must not sign or decrypt
// afterwards; its public keys stay readable.
func (id *Identity) Wipe() {
	if err := crypto.WipeSigningKeyPair(id.Signing); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Wipe",
			"error":    err.Error(),
		}).Warn("Failed to wipe signing key")
	}
	if err := crypto.WipeKeyPair(id.Encryption); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Wipe",
			"error":    err.Error(),
		}).Warn("Failed to wipe encryption key")
	}
}

// PublicKeyHex returns the hex encoded signing public key.
func (id *Identity) PublicKeyHex() string {
	return id.Signing.PublicKeyHex()
}

// EncryptionPublicKeyHex returns the hex encoded encryption public key.
func (id *Identity) EncryptionPublicKeyHex() string {
	return id.Encryption.PublicKeyHex()
}

// save writes the identity atomically with owner-only permissions.
func save(path string, id *Identity, passphrase []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return &StorageError{Path: path, Op: "mkdir", Err: err}
	}

	file := identityFile{
		Signing: keyPairFile{
			PublicKey: hex.EncodeToString(id.Signing.Public),
			SecretKey: hex.EncodeToString(id.Signing.Private),
		},
		Encryption: keyPairFile{
			PublicKey: hex.EncodeToString(id.Encryption.Public[:]),
			SecretKey: hex.EncodeToString(id.Encryption.Private[:]),
		},
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return &StorageError{Path: path, Op: "encode", Err: err}
	}
	if len(passphrase) > 0 {
		sealed, err := crypto.SealWithPassphrase(data, passphrase)
		crypto.ZeroBytes(data)
		if err != nil {
			return &StorageError{Path: path, Op: "seal", Err: err}
		}
		data = sealed
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &StorageError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

func decode(data []byte) (*Identity, error) {
	var file identityFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	signingSecret, err := hex.DecodeString(file.Signing.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("signing secret key: %w", err)
	}
	signing, err := crypto.SigningKeyPairFromPrivate(signingSecret)
	if err != nil {
		return nil, err
	}
	if signing.PublicKeyHex() != file.Signing.PublicKey {
		return nil, errors.New("signing public key does not match secret key")
	}

	encryptionSecret, err := crypto.ParseKey(file.Encryption.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("encryption secret key: %w", err)
	}
	encryption, err := crypto.FromSecretKey(encryptionSecret)
	if err != nil {
		return nil, err
	}
	if encryption.PublicKeyHex() != file.Encryption.PublicKey {
		return nil, errors.New("encryption public key does not match secret key")
	}

	return &Identity{Signing: signing, Encryption: encryption}, nil
}
