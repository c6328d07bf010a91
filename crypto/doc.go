// Package crypto implements the cryptographic primitives used by peernotes.
//
// Every peer owns two key pairs: an Ed25519 signing pair that is its stable
// public identity, and an X25519 (NaCl box) encryption pair that is announced
// in the hello handshake. Private notes are sealed with a key derived from the
// X25519 shared secret; every envelope is signed over its canonical JSON form.
//
// # Key Generation
//
//	signing, err := crypto.GenerateSigningKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	encryption, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer crypto.WipeKeyPair(encryption)
//
// # Shared Secrets
//
// [DeriveSharedSecret] is symmetric: for any two key pairs A and B,
// DeriveSharedSecret(A.Private, B.Public) equals DeriveSharedSecret(B.Private, A.Public).
// It runs X25519 and expands the result with HKDF-SHA256, so the derived key
// inherits the hardness of the curve rather than of an ad hoc mixing function.
//
// # Encryption and Decryption
//
// [Encrypt] draws a fresh 24-byte nonce from crypto/rand on every call and
// seals the plaintext with XSalsa20-Poly1305 (NaCl secretbox). The result is
// split into the iv, tag and ciphertext parts carried on the wire:
//
//	sealed, err := crypto.Encrypt([]byte("hi"), bob.Public, alice.Private)
//	plaintext, ok := crypto.Decrypt(sealed, alice.Public, bob.Private)
//	if !ok {
//	    // wrong recipient or tampered payload
//	}
//
// Decrypt reports failure with ok == false instead of an error. Peers routinely
// receive payloads that were not meant for them, so failure is an expected
// outcome rather than an exceptional one.
//
// # Signatures
//
// [Sign] and [Verify] operate on arbitrary values. The value is first rendered
// by [Canonicalize] (compact JSON, object keys sorted at every depth) so that
// a signature made by one implementation verifies in another regardless of
// field declaration order.
//
//	sig, err := crypto.Sign(fields, signing.Private)
//	ok := crypto.Verify(fields, sig, signing.PublicKeyHex())
//
// # Passphrase Sealing
//
// [SealWithPassphrase] protects files at rest with AES-256-GCM under a
// PBKDF2-SHA256 key. Each blob carries its own salt, so sealed files are
// self-contained and can be moved between data directories.
//
// # Secure Memory
//
// [SecureWipe] and [ZeroBytes] clear key material once it is no longer needed.
// Derived symmetric keys are wiped before Encrypt and Decrypt return.
package crypto
