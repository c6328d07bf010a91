package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	if isZeroKey(keyPair.Public) {
		t.Error("GenerateKeyPair() returned zero public key")
	}

	if isZeroKey(keyPair.Private) {
		t.Error("GenerateKeyPair() returned zero private key")
	}

	keyPair2, _ := GenerateKeyPair()
	if bytes.Equal(keyPair.Public[:], keyPair2.Public[:]) {
		t.Error("Multiple GenerateKeyPair() calls produced identical public keys")
	}
}

func TestFromSecretKey(t *testing.T) {
	t.Run("derives the same public key", func(t *testing.T) {
		original, err := GenerateKeyPair()
		require.NoError(t, err)

		rebuilt, err := FromSecretKey(original.Private)
		require.NoError(t, err)
		assert.Equal(t, original.Public, rebuilt.Public)
		assert.Equal(t, original.Private, rebuilt.Private)
	})

	t.Run("rejects zero key", func(t *testing.T) {
		_, err := FromSecretKey([32]byte{})
		assert.Error(t, err)
	})
}

func TestParseKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	key, err := ParseKey(kp.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, kp.Public, key)

	_, err = ParseKey("zz")
	assert.Error(t, err)
	_, err = ParseKey("abcd")
	assert.Error(t, err)
}

func TestGenerateNonce(t *testing.T) {
	nonce, err := GenerateNonce()
	require.NoError(t, err)

	nonce2, err := GenerateNonce()
	require.NoError(t, err)
	assert.NotEqual(t, nonce, nonce2, "nonces must differ between calls")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)
	bob, err := GenerateKeyPair()
	require.NoError(t, err)

	cases := []struct {
		name    string
		message []byte
	}{
		{"short", []byte("hi")},
		{"unicode", []byte("héllo wörld ✓")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x7f}},
		{"large", bytes.Repeat([]byte("x"), 64*1024)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := Encrypt(tc.message, bob.Public, alice.Private)
			require.NoError(t, err)
			assert.Len(t, sealed.IV, NonceSize)
			assert.Len(t, sealed.Tag, TagSize)
			assert.Len(t, sealed.Ciphertext, len(tc.message))

			plaintext, ok := Decrypt(sealed, alice.Public, bob.Private)
			require.True(t, ok)
			assert.Equal(t, tc.message, plaintext)
		})
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	alice, _ := GenerateKeyPair()
	bob, _ := GenerateKeyPair()

	first, err := Encrypt([]byte("same"), bob.Public, alice.Private)
	require.NoError(t, err)
	second, err := Encrypt([]byte("same"), bob.Public, alice.Private)
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestEncryptRejectsInvalidInput(t *testing.T) {
	alice, _ := GenerateKeyPair()
	bob, _ := GenerateKeyPair()

	_, err := Encrypt(nil, bob.Public, alice.Private)
	assert.Error(t, err)

	_, err = Encrypt(make([]byte, MaxMessageSize+1), bob.Public, alice.Private)
	assert.Error(t, err)
}

func TestDecryptTamperDetection(t *testing.T) {
	alice, _ := GenerateKeyPair()
	bob, _ := GenerateKeyPair()

	sealed, err := Encrypt([]byte("attack at dawn"), bob.Public, alice.Private)
	require.NoError(t, err)

	clone := func() *Sealed {
		return &Sealed{
			IV:         append([]byte(nil), sealed.IV...),
			Tag:        append([]byte(nil), sealed.Tag...),
			Ciphertext: append([]byte(nil), sealed.Ciphertext...),
		}
	}

	for i := range sealed.Ciphertext {
		for bit := 0; bit < 8; bit++ {
			tampered := clone()
			tampered.Ciphertext[i] ^= 1 << bit
			out, ok := Decrypt(tampered, alice.Public, bob.Private)
			if ok || out != nil {
				t.Fatalf("ciphertext byte %d bit %d flip was not detected", i, bit)
			}
		}
	}

	for i := range sealed.Tag {
		tampered := clone()
		tampered.Tag[i] ^= 0x01
		_, ok := Decrypt(tampered, alice.Public, bob.Private)
		assert.False(t, ok, "tag byte %d flip was not detected", i)
	}

	tampered := clone()
	tampered.IV[0] ^= 0x80
	_, ok := Decrypt(tampered, alice.Public, bob.Private)
	assert.False(t, ok, "iv flip was not detected")
}

func TestDecryptWrongRecipient(t *testing.T) {
	alice, _ := GenerateKeyPair()
	bob, _ := GenerateKeyPair()
	eve, _ := GenerateKeyPair()

	sealed, err := Encrypt([]byte("for bob"), bob.Public, alice.Private)
	require.NoError(t, err)

	out, ok := Decrypt(sealed, alice.Public, eve.Private)
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestDecryptMalformed(t *testing.T) {
	alice, _ := GenerateKeyPair()
	bob, _ := GenerateKeyPair()

	cases := map[string]*Sealed{
		"nil":       nil,
		"short iv":  {IV: make([]byte, 12), Tag: make([]byte, TagSize)},
		"short tag": {IV: make([]byte, NonceSize), Tag: make([]byte, 4)},
		"garbage":   {IV: make([]byte, NonceSize), Tag: make([]byte, TagSize), Ciphertext: []byte("xyz")},
	}
	for name, sealed := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Decrypt(sealed, alice.Public, bob.Private)
			assert.False(t, ok)
		})
	}
}
