package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/opd-ai/peernotes/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func signedPost(t *testing.T, id *identity.Identity) *Envelope {
	t.Helper()
	e, err := Build(Builder{
		Type:    TypePost,
		Channel: "general",
		TS:      1700000000000,
		Payload: PostPayload{Title: "x", Body: "first post"},
	})
	require.NoError(t, err)
	require.NoError(t, e.Sign(id.Signing))
	return e
}

func TestNewIDIsRandomHex(t *testing.T) {
	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestBuildKeepsExplicitID(t *testing.T) {
	e, err := Build(Builder{Type: TypePost, Channel: "c", ID: "p1", Payload: PostPayload{Title: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", e.ID)

	_, err = Build(Builder{Type: "bogus", Payload: struct{}{}})
	assert.Error(t, err)
}

func TestSignVerifyRoundTripOverWire(t *testing.T) {
	id := newIdentity(t)
	e := signedPost(t, id)
	assert.Equal(t, id.PublicKeyHex(), e.From)
	require.NoError(t, e.Verify())

	data, err := Encode(e)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.NoError(t, decoded.Verify())
	assert.Equal(t, e.ID, decoded.ID)
}

func TestVerifyVerifiesReformattedPayload(t *testing.T) {
	id := newIdentity(t)
	e := signedPost(t, id)

	// Another implementation may order payload keys differently.
	e.Payload = json.RawMessage(`{ "body": "first post",  "title": "x" }`)
	assert.NoError(t, e.Verify())
}

func TestVerifyDetectsTampering(t *testing.T) {
	id := newIdentity(t)
	other := newIdentity(t)

	mutations := map[string]func(e *Envelope){
		"type":    func(e *Envelope) { e.Type = TypeComment },
		"payload": func(e *Envelope) { e.Payload = json.RawMessage(`{"title":"y","body":"first post"}`) },
		"from":    func(e *Envelope) { e.From = other.PublicKeyHex() },
		"channel": func(e *Envelope) { e.Channel = "random" },
		"to":      func(e *Envelope) { e.To = other.PublicKeyHex() },
		"ts":      func(e *Envelope) { e.TS++ },
		"id":      func(e *Envelope) { e.ID = "other" },
		"sig":     func(e *Envelope) { e.Sig = strings.Repeat("0", 128) },
		"bad sig": func(e *Envelope) { e.Sig = "zz" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := signedPost(t, id)
			mutate(e)
			err := e.Verify()
			assert.True(t, errors.Is(err, ErrSignatureInvalid), "got %v", err)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	id := newIdentity(t)
	valid := signedPost(t, id)

	cases := map[string]string{
		"not json":             `{"type":`,
		"unknown type":         `{"type":"dance","payload":{}}`,
		"missing payload":      `{"type":"hello","from":"` + id.PublicKeyHex() + `"}`,
		"bad from":             `{"type":"post","payload":{},"from":"abc","channel":"c","id":"1","sig":"00"}`,
		"missing sig":          `{"type":"post","payload":{},"from":"` + valid.From + `","channel":"c","id":"1"}`,
		"note without to":      `{"type":"note","payload":{},"from":"` + valid.From + `","id":"1","sig":"00"}`,
		"post without channel": `{"type":"post","payload":{},"from":"` + valid.From + `","id":"1","sig":"00"}`,
		"empty":                ``,
		"colon in id":          `{"type":"post","payload":{},"from":"` + valid.From + `","channel":"c","id":"p1:` + valid.From + `","sig":"00"}`,
		"nul in id":            `{"type":"post","payload":{},"from":"` + valid.From + `","channel":"c","id":"p1\u0000x","sig":"00"}`,
		"missing id":           `{"type":"post","payload":{},"from":"` + valid.From + `","channel":"c","sig":"00"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestSealOpenNote(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)

	e, err := SealNote(alice, bob.PublicKeyHex(), bob.Encryption.Public, "hi", 1700000000000)
	require.NoError(t, err)
	assert.Equal(t, TypeNote, e.Type)
	assert.Equal(t, alice.PublicKeyHex(), e.From)
	assert.Equal(t, bob.PublicKeyHex(), e.To)
	require.NoError(t, e.Verify())

	assert.NotContains(t, string(e.Payload), "hi\"", "note body must not appear in clear")

	body, ok := OpenNote(e, bob, alice.Encryption.Public)
	require.True(t, ok)
	assert.Equal(t, "hi", body.Body)
}

func TestOpenNoteFailures(t *testing.T) {
	alice := newIdentity(t)
	bob := newIdentity(t)
	eve := newIdentity(t)

	e, err := SealNote(alice, bob.PublicKeyHex(), bob.Encryption.Public, "secret", 1)
	require.NoError(t, err)

	t.Run("wrong recipient", func(t *testing.T) {
		_, ok := OpenNote(e, eve, alice.Encryption.Public)
		assert.False(t, ok)
	})

	t.Run("wrong sender key", func(t *testing.T) {
		_, ok := OpenNote(e, bob, eve.Encryption.Public)
		assert.False(t, ok)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		var p SealedPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		flipped := []byte(p.Ciphertext)
		if flipped[0] == '0' {
			flipped[0] = '1'
		} else {
			flipped[0] = '0'
		}
		p.Ciphertext = string(flipped)
		raw, _ := json.Marshal(p)
		tampered := *e
		tampered.Payload = raw
		_, ok := OpenNote(&tampered, bob, alice.Encryption.Public)
		assert.False(t, ok)
	})

	t.Run("garbage payload", func(t *testing.T) {
		tampered := *e
		tampered.Payload = json.RawMessage(`{"iv":"zz"}`)
		_, ok := OpenNote(&tampered, bob, alice.Encryption.Public)
		assert.False(t, ok)
	})
}

func TestHelloAndSyncAreUnsigned(t *testing.T) {
	id := newIdentity(t)

	hello, err := NewHello(id, strings.Repeat("l", 100), 5)
	require.NoError(t, err)
	assert.Empty(t, hello.Sig)

	var hp HelloPayload
	require.NoError(t, hello.DecodePayload(&hp))
	assert.Equal(t, id.EncryptionPublicKeyHex(), hp.EncPubKey)
	assert.Len(t, hp.Label, 64)

	data, err := Encode(hello)
	require.NoError(t, err)
	_, err = Decode(data)
	require.NoError(t, err)

	sync, err := NewSync(id, "general", nil, 5)
	require.NoError(t, err)
	var sp SyncPayload
	require.NoError(t, sync.DecodePayload(&sp))
	assert.NotNil(t, sp.Have)
}

func TestIsValidID(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)

	for _, ok := range []string{id, "p1", "post_2", "A-b-C"} {
		assert.True(t, IsValidID(ok), ok)
	}
	for _, bad := range []string{"", "p1:abc", "a b", "p1\x00", "é", strings.Repeat("a", 65)} {
		assert.False(t, IsValidID(bad), "%q", bad)
	}
}

func TestSyncPagingMarkers(t *testing.T) {
	id := newIdentity(t)

	more, err := NewSyncMore(id, "", 1)
	require.NoError(t, err)
	next, err := NewSyncNext(id, "", 2)
	require.NoError(t, err)

	for _, tc := range []struct {
		e          *Envelope
		more, next bool
	}{{more, true, false}, {next, false, true}} {
		data, err := Encode(tc.e)
		require.NoError(t, err)
		decoded, err := Decode(data)
		require.NoError(t, err)

		var sp SyncPayload
		require.NoError(t, decoded.DecodePayload(&sp))
		assert.Equal(t, tc.more, sp.More)
		assert.Equal(t, tc.next, sp.Next)
		assert.Empty(t, sp.Have)
	}
}

func TestTypeClassification(t *testing.T) {
	assert.True(t, TypePost.IsBroadcast())
	assert.True(t, TypeVote.IsBroadcast())
	assert.True(t, TypeComment.IsBroadcast())
	assert.False(t, TypeNote.IsBroadcast())
	assert.True(t, TypeNote.IsSigned())
	assert.False(t, TypeHello.IsSigned())
	assert.False(t, TypeSync.IsSigned())
}
