package envelope

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/identity"
	"github.com/opd-ai/peernotes/limits"
)

// HelloPayload announces a peer's encryption key and display label.
type HelloPayload struct {
	EncPubKey string `json:"encPubKey"`
	Label     string `json:"label,omitempty"`
}

// SealedPayload is the hex encoded output of crypto.Encrypt.
type SealedPayload struct {
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
	Ciphertext string `json:"ciphertext"`
}

// NoteBody is the plaintext sealed inside a note.
type NoteBody struct {
	Body string `json:"body"`
}

// PostPayload is the body of a post envelope.
type PostPayload struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// VotePayload names the post being voted on.
type VotePayload struct {
	PostID string `json:"postId"`
}

// CommentPayload is a reply to a post.
type CommentPayload struct {
	PostID string `json:"postId"`
	Body   string `json:"body"`
}

// SyncPayload lists the envelope ids of the broadcast facts a peer holds.
// A responder with more to push than one page ends the page with More set;
// the requester answers with Next set to pull the following page.
type SyncPayload struct {
	Have []string `json:"have"`
	More bool     `json:"more,omitempty"`
	Next bool     `json:"next,omitempty"`
}

// NewHello builds the unsigned hello envelope announcing id's encryption key.
func NewHello(id *identity.Identity, label string, ts int64) (*Envelope, error) {
	return Build(Builder{
		Type: TypeHello,
		From: id.PublicKeyHex(),
		TS:   ts,
		Payload: HelloPayload{
			EncPubKey: id.EncryptionPublicKeyHex(),
			Label:     limits.TruncateLabel(label),
		},
	})
}

// NewSync builds the unsigned sync request listing have.
func NewSync(id *identity.Identity, channel string, have []string, ts int64) (*Envelope, error) {
	if have == nil {
		have = []string{}
	}
	return newSync(id, channel, SyncPayload{Have: have}, ts)
}

// NewSyncMore builds the marker a responder sends after a page when more
// of the backlog remains.
func NewSyncMore(id *identity.Identity, channel string, ts int64) (*Envelope, error) {
	return newSync(id, channel, SyncPayload{Have: []string{}, More: true}, ts)
}

// NewSyncNext builds the requester's pull for the next page.
func NewSyncNext(id *identity.Identity, channel string, ts int64) (*Envelope, error) {
	return newSync(id, channel, SyncPayload{Have: []string{}, Next: true}, ts)
}

func newSync(id *identity.Identity, channel string, p SyncPayload, ts int64) (*Envelope, error) {
	return Build(Builder{
		Type:    TypeSync,
		From:    id.PublicKeyHex(),
		Channel: channel,
		TS:      ts,
		Payload: p,
	})
}

// SealNote builds a signed note to the peer whose signing key is to and whose
// encryption key is recipientEncKey. The body is encrypted before signing.
func SealNote(id *identity.Identity, to string, recipientEncKey [32]byte, body string, ts int64) (*Envelope, error) {
	plaintext, err := json.Marshal(NoteBody{Body: body})
	if err != nil {
		return nil, err
	}

	sealed, err := crypto.Encrypt(plaintext, recipientEncKey, id.Encryption.Private)
	if err != nil {
		return nil, fmt.Errorf("seal note: %w", err)
	}

	e, err := Build(Builder{
		Type: TypeNote,
		To:   to,
		TS:   ts,
		Payload: SealedPayload{
			IV:         hex.EncodeToString(sealed.IV),
			Tag:        hex.EncodeToString(sealed.Tag),
			Ciphertext: hex.EncodeToString(sealed.Ciphertext),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := e.Sign(id.Signing); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenNote decrypts a note sealed for id by the holder of senderEncKey.
// It returns ok == false on any failure.
func OpenNote(e *Envelope, id *identity.Identity, senderEncKey [32]byte) (NoteBody, bool) {
	var payload SealedPayload
	if err := e.DecodePayload(&payload); err != nil {
		return NoteBody{}, false
	}

	sealed, err := payload.sealed()
	if err != nil {
		return NoteBody{}, false
	}

	plaintext, ok := crypto.Decrypt(sealed, senderEncKey, id.Encryption.Private)
	if !ok {
		return NoteBody{}, false
	}

	var body NoteBody
	if err := json.Unmarshal(plaintext, &body); err != nil {
		return NoteBody{}, false
	}
	return body, true
}

func (p SealedPayload) sealed() (*crypto.Sealed, error) {
	iv, err := hex.DecodeString(p.IV)
	if err != nil {
		return nil, err
	}
	tag, err := hex.DecodeString(p.Tag)
	if err != nil {
		return nil, err
	}
	ciphertext, err := hex.DecodeString(p.Ciphertext)
	if err != nil {
		return nil, err
	}
	return &crypto.Sealed{IV: iv, Tag: tag, Ciphertext: ciphertext}, nil
}
