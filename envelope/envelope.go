package envelope

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/limits"
)

// Type identifies the kind of an envelope.
type Type string

const (
	TypeHello   Type = "hello"
	TypeNote    Type = "note"
	TypePost    Type = "post"
	TypeVote    Type = "vote"
	TypeComment Type = "comment"
	TypeSync    Type = "sync"
)

var (
	// ErrMalformed indicates bytes that do not parse into a usable envelope.
	ErrMalformed = errors.New("malformed envelope")

	// ErrSignatureInvalid indicates a signature that does not verify against the sender.
	ErrSignatureInvalid = errors.New("invalid envelope signature")
)

// IsBroadcast reports whether t is a signed, unencrypted channel kind.
func (t Type) IsBroadcast() bool {
	return t == TypePost || t == TypeVote || t == TypeComment
}

// IsSigned reports whether envelopes of type t must carry a signature.
func (t Type) IsSigned() bool {
	return t == TypeNote || t.IsBroadcast()
}

func (t Type) valid() bool {
	switch t {
	case TypeHello, TypeNote, TypePost, TypeVote, TypeComment, TypeSync:
		return true
	}
	return false
}

// Envelope is the signed wire unit.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	From    string          `json:"from"`
	To      string          `json:"to,omitempty"`
	Channel string          `json:"channel,omitempty"`
	TS      int64           `json:"ts"`
	ID      string          `json:"id"`
	Sig     string          `json:"sig,omitempty"`
}

// signedFields is every envelope field except Sig.
type signedFields struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	From    string          `json:"from"`
	To      string          `json:"to,omitempty"`
	Channel string          `json:"channel,omitempty"`
	TS      int64           `json:"ts"`
	ID      string          `json:"id"`
}

// Builder collects the unsigned core fields of an envelope.
type Builder struct {
	Type    Type
	From    string
	To      string
	Channel string
	TS      int64
	// ID is generated when empty.
	ID      string
	Payload interface{}
}

// NewID returns a fresh random token suitable as an envelope id.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate envelope id: %w", err)
	}
	return hex.EncodeToString(id[:]), nil
}

// Build assembles an unsigned envelope from b.
func Build(b Builder) (*Envelope, error) {
	if !b.Type.valid() {
		return nil, fmt.Errorf("unknown envelope type %q", b.Type)
	}

	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	id := b.ID
	if id == "" {
		if id, err = NewID(); err != nil {
			return nil, err
		}
	}

	return &Envelope{
		Type:    b.Type,
		Payload: payload,
		From:    b.From,
		To:      b.To,
		Channel: b.Channel,
		TS:      b.TS,
		ID:      id,
	}, nil
}

func (e *Envelope) signed() signedFields {
	return signedFields{
		Type:    e.Type,
		Payload: e.Payload,
		From:    e.From,
		To:      e.To,
		Channel: e.Channel,
		TS:      e.TS,
		ID:      e.ID,
	}
}

// Sign sets From to the signer's public key and fills Sig.
func (e *Envelope) Sign(kp *crypto.SigningKeyPair) error {
	e.From = kp.PublicKeyHex()
	sig, err := crypto.Sign(e.signed(), kp.Private)
	if err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}
	e.Sig = sig.Hex()
	return nil
}

// Verify checks Sig against the public key named in From.
func (e *Envelope) Verify() error {
	sig, err := crypto.ParseSignature(e.Sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if !crypto.Verify(e.signed(), sig, e.From) {
		return ErrSignatureInvalid
	}
	return nil
}

// DecodePayload unmarshals the payload into v.
func (e *Envelope) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	return nil
}

// Encode renders e as wire bytes.
func Encode(e *Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateFrame(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Decode parses wire bytes and checks the structural requirements of the
// envelope's type. It does not verify signatures.
func Decode(data []byte) (*Envelope, error) {
	if err := limits.ValidateFrame(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !e.Type.valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, e.Type)
	}
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	}

	if e.Type.IsSigned() {
		if !isKeyHex(e.From) {
			return nil, fmt.Errorf("%w: invalid sender key", ErrMalformed)
		}
		if e.Sig == "" {
			return nil, fmt.Errorf("%w: missing signature", ErrMalformed)
		}
		if !IsValidID(e.ID) {
			return nil, fmt.Errorf("%w: invalid id %q", ErrMalformed, e.ID)
		}
	}

	switch {
	case e.Type == TypeNote && !isKeyHex(e.To):
		return nil, fmt.Errorf("%w: note without recipient", ErrMalformed)
	case e.Type.IsBroadcast() && limits.ValidateChannel(e.Channel) != nil:
		return nil, fmt.Errorf("%w: invalid channel", ErrMalformed)
	}

	return &e, nil
}

// isKeyHex reports whether s is a hex encoded 32-byte key.
func isKeyHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// IsValidID reports whether s is usable as an envelope or post id: 1 to
// limits.MaxIDSize characters drawn from letters, digits, '-' and '_'.
func IsValidID(s string) bool {
	if len(s) == 0 || len(s) > limits.MaxIDSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// IsPublicKeyHex reports whether s looks like a peer's public key.
func IsPublicKeyHex(s string) bool {
	return isKeyHex(s)
}
