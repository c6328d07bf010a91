package store

import (
	"fmt"
	"time"

	"github.com/opd-ai/peernotes/envelope"
)

// Kind is the application-level type of a fact.
type Kind string

const (
	KindNote    Kind = "note"
	KindPost    Kind = "post"
	KindVote    Kind = "vote"
	KindComment Kind = "comment"
)

// IsBroadcast reports whether facts of kind k are gossiped on a channel.
func (k Kind) IsBroadcast() bool {
	return k == KindPost || k == KindVote || k == KindComment
}

// Fact is an application-level payload recovered from a verified envelope.
type Fact struct {
	ID      string
	Kind    Kind
	From    string
	To      string
	Channel string
	TS      int64

	Title  string
	Body   string
	PostID string

	Outgoing   bool
	Read       bool
	ReceivedAt time.Time

	// Envelope is the signed original, kept so the fact can be re-gossiped
	// and synced byte-for-byte. It is nil for notes.
	Envelope *envelope.Envelope
}

// DedupKey returns the key that decides whether f has been seen before.
// Votes and ids live in separate namespaces so no envelope id can collide
// with a voter's key.
func (f *Fact) DedupKey() string {
	if f.Kind == KindVote {
		return VoteKey(f.PostID, f.From)
	}
	return IDKey(f.ID)
}

// VoteKey returns the dedup key of a vote by voter on postID.
func VoteKey(postID, voter string) string {
	return "vote\x00" + postID + "\x00" + voter
}

// IDKey returns the dedup key of a non-vote fact with the given id.
func IDKey(id string) string {
	return "id\x00" + id
}

// FromBroadcast recovers a post, vote or comment fact from a verified envelope.
func FromBroadcast(e *envelope.Envelope) (*Fact, error) {
	f := &Fact{
		ID:       e.ID,
		Kind:     Kind(e.Type),
		From:     e.From,
		Channel:  e.Channel,
		TS:       e.TS,
		Envelope: e,
	}

	switch e.Type {
	case envelope.TypePost:
		var p envelope.PostPayload
		if err := e.DecodePayload(&p); err != nil {
			return nil, err
		}
		f.Title, f.Body = p.Title, p.Body
	case envelope.TypeVote:
		var p envelope.VotePayload
		if err := e.DecodePayload(&p); err != nil {
			return nil, err
		}
		if !envelope.IsValidID(p.PostID) {
			return nil, fmt.Errorf("%w: vote without valid post id", envelope.ErrMalformed)
		}
		f.PostID = p.PostID
	case envelope.TypeComment:
		var p envelope.CommentPayload
		if err := e.DecodePayload(&p); err != nil {
			return nil, err
		}
		if !envelope.IsValidID(p.PostID) {
			return nil, fmt.Errorf("%w: comment without valid post id", envelope.ErrMalformed)
		}
		f.PostID, f.Body = p.PostID, p.Body
	default:
		return nil, fmt.Errorf("%w: %q is not a broadcast type", envelope.ErrMalformed, e.Type)
	}
	return f, nil
}

// NewNote builds a note fact from a verified envelope and its decrypted body.
func NewNote(e *envelope.Envelope, body string, outgoing bool) *Fact {
	return &Fact{
		ID:       e.ID,
		Kind:     KindNote,
		From:     e.From,
		To:       e.To,
		TS:       e.TS,
		Body:     body,
		Outgoing: outgoing,
		Read:     outgoing,
	}
}
