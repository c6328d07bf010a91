package router

import (
	"fmt"
	"strings"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/envelope"
	"github.com/opd-ai/peernotes/limits"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/store"
	"github.com/sirupsen/logrus"
)

// SendNote encrypts body for the identified peer to and queues it on that
// peer's connection. The note is stored locally as outgoing so it shows in
// the sent view under the same id. It returns the envelope id.
func (r *Router) SendNote(to, body string) (string, error) {
	id, err := r.sendNote(to, body)
	r.events.SendResult(SendResult{ID: id, Kind: store.KindNote, Target: to, Queued: boolToInt(err == nil), Err: err})
	return id, err
}

func (r *Router) sendNote(to, body string) (string, error) {
	if err := limits.ValidateBody([]byte(body)); err != nil {
		return "", err
	}

	encKey, err := r.directory.EncryptionKey(to)
	if err != nil {
		return "", err
	}
	p, ok := r.directory.Peer(to)
	if !ok {
		return "", peer.ErrPeerNotFound
	}

	e, err := envelope.SealNote(r.identity, to, encKey, body, r.now())
	if err != nil {
		return "", err
	}
	if err := r.sendFrame(p.Conn, e); err != nil {
		return e.ID, err
	}

	r.store.Insert(store.NewNote(e, body, true))

	logrus.WithFields(logrus.Fields{
		"function": "SendNote",
		"id":       e.ID,
		"to":       crypto.HexPrefix(to),
	}).Info("Queued note")
	return e.ID, nil
}

// Post publishes a post on the default channel.
func (r *Router) Post(title, body string) (string, error) {
	return r.PostTo(r.channel, title, body)
}

// PostTo publishes a post on channel.
func (r *Router) PostTo(channel, title, body string) (string, error) {
	if err := limits.ValidateTitle(title); err != nil {
		return "", r.failed(store.KindPost, channel, err)
	}
	if err := limits.ValidateBody([]byte(body)); err != nil {
		return "", r.failed(store.KindPost, channel, err)
	}
	return r.publish(envelope.TypePost, channel, envelope.PostPayload{Title: title, Body: body})
}

// Vote publishes the local vote on postID. A repeat vote is stored once.
func (r *Router) Vote(postID string) (string, error) {
	if postID == "" {
		return "", r.failed(store.KindVote, r.channel, fmt.Errorf("vote: %w", limits.ErrMessageEmpty))
	}
	return r.publish(envelope.TypeVote, r.channel, envelope.VotePayload{PostID: postID})
}

// Comment publishes a comment on postID.
func (r *Router) Comment(postID, body string) (string, error) {
	if postID == "" {
		return "", r.failed(store.KindComment, r.channel, fmt.Errorf("comment: %w", limits.ErrMessageEmpty))
	}
	if err := limits.ValidateBody([]byte(body)); err != nil {
		return "", r.failed(store.KindComment, r.channel, err)
	}
	return r.publish(envelope.TypeComment, r.channel, envelope.CommentPayload{PostID: postID, Body: body})
}

// Send is the control-surface send command: a public key addresses a note,
// anything else names a channel and publishes a post whose title is the
// first line of body.
func (r *Router) Send(toOrChannel, body string) (string, error) {
	if envelope.IsPublicKeyHex(toOrChannel) {
		return r.SendNote(toOrChannel, body)
	}
	if err := limits.ValidateChannel(toOrChannel); err != nil {
		return "", r.failed(store.KindPost, toOrChannel, err)
	}
	return r.PostTo(toOrChannel, titleOf(body), body)
}

func (r *Router) publish(typ envelope.Type, channel string, payload interface{}) (string, error) {
	kind := store.Kind(typ)
	if err := limits.ValidateChannel(channel); err != nil {
		return "", r.failed(kind, channel, err)
	}

	e, err := envelope.Build(envelope.Builder{
		Type:    typ,
		Channel: channel,
		TS:      r.now(),
		Payload: payload,
	})
	if err != nil {
		return "", r.failed(kind, channel, err)
	}
	if err := e.Sign(r.identity.Signing); err != nil {
		return "", r.failed(kind, channel, err)
	}

	fact, err := store.FromBroadcast(e)
	if err != nil {
		return "", r.failed(kind, channel, err)
	}

	queued := 0
	if r.store.Insert(fact) {
		queued = r.gossip(e, "")
	}

	logrus.WithFields(logrus.Fields{
		"function": "publish",
		"type":     typ,
		"id":       e.ID,
		"channel":  channel,
		"queued":   queued,
	}).Info("Published broadcast")

	r.events.SendResult(SendResult{ID: e.ID, Kind: kind, Target: channel, Queued: queued})
	return e.ID, nil
}

func (r *Router) failed(kind store.Kind, target string, err error) error {
	r.events.SendResult(SendResult{Kind: kind, Target: target, Err: err})
	return err
}

// AddContact is the control-surface add-contact command.
func (r *Router) AddContact(publicKey, encryptionPublicKey, label string) error {
	changed, err := r.directory.AddContact(peer.Contact{
		PublicKeyHex:     publicKey,
		EncryptionPubKey: encryptionPublicKey,
		Label:            label,
	})
	if err != nil {
		return err
	}
	if changed {
		r.events.ContactsUpdated(r.directory.Contacts())
	}
	return nil
}

// MarkRead is the control-surface mark-read command.
func (r *Router) MarkRead(factID string) bool {
	return r.store.MarkRead(factID)
}

func titleOf(body string) string {
	title := strings.TrimSpace(body)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	return limits.Truncate(title, limits.MaxTitleSize)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
