package router

import (
	"fmt"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/envelope"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/store"
	"github.com/sirupsen/logrus"
)

// HandleFrame processes one frame received on key's connection. A non-nil
// error means the frame was dropped; it is for local logging only.
// Duplicates are not errors.
func (r *Router) HandleFrame(key string, data []byte) (err error) {
	var e *envelope.Envelope
	defer func() {
		if err != nil {
			logDrop(key, e, err)
		}
	}()

	e, err = envelope.Decode(data)
	if err != nil {
		return err
	}

	from, ok := r.directory.Peer(key)
	if !ok {
		return peer.ErrPeerNotFound
	}

	if e.Type == envelope.TypeHello {
		return r.handleHello(key, from, e)
	}
	if !from.Identified() {
		return fmt.Errorf("%w: %s before hello", ErrNotIdentified, e.Type)
	}

	switch {
	case e.Type == envelope.TypeNote:
		return r.handleNote(e)
	case e.Type.IsBroadcast():
		return r.handleBroadcast(key, e)
	case e.Type == envelope.TypeSync:
		return r.handleSync(key, from, e)
	}
	return fmt.Errorf("%w: unroutable type %q", ErrMalformedEnvelope, e.Type)
}

func (r *Router) handleNote(e *envelope.Envelope) error {
	if e.To != r.self {
		return ErrNotAddressedToMe
	}
	if err := e.Verify(); err != nil {
		return err
	}

	senderKey, ok := r.directory.ContactEncryptionKey(e.From)
	if !ok {
		return ErrUnknownSender
	}

	note, ok := envelope.OpenNote(e, r.identity, senderKey)
	if !ok {
		return ErrDecryptionFailed
	}

	fact := store.NewNote(e, note.Body, false)
	if r.store.Insert(fact) {
		logrus.WithFields(logrus.Fields{
			"function": "handleNote",
			"id":       e.ID,
			"from":     crypto.HexPrefix(e.From),
		}).Info("Received note")
		r.emitFact(e.ID)
	}
	return nil
}

func (r *Router) handleBroadcast(key string, e *envelope.Envelope) error {
	// A known id is a duplicate whatever its signature says.
	if r.store.HasID(e.ID) {
		return nil
	}
	if err := e.Verify(); err != nil {
		return err
	}

	fact, err := store.FromBroadcast(e)
	if err != nil {
		return err
	}
	if !r.store.Insert(fact) {
		return nil
	}

	queued := r.gossip(e, key)
	logrus.WithFields(logrus.Fields{
		"function": "handleBroadcast",
		"type":     e.Type,
		"id":       e.ID,
		"from":     crypto.HexPrefix(e.From),
		"gossiped": queued,
	}).Debug("Accepted broadcast")
	r.emitFact(e.ID)
	return nil
}

func (r *Router) emitFact(id string) {
	if f, ok := r.store.Get(id); ok {
		r.events.FactReceived(f)
	}
}

// gossip enqueues e on every identified peer except exclude and returns how
// many accepted it. A full queue drops the frame for that peer only.
func (r *Router) gossip(e *envelope.Envelope, exclude string) int {
	frame, err := envelope.Encode(e)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "gossip",
			"id":       e.ID,
			"error":    err.Error(),
		}).Error("Failed to encode envelope for gossip")
		return 0
	}

	queued := 0
	for _, p := range r.directory.Identified(exclude) {
		if err := p.Conn.Enqueue(frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "gossip",
				"id":         e.ID,
				"public_key": crypto.HexPrefix(p.PublicKeyHex),
				"error":      err.Error(),
			}).Warn("Dropping gossip frame")
			continue
		}
		queued++
	}
	return queued
}
