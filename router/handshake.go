package router

import (
	"fmt"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/envelope"
	"github.com/opd-ai/peernotes/limits"
	"github.com/opd-ai/peernotes/peer"
	"github.com/sirupsen/logrus"
)

// HandleConnect registers a freshly opened connection whose remote signing
// key the transport has authenticated, and sends the local hello on it.
func (r *Router) HandleConnect(key string, conn peer.Conn) error {
	if replaced := r.directory.Connect(key, conn); replaced != nil && replaced != conn {
		replaced.Close()
	}
	delete(r.backlog, key)
	delete(r.pulls, key)
	r.events.PeerCountChanged(r.directory.PeerCount())

	hello, err := envelope.NewHello(r.identity, r.label, r.now())
	if err != nil {
		return err
	}
	if err := r.sendFrame(conn, hello); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "HandleConnect",
			"public_key": crypto.HexPrefix(key),
			"error":      err.Error(),
		}).Warn("Failed to queue hello")
		return fmt.Errorf("send hello: %w", err)
	}
	return r.directory.MarkHelloSent(key)
}

// HandleClose removes the live record for key if conn is still current.
// Contacts are kept.
func (r *Router) HandleClose(key string, conn peer.Conn) {
	if r.directory.Disconnect(key, conn) {
		delete(r.backlog, key)
		delete(r.pulls, key)
		r.events.PeerCountChanged(r.directory.PeerCount())
	}
}

func (r *Router) handleHello(key string, current peer.Peer, e *envelope.Envelope) error {
	if e.From != key {
		return fmt.Errorf("%w: announced key does not match connection", ErrInvalidHello)
	}

	var hello envelope.HelloPayload
	if err := e.DecodePayload(&hello); err != nil {
		return err
	}

	changed, err := r.directory.ApplyHello(key, hello)
	if err != nil {
		return err
	}
	if changed {
		r.events.ContactsUpdated(r.directory.Contacts())
	}

	if !current.Identified() {
		return r.sendSync(current.Conn)
	}
	return nil
}

// sendSync asks the peer for the broadcast facts the local store lacks.
func (r *Router) sendSync(conn peer.Conn) error {
	have := r.store.KnownIDs("")
	if len(have) > limits.MaxSyncIDs {
		have = have[len(have)-limits.MaxSyncIDs:]
	}

	req, err := envelope.NewSync(r.identity, "", have, r.now())
	if err != nil {
		return err
	}
	return r.sendFrame(conn, req)
}

// handleSync answers the three sync messages. Sync envelopes are unsigned;
// the transport has already bound the connection to key.
func (r *Router) handleSync(key string, from peer.Peer, e *envelope.Envelope) error {
	var req envelope.SyncPayload
	if err := e.DecodePayload(&req); err != nil {
		return err
	}
	if len(req.Have) > limits.MaxSyncIDs {
		return fmt.Errorf("%w: sync lists %d ids", ErrMalformedEnvelope, len(req.Have))
	}

	switch {
	case req.More:
		return r.pullPage(key, from.Conn, e.Channel)
	case req.Next:
		return r.pushPage(key, from.Conn)
	}

	missing := r.store.Missing(e.Channel, req.Have)
	r.backlog[key] = &syncBacklog{channel: e.Channel, pending: missing}
	logrus.WithFields(logrus.Fields{
		"function":   "handleSync",
		"public_key": crypto.HexPrefix(key),
		"have":       len(req.Have),
		"missing":    len(missing),
	}).Debug("Answering sync request")
	return r.pushPage(key, from.Conn)
}

// ResumeSync retries whatever sync traffic key's queue refused: a pull for
// the next page or the next page itself. The node calls it once a queue
// that refused a frame has drained.
func (r *Router) ResumeSync(key string) error {
	p, ok := r.directory.Peer(key)
	if !ok {
		return nil
	}
	if channel, ok := r.pulls[key]; ok {
		if err := r.pullPage(key, p.Conn, channel); err != nil {
			return err
		}
	}
	return r.pushPage(key, p.Conn)
}

// pullPage asks key for the next page. A refused pull is remembered for
// ResumeSync.
func (r *Router) pullPage(key string, conn peer.Conn, channel string) error {
	next, err := envelope.NewSyncNext(r.identity, channel, r.now())
	if err != nil {
		return err
	}
	if err := r.sendFrame(conn, next); err != nil {
		r.pulls[key] = channel
		return err
	}
	delete(r.pulls, key)
	return nil
}

// pushPage sends up to one page of key's sync backlog, followed by a more
// marker if anything is left. Frames the queue refuses stay in the backlog.
func (r *Router) pushPage(key string, conn peer.Conn) error {
	b := r.backlog[key]
	if b == nil {
		return nil
	}

	pushed := 0
	var err error
	for pushed < len(b.pending) && pushed < r.syncPageSize {
		if err = r.sendFrame(conn, b.pending[pushed]); err != nil {
			break
		}
		pushed++
	}
	b.pending = b.pending[pushed:]

	if len(b.pending) == 0 {
		delete(r.backlog, key)
	} else if err == nil {
		var more *envelope.Envelope
		if more, err = envelope.NewSyncMore(r.identity, b.channel, r.now()); err == nil {
			err = r.sendFrame(conn, more)
		}
	}

	fields := logrus.Fields{
		"function":   "pushPage",
		"public_key": crypto.HexPrefix(key),
		"pushed":     pushed,
		"remaining":  len(b.pending),
	}
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Debug("Sync page cut short")
		return err
	}
	logrus.WithFields(fields).Debug("Pushed sync page")
	return nil
}
