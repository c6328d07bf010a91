package peer

import (
	"fmt"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/envelope"
	"github.com/opd-ai/peernotes/limits"
	"github.com/sirupsen/logrus"
)

// Connect registers a new live connection for key in state Connected. If
// the peer was already connected, the previous handle is returned so the
// caller can close it.
func (d *Directory) Connect(key string, conn Conn) (replaced Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.peers[key]; ok {
		replaced = old.Conn
	}

	d.peers[key] = &Peer{
		PublicKeyHex: key,
		Conn:         conn,
		State:        StateConnected,
		ConnectedAt:  d.timeProvider.Now(),
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Connect",
		"public_key": crypto.HexPrefix(key),
		"replaced":   replaced != nil,
		"peer_count": len(d.peers),
	}).Info("Peer connected")
	return replaced
}

// MarkHelloSent records that the local hello went out on key's connection.
func (d *Directory) MarkHelloSent(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[key]
	if !ok {
		return ErrPeerNotFound
	}
	if p.State == StateConnected {
		p.State = StateHelloSent
	}
	return nil
}

// ApplyHello attaches the encryption key and label from a received hello to
// the live peer record and upserts the matching contact. It reports whether
// the contact set changed.
func (d *Directory) ApplyHello(key string, hello envelope.HelloPayload) (bool, error) {
	encKey, err := crypto.ParseKey(hello.EncPubKey)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHello, err)
	}
	label := limits.TruncateLabel(hello.Label)

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[key]
	if !ok {
		return false, ErrPeerNotFound
	}

	p.EncryptionKey = &encKey
	p.Label = label
	p.State = StateIdentified

	changed := d.upsertContactLocked(Contact{
		PublicKeyHex:     key,
		EncryptionPubKey: hello.EncPubKey,
		Label:            label,
		LastSeen:         d.timeProvider.Now(),
	})

	logrus.WithFields(logrus.Fields{
		"function":        "ApplyHello",
		"public_key":      crypto.HexPrefix(key),
		"label":           label,
		"contact_changed": changed,
	}).Info("Peer identified")
	return changed, nil
}

// Disconnect removes the live record for key if conn is still its current
// handle. The contact is kept. It reports whether a record was removed.
func (d *Directory) Disconnect(key string, conn Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[key]
	if !ok || (conn != nil && p.Conn != conn) {
		return false
	}
	p.State = StateClosed
	delete(d.peers, key)

	if c, ok := d.contacts[key]; ok {
		c.LastSeen = d.timeProvider.Now()
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Disconnect",
		"public_key": crypto.HexPrefix(key),
		"peer_count": len(d.peers),
	}).Info("Peer disconnected")
	return true
}
