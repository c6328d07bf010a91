package peer

import (
	"fmt"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Directory maps peer public keys to live connections and durable contacts.
type Directory struct {
	mu       deadlock.RWMutex
	peers    map[string]*Peer
	contacts map[string]*Contact

	timeProvider crypto.TimeProvider
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return NewDirectoryWithTimeProvider(nil)
}

// NewDirectoryWithTimeProvider creates an empty directory with a custom clock.
func NewDirectoryWithTimeProvider(tp crypto.TimeProvider) *Directory {
	if tp == nil {
		tp = crypto.DefaultTimeProvider{}
	}
	return &Directory{
		peers:        make(map[string]*Peer),
		contacts:     make(map[string]*Contact),
		timeProvider: tp,
	}
}

// Peer returns a snapshot of the live peer record for key.
func (d *Directory) Peer(key string) (Peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.peers[key]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// EncryptionKey returns the encryption key negotiated on the live
// connection to key. It never falls back to a stored contact.
func (d *Directory) EncryptionKey(key string) ([32]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.peers[key]
	if !ok {
		return [32]byte{}, ErrPeerNotFound
	}
	if !p.Identified() {
		return [32]byte{}, ErrNotIdentified
	}
	return *p.EncryptionKey, nil
}

// Identified returns snapshots of every identified peer except exclude.
func (d *Directory) Identified(exclude string) []Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Peer, 0, len(d.peers))
	for key, p := range d.peers {
		if key == exclude || !p.Identified() {
			continue
		}
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Peer) bool { return a.PublicKeyHex < b.PublicKeyHex })
	return out
}

// PeerCount returns the number of live connections.
func (d *Directory) PeerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// AddContact inserts or updates a contact. It reports whether anything changed.
func (d *Directory) AddContact(c Contact) (bool, error) {
	if _, err := crypto.ParseKey(c.PublicKeyHex); err != nil {
		return false, fmt.Errorf("contact public key: %w", err)
	}
	if _, err := crypto.ParseKey(c.EncryptionPubKey); err != nil {
		return false, fmt.Errorf("contact encryption key: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upsertContactLocked(c), nil
}

// upsertContactLocked stores c, keeping an existing label when c has none.
func (d *Directory) upsertContactLocked(c Contact) bool {
	existing, ok := d.contacts[c.PublicKeyHex]
	if !ok {
		stored := c
		d.contacts[c.PublicKeyHex] = &stored
		logrus.WithFields(logrus.Fields{
			"function":   "upsertContact",
			"public_key": crypto.HexPrefix(c.PublicKeyHex),
			"label":      c.Label,
		}).Info("Added contact")
		return true
	}

	changed := false
	if existing.EncryptionPubKey != c.EncryptionPubKey {
		existing.EncryptionPubKey = c.EncryptionPubKey
		changed = true
	}
	if c.Label != "" && existing.Label != c.Label {
		existing.Label = c.Label
		changed = true
	}
	if c.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = c.LastSeen
	}
	return changed
}

// Contact returns the stored contact for key.
func (d *Directory) Contact(key string) (Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.contacts[key]
	if !ok {
		return Contact{}, false
	}
	return *c, true
}

// ContactEncryptionKey returns the decoded encryption key of a stored contact.
func (d *Directory) ContactEncryptionKey(key string) ([32]byte, bool) {
	c, ok := d.Contact(key)
	if !ok {
		return [32]byte{}, false
	}
	encKey, err := crypto.ParseKey(c.EncryptionPubKey)
	if err != nil {
		return [32]byte{}, false
	}
	return encKey, true
}

// Contacts returns all contacts ordered by public key.
func (d *Directory) Contacts() []Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Contact, 0, len(d.contacts))
	for _, c := range d.contacts {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Contact) bool { return a.PublicKeyHex < b.PublicKeyHex })
	return out
}
