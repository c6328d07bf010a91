package router

import (
	"errors"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/envelope"
	"github.com/opd-ai/peernotes/identity"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/store"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the board channel used when none is configured.
const DefaultChannel = "general"

// DefaultSyncPageSize is the number of facts pushed per sync page when none
// is configured.
const DefaultSyncPageSize = 128

var (
	// ErrMalformedEnvelope indicates bytes that do not parse into a usable envelope.
	ErrMalformedEnvelope = envelope.ErrMalformed

	// ErrSignatureInvalid indicates a signature that does not verify against from.
	ErrSignatureInvalid = envelope.ErrSignatureInvalid

	// ErrUnknownSender indicates a note from a key with no stored contact.
	ErrUnknownSender = errors.New("unknown sender")

	// ErrDecryptionFailed indicates a note that could not be opened.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrNotAddressedToMe indicates a note whose recipient is another peer.
	ErrNotAddressedToMe = errors.New("note not addressed to this peer")

	// ErrNotIdentified indicates a message from a peer whose hello has not arrived.
	ErrNotIdentified = peer.ErrNotIdentified

	// ErrInvalidHello indicates a hello that cannot identify its connection.
	ErrInvalidHello = peer.ErrInvalidHello
)

// Events receives control-surface notifications. Calls are made from the
// goroutine driving the router and must not block.
type Events interface {
	ContactsUpdated(contacts []peer.Contact)
	PeerCountChanged(count int)
	FactReceived(fact store.Fact)
	SendResult(result SendResult)
}

// SendResult reports the local outcome of an outbound command. It is not an
// end-to-end acknowledgement.
type SendResult struct {
	ID     string
	Kind   store.Kind
	Target string
	// Queued is the number of peers the frame was handed to.
	Queued int
	Err    error
}

// NopEvents discards every event.
type NopEvents struct{}

func (NopEvents) ContactsUpdated([]peer.Contact) {}
func (NopEvents) PeerCountChanged(int)           {}
func (NopEvents) FactReceived(store.Fact)        {}
func (NopEvents) SendResult(SendResult)          {}

// Config holds the optional settings of a Router.
type Config struct {
	Label        string
	Channel      string
	TimeProvider crypto.TimeProvider
	Events       Events
	// SyncPageSize bounds how many facts one sync page pushes. It should
	// stay below the per-peer send queue size.
	SyncPageSize int
}

// Router operates on the directory and store it is given. Its only state
// of its own is the sync traffic still owed to each peer. It is not safe
// for concurrent use.
type Router struct {
	identity  *identity.Identity
	self      string
	directory *peer.Directory
	store     *store.Store

	label        string
	channel      string
	timeProvider crypto.TimeProvider
	events       Events

	syncPageSize int
	backlog      map[string]*syncBacklog
	pulls        map[string]string // peer -> channel of a refused next pull
}

// syncBacklog is the part of a sync answer not yet handed to the peer.
type syncBacklog struct {
	channel string
	pending []*envelope.Envelope
}

// New creates a router for id over the given directory and store.
func New(id *identity.Identity, directory *peer.Directory, st *store.Store, cfg Config) *Router {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.TimeProvider == nil {
		cfg.TimeProvider = crypto.DefaultTimeProvider{}
	}
	if cfg.Events == nil {
		cfg.Events = NopEvents{}
	}
	if cfg.SyncPageSize < 1 {
		cfg.SyncPageSize = DefaultSyncPageSize
	}

	return &Router{
		identity:     id,
		self:         id.PublicKeyHex(),
		directory:    directory,
		store:        st,
		label:        cfg.Label,
		channel:      cfg.Channel,
		timeProvider: cfg.TimeProvider,
		events:       cfg.Events,
		syncPageSize: cfg.SyncPageSize,
		backlog:      make(map[string]*syncBacklog),
		pulls:        make(map[string]string),
	}
}

// PublicKeyHex returns the local signing key.
func (r *Router) PublicKeyHex() string {
	return r.self
}

// Channel returns the default board channel.
func (r *Router) Channel() string {
	return r.channel
}

// Directory returns the peer directory the router operates on.
func (r *Router) Directory() *peer.Directory {
	return r.directory
}

// Store returns the fact store the router operates on.
func (r *Router) Store() *store.Store {
	return r.store
}

func (r *Router) now() int64 {
	return crypto.NowMillis(r.timeProvider)
}

func (r *Router) sendFrame(conn peer.Conn, e *envelope.Envelope) error {
	frame, err := envelope.Encode(e)
	if err != nil {
		return err
	}
	return conn.Enqueue(frame)
}

// logDrop records a rejected inbound envelope at the level its cause warrants.
func logDrop(key string, e *envelope.Envelope, err error) {
	fields := logrus.Fields{
		"function":   "HandleFrame",
		"connection": crypto.HexPrefix(key),
		"error":      err.Error(),
	}
	if e != nil {
		fields["type"] = e.Type
		fields["id"] = e.ID
		fields["from"] = crypto.HexPrefix(e.From)
	}

	entry := logrus.WithFields(fields)
	switch {
	case errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrUnknownSender),
		errors.Is(err, ErrDecryptionFailed),
		errors.Is(err, ErrInvalidHello):
		entry.Warn("Dropping envelope")
	default:
		entry.Debug("Dropping envelope")
	}
}
