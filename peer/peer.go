package peer

import (
	"errors"
	"time"
)

// State is the handshake state of one connection.
type State uint8

const (
	StateConnected State = iota
	StateHelloSent
	StateIdentified
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateHelloSent:
		return "hello-sent"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrPeerNotFound indicates there is no live connection to the peer.
	ErrPeerNotFound = errors.New("peer not connected")

	// ErrNotIdentified indicates the peer's hello has not been received yet.
	ErrNotIdentified = errors.New("peer handshake not complete")

	// ErrQueueFull indicates the peer's outbound queue is full and the frame was dropped.
	ErrQueueFull = errors.New("peer outbound queue full")

	// ErrInvalidHello indicates a hello whose encryption key cannot be used.
	ErrInvalidHello = errors.New("invalid hello")
)

// Conn is the live handle to a connected peer.
// Enqueue must not block; Close must be safe to call more than once.
type Conn interface {
	Enqueue(frame []byte) error
	Close() error
}

// Peer is the transient record of one live connection.
type Peer struct {
	PublicKeyHex  string
	Conn          Conn
	EncryptionKey *[32]byte
	Label         string
	State         State
	ConnectedAt   time.Time
}

// Identified reports whether the peer's hello has been received.
func (p Peer) Identified() bool {
	return p.State == StateIdentified && p.EncryptionKey != nil
}

// Contact is the durable record of a known peer.
type Contact struct {
	PublicKeyHex     string    `json:"publicKey"`
	EncryptionPubKey string    `json:"encPubKey"`
	Label            string    `json:"label"`
	LastSeen         time.Time `json:"lastSeen,omitempty"`
}
