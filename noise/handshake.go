package noise

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/opd-ai/peernotes/crypto"
)

var (
	// ErrHandshakeNotComplete indicates handshake is still in progress
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrHandshakeComplete indicates handshake is already complete
	ErrHandshakeComplete = errors.New("handshake already complete")
)

// HandshakeRole defines whether we're initiating or responding to handshake
type HandshakeRole uint8

const (
	// Initiator dials the link and writes the first handshake message.
	Initiator HandshakeRole = iota
	// Responder accepts the link.
	Responder
)

func (r HandshakeRole) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// XXHandshake implements the Noise XX pattern for mutual authentication
// without prior key knowledge.
type XXHandshake struct {
	role        HandshakeRole
	state       *noise.HandshakeState
	sendCipher  *noise.CipherState
	recvCipher  *noise.CipherState
	complete    bool
	localPubKey []byte
}

// NewXXHandshake creates a new XX pattern handshake using static as the
// long-term Noise key.
func NewXXHandshake(static *crypto.KeyPair, role HandshakeRole) (*XXHandshake, error) {
	if static == nil {
		return nil, errors.New("static keypair is required")
	}

	staticKey := noise.DHKey{
		Private: make([]byte, 32),
		Public:  make([]byte, 32),
	}
	copy(staticKey.Private, static.Private[:])
	copy(staticKey.Public, static.Public[:])

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeXX,
		Initiator:     role == Initiator,
		StaticKeypair: staticKey,
	})
	if err != nil {
		crypto.ZeroBytes(staticKey.Private)
		return nil, fmt.Errorf("failed to create XX handshake state: %w", err)
	}

	return &XXHandshake{
		role:        role,
		state:       hs,
		localPubKey: staticKey.Public,
	}, nil
}

// WriteMessage writes the next handshake message carrying payload.
func (xx *XXHandshake) WriteMessage(payload []byte) ([]byte, bool, error) {
	if xx.complete {
		return nil, false, ErrHandshakeComplete
	}

	message, cs1, cs2, err := xx.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, false, fmt.Errorf("XX handshake write failed: %w", err)
	}
	xx.finish(cs1, cs2)
	return message, xx.complete, nil
}

// ReadMessage consumes the peer's next handshake message and returns its payload.
func (xx *XXHandshake) ReadMessage(message []byte) ([]byte, bool, error) {
	if xx.complete {
		return nil, false, ErrHandshakeComplete
	}

	payload, cs1, cs2, err := xx.state.ReadMessage(nil, message)
	if err != nil {
		return nil, false, fmt.Errorf("XX handshake read failed: %w", err)
	}
	xx.finish(cs1, cs2)
	return payload, xx.complete, nil
}

// finish records the split cipher states. cs1 always protects traffic from
// initiator to responder.
func (xx *XXHandshake) finish(cs1, cs2 *noise.CipherState) {
	if cs1 == nil || cs2 == nil {
		return
	}
	if xx.role == Initiator {
		xx.sendCipher, xx.recvCipher = cs1, cs2
	} else {
		xx.sendCipher, xx.recvCipher = cs2, cs1
	}
	xx.complete = true
}

// IsComplete returns whether the XX handshake is complete.
func (xx *XXHandshake) IsComplete() bool {
	return xx.complete
}

// GetCipherStates returns the send and receive cipher states.
func (xx *XXHandshake) GetCipherStates() (*noise.CipherState, *noise.CipherState, error) {
	if !xx.complete {
		return nil, nil, ErrHandshakeNotComplete
	}
	return xx.sendCipher, xx.recvCipher, nil
}

// GetRemoteStaticKey returns the peer's static key after completion.
func (xx *XXHandshake) GetRemoteStaticKey() ([]byte, error) {
	if !xx.complete {
		return nil, ErrHandshakeNotComplete
	}
	remote := xx.state.PeerStatic()
	key := make([]byte, len(remote))
	copy(key, remote)
	return key, nil
}

// GetLocalStaticKey returns our static public key.
func (xx *XXHandshake) GetLocalStaticKey() []byte {
	key := make([]byte, len(xx.localPubKey))
	copy(key, xx.localPubKey)
	return key
}

// ChannelBinding returns the handshake hash after completion. Both ends of
// one session see the same value; two sessions never do.
func (xx *XXHandshake) ChannelBinding() ([]byte, error) {
	if !xx.complete {
		return nil, ErrHandshakeNotComplete
	}
	binding := xx.state.ChannelBinding()
	out := make([]byte, len(binding))
	copy(out, binding)
	return out, nil
}
