package peer

import (
	"errors"
	"testing"
	"time"

	"github.com/opd-ai/peernotes/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeStateMachine(t *testing.T) {
	clock := &mockTimeProvider{currentTime: time.Unix(1700000000, 0)}
	d := NewDirectoryWithTimeProvider(clock)
	remote := testIdentity(t)
	key := remote.PublicKeyHex()
	conn := &mockConn{}

	assert.Nil(t, d.Connect(key, conn))
	p, ok := d.Peer(key)
	require.True(t, ok)
	assert.Equal(t, StateConnected, p.State)
	assert.False(t, p.Identified())

	require.NoError(t, d.MarkHelloSent(key))
	p, _ = d.Peer(key)
	assert.Equal(t, StateHelloSent, p.State)

	_, err := d.EncryptionKey(key)
	assert.True(t, errors.Is(err, ErrNotIdentified))

	changed, err := d.ApplyHello(key, envelope.HelloPayload{EncPubKey: remote.EncryptionPublicKeyHex(), Label: "bob"})
	require.NoError(t, err)
	assert.True(t, changed)

	p, _ = d.Peer(key)
	assert.Equal(t, StateIdentified, p.State)
	assert.True(t, p.Identified())
	assert.Equal(t, "bob", p.Label)

	encKey, err := d.EncryptionKey(key)
	require.NoError(t, err)
	assert.Equal(t, remote.Encryption.Public, encKey)

	c, ok := d.Contact(key)
	require.True(t, ok)
	assert.Equal(t, remote.EncryptionPublicKeyHex(), c.EncryptionPubKey)
	assert.Equal(t, clock.currentTime, c.LastSeen)
}

func TestApplyHelloRequiresLiveConnection(t *testing.T) {
	d := NewDirectory()
	remote := testIdentity(t)

	_, err := d.ApplyHello(remote.PublicKeyHex(), envelope.HelloPayload{EncPubKey: remote.EncryptionPublicKeyHex()})
	assert.True(t, errors.Is(err, ErrPeerNotFound))
	_, ok := d.Contact(remote.PublicKeyHex())
	assert.False(t, ok)
}

func TestApplyHelloRejectsBadKey(t *testing.T) {
	d := NewDirectory()
	remote := testIdentity(t)
	d.Connect(remote.PublicKeyHex(), &mockConn{})

	_, err := d.ApplyHello(remote.PublicKeyHex(), envelope.HelloPayload{EncPubKey: "nothex"})
	assert.True(t, errors.Is(err, ErrInvalidHello))

	p, _ := d.Peer(remote.PublicKeyHex())
	assert.False(t, p.Identified())
}

func TestRepeatedHelloDoesNotReportChange(t *testing.T) {
	d := NewDirectory()
	remote := testIdentity(t)
	key := remote.PublicKeyHex()
	hello := envelope.HelloPayload{EncPubKey: remote.EncryptionPublicKeyHex(), Label: "bob"}

	d.Connect(key, &mockConn{})
	changed, err := d.ApplyHello(key, hello)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = d.ApplyHello(key, hello)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDisconnectKeepsContact(t *testing.T) {
	d := NewDirectory()
	remote := testIdentity(t)
	key := remote.PublicKeyHex()
	conn := &mockConn{}

	d.Connect(key, conn)
	_, err := d.ApplyHello(key, envelope.HelloPayload{EncPubKey: remote.EncryptionPublicKeyHex()})
	require.NoError(t, err)

	assert.True(t, d.Disconnect(key, conn))
	assert.Equal(t, 0, d.PeerCount())

	_, ok := d.Peer(key)
	assert.False(t, ok)
	_, err = d.EncryptionKey(key)
	assert.True(t, errors.Is(err, ErrPeerNotFound))

	_, ok = d.Contact(key)
	assert.True(t, ok, "contact must survive disconnect")
}

func TestReconnectRequiresFreshHello(t *testing.T) {
	d := NewDirectory()
	remote := testIdentity(t)
	key := remote.PublicKeyHex()

	first := &mockConn{}
	d.Connect(key, first)
	_, err := d.ApplyHello(key, envelope.HelloPayload{EncPubKey: remote.EncryptionPublicKeyHex()})
	require.NoError(t, err)
	d.Disconnect(key, first)

	d.Connect(key, &mockConn{})
	_, err = d.EncryptionKey(key)
	assert.True(t, errors.Is(err, ErrNotIdentified), "a stored contact must not stand in for the handshake")
}

func TestConnectReplacesExistingConnection(t *testing.T) {
	d := NewDirectory()
	remote := testIdentity(t)
	key := remote.PublicKeyHex()

	first := &mockConn{}
	second := &mockConn{}
	assert.Nil(t, d.Connect(key, first))
	assert.Equal(t, Conn(first), d.Connect(key, second))

	// A late close of the replaced handle must not remove the new record.
	assert.False(t, d.Disconnect(key, first))
	assert.Equal(t, 1, d.PeerCount())
	assert.True(t, d.Disconnect(key, second))
}

func TestMarkHelloSentUnknownPeer(t *testing.T) {
	d := NewDirectory()
	assert.True(t, errors.Is(d.MarkHelloSent("missing"), ErrPeerNotFound))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "hello-sent", StateHelloSent.String())
	assert.Equal(t, "identified", StateIdentified.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
