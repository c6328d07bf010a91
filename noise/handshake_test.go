package noise

import (
	"testing"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestXXHandshakeCompletes(t *testing.T) {
	initKeys, respKeys := testKeyPair(t), testKeyPair(t)

	initiator, err := NewXXHandshake(initKeys, Initiator)
	require.NoError(t, err)
	responder, err := NewXXHandshake(respKeys, Responder)
	require.NoError(t, err)

	// -> e
	msg1, done, err := initiator.WriteMessage(nil)
	require.NoError(t, err)
	assert.False(t, done)
	_, done, err = responder.ReadMessage(msg1)
	require.NoError(t, err)
	assert.False(t, done)

	// <- e, ee, s, es
	msg2, done, err := responder.WriteMessage(nil)
	require.NoError(t, err)
	assert.False(t, done)
	_, done, err = initiator.ReadMessage(msg2)
	require.NoError(t, err)
	assert.False(t, done)

	// -> s, se
	msg3, done, err := initiator.WriteMessage([]byte("payload"))
	require.NoError(t, err)
	assert.True(t, done)
	payload, done, err := responder.ReadMessage(msg3)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []byte("payload"), payload)

	remote, err := initiator.GetRemoteStaticKey()
	require.NoError(t, err)
	assert.Equal(t, respKeys.Public[:], remote)

	remote, err = responder.GetRemoteStaticKey()
	require.NoError(t, err)
	assert.Equal(t, initKeys.Public[:], remote)
	assert.Equal(t, initKeys.Public[:], initiator.GetLocalStaticKey())

	iBinding, err := initiator.ChannelBinding()
	require.NoError(t, err)
	rBinding, err := responder.ChannelBinding()
	require.NoError(t, err)
	assert.Len(t, iBinding, 32)
	assert.Equal(t, iBinding, rBinding)

	// The initiator's send cipher pairs with the responder's receive cipher.
	iSend, _, err := initiator.GetCipherStates()
	require.NoError(t, err)
	_, rRecv, err := responder.GetCipherStates()
	require.NoError(t, err)

	ct, err := iSend.Encrypt(nil, nil, []byte("hello"))
	require.NoError(t, err)
	pt, err := rRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)

	_, _, err = initiator.WriteMessage(nil)
	assert.ErrorIs(t, err, ErrHandshakeComplete)
	_, _, err = responder.ReadMessage(msg3)
	assert.ErrorIs(t, err, ErrHandshakeComplete)
}

func TestXXHandshakeNotComplete(t *testing.T) {
	hs, err := NewXXHandshake(testKeyPair(t), Initiator)
	require.NoError(t, err)

	assert.False(t, hs.IsComplete())
	_, _, err = hs.GetCipherStates()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)
	_, err = hs.GetRemoteStaticKey()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)
	_, err = hs.ChannelBinding()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)
}

func TestXXHandshakeRejectsGarbage(t *testing.T) {
	responder, err := NewXXHandshake(testKeyPair(t), Responder)
	require.NoError(t, err)

	_, _, err = responder.ReadMessage([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNewXXHandshakeRequiresKey(t *testing.T) {
	_, err := NewXXHandshake(nil, Initiator)
	assert.Error(t, err)
}

func TestHandshakeRoleString(t *testing.T) {
	assert.Equal(t, "initiator", Initiator.String())
	assert.Equal(t, "responder", Responder.String())
}
