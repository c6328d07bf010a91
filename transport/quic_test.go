package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQUICTransportDialAndAccept(t *testing.T) {
	server, client := testIdentity(t), testIdentity(t)

	st, err := NewQUICTransport(server, Options{HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer st.Close()

	accepted := make(chan Conn, 1)
	st.OnConnection(func(c Conn) { accepted <- c })
	require.NoError(t, st.Listen("127.0.0.1:0"))

	ct, err := NewQUICTransport(client, Options{HandshakeTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer ct.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := ct.Dial(ctx, st.LocalAddr().String())
	require.NoError(t, err)
	assert.Equal(t, server.PublicKeyHex(), conn.RemotePublicKey())

	var inbound Conn
	select {
	case inbound = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("inbound connection not delivered")
	}
	assert.Equal(t, client.PublicKeyHex(), inbound.RemotePublicKey())

	require.NoError(t, conn.WriteFrame([]byte("over quic")))
	got, err := inbound.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "over quic", string(got))

	require.NoError(t, conn.Close())
}

func TestSelfSignedCertUsesIdentityKey(t *testing.T) {
	id := testIdentity(t)
	cert, err := selfSignedCert(id.Signing.Private)
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	assert.Equal(t, id.Signing.Private, cert.PrivateKey)
}
