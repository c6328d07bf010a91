package peernotes

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/peernotes/identity"
	"github.com/opd-ai/peernotes/transport"
	"github.com/stretchr/testify/require"
)

// mockConn is a transport.Conn that records writes and blocks reads until closed.
type mockConn struct {
	key    string
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newMockConn(key string) *mockConn {
	return &mockConn{key: key, closed: make(chan struct{})}
}

func (m *mockConn) ReadFrame() ([]byte, error) {
	<-m.closed
	return nil, errors.New("closed")
}

func (m *mockConn) WriteFrame(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, data)
	return nil
}

func (m *mockConn) RemotePublicKey() string { return m.key }
func (m *mockConn) RemoteAddr() net.Addr    { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7400} }

func (m *mockConn) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func testOptions(t *testing.T, label string) *Options {
	t.Helper()
	opts := NewOptions()
	opts.DataDir = t.TempDir()
	opts.Label = label
	opts.ListenAddr = "127.0.0.1:0"
	return opts
}

// startNode creates a node with a fresh identity and runs its reactor for
// the duration of the test.
func startNode(t *testing.T, opts *Options) *Node {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)

	n, err := New(opts, id)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)
	<-n.started

	t.Cleanup(func() {
		cancel()
		n.Close()
	})
	return n
}

// link connects a and b in memory and waits for both handshakes.
func linkNodes(t *testing.T, a, b *Node) {
	t.Helper()
	ca, cb, err := transport.Pipe(a.identity, b.identity, transport.Options{})
	require.NoError(t, err)
	require.NoError(t, a.AddConn(ca))
	require.NoError(t, b.AddConn(cb))

	require.Eventually(t, func() bool {
		return identifiedWith(a, b.PublicKeyHex()) && identifiedWith(b, a.PublicKeyHex())
	}, 5*time.Second, 10*time.Millisecond)
}

func identifiedWith(n *Node, key string) bool {
	for _, p := range n.Peers() {
		if p.PublicKeyHex == key {
			return true
		}
	}
	return false
}
