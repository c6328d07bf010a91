package router

import (
	"sync"
	"testing"

	"github.com/opd-ai/peernotes/identity"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/store"
	"github.com/stretchr/testify/require"
)

// mockConn queues frames until the test network delivers them.
type mockConn struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
	// capacity bounds the undelivered frames when positive.
	capacity int
	// refused records a rejected frame until the next drain.
	refused bool
	closed  int
}

func (m *mockConn) Enqueue(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full || (m.capacity > 0 && len(m.frames) >= m.capacity) {
		m.refused = true
		return peer.ErrQueueFull
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockConn) drain() [][]byte {
	out, _ := m.drainRefused()
	return out
}

// drainRefused empties the queue and reports whether a frame was refused
// since the last drain.
func (m *mockConn) drainRefused() ([][]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, refused := m.frames, m.refused
	m.frames, m.refused = nil, false
	return out, refused
}

func (m *mockConn) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// recorder captures control-surface events.
type recorder struct {
	mu         sync.Mutex
	contacts   [][]peer.Contact
	peerCounts []int
	facts      []store.Fact
	results    []SendResult
}

func (r *recorder) ContactsUpdated(c []peer.Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts = append(r.contacts, c)
}

func (r *recorder) PeerCountChanged(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peerCounts = append(r.peerCounts, n)
}

func (r *recorder) FactReceived(f store.Fact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts = append(r.facts, f)
}

func (r *recorder) SendResult(res SendResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

type testNode struct {
	id     *identity.Identity
	key    string
	router *Router
	events *recorder
}

func newTestNode(t *testing.T, label string) *testNode {
	t.Helper()
	return newTestNodeWithConfig(t, Config{Label: label})
}

func newTestNodeWithConfig(t *testing.T, cfg Config) *testNode {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)

	events := &recorder{}
	cfg.Events = events
	r := New(id, peer.NewDirectory(), store.New(), cfg)
	return &testNode{id: id, key: id.PublicKeyHex(), router: r, events: events}
}

// link carries frames queued by from on its connection to to.
type link struct {
	from, to *testNode
	conn     *mockConn
}

type network struct {
	links []*link
}

// connect opens a connection between a and b. Nothing is delivered until pump.
func (n *network) connect(t *testing.T, a, b *testNode) (ab, ba *link) {
	t.Helper()
	ab = &link{from: a, to: b, conn: &mockConn{}}
	ba = &link{from: b, to: a, conn: &mockConn{}}
	require.NoError(t, a.router.HandleConnect(b.key, ab.conn))
	require.NoError(t, b.router.HandleConnect(a.key, ba.conn))
	n.links = append(n.links, ab, ba)
	return ab, ba
}

// pump delivers queued frames until the network is quiet. Like the node's
// writer, a drained queue that refused a frame resumes the sender's sync.
func (n *network) pump(t *testing.T) {
	t.Helper()
	for round := 0; round < 100; round++ {
		delivered := 0
		for _, l := range n.links {
			frames, refused := l.conn.drainRefused()
			if refused {
				_ = l.from.router.ResumeSync(l.to.key)
			}
			for _, frame := range frames {
				_ = l.to.router.HandleFrame(l.from.key, frame)
				delivered++
			}
		}
		if delivered == 0 {
			return
		}
	}
	t.Fatal("network did not go quiet")
}
