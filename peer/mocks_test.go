package peer

import (
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/peernotes/identity"
	"github.com/stretchr/testify/require"
)

// mockConn records frames and close calls.
type mockConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed int
}

func (m *mockConn) Enqueue(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// mockTimeProvider provides deterministic time for testing.
type mockTimeProvider struct {
	currentTime time.Time
}

func (m *mockTimeProvider) Now() time.Time { return m.currentTime }

func (m *mockTimeProvider) Advance(d time.Duration) { m.currentTime = m.currentTime.Add(d) }

func testIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}
