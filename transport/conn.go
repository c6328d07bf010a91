package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
)

// ErrClosed indicates an operation on a closed transport.
var ErrClosed = errors.New("transport closed")

// Conn is an authenticated framed link to one peer.
// ReadFrame must be called from one goroutine; WriteFrame is safe for
// concurrent use.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	// RemotePublicKey returns the peer's signing key in hex.
	RemotePublicKey() string
	RemoteAddr() net.Addr
	Close() error
}

// Handler receives each newly authenticated inbound connection.
type Handler func(conn Conn)

// Transport accepts and establishes authenticated links.
type Transport interface {
	Listen(addr string) error
	Dial(ctx context.Context, addr string) (Conn, error)
	OnConnection(handler Handler)
	LocalAddr() net.Addr
	Close() error
}

// framedConn frames an arbitrary byte stream.
type framedConn struct {
	raw        io.ReadWriteCloser
	stream     io.ReadWriter
	remoteKey  string
	remoteAddr net.Addr

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *framedConn) ReadFrame() ([]byte, error) {
	return ReadFrame(c.stream)
}

func (c *framedConn) WriteFrame(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return WriteFrame(c.stream, data)
}

func (c *framedConn) RemotePublicKey() string {
	return c.remoteKey
}

func (c *framedConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

func (c *framedConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}
