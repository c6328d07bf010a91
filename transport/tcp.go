package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/opd-ai/peernotes/identity"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// TCPTransport implements Transport over TCP.
type TCPTransport struct {
	id     *identity.Identity
	opts   Options
	dialer proxy.Dialer

	listener   net.Listener
	listenAddr net.Addr
	handler    Handler
	conns      map[net.Conn]struct{}
	mu         sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewTCPTransport creates a TCP transport. It does not listen until Listen
// is called.
func NewTCPTransport(id *identity.Identity, opts Options) (*TCPTransport, error) {
	dialer, err := newDialer(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TCPTransport{
		id:     id,
		opts:   opts,
		dialer: dialer,
		conns:  make(map[net.Conn]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// newDialer returns a direct dialer, or a SOCKS5 dialer when a proxy is configured.
func newDialer(opts Options) (proxy.Dialer, error) {
	if opts.ProxyAddr == "" {
		return proxy.Direct, nil
	}

	var auth *proxy.Auth
	if opts.ProxyUsername != "" || opts.ProxyPassword != "" {
		auth = &proxy.Auth{
			User:     opts.ProxyUsername,
			Password: opts.ProxyPassword,
		}
	}

	dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddr, auth, proxy.Direct)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "newDialer",
			"proxy_addr": opts.ProxyAddr,
			"error":      err.Error(),
		}).Error("Failed to create SOCKS5 dialer")
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "newDialer",
		"proxy_addr": opts.ProxyAddr,
	}).Info("SOCKS5 proxy configured for outbound connections")
	return dialer, nil
}

// OnConnection sets the handler for authenticated inbound connections.
func (t *TCPTransport) OnConnection(handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Listen starts accepting connections on addr.
func (t *TCPTransport) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.listener = listener
	t.listenAddr = listener.Addr()
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Listen",
		"listen_addr": listener.Addr().String(),
	}).Info("TCP transport listening")

	t.wg.Add(1)
	go t.acceptConnections(listener)
	return nil
}

// Dial connects to addr and authenticates the remote peer.
func (t *TCPTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	if t.ctx.Err() != nil {
		return nil, ErrClosed
	}

	var (
		raw net.Conn
		err error
	)
	if cd, ok := t.dialer.(proxy.ContextDialer); ok {
		raw, err = cd.DialContext(ctx, "tcp", addr)
	} else {
		raw, err = t.dialer.Dial("tcp", addr)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Dial",
			"dest_addr": addr,
			"proxied":   t.opts.ProxyAddr != "",
			"error":     err.Error(),
		}).Warn("Failed to dial peer")
		return nil, err
	}

	return t.upgrade(raw, true)
}

func (t *TCPTransport) upgrade(raw net.Conn, initiator bool) (Conn, error) {
	t.track(raw)
	conn, err := Upgrade(raw, raw.RemoteAddr(), t.id, initiator, t.opts)
	if err != nil {
		t.untrack(raw)
		return nil, err
	}
	return &trackedConn{Conn: conn, release: func() { t.untrack(raw) }}, nil
}

func (t *TCPTransport) track(c net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[c] = struct{}{}
}

func (t *TCPTransport) untrack(c net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, c)
}

// acceptConnections handles incoming connections.
func (t *TCPTransport) acceptConnections(listener net.Listener) {
	defer t.wg.Done()
	for {
		raw, err := listener.Accept()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "acceptConnections",
				"error":    err.Error(),
			}).Warn("Accept failed")
			continue
		}

		t.wg.Add(1)
		go t.handleConnection(raw)
	}
}

// handleConnection authenticates one inbound connection and hands it off.
func (t *TCPTransport) handleConnection(raw net.Conn) {
	defer t.wg.Done()

	conn, err := t.upgrade(raw, false)
	if err != nil {
		return
	}

	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()

	if handler == nil {
		logrus.WithFields(logrus.Fields{
			"function":    "handleConnection",
			"remote_addr": raw.RemoteAddr().String(),
		}).Warn("No connection handler registered, closing")
		conn.Close()
		return
	}
	handler(conn)
}

// LocalAddr returns the local address the transport is listening on.
func (t *TCPTransport) LocalAddr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.listenAddr
}

// Close stops listening and closes every connection.
func (t *TCPTransport) Close() error {
	t.cancel()

	t.mu.Lock()
	listener := t.listener
	for c := range t.conns {
		c.Close()
	}
	t.conns = make(map[net.Conn]struct{})
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	t.wg.Wait()
	return err
}

// trackedConn releases its transport bookkeeping on Close.
type trackedConn struct {
	Conn
	once    sync.Once
	release func()
}

func (c *trackedConn) Close() error {
	c.once.Do(c.release)
	return c.Conn.Close()
}
