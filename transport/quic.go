package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/peernotes/identity"
	quic "github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
)

const quicProtocol = "peernotes-quic"

// QUICTransport implements Transport with one QUIC stream per peer link.
type QUICTransport struct {
	id   *identity.Identity
	opts Options

	serverTLS *tls.Config
	clientTLS *tls.Config
	config    *quic.Config

	listener *quic.Listener
	handler  Handler
	conns    map[*quic.Conn]struct{}
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewQUICTransport creates a QUIC transport whose TLS certificate is
// self-signed with the identity's signing key.
func NewQUICTransport(id *identity.Identity, opts Options) (*QUICTransport, error) {
	cert, err := selfSignedCert(id.Signing.Private)
	if err != nil {
		return nil, fmt.Errorf("quic certificate: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &QUICTransport{
		id:   id,
		opts: opts,
		serverTLS: &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{quicProtocol},
			MinVersion:   tls.VersionTLS13,
		},
		clientTLS: &tls.Config{
			// Peers are authenticated by the announce preamble, not by TLS.
			InsecureSkipVerify: true,
			NextProtos:         []string{quicProtocol},
			MinVersion:         tls.VersionTLS13,
		},
		config: &quic.Config{
			HandshakeIdleTimeout: opts.handshakeTimeout(),
			KeepAlivePeriod:      15 * time.Second,
		},
		conns:  make(map[*quic.Conn]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func selfSignedCert(priv ed25519.PrivateKey) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}
	template := x509.Certificate{
		SerialNumber: serial,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, priv.Public(), priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}

// OnConnection sets the handler for authenticated inbound connections.
func (t *QUICTransport) OnConnection(handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Listen starts accepting QUIC connections on addr.
func (t *QUICTransport) Listen(addr string) error {
	listener, err := quic.ListenAddr(addr, t.serverTLS, t.config)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Listen",
			"listen_addr": addr,
			"error":       err.Error(),
		}).Error("QUIC listen failed")
		return err
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Listen",
		"listen_addr": listener.Addr().String(),
	}).Info("QUIC transport listening")

	t.wg.Add(1)
	go t.acceptConnections(listener)
	return nil
}

func (t *QUICTransport) acceptConnections(listener *quic.Listener) {
	defer t.wg.Done()
	for {
		qc, err := listener.Accept(t.ctx)
		if err != nil {
			if t.ctx.Err() == nil {
				logrus.WithFields(logrus.Fields{
					"function": "acceptConnections",
					"error":    err.Error(),
				}).Warn("QUIC accept failed")
			}
			return
		}

		t.wg.Add(1)
		go t.handleConnection(qc)
	}
}

func (t *QUICTransport) handleConnection(qc *quic.Conn) {
	defer t.wg.Done()
	t.track(qc)

	ctx, cancel := context.WithTimeout(t.ctx, t.opts.handshakeTimeout())
	stream, err := qc.AcceptStream(ctx)
	cancel()
	if err != nil {
		t.closeConn(qc, "no stream")
		return
	}

	conn, err := t.upgrade(qc, stream, false)
	if err != nil {
		return
	}

	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()

	if handler == nil {
		conn.Close()
		return
	}
	handler(conn)
}

// Dial opens a QUIC connection and one stream to addr.
func (t *QUICTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	if t.ctx.Err() != nil {
		return nil, ErrClosed
	}

	qc, err := quic.DialAddr(ctx, addr, t.clientTLS, t.config)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Dial",
			"dest_addr": addr,
			"error":     err.Error(),
		}).Warn("Failed to dial peer over QUIC")
		return nil, err
	}
	t.track(qc)

	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		t.closeConn(qc, "open stream failed")
		return nil, err
	}
	return t.upgrade(qc, stream, true)
}

func (t *QUICTransport) upgrade(qc *quic.Conn, stream *quic.Stream, initiator bool) (Conn, error) {
	conn, err := Upgrade(&quicStream{stream: stream, closeConn: func() { t.closeConn(qc, "closed") }},
		qc.RemoteAddr(), t.id, initiator, t.opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (t *QUICTransport) track(qc *quic.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[qc] = struct{}{}
}

func (t *QUICTransport) closeConn(qc *quic.Conn, reason string) {
	t.mu.Lock()
	delete(t.conns, qc)
	t.mu.Unlock()
	_ = qc.CloseWithError(0, reason)
}

// LocalAddr returns the local address the transport is listening on.
func (t *QUICTransport) LocalAddr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Close stops listening and closes every connection.
func (t *QUICTransport) Close() error {
	t.cancel()

	t.mu.Lock()
	listener := t.listener
	conns := t.conns
	t.conns = make(map[*quic.Conn]struct{})
	t.mu.Unlock()

	for qc := range conns {
		_ = qc.CloseWithError(0, "transport closed")
	}

	var err error
	if listener != nil {
		err = listener.Close()
	}
	t.wg.Wait()
	return err
}

// quicStream adapts a QUIC stream to io.ReadWriteCloser. Closing it tears
// down the whole QUIC connection, since each connection carries one link.
type quicStream struct {
	stream    *quic.Stream
	closeConn func()
	once      sync.Once
}

func (s *quicStream) Read(p []byte) (int, error)  { return s.stream.Read(p) }
func (s *quicStream) Write(p []byte) (int, error) { return s.stream.Write(p) }

func (s *quicStream) SetDeadline(t time.Time) error {
	return s.stream.SetDeadline(t)
}

func (s *quicStream) Close() error {
	s.once.Do(func() {
		s.stream.CancelRead(0)
		_ = s.stream.Close()
		s.closeConn()
	})
	return nil
}
