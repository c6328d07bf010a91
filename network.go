package peernotes

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/peernotes/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// bootstrapConcurrency bounds simultaneous dials during Bootstrap.
const bootstrapConcurrency = 8

// newTransport builds the network transport selected by the options.
func (n *Node) newTransport() (transport.Transport, error) {
	opts := transport.Options{
		LinkEncryption: n.options.LinkEncryption,
		ProxyAddr:      n.options.ProxyAddr,
	}

	switch n.options.Transport {
	case TransportQUIC:
		return transport.NewQUICTransport(n.identity, opts)
	case TransportTCP, "":
		return transport.NewTCPTransport(n.identity, opts)
	default:
		return nil, fmt.Errorf("unknown transport %q", n.options.Transport)
	}
}

func (n *Node) ensureTransport() (transport.Transport, error) {
	n.linksMu.Lock()
	defer n.linksMu.Unlock()

	if n.transport != nil {
		return n.transport, nil
	}
	tr, err := n.newTransport()
	if err != nil {
		return nil, err
	}
	tr.OnConnection(func(c transport.Conn) {
		if err := n.AddConn(c); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "OnConnection",
				"remote_addr": c.RemoteAddr().String(),
				"error":       err.Error(),
			}).Debug("Dropping inbound connection")
		}
	})
	n.transport = tr
	return tr, nil
}

// Listen accepts inbound links on options.ListenAddr.
func (n *Node) Listen() error {
	tr, err := n.ensureTransport()
	if err != nil {
		return err
	}
	return tr.Listen(n.options.ListenAddr)
}

// ListenAddr returns the bound listen address, or "" before Listen.
func (n *Node) ListenAddr() string {
	n.linksMu.Lock()
	tr := n.transport
	n.linksMu.Unlock()

	if tr == nil || tr.LocalAddr() == nil {
		return ""
	}
	return tr.LocalAddr().String()
}

// Connect dials addr and hands the authenticated link to the node.
func (n *Node) Connect(ctx context.Context, addr string) error {
	tr, err := n.ensureTransport()
	if err != nil {
		return err
	}

	conn, err := tr.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	return n.AddConn(conn)
}

// Bootstrap dials every configured peer concurrently. Failures are logged
// and counted, never fatal.
func (n *Node) Bootstrap(ctx context.Context) int {
	var (
		eg        errgroup.Group
		connected atomic.Int32
	)
	eg.SetLimit(bootstrapConcurrency)

	for _, addr := range n.options.Peers {
		addr := addr
		eg.Go(func() error {
			if err := n.Connect(ctx, addr); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Bootstrap",
					"addr":     addr,
					"error":    err.Error(),
				}).Warn("Failed to connect to peer")
				return nil
			}
			connected.Add(1)
			return nil
		})
	}
	_ = eg.Wait()

	logrus.WithFields(logrus.Fields{
		"function":  "Bootstrap",
		"attempted": len(n.options.Peers),
		"connected": connected.Load(),
	}).Info("Bootstrap finished")
	return int(connected.Load())
}
