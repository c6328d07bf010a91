package transport

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/identity"
	"github.com/opd-ai/peernotes/noise"
	"github.com/sirupsen/logrus"
)

// DefaultHandshakeTimeout bounds link setup (Noise plus announce).
const DefaultHandshakeTimeout = 10 * time.Second

// Options configures link setup and the network transports.
type Options struct {
	// LinkEncryption wraps each link in a Noise XX session before the
	// announce preamble and binds the announce to that session. Without it
	// a party on the path can relay the announce and inject frames later.
	LinkEncryption bool

	// ProxyAddr routes outbound TCP dials through a SOCKS5 proxy.
	ProxyAddr     string
	ProxyUsername string
	ProxyPassword string

	// HandshakeTimeout bounds link setup. Zero uses DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

func (o Options) handshakeTimeout() time.Duration {
	if o.HandshakeTimeout <= 0 {
		return DefaultHandshakeTimeout
	}
	return o.HandshakeTimeout
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Upgrade turns a raw stream into an authenticated Conn. The initiator is
// the side that opened the stream. raw is closed if the upgrade fails.
func Upgrade(raw io.ReadWriteCloser, remoteAddr net.Addr, id *identity.Identity, initiator bool, opts Options) (Conn, error) {
	if d, ok := raw.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(opts.handshakeTimeout()))
		defer d.SetDeadline(time.Time{})
	}

	var stream io.ReadWriter = raw
	var binding []byte
	if opts.LinkEncryption {
		role := noise.Responder
		if initiator {
			role = noise.Initiator
		}
		sc, err := noise.Secure(raw, id.Encryption, role)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("link encryption: %w", err)
		}
		stream = sc
		binding = sc.ChannelBinding()
	}

	remoteKey, err := Announce(stream, id.Signing, initiator, binding)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Upgrade",
			"remote_addr": addrString(remoteAddr),
			"initiator":   initiator,
			"error":       err.Error(),
		}).Warn("Key announce failed")
		raw.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":        "Upgrade",
		"remote_addr":     addrString(remoteAddr),
		"remote_key":      crypto.HexPrefix(remoteKey),
		"link_encryption": opts.LinkEncryption,
	}).Debug("Link authenticated")

	return &framedConn{
		raw:        raw,
		stream:     stream,
		remoteKey:  remoteKey,
		remoteAddr: remoteAddr,
	}, nil
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
