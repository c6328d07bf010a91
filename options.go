package peernotes

import (
	"path/filepath"
	"time"

	"github.com/opd-ai/peernotes/router"
	"golang.org/x/time/rate"
)

// TransportType selects the network transport.
type TransportType string

const (
	TransportTCP  TransportType = "tcp"
	TransportQUIC TransportType = "quic"
)

// Options contains configuration options for creating a Node.
type Options struct {
	// DataDir holds the identity and contacts files when their paths are relative.
	DataDir      string
	IdentityFile string
	ContactsFile string
	// Passphrase, when set, seals a newly created identity file at rest.
	Passphrase string

	// Label is announced to peers in the hello.
	Label string

	ListenAddr string
	Transport  TransportType
	// LinkEncryption wraps TCP links in Noise XX.
	LinkEncryption bool
	// ProxyAddr routes outbound TCP dials through a SOCKS5 proxy.
	ProxyAddr string

	// Peers are dialed by Bootstrap.
	Peers []string

	// Channel is the default board channel.
	Channel string

	// SendQueueSize bounds each peer's outbound queue in frames.
	SendQueueSize int
	// HandshakeTimeout closes links still unidentified after it. Zero disables.
	HandshakeTimeout time.Duration

	// InboundRate limits frames read per second from each peer. Zero disables.
	InboundRate  float64
	InboundBurst int

	LogLevel string
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		DataDir:          ".peernotes",
		IdentityFile:     "identity.json",
		ContactsFile:     "contacts.json",
		ListenAddr:       ":7400",
		Transport:        TransportTCP,
		Channel:          router.DefaultChannel,
		SendQueueSize:    256,
		HandshakeTimeout: 30 * time.Second,
		InboundRate:      500,
		InboundBurst:     1000,
		LogLevel:         "info",
	}
}

// IdentityPath returns the identity file location.
func (o *Options) IdentityPath() string {
	return o.resolve(o.IdentityFile)
}

// ContactsPath returns the contacts file location, or "" if contacts are
// not persisted.
func (o *Options) ContactsPath() string {
	if o.ContactsFile == "" {
		return ""
	}
	return o.resolve(o.ContactsFile)
}

// inboundLimiter returns a fresh per-link limiter, or nil when unlimited.
func (o *Options) inboundLimiter() *rate.Limiter {
	if o.InboundRate <= 0 {
		return nil
	}
	burst := o.InboundBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.InboundRate), burst)
}

func (o *Options) resolve(name string) string {
	if filepath.IsAbs(name) || o.DataDir == "" {
		return name
	}
	return filepath.Join(o.DataDir, name)
}
