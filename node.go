package peernotes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/identity"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/router"
	"github.com/opd-ai/peernotes/store"
	"github.com/opd-ai/peernotes/transport"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotRunning indicates a command issued while the reactor is stopped.
	ErrNotRunning = errors.New("node is not running")

	// ErrAlreadyRunning indicates a second call to Run.
	ErrAlreadyRunning = errors.New("node is already running")
)

type eventKind uint8

const (
	eventOpened eventKind = iota
	eventFrame
	eventClosed
	eventHandshakeTimeout
	eventCommand
	eventDrained
)

// event is one unit of work for the reactor.
type event struct {
	kind eventKind
	link *link
	data []byte
	err  error
	cmd  func()
}

// Node owns one identity's peer directory and fact store and runs the
// reactor that mutates them.
type Node struct {
	options  *Options
	identity *identity.Identity
	// ownsIdentity is set when New loaded the identity itself; Close wipes it.
	ownsIdentity bool
	directory    *peer.Directory
	store        *store.Store
	router       *router.Router

	transport transport.Transport

	events   chan event
	started  chan struct{}
	stopped  chan struct{}
	runOnce  sync.Once
	stopOnce sync.Once

	linksMu sync.Mutex
	links   map[*link]struct{}
	wg      sync.WaitGroup

	callbackMu               sync.RWMutex
	contactsUpdatedCallback  func([]peer.Contact)
	peerCountChangedCallback func(int)
	factReceivedCallback     func(store.Fact)
	sendResultCallback       func(router.SendResult)
}

// New creates a Node. When ident is nil the identity is loaded from, or
// created at, options.IdentityPath(). Stored contacts are loaded if present.
func New(options *Options, ident *identity.Identity) (*Node, error) {
	if options == nil {
		options = NewOptions()
	}

	owns := ident == nil
	if owns {
		var err error
		ident, err = identity.LoadOrCreateWithPassphrase(options.IdentityPath(), []byte(options.Passphrase))
		if err != nil {
			return nil, err
		}
	}

	n := &Node{
		options:      options,
		identity:     ident,
		ownsIdentity: owns,
		directory:    peer.NewDirectory(),
		store:        store.New(),
		events:       make(chan event, 64),
		started:      make(chan struct{}),
		stopped:      make(chan struct{}),
		links:        make(map[*link]struct{}),
	}

	if path := options.ContactsPath(); path != "" {
		loaded, err := n.directory.LoadContacts(path)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "New",
				"path":     path,
				"error":    err.Error(),
			}).Warn("Ignoring unreadable contacts file")
		} else if loaded > 0 {
			logrus.WithFields(logrus.Fields{
				"function": "New",
				"contacts": loaded,
			}).Info("Loaded contacts")
		}
	}

	n.router = router.New(ident, n.directory, n.store, router.Config{
		Label:   options.Label,
		Channel: options.Channel,
		Events:  nodeEvents{n},
		// Half the queue leaves room for gossip while a page drains.
		SyncPageSize: max(1, options.SendQueueSize/2),
	})

	logrus.WithFields(logrus.Fields{
		"function":   "New",
		"public_key": crypto.HexPrefix(ident.PublicKeyHex()),
		"channel":    n.router.Channel(),
	}).Info("Node created")
	return n, nil
}

// Run services events until ctx is cancelled or Close is called. It must be
// called exactly once.
func (n *Node) Run(ctx context.Context) error {
	err := ErrAlreadyRunning
	n.runOnce.Do(func() {
		err = n.run(ctx)
	})
	return err
}

func (n *Node) run(ctx context.Context) error {
	close(n.started)
	defer n.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.stopped:
			return nil
		case ev := <-n.events:
			n.handle(ev)
		}
	}
}

func (n *Node) handle(ev event) {
	switch ev.kind {
	case eventOpened:
		n.handleOpened(ev.link)
	case eventFrame:
		if !ev.link.closed() {
			_ = n.router.HandleFrame(ev.link.key, ev.data)
		}
	case eventClosed:
		n.handleClosed(ev.link, ev.err)
	case eventHandshakeTimeout:
		n.handleHandshakeTimeout(ev.link)
	case eventCommand:
		ev.cmd()
	case eventDrained:
		n.handleDrained(ev.link)
	}
}

func (n *Node) handleOpened(l *link) {
	if err := n.router.HandleConnect(l.key, l); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "handleOpened",
			"public_key": crypto.HexPrefix(l.key),
			"error":      err.Error(),
		}).Warn("Failed to start handshake, closing link")
		l.Close()
		return
	}

	if timeout := n.options.HandshakeTimeout; timeout > 0 {
		l.timer = time.AfterFunc(timeout, func() {
			n.post(event{kind: eventHandshakeTimeout, link: l})
		})
	}
}

func (n *Node) handleClosed(l *link, err error) {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.Close()
	n.router.HandleClose(l.key, l)
	n.untrack(l)

	logrus.WithFields(logrus.Fields{
		"function":   "handleClosed",
		"public_key": crypto.HexPrefix(l.key),
		"reason":     fmt.Sprint(err),
	}).Debug("Link closed")
}

func (n *Node) handleDrained(l *link) {
	p, ok := n.directory.Peer(l.key)
	if !ok || p.Conn != peer.Conn(l) {
		return
	}
	_ = n.router.ResumeSync(l.key)
}

func (n *Node) handleHandshakeTimeout(l *link) {
	p, ok := n.directory.Peer(l.key)
	if !ok || p.Conn != peer.Conn(l) || p.Identified() {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":   "handleHandshakeTimeout",
		"public_key": crypto.HexPrefix(l.key),
		"timeout":    n.options.HandshakeTimeout.String(),
	}).Warn("Peer did not complete handshake, closing link")
	l.Close()
}

// post hands ev to the reactor. It reports false once the node has stopped.
func (n *Node) post(ev event) bool {
	select {
	case n.events <- ev:
		return true
	case <-n.stopped:
		return false
	}
}

// do runs fn on the reactor and waits for it to finish.
func (n *Node) do(fn func()) error {
	select {
	case <-n.started:
	case <-n.stopped:
		return ErrNotRunning
	}

	done := make(chan struct{})
	if !n.post(event{kind: eventCommand, cmd: func() {
		defer close(done)
		fn()
	}}) {
		return ErrNotRunning
	}

	select {
	case <-done:
		return nil
	case <-n.stopped:
		return ErrNotRunning
	}
}

// AddConn hands an authenticated connection to the node. The node owns it
// from then on.
func (n *Node) AddConn(conn transport.Conn) error {
	l := newLink(conn, n.options.SendQueueSize, n.options.inboundLimiter())
	if !n.track(l) {
		conn.Close()
		return ErrNotRunning
	}
	if !n.post(event{kind: eventOpened, link: l}) {
		n.untrack(l)
		conn.Close()
		return ErrNotRunning
	}

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		l.writeLoop(n.post)
	}()
	go func() {
		defer n.wg.Done()
		l.readLoop(n.post)
	}()
	return nil
}

func (n *Node) track(l *link) bool {
	n.linksMu.Lock()
	defer n.linksMu.Unlock()
	select {
	case <-n.stopped:
		return false
	default:
	}
	n.links[l] = struct{}{}
	return true
}

func (n *Node) untrack(l *link) {
	n.linksMu.Lock()
	defer n.linksMu.Unlock()
	delete(n.links, l)
}

// Close stops the reactor, closes every link and the transport, and saves
// contacts.
func (n *Node) Close() error {
	n.stopOnce.Do(func() {
		n.linksMu.Lock()
		close(n.stopped)
		n.linksMu.Unlock()
	})

	// Run may never have been called.
	n.runOnce.Do(func() { n.shutdown() })
	n.wg.Wait()
	if n.ownsIdentity {
		n.identity.Wipe()
	}
	return n.saveContacts()
}

// shutdown releases network resources. It runs once, when the reactor exits.
func (n *Node) shutdown() {
	n.stopOnce.Do(func() {
		n.linksMu.Lock()
		close(n.stopped)
		n.linksMu.Unlock()
	})

	n.linksMu.Lock()
	links := make([]*link, 0, len(n.links))
	for l := range n.links {
		links = append(links, l)
	}
	n.links = make(map[*link]struct{})
	tr := n.transport
	n.linksMu.Unlock()

	for _, l := range links {
		if l.timer != nil {
			l.timer.Stop()
		}
		l.Close()
	}

	if tr != nil {
		tr.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "shutdown",
		"links":    len(links),
	}).Info("Node stopped")
}

func (n *Node) saveContacts() error {
	path := n.options.ContactsPath()
	if path == "" {
		return nil
	}
	if err := n.directory.SaveContacts(path); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "saveContacts",
			"path":     path,
			"error":    err.Error(),
		}).Error("Failed to save contacts")
		return err
	}
	return nil
}

// PublicKeyHex returns the node's signing key.
func (n *Node) PublicKeyHex() string {
	return n.identity.PublicKeyHex()
}

// EncryptionPublicKeyHex returns the node's encryption key.
func (n *Node) EncryptionPublicKeyHex() string {
	return n.identity.EncryptionPublicKeyHex()
}

// Options returns the options the node was created with.
func (n *Node) Options() *Options {
	return n.options
}
