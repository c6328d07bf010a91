package peernotes

import (
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/router"
	"github.com/opd-ai/peernotes/store"
	"github.com/sirupsen/logrus"
)

// OnContactsUpdated sets the callback invoked when the contact set changes.
func (n *Node) OnContactsUpdated(callback func(contacts []peer.Contact)) {
	n.callbackMu.Lock()
	defer n.callbackMu.Unlock()
	n.contactsUpdatedCallback = callback
}

// OnPeerCountChanged sets the callback invoked when a link opens or closes.
func (n *Node) OnPeerCountChanged(callback func(count int)) {
	n.callbackMu.Lock()
	defer n.callbackMu.Unlock()
	n.peerCountChangedCallback = callback
}

// OnFactReceived sets the callback invoked for every newly accepted inbound fact.
func (n *Node) OnFactReceived(callback func(fact store.Fact)) {
	n.callbackMu.Lock()
	defer n.callbackMu.Unlock()
	n.factReceivedCallback = callback
}

// OnSendResult sets the callback invoked with the local outcome of each
// outbound command.
func (n *Node) OnSendResult(callback func(result router.SendResult)) {
	n.callbackMu.Lock()
	defer n.callbackMu.Unlock()
	n.sendResultCallback = callback
}

// nodeEvents forwards router events to the registered callbacks. Callbacks
// run on the reactor goroutine.
type nodeEvents struct {
	n *Node
}

func (e nodeEvents) ContactsUpdated(contacts []peer.Contact) {
	if err := e.n.saveContacts(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ContactsUpdated",
			"error":    err.Error(),
		}).Warn("Contacts not persisted")
	}

	e.n.callbackMu.RLock()
	cb := e.n.contactsUpdatedCallback
	e.n.callbackMu.RUnlock()
	if cb != nil {
		cb(contacts)
	}
}

func (e nodeEvents) PeerCountChanged(count int) {
	e.n.callbackMu.RLock()
	cb := e.n.peerCountChangedCallback
	e.n.callbackMu.RUnlock()
	if cb != nil {
		cb(count)
	}
}

func (e nodeEvents) FactReceived(fact store.Fact) {
	e.n.callbackMu.RLock()
	cb := e.n.factReceivedCallback
	e.n.callbackMu.RUnlock()
	if cb != nil {
		cb(fact)
	}
}

func (e nodeEvents) SendResult(result router.SendResult) {
	e.n.callbackMu.RLock()
	cb := e.n.sendResultCallback
	e.n.callbackMu.RUnlock()
	if cb != nil {
		cb(result)
	}
}
