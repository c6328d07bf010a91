package peernotes

import (
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/store"
)

// SendNote encrypts body for the identified peer to and sends it. The note
// appears in the sent view under the returned id.
func (n *Node) SendNote(to, body string) (string, error) {
	var (
		id  string
		err error
	)
	if e := n.do(func() { id, err = n.router.SendNote(to, body) }); e != nil {
		return "", e
	}
	return id, err
}

// Post publishes a post on the default channel.
func (n *Node) Post(title, body string) (string, error) {
	var (
		id  string
		err error
	)
	if e := n.do(func() { id, err = n.router.Post(title, body) }); e != nil {
		return "", e
	}
	return id, err
}

// Vote publishes a vote on postID.
func (n *Node) Vote(postID string) (string, error) {
	var (
		id  string
		err error
	)
	if e := n.do(func() { id, err = n.router.Vote(postID) }); e != nil {
		return "", e
	}
	return id, err
}

// Comment publishes a comment on postID.
func (n *Node) Comment(postID, body string) (string, error) {
	var (
		id  string
		err error
	)
	if e := n.do(func() { id, err = n.router.Comment(postID, body) }); e != nil {
		return "", e
	}
	return id, err
}

// Send sends body to a peer public key as a note, or to a channel name as a post.
func (n *Node) Send(toOrChannel, body string) (string, error) {
	var (
		id  string
		err error
	)
	if e := n.do(func() { id, err = n.router.Send(toOrChannel, body) }); e != nil {
		return "", e
	}
	return id, err
}

// AddContact stores a peer's keys so its notes can be opened.
func (n *Node) AddContact(publicKey, encryptionPublicKey, label string) error {
	var err error
	if e := n.do(func() { err = n.router.AddContact(publicKey, encryptionPublicKey, label) }); e != nil {
		return e
	}
	return err
}

// MarkRead flags a fact as read. It reports whether the fact exists.
func (n *Node) MarkRead(factID string) bool {
	var ok bool
	if n.do(func() { ok = n.router.MarkRead(factID) }) != nil {
		return false
	}
	return ok
}

// Query returns stored facts matching filter, newest first.
func (n *Node) Query(filter store.Filter) []store.Fact {
	return n.store.Query(filter)
}

// Inbox returns received notes, newest first.
func (n *Node) Inbox() []store.Fact {
	return n.store.Query(store.Filter{Kind: store.KindNote, Direction: store.DirectionInbox})
}

// Sent returns notes sent by this node, newest first.
func (n *Node) Sent() []store.Fact {
	return n.store.Query(store.Filter{Kind: store.KindNote, Direction: store.DirectionSent})
}

// Board returns the posts on channel, newest first. An empty channel means
// the default one.
func (n *Node) Board(channel string) []store.Fact {
	if channel == "" {
		channel = n.router.Channel()
	}
	return n.store.Query(store.Filter{Kind: store.KindPost, Channel: channel})
}

// Fact returns the fact with the given id.
func (n *Node) Fact(id string) (store.Fact, bool) {
	return n.store.Get(id)
}

// VoteCount returns the number of distinct voters on postID.
func (n *Node) VoteCount(postID string) int {
	return n.store.VoteCount(postID)
}

// Comments returns the comments on postID, oldest first.
func (n *Node) Comments(postID string) []store.Fact {
	return n.store.Comments(postID)
}

// Contacts returns every known contact.
func (n *Node) Contacts() []peer.Contact {
	return n.directory.Contacts()
}

// Peers returns the identified live peers.
func (n *Node) Peers() []peer.Peer {
	return n.directory.Identified("")
}

// PeerCount returns the number of live connections, identified or not.
func (n *Node) PeerCount() int {
	return n.directory.PeerCount()
}
