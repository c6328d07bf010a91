package main

import (
	"context"
	"errors"

	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/store"
)

type sendCall struct {
	target string
	body   string
}

// fakeClient records control surface calls.
type fakeClient struct {
	sends     []sendCall
	posts     []sendCall
	votes     []string
	comments  []sendCall
	contacts  []peer.Contact
	connected []string
	read      map[string]bool
	facts     []store.Fact
	err       error
}

func (f *fakeClient) Send(to, body string) (string, error) {
	f.sends = append(f.sends, sendCall{to, body})
	return "id-send", f.err
}

func (f *fakeClient) Post(title, body string) (string, error) {
	f.posts = append(f.posts, sendCall{title, body})
	return "id-post", f.err
}

func (f *fakeClient) Vote(postID string) (string, error) {
	f.votes = append(f.votes, postID)
	return "id-vote", f.err
}

func (f *fakeClient) Comment(postID, body string) (string, error) {
	f.comments = append(f.comments, sendCall{postID, body})
	return "id-comment", f.err
}

func (f *fakeClient) AddContact(pub, enc, label string) error {
	f.contacts = append(f.contacts, peer.Contact{PublicKeyHex: pub, EncryptionPubKey: enc, Label: label})
	return f.err
}

func (f *fakeClient) MarkRead(id string) bool { return f.read[id] }

func (f *fakeClient) Connect(_ context.Context, addr string) error {
	if addr == "" {
		return errors.New("empty address")
	}
	f.connected = append(f.connected, addr)
	return nil
}

func (f *fakeClient) Inbox() []store.Fact          { return f.facts }
func (f *fakeClient) Sent() []store.Fact           { return nil }
func (f *fakeClient) Board(string) []store.Fact    { return f.facts }
func (f *fakeClient) Comments(string) []store.Fact { return nil }
func (f *fakeClient) VoteCount(string) int         { return 2 }
func (f *fakeClient) Contacts() []peer.Contact     { return f.contacts }
func (f *fakeClient) Peers() []peer.Peer           { return nil }
