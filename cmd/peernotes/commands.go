package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/store"
)

var errUsage = errors.New("usage: send|post|vote|comment|add|read|connect|inbox|sent|board|comments|contacts|peers|quit")

// client is the part of *peernotes.Node the control surface drives.
type client interface {
	Send(toOrChannel, body string) (string, error)
	Post(title, body string) (string, error)
	Vote(postID string) (string, error)
	Comment(postID, body string) (string, error)
	AddContact(publicKey, encryptionPublicKey, label string) error
	MarkRead(factID string) bool
	Connect(ctx context.Context, addr string) error
	Inbox() []store.Fact
	Sent() []store.Fact
	Board(channel string) []store.Fact
	Comments(postID string) []store.Fact
	VoteCount(postID string) int
	Contacts() []peer.Contact
	Peers() []peer.Peer
}

// execute runs one control line. It reports true when the user asked to quit.
func execute(ctx context.Context, c client, line string, w io.Writer) (bool, error) {
	cmd, rest := cut(strings.TrimSpace(line))
	switch cmd {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil

	case "send":
		target, body := cut(rest)
		if target == "" || body == "" {
			return false, fmt.Errorf("usage: send <public-key|channel> <text>")
		}
		return false, printID(w)(c.Send(target, body))
	case "post":
		title, body := cut(rest)
		if title == "" {
			return false, fmt.Errorf("usage: post <title> <text>")
		}
		return false, printID(w)(c.Post(title, body))
	case "vote":
		return false, printID(w)(c.Vote(rest))
	case "comment":
		postID, body := cut(rest)
		return false, printID(w)(c.Comment(postID, body))
	case "add":
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: add <public-key> <encryption-key> [label]")
		}
		label := strings.Join(fields[2:], " ")
		return false, c.AddContact(fields[0], fields[1], label)
	case "read":
		if !c.MarkRead(rest) {
			return false, fmt.Errorf("no fact %q", rest)
		}
		return false, nil
	case "connect":
		return false, c.Connect(ctx, rest)

	case "inbox":
		printFacts(w, c.Inbox())
	case "sent":
		printFacts(w, c.Sent())
	case "board":
		for _, f := range c.Board(rest) {
			fmt.Fprintf(w, "%s [%d votes, %d comments]\n", formatFact(f), c.VoteCount(f.ID), len(c.Comments(f.ID)))
		}
	case "comments":
		printFacts(w, c.Comments(rest))
	case "contacts":
		for _, ct := range c.Contacts() {
			fmt.Fprintf(w, "%s %s %s\n", ct.PublicKeyHex, ct.EncryptionPubKey, ct.Label)
		}
	case "peers":
		for _, p := range c.Peers() {
			fmt.Fprintf(w, "%s %s\n", p.PublicKeyHex, p.Label)
		}
	default:
		return false, errUsage
	}
	return false, nil
}

func cut(s string) (string, string) {
	head, tail, _ := strings.Cut(strings.TrimSpace(s), " ")
	return head, strings.TrimSpace(tail)
}

// printID returns a sink for (id, err) results that prints the id on success.
func printID(w io.Writer) func(string, error) error {
	return func(id string, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintln(w, id)
		return nil
	}
}

func printFacts(w io.Writer, facts []store.Fact) {
	for _, f := range facts {
		fmt.Fprintln(w, formatFact(f))
	}
}

func formatFact(f store.Fact) string {
	ts := time.UnixMilli(f.TS).UTC().Format(time.RFC3339)
	from := crypto.HexPrefix(f.From)
	switch f.Kind {
	case store.KindPost:
		return fmt.Sprintf("%s %s #%s %s: %s", f.ID, ts, f.Channel, from, f.Title)
	case store.KindVote:
		return fmt.Sprintf("%s %s %s voted %s", f.ID, ts, from, f.PostID)
	case store.KindComment:
		return fmt.Sprintf("%s %s %s on %s: %s", f.ID, ts, from, f.PostID, f.Body)
	default:
		unread := ""
		if !f.Read {
			unread = " *"
		}
		return fmt.Sprintf("%s %s %s: %s%s", f.ID, ts, from, f.Body, unread)
	}
}
