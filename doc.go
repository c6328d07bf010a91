// Package peernotes is a serverless peer-to-peer notes and message board.
//
// Every peer holds a long-lived ed25519 signing identity and an X25519
// encryption keypair. Peers exchange signed envelopes over authenticated
// links: private notes are encrypted end to end for one recipient, while
// board posts, votes and comments are signed, stored by every peer and
// gossiped across the mesh until all connected peers converge.
//
// # Getting Started
//
// Create a Node from options, register callbacks, then run its reactor:
//
//	options := peernotes.NewOptions()
//	options.Label = "alice"
//	options.ListenAddr = ":7400"
//
//	node, err := peernotes.New(options, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	node.OnFactReceived(func(f store.Fact) {
//	    fmt.Printf("%s from %s: %s\n", f.Kind, f.From[:8], f.Body)
//	})
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go node.Run(ctx)
//
//	if err := node.Listen(); err != nil {
//	    log.Fatal(err)
//	}
//	node.Bootstrap(ctx)
//
//	id, err := node.Post("hello", "first post on the board")
//
// # Concurrency
//
// A Node runs exactly one reactor goroutine (Run). Connection readers and
// the command methods only post events to it; every mutation of the peer
// directory and the fact store happens on the reactor, one event at a time,
// so verifying, decrypting and storing one envelope completes before the
// next is looked at. Query methods read the store directly and are safe to
// call from any goroutine.
//
// Each peer link has a bounded outbound queue drained by its own writer
// goroutine. When a queue is full the frame is dropped for that peer only;
// the reactor never blocks on a slow peer.
//
// # Handshake
//
// A new link is not trusted with notes until the remote peer's hello has
// been received. Links that never complete the handshake are closed after
// Options.HandshakeTimeout.
package peernotes
