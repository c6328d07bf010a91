// Package peer tracks who this node is talking to.
//
// The [Directory] holds two related maps keyed by a peer's hex encoded
// signing public key:
//
//   - Peers: transient, one per live connection. A Peer is created when the
//     transport reports a connection and removed when it closes or errors.
//   - Contacts: durable. A Contact is created or refreshed on every completed
//     handshake or manual add, and survives connection loss so the peer can be
//     addressed again once it reconnects.
//
// # Handshake
//
// Each connection runs a small state machine:
//
//	Connected -> HelloSent -> Identified
//	    \            \
//	     +------------+--> Closed
//
// The local side sends its hello as soon as the connection exists
// ([Directory.MarkHelloSent]). Receiving the remote hello
// ([Directory.ApplyHello]) attaches the peer's encryption key and label and
// moves the connection to Identified. Until then no message that needs the
// peer's encryption key may be sent to it or accepted from it.
//
// The Directory is mutated by a single owner (the node's reactor); its lock
// only lets other goroutines read consistent snapshots.
package peer
