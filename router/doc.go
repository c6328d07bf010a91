// Package router dispatches inbound envelopes by type and builds outbound
// ones.
//
// Inbound, every frame from a peer is decoded and routed:
//
//   - hello binds the connection's signing key to an encryption key and
//     moves the peer to Identified. Any other type arriving before that is
//     dropped.
//   - note is accepted only when addressed to the local key, signed by its
//     sender and decryptable with the sender's contact encryption key.
//   - post, vote and comment are verified, inserted into the store, and
//     re-broadcast to every other identified peer the first time they are
//     seen. Repeats are never re-broadcast.
//   - sync carries the envelope ids a peer already holds; the router pushes
//     back the broadcast envelopes it is missing, one page at a time.
//
// Failures are logged locally and reported to the caller as one of the
// sentinel errors below; nothing is ever sent back to the remote peer.
//
// Outbound, the router builds the unsigned fields, signs them, encrypts
// notes for their recipient and enqueues the frame on one peer (notes) or
// every identified peer (broadcasts).
//
// A Router is meant to be driven from a single goroutine. The directory and
// store it shares are safe for concurrent readers.
package router
