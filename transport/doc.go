// Package transport carries framed envelope bytes between peers.
//
// A [Conn] is a reliable, ordered stream of frames to one peer whose signing
// key has been authenticated. Frames are prefixed with a 4-byte big-endian
// length and bounded by limits.MaxFrameSize.
//
// Every link starts with the announce preamble, which binds the stream to
// the remote peer's ed25519 key before any envelope flows:
//
//	initiator -> responder: challenge_i
//	responder -> initiator: challenge_r, key_r, sign_r(context || challenge_i)
//	initiator -> responder: key_i, sign_i(context || challenge_r)
//
// Each side verifies the signature over its own fresh challenge, so a
// replayed preamble never authenticates.
//
// Two network transports are provided, both implementing [Transport]:
//
// TCP, optionally dialing out through a SOCKS5 proxy and optionally
// encrypting the link with Noise XX:
//
//	tr, err := transport.NewTCPTransport(id, transport.Options{
//	    LinkEncryption: true,
//	    ProxyAddr:      "127.0.0.1:9050",
//	})
//	tr.OnConnection(func(c transport.Conn) { ... })
//	err = tr.Listen(":7400")
//	conn, err := tr.Dial(ctx, "peer.example:7400")
//
// QUIC, with one bidirectional stream per peer link. TLS certificates are
// self-signed and not verified; peer authentication comes from the announce
// preamble:
//
//	tr, err := transport.NewQUICTransport(id, transport.Options{})
//
// [Pipe] connects two identities in memory for tests.
package transport
