// Package noise secures a raw peer link with the Noise Protocol Framework.
//
// Links use the XX pattern (Noise_XX_25519_ChaChaPoly_SHA256): neither side
// needs to know the other's static key in advance, and both static keys are
// exchanged encrypted. Each side uses its X25519 encryption keypair as the
// Noise static key.
//
//	-> e
//	<- e, ee, s, es
//	-> s, se
//
// [Secure] runs the handshake over any io.ReadWriteCloser and returns a
// [SecureConn], an encrypted byte stream that the transport frames exactly
// like a plaintext link:
//
//	sc, err := noise.Secure(rawConn, identity.Encryption, noise.Initiator)
//	if err != nil {
//	    return err
//	}
//	defer sc.Close()
//
// Handshake messages and transport records are each prefixed with a 2-byte
// big-endian length. Records carry at most [MaxPlaintext] bytes; longer
// writes are split across records.
//
// Link encryption is independent of message-level security. Notes are still
// sealed end to end and every envelope is still signed; the Noise layer only
// hides envelope metadata and the announce preamble from on-path observers.
package noise
