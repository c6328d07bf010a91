package transport

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/peernotes/crypto"
)

const (
	challengeSize = 32

	announceContext = "peernotes announce v2"
)

var (
	// ErrAnnounceFailed indicates the remote key could not be authenticated.
	ErrAnnounceFailed = errors.New("key announce failed")

	// ErrSelfConnection indicates the remote end announced our own key.
	ErrSelfConnection = errors.New("connected to self")
)

type announceMessage struct {
	Challenge string `json:"challenge,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// transcript is everything both ends sign. binding ties the signatures to
// the session underneath: the Noise handshake hash when the link is
// encrypted, empty otherwise.
type transcript struct {
	initiatorChallenge []byte
	responderChallenge []byte
	initiatorKey       []byte
	responderKey       []byte
	binding            []byte
}

// bytes returns the message signed by the end playing role. The role label
// keeps one end's signature from being reflected back as the other's.
func (t *transcript) bytes(role string) []byte {
	var out []byte
	out = append(out, announceContext...)
	out = append(out, 0)
	out = append(out, role...)
	out = append(out, 0)
	for _, part := range [][]byte{t.initiatorChallenge, t.responderChallenge, t.initiatorKey, t.responderKey} {
		out = append(out, part...)
	}
	return append(out, t.binding...)
}

// Announce runs the key announce preamble over stream and returns the
// authenticated remote signing key. binding is the channel binding of the
// secure session stream runs over, or nil on a plain stream.
//
// The initiator sends its challenge and key, the responder answers with its
// own and a signature over the transcript, and the initiator closes with its
// signature over the same transcript.
func Announce(stream io.ReadWriter, signer *crypto.SigningKeyPair, initiator bool, binding []byte) (string, error) {
	var local [challengeSize]byte
	if _, err := rand.Read(local[:]); err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}

	if initiator {
		t := &transcript{initiatorChallenge: local[:], initiatorKey: signer.Public, binding: binding}
		return announceInitiator(stream, signer, t)
	}
	t := &transcript{responderChallenge: local[:], responderKey: signer.Public, binding: binding}
	return announceResponder(stream, signer, t)
}

func announceInitiator(stream io.ReadWriter, signer *crypto.SigningKeyPair, t *transcript) (string, error) {
	hello := announceMessage{
		Challenge: hex.EncodeToString(t.initiatorChallenge),
		PublicKey: signer.PublicKeyHex(),
	}
	if err := writeAnnounce(stream, hello); err != nil {
		return "", err
	}

	reply, err := readAnnounce(stream)
	if err != nil {
		return "", err
	}
	if t.responderChallenge, err = decodeChallenge(reply.Challenge); err != nil {
		return "", err
	}
	if t.responderKey, err = decodeRemoteKey(reply.PublicKey, signer); err != nil {
		return "", err
	}
	if err := verifyAnnounce(reply, t.responderKey, t.bytes("responder")); err != nil {
		return "", err
	}

	final := announceMessage{Signature: hex.EncodeToString(signer.SignBytes(t.bytes("initiator")))}
	if err := writeAnnounce(stream, final); err != nil {
		return "", err
	}
	return reply.PublicKey, nil
}

func announceResponder(stream io.ReadWriter, signer *crypto.SigningKeyPair, t *transcript) (string, error) {
	hello, err := readAnnounce(stream)
	if err != nil {
		return "", err
	}
	if t.initiatorChallenge, err = decodeChallenge(hello.Challenge); err != nil {
		return "", err
	}
	if t.initiatorKey, err = decodeRemoteKey(hello.PublicKey, signer); err != nil {
		return "", err
	}

	reply := announceMessage{
		Challenge: hex.EncodeToString(t.responderChallenge),
		PublicKey: signer.PublicKeyHex(),
		Signature: hex.EncodeToString(signer.SignBytes(t.bytes("responder"))),
	}
	if err := writeAnnounce(stream, reply); err != nil {
		return "", err
	}

	final, err := readAnnounce(stream)
	if err != nil {
		return "", err
	}
	if err := verifyAnnounce(final, t.initiatorKey, t.bytes("initiator")); err != nil {
		return "", err
	}
	return hello.PublicKey, nil
}

func decodeRemoteKey(s string, signer *crypto.SigningKeyPair) ([]byte, error) {
	pub, err := hex.DecodeString(s)
	if err != nil || len(pub) != 32 {
		return nil, fmt.Errorf("%w: invalid public key", ErrAnnounceFailed)
	}
	if s == signer.PublicKeyHex() {
		return nil, ErrSelfConnection
	}
	return pub, nil
}

func verifyAnnounce(msg announceMessage, pub, message []byte) error {
	sig, err := hex.DecodeString(msg.Signature)
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding", ErrAnnounceFailed)
	}
	if !crypto.VerifyBytes(pub, message, sig) {
		return fmt.Errorf("%w: signature does not verify", ErrAnnounceFailed)
	}
	return nil
}

func decodeChallenge(s string) ([]byte, error) {
	challenge, err := hex.DecodeString(s)
	if err != nil || len(challenge) != challengeSize {
		return nil, fmt.Errorf("%w: invalid challenge", ErrAnnounceFailed)
	}
	return challenge, nil
}

func writeAnnounce(w io.Writer, msg announceMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

func readAnnounce(r io.Reader) (announceMessage, error) {
	var msg announceMessage
	data, err := ReadFrame(r)
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrAnnounceFailed, err)
	}
	return msg, nil
}
