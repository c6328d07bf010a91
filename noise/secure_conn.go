package noise

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/flynn/noise"
	"github.com/opd-ai/peernotes/crypto"
	"github.com/sirupsen/logrus"
)

const (
	// MaxRecordSize is the largest Noise message on the wire.
	MaxRecordSize = noise.MaxMsgLen

	// MaxPlaintext is the largest payload carried by one record.
	MaxPlaintext = MaxRecordSize - 16
)

// ErrRecordTooLarge indicates a length prefix beyond MaxRecordSize.
var ErrRecordTooLarge = errors.New("noise record too large")

// SecureConn is an encrypted byte stream over a completed XX handshake.
// Reads and writes may proceed concurrently with each other.
type SecureConn struct {
	rw   io.ReadWriteCloser
	role HandshakeRole

	wmu  sync.Mutex
	send *noise.CipherState

	rmu     sync.Mutex
	recv    *noise.CipherState
	pending []byte

	remoteStatic []byte
	binding      []byte
}

// Secure runs the XX handshake over rw and returns the encrypted stream.
// rw is not closed on failure.
func Secure(rw io.ReadWriteCloser, static *crypto.KeyPair, role HandshakeRole) (*SecureConn, error) {
	hs, err := NewXXHandshake(static, role)
	if err != nil {
		return nil, err
	}

	if role == Initiator {
		err = runInitiator(rw, hs)
	} else {
		err = runResponder(rw, hs)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Secure",
			"role":     role.String(),
			"error":    err.Error(),
		}).Warn("Noise handshake failed")
		return nil, err
	}

	send, recv, err := hs.GetCipherStates()
	if err != nil {
		return nil, err
	}
	remote, err := hs.GetRemoteStaticKey()
	if err != nil {
		return nil, err
	}
	binding, err := hs.ChannelBinding()
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":      "Secure",
		"role":          role.String(),
		"remote_static": crypto.KeyPrefix(remote),
	}).Debug("Noise link established")

	return &SecureConn{rw: rw, role: role, send: send, recv: recv, remoteStatic: remote, binding: binding}, nil
}

// runInitiator: -> e, <- e ee s es, -> s se
func runInitiator(rw io.ReadWriter, hs *XXHandshake) error {
	msg, _, err := hs.WriteMessage(nil)
	if err != nil {
		return err
	}
	if err := writeRecord(rw, msg); err != nil {
		return err
	}

	msg, err = readRecord(rw)
	if err != nil {
		return err
	}
	if _, _, err := hs.ReadMessage(msg); err != nil {
		return err
	}

	msg, done, err := hs.WriteMessage(nil)
	if err != nil {
		return err
	}
	if !done {
		return ErrHandshakeNotComplete
	}
	return writeRecord(rw, msg)
}

func runResponder(rw io.ReadWriter, hs *XXHandshake) error {
	msg, err := readRecord(rw)
	if err != nil {
		return err
	}
	if _, _, err := hs.ReadMessage(msg); err != nil {
		return err
	}

	msg, _, err = hs.WriteMessage(nil)
	if err != nil {
		return err
	}
	if err := writeRecord(rw, msg); err != nil {
		return err
	}

	msg, err = readRecord(rw)
	if err != nil {
		return err
	}
	_, done, err := hs.ReadMessage(msg)
	if err != nil {
		return err
	}
	if !done {
		return ErrHandshakeNotComplete
	}
	return nil
}

// RemoteStatic returns the peer's Noise static public key.
func (c *SecureConn) RemoteStatic() []byte {
	key := make([]byte, len(c.remoteStatic))
	copy(key, c.remoteStatic)
	return key
}

// ChannelBinding returns the session's handshake hash. Signing it proves
// the signer holds this session and not one relayed through a third party.
func (c *SecureConn) ChannelBinding() []byte {
	binding := make([]byte, len(c.binding))
	copy(binding, c.binding)
	return binding
}

// Write encrypts p into one or more records.
func (c *SecureConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	written := 0
	for written < len(p) {
		end := written + MaxPlaintext
		if end > len(p) {
			end = len(p)
		}

		record, err := c.send.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("noise encrypt: %w", err)
		}
		if err := writeRecord(c.rw, record); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// Read decrypts the next record when no plaintext is buffered.
func (c *SecureConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for len(c.pending) == 0 {
		record, err := readRecord(c.rw)
		if err != nil {
			return 0, err
		}
		plaintext, err := c.recv.Decrypt(nil, nil, record)
		if err != nil {
			return 0, fmt.Errorf("noise decrypt: %w", err)
		}
		c.pending = plaintext
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Close closes the underlying stream.
func (c *SecureConn) Close() error {
	return c.rw.Close()
}

func writeRecord(w io.Writer, record []byte) error {
	if len(record) > MaxRecordSize {
		return ErrRecordTooLarge
	}
	buf := make([]byte, 2+len(record))
	binary.BigEndian.PutUint16(buf, uint16(len(record)))
	copy(buf[2:], record)
	_, err := w.Write(buf)
	return err
}

func readRecord(r io.Reader) ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	record := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, record); err != nil {
		return nil, err
	}
	return record, nil
}
