package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/opd-ai/peernotes/limits"
)

// WriteFrame writes data with a 4-byte big-endian length prefix.
func WriteFrame(w io.Writer, data []byte) error {
	if err := limits.ValidateFrame(data); err != nil {
		return err
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame. Partial reads are retried until
// the whole frame has arrived.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return nil, fmt.Errorf("read frame: %w", limits.ErrMessageEmpty)
	}
	if length > limits.MaxFrameSize {
		return nil, fmt.Errorf("read frame: %w: size %d exceeds limit %d", limits.ErrMessageTooLarge, length, limits.MaxFrameSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
