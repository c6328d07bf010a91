package transport

import (
	"net"

	"github.com/opd-ai/peernotes/identity"
)

// Pipe returns the two ends of an authenticated in-memory link between a
// and b. The first end belongs to a and reports b's key; the second belongs
// to b and reports a's.
func Pipe(a, b *identity.Identity, opts Options) (Conn, Conn, error) {
	left, right := net.Pipe()

	type result struct {
		conn Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c, err := Upgrade(right, left.LocalAddr(), b, false, opts)
		done <- result{c, err}
	}()

	ca, err := Upgrade(left, right.LocalAddr(), a, true, opts)
	res := <-done
	if err != nil {
		if res.conn != nil {
			res.conn.Close()
		}
		return nil, nil, err
	}
	if res.err != nil {
		ca.Close()
		return nil, nil, res.err
	}
	return ca, res.conn, nil
}
