package peernotes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/peernotes/crypto"
	"github.com/opd-ai/peernotes/peer"
	"github.com/opd-ai/peernotes/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrLinkClosed indicates a frame queued on a link that has been closed.
var ErrLinkClosed = errors.New("link closed")

// link is the node side of one authenticated peer connection. It satisfies
// peer.Conn: Enqueue hands a frame to the writer goroutine without blocking.
type link struct {
	conn  transport.Conn
	key   string
	queue chan []byte
	done  chan struct{}

	// refused is set when Enqueue drops a frame and cleared once the
	// writer has emptied the queue again.
	refused atomic.Bool

	// limiter paces inbound frames; nil reads without limit.
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
	timer     *time.Timer
}

var _ peer.Conn = (*link)(nil)

func newLink(conn transport.Conn, queueSize int, limiter *rate.Limiter) *link {
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		conn:    conn,
		key:     conn.RemotePublicKey(),
		queue:   make(chan []byte, queueSize),
		done:    make(chan struct{}),
		limiter: limiter,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue queues frame for writing. A full queue drops the frame.
func (l *link) Enqueue(frame []byte) error {
	select {
	case <-l.done:
		return ErrLinkClosed
	default:
	}

	select {
	case l.queue <- frame:
		return nil
	default:
		l.refused.Store(true)
		return peer.ErrQueueFull
	}
}

// Close stops the writer and closes the connection. Queued frames are discarded.
func (l *link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		l.cancel()
		err = l.conn.Close()
	})
	return err
}

func (l *link) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// writeLoop drains the queue until the link closes or a write fails. When
// the queue empties after having refused a frame it posts eventDrained.
func (l *link) writeLoop(post func(event) bool) {
	for {
		select {
		case <-l.done:
			return
		case frame := <-l.queue:
			if err := l.conn.WriteFrame(frame); err != nil {
				logrus.WithFields(logrus.Fields{
					"function":   "writeLoop",
					"public_key": crypto.HexPrefix(l.key),
					"error":      err.Error(),
				}).Debug("Write failed, closing link")
				l.Close()
				return
			}
			if len(l.queue) == 0 && l.refused.CompareAndSwap(true, false) {
				if !post(event{kind: eventDrained, link: l}) {
					return
				}
			}
		}
	}
}

// readLoop posts every frame to the reactor and reports the close. A peer
// sending faster than the limiter allows is slowed down, not disconnected.
func (l *link) readLoop(post func(event) bool) {
	for {
		if l.limiter != nil {
			if err := l.limiter.Wait(l.ctx); err != nil {
				post(event{kind: eventClosed, link: l, err: err})
				return
			}
		}
		data, err := l.conn.ReadFrame()
		if err != nil {
			post(event{kind: eventClosed, link: l, err: err})
			return
		}
		if !post(event{kind: eventFrame, link: l, data: data}) {
			return
		}
	}
}
