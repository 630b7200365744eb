package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/assistant-session/internal/transport"
)

// connection is one open transport connection with its write queue.
// Its read and write pumps run on their own goroutines and report back to
// the Manager through post.
type connection struct {
	conn     transport.Conn
	gen      uint64
	outgoing chan []byte
	done     chan struct{}
	doneOnce sync.Once
	logger   zerolog.Logger
}

func newConnection(conn transport.Conn, gen uint64, queue int, logger zerolog.Logger) *connection {
	return &connection{
		conn:     conn,
		gen:      gen,
		outgoing: make(chan []byte, queue),
		done:     make(chan struct{}),
		logger: logger.With().
			Uint64("conn", gen).
			Str("remote", conn.RemoteAddr()).
			Logger(),
	}
}

// close stops the write pump and closes the transport, which unblocks the
// read pump.
func (c *connection) close() {
	c.doneOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close")
		}
	})
}

// enqueue queues data without blocking. It returns false when the queue is full.
func (c *connection) enqueue(data []byte) bool {
	select {
	case c.outgoing <- data:
		return true
	default:
		return false
	}
}

// readLoop delivers each inbound message to onMessage until the transport
// fails, then calls onClose once.
func (c *connection) readLoop(ctx context.Context, onMessage func([]byte) bool, onClose func(error)) {
	for {
		data, err := c.conn.Read(ctx)
		if err != nil {
			c.close()
			onClose(err)
			return
		}
		if !onMessage(data) {
			c.close()
			return
		}
	}
}

// writeLoop drains the outgoing queue.
func (c *connection) writeLoop(writeTimeout time.Duration) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outgoing:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Write(ctx, data)
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Msg("failed to write frame")
				c.close()
				return
			}
		}
	}
}
