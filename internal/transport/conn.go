// Package transport defines the connection abstraction shared by the
// WebSocket implementations.
package transport

import (
	"context"
	"net/http"
)

// Conn abstracts one bidirectional WebSocket connection carrying text frames.
// Read may be called concurrently with Write.
type Conn interface {
	// Read reads a single text message.
	// Returns io.EOF or a close error when the connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single text message.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens client connections.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	return f(ctx, url, header)
}
