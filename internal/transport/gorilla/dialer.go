package gorilla

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omochice/assistant-session/internal/transport"
)

// Dialer opens gorilla/websocket client connections.
type Dialer struct {
	Timeout time.Duration
}

// Dial implements transport.Dialer.
func (d Dialer) Dial(ctx context.Context, url string, header http.Header) (transport.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.Timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return NewConn(conn), nil
}

// Upgrader accepts server-side connections.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Accept upgrades an HTTP request to a server-side Conn.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}
	return NewConnWithAddr(conn, r.RemoteAddr), nil
}
