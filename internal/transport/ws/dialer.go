package ws

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gobwas/ws"

	"github.com/omochice/assistant-session/internal/transport"
)

// Dialer opens gobwas client connections.
type Dialer struct {
	Timeout time.Duration
}

// Dial implements transport.Dialer.
func (d Dialer) Dial(ctx context.Context, url string, header http.Header) (transport.Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}
	if len(header) > 0 {
		dialer.Header = ws.HandshakeHeaderHTTP(header)
	}

	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	var r io.Reader = conn
	if br != nil {
		// The server may have sent frames right after the handshake.
		r = io.MultiReader(br, conn)
	}
	return NewConn(conn, r), nil
}
