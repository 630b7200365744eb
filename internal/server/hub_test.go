package server_test

import (
	"context"
	"testing"

	"github.com/omochice/assistant-session/internal/server"
)

type mockConn struct {
	remoteAddr string
	closed     bool
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *mockConn) Write(context.Context, []byte) error { return nil }

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string { return m.remoteAddr }

func TestHub_Register(t *testing.T) {
	hub := server.NewHub()
	client := &server.Client{
		ID:       "c1",
		Conn:     &mockConn{remoteAddr: "127.0.0.1:1234"},
		Outgoing: make(chan []byte, 10),
	}

	hub.Register(client)

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func TestHub_Register_MultipleClients(t *testing.T) {
	hub := server.NewHub()

	for i := 0; i < 3; i++ {
		client := &server.Client{
			Conn:     &mockConn{remoteAddr: "127.0.0.1:1234"},
			Outgoing: make(chan []byte, 10),
		}
		hub.Register(client)
	}

	if got := hub.ClientCount(); got != 3 {
		t.Errorf("ClientCount() = %d, want 3", got)
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := server.NewHub()
	client := &server.Client{Conn: &mockConn{}, Outgoing: make(chan []byte, 1)}

	hub.Register(client)
	hub.Unregister(client)

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := server.NewHub()
	roomy := &server.Client{ID: "roomy", Conn: &mockConn{}, Outgoing: make(chan []byte, 1)}
	full := &server.Client{ID: "full", Conn: &mockConn{}, Outgoing: make(chan []byte)}
	hub.Register(roomy)
	hub.Register(full)

	skipped := hub.Broadcast([]byte("06:ping"))

	if len(skipped) != 1 || skipped[0] != full {
		t.Fatalf("Broadcast() skipped = %v, want only the full client", skipped)
	}
	if got := string(<-roomy.Outgoing); got != "06:ping" {
		t.Errorf("roomy received %q, want %q", got, "06:ping")
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := server.NewHub()
	conn := &mockConn{}
	hub.Register(&server.Client{Conn: conn, Outgoing: make(chan []byte, 1)})

	hub.CloseAll()

	if !conn.closed {
		t.Error("CloseAll() did not close the connection")
	}
}
