package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/assistant-session/internal/config"
	"github.com/omochice/assistant-session/internal/server"
	"github.com/omochice/assistant-session/internal/transport"
	"github.com/omochice/assistant-session/internal/transport/gorilla"
)

func startServer(t *testing.T, cfg config.ServerConfig, assistant server.Assistant) *server.Server {
	t.Helper()
	cfg.Address = "127.0.0.1:0"
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = time.Hour
	}

	srv := server.New(cfg, assistant, zerolog.Nop())
	require.NoError(t, srv.Listen())

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop in time")
		}
	})
	return srv
}

func dial(t *testing.T, srv *server.Server, header http.Header) transport.Conn {
	t.Helper()
	conn, err := gorilla.Dialer{Timeout: time.Second}.Dial(context.Background(), "ws://"+srv.Addr()+"/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn transport.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.Write(context.Background(), []byte(raw)))
}

func recv(t *testing.T, conn transport.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := conn.Read(ctx)
	require.NoError(t, err)
	return string(data)
}

// recvUntil reads frames until one equals last and returns all of them.
func recvUntil(t *testing.T, conn transport.Conn, last string) []string {
	t.Helper()
	var frames []string
	for {
		raw := recv(t, conn)
		frames = append(frames, raw)
		if raw == last {
			return frames
		}
	}
}

func TestServer_UserPrompt(t *testing.T) {
	srv := startServer(t, config.ServerConfig{SystemPrompt: "Be brief.", HistoryEnabled: true}, nil)
	conn := dial(t, srv, nil)

	send(t, conn, "01:hello")
	frames := recvUntil(t, conn, "05")

	require.GreaterOrEqual(t, len(frames), 4)
	assert.Equal(t, "09:01", frames[0])
	assert.Equal(t, "04:<p><strong>You said:</strong> hello</p>", frames[1])
	assert.Equal(t, "03", frames[2])
	assert.Equal(t, "05", frames[len(frames)-1])

	// The second prompt sees the first turn in history.
	send(t, conn, "01:again")
	frames = recvUntil(t, conn, "05")
	assert.Contains(t, strings.Join(frames, "\n"), "<em>Turns in history:</em> 1")
}

func TestServer_Commands(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"system prompt", "02:Be terse.", "09:02"},
		{"enable history", "11:", "09:11"},
		{"disable history", "12:", "09:12"},
		{"reset history", "10:", "09:10"},
		{"load system prompt", "15:", "15:You are a helpful assistant."},
		{"ping", "06:ping", "07:pong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := startServer(t, config.ServerConfig{SystemPrompt: "You are a helpful assistant."}, nil)
			conn := dial(t, srv, nil)

			send(t, conn, tt.raw)
			assert.Equal(t, tt.want, recv(t, conn))
		})
	}
}

func TestServer_SystemPromptThenLoad(t *testing.T) {
	srv := startServer(t, config.ServerConfig{SystemPrompt: "default"}, nil)
	conn := dial(t, srv, nil)

	send(t, conn, "02:Answer in French: always.")
	assert.Equal(t, "09:02", recv(t, conn))

	send(t, conn, "15:")
	assert.Equal(t, "15:Answer in French: always.", recv(t, conn))
}

func TestServer_ResetOnlyOnce(t *testing.T) {
	srv := startServer(t, config.ServerConfig{}, nil)
	conn := dial(t, srv, nil)

	send(t, conn, "10:")
	assert.Equal(t, "09:10", recv(t, conn))

	send(t, conn, "10:")
	send(t, conn, "06:ping")
	assert.Equal(t, "07:pong", recv(t, conn), "second reset is not confirmed")
}

func TestServer_CancelWithoutPrompt(t *testing.T) {
	srv := startServer(t, config.ServerConfig{}, nil)
	conn := dial(t, srv, nil)

	send(t, conn, "14:")
	send(t, conn, "06:ping")
	assert.Equal(t, "07:pong", recv(t, conn))
}

func TestServer_CancelInFlight(t *testing.T) {
	release := make(chan struct{})
	slow := server.AssistantFunc(func(ctx context.Context, req server.Request) ([]string, error) {
		select {
		case <-release:
			return []string{"late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	srv := startServer(t, config.ServerConfig{}, slow)
	conn := dial(t, srv, nil)
	defer close(release)

	send(t, conn, "01:take your time")
	assert.Equal(t, "09:01", recv(t, conn))

	send(t, conn, "14:")
	frames := []string{recv(t, conn), recv(t, conn)}
	assert.ElementsMatch(t, []string{"09:14", "05"}, frames)
}

func TestServer_AssistantError(t *testing.T) {
	failing := server.AssistantFunc(func(context.Context, server.Request) ([]string, error) {
		return nil, errors.New("model unavailable")
	})
	srv := startServer(t, config.ServerConfig{}, failing)
	conn := dial(t, srv, nil)

	send(t, conn, "01:hello")
	frames := recvUntil(t, conn, "05")

	require.Len(t, frames, 3)
	assert.Equal(t, "09:01", frames[0])
	assert.True(t, strings.HasPrefix(frames[1], "08:"))
	assert.Contains(t, frames[1], "model unavailable")
}

func TestServer_UnknownEvent(t *testing.T) {
	srv := startServer(t, config.ServerConfig{}, nil)
	conn := dial(t, srv, nil)

	send(t, conn, "13:what")
	got := recv(t, conn)
	assert.True(t, strings.HasPrefix(got, "08:"), got)
	assert.Contains(t, got, "unrecognized websocket event")

	send(t, conn, "x")
	got = recv(t, conn)
	assert.Contains(t, got, "unrecognized websocket message")
}

func TestServer_KeepAlive(t *testing.T) {
	srv := startServer(t, config.ServerConfig{KeepAlive: 50 * time.Millisecond}, nil)
	conn := dial(t, srv, nil)

	assert.Equal(t, "06:ping", recv(t, conn))
}

func TestServer_RequiresToken(t *testing.T) {
	srv := startServer(t, config.ServerConfig{RequiredToken: "secret"}, nil)

	t.Run("rejected without cookie", func(t *testing.T) {
		conn := dial(t, srv, nil)
		got := recv(t, conn)
		assert.Contains(t, got, "BearerToken is not found")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := conn.Read(ctx)
		assert.Error(t, err)
	})

	t.Run("accepted with cookie", func(t *testing.T) {
		header := http.Header{}
		header.Set("Cookie", "BearerToken=secret")
		conn := dial(t, srv, header)

		send(t, conn, "06:ping")
		assert.Equal(t, "07:pong", recv(t, conn))
	})
}

func TestServer_ClientCount(t *testing.T) {
	srv := startServer(t, config.ServerConfig{}, nil)
	conn := dial(t, srv, nil)

	assert.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return srv.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_AddrBeforeListen(t *testing.T) {
	srv := server.New(config.ServerConfig{Address: "127.0.0.1:0"}, nil, zerolog.Nop())
	assert.Empty(t, srv.Addr())
	assert.Error(t, srv.Serve())
}

func TestServer_ClientAfterStopIsClosed(t *testing.T) {
	srv := server.New(config.ServerConfig{KeepAlive: time.Hour}, nil, zerolog.Nop())
	srv.Stop()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, err := gorilla.Dialer{Timeout: time.Second}.Dial(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = conn.Read(ctx)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "want close frame, got %v", err)
	assert.Zero(t, srv.ClientCount())
}
