package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/assistant-session/internal/transport/ws"
)

// newServer starts a gobwas server-side endpoint running handle on each connection.
func newServer(t *testing.T, handle func(t *testing.T, r *http.Request, read func() ([]byte, error), write func(string) error)) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := gws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer conn.Close()

		read := func() ([]byte, error) {
			data, _, err := wsutil.ReadClientData(conn)
			return data, err
		}
		write := func(s string) error {
			return wsutil.WriteServerText(conn, []byte(s))
		}
		handle(t, r, read, write)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func TestConn_Read(t *testing.T) {
	url := newServer(t, func(t *testing.T, _ *http.Request, read func() ([]byte, error), write func(string) error) {
		_ = write("04:Hello there")
		_, _ = read()
	})

	conn, err := ws.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "04:Hello there", string(data))
}

func TestConn_Write(t *testing.T) {
	received := make(chan string, 1)
	url := newServer(t, func(t *testing.T, _ *http.Request, read func() ([]byte, error), _ func(string) error) {
		data, err := read()
		if err == nil {
			received <- string(data)
		}
	})

	conn, err := ws.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Write(context.Background(), []byte("07:pong")))

	select {
	case got := <-received:
		assert.Equal(t, "07:pong", got)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the message")
	}
}

func TestDialer_SendsHeader(t *testing.T) {
	cookies := make(chan string, 1)
	inner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("BearerToken"); err == nil {
			cookies <- c.Value
		}
		conn, _, _, err := gws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = wsutil.ReadClientData(conn)
	}))
	defer inner.Close()

	header := http.Header{}
	header.Set("Cookie", "BearerToken=secret")
	conn, err := ws.Dialer{Timeout: time.Second}.Dial(context.Background(), "ws"+strings.TrimPrefix(inner.URL, "http"), header)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case got := <-cookies:
		assert.Equal(t, "secret", got)
	case <-time.After(2 * time.Second):
		t.Fatal("cookie not received")
	}
}

func TestConn_ReadCancelled(t *testing.T) {
	url := newServer(t, func(t *testing.T, _ *http.Request, read func() ([]byte, error), _ func(string) error) {
		_, _ = read()
	})

	conn, err := ws.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = conn.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConn_ReadAfterServerClose(t *testing.T) {
	url := newServer(t, func(t *testing.T, _ *http.Request, _ func() ([]byte, error), _ func(string) error) {})

	conn, err := ws.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = conn.Read(ctx)
	assert.Error(t, err)
}

func TestDialer_Refused(t *testing.T) {
	_, err := ws.Dialer{Timeout: 200 * time.Millisecond}.Dial(context.Background(), "ws://127.0.0.1:1/ws", nil)
	assert.Error(t, err)
}

func TestConn_RemoteAddr(t *testing.T) {
	url := newServer(t, func(t *testing.T, _ *http.Request, read func() ([]byte, error), _ func(string) error) {
		_, _ = read()
	})

	conn, err := ws.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.NotEmpty(t, conn.RemoteAddr())
}
