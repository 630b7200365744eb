package gorilla_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/assistant-session/internal/transport/gorilla"
)

// echoServer accepts connections with gorilla.Accept and echoes text messages
// with a "re:" prefix.
func echoServer(t *testing.T) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := gorilla.Accept(w, r)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			if err := conn.Write(context.Background(), append([]byte("re:"), data...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func TestConn_RoundTrip(t *testing.T) {
	url := echoServer(t)

	conn, err := gorilla.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, []byte("01:hello")))
	data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "re:01:hello", string(data))
}

func TestConn_ReadCancelled(t *testing.T) {
	url := echoServer(t)

	conn, err := gorilla.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = conn.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDialer_Refused(t *testing.T) {
	_, err := gorilla.Dialer{Timeout: 200 * time.Millisecond}.Dial(context.Background(), "ws://127.0.0.1:1/ws", nil)
	assert.Error(t, err)
}

func TestDialer_HandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := gorilla.Dialer{Timeout: time.Second}.Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestConn_RemoteAddr(t *testing.T) {
	url := echoServer(t)

	conn, err := gorilla.Dialer{Timeout: time.Second}.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.NotEmpty(t, conn.RemoteAddr())
}
