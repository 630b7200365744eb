// Package client runs an assistant session: it owns the connection manager
// and the session state machine and serializes all work on one event loop.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/assistant-session/internal/chat"
	"github.com/omochice/assistant-session/internal/transport"
)

// DefaultWatchdogInterval is how often a lost connection is retried.
const DefaultWatchdogInterval = 5 * time.Second

// EndpointPath is the WebSocket path served by the backend.
const EndpointPath = "/ws"

// BearerCookie is the cookie carrying the bearer token during the handshake.
const BearerCookie = "BearerToken"

// ErrClosed is returned when the client loop is not running.
var ErrClosed = errors.New("client is closed")

// Options configures a Client.
type Options struct {
	BaseURL          string
	BearerToken      string
	WatchdogInterval time.Duration
	DialTimeout      time.Duration
	WriteTimeout     time.Duration
	SendQueue        int
	HistoryEnabled   bool
	Greeting         string
}

// Client is the single owner of the connection and session state. UI code
// calls its methods from any goroutine; the work runs on the loop started by
// Run.
type Client struct {
	opts    Options
	manager *Manager
	session *chat.Session
	logger  zerolog.Logger

	events   chan func()
	done     chan struct{}
	doneOnce sync.Once
}

// EndpointURL derives the WebSocket endpoint from the backend's base URL.
// https maps to wss and http maps to ws.
func EndpointURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid base url %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: missing host", base)
	}

	u.Path = EndpointPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// handshakeHeader carries the bearer cookie and an Origin matching the base URL.
func handshakeHeader(base, token string) http.Header {
	header := http.Header{}
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		origin := *u
		origin.Path, origin.RawQuery, origin.Fragment = "", "", ""
		header.Set("Origin", origin.String())
	}
	if token != "" {
		header.Set("Cookie", (&http.Cookie{Name: BearerCookie, Value: token}).String())
	}
	return header
}

// New creates a Client. Nothing happens until Run is called.
func New(opts Options, dialer transport.Dialer, view chat.View, logger zerolog.Logger) (*Client, error) {
	endpoint, err := EndpointURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = DefaultWatchdogInterval
	}

	c := &Client{
		opts:   opts,
		logger: logger.With().Str("component", "client").Logger(),
		events: make(chan func(), 64),
		done:   make(chan struct{}),
	}

	c.manager = NewManager(ManagerConfig{
		URL:          endpoint,
		Header:       handshakeHeader(opts.BaseURL, opts.BearerToken),
		DialTimeout:  opts.DialTimeout,
		WriteTimeout: opts.WriteTimeout,
		SendQueue:    opts.SendQueue,
	}, dialer, sessionHandler{c}, c.post, logger)

	c.session = chat.NewSession(view, c.manager, chat.Options{
		Greeting:       opts.Greeting,
		HistoryEnabled: opts.HistoryEnabled,
		Logger:         logger,
	})

	return c, nil
}

// Run renders the initial state, connects and processes events until ctx is
// cancelled. It returns after the connection is closed and every helper
// goroutine has exited.
func (c *Client) Run(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.session.Start()
	c.manager.Connect()

	ticker := time.NewTicker(c.opts.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case fn := <-c.events:
			fn()
		case <-ticker.C:
			c.manager.Tick()
		}
	}
}

func (c *Client) shutdown() {
	c.manager.Close()
	c.doneOnce.Do(func() { close(c.done) })
	c.manager.Wait()
	c.drain()
	c.logger.Debug().Msg("client stopped")
}

// drain runs work posted before the loop stopped. A dial that completed
// during shutdown is still queued here, and its callback closes the
// connection because the manager is already closed.
func (c *Client) drain() {
	for {
		select {
		case fn := <-c.events:
			fn()
		default:
			return
		}
	}
}

// post hands fn to the loop. It returns false once the loop has stopped.
func (c *Client) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// Do runs fn on the loop and waits for its result.
func (c *Client) Do(ctx context.Context, fn func(*chat.Session) error) error {
	result := make(chan error, 1)
	posted := make(chan bool, 1)
	go func() {
		posted <- c.post(func() { result <- fn(c.session) })
	}()

	select {
	case ok := <-posted:
		if !ok {
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitUserPrompt sends a user prompt.
func (c *Client) SubmitUserPrompt(ctx context.Context, text string) error {
	return c.Do(ctx, func(s *chat.Session) error { return s.SubmitUserPrompt(text) })
}

// SubmitSystemPrompt sends a system prompt.
func (c *Client) SubmitSystemPrompt(ctx context.Context, text string) error {
	return c.Do(ctx, func(s *chat.Session) error { return s.SubmitSystemPrompt(text) })
}

// CancelUserPrompt cancels the prompt in flight.
func (c *Client) CancelUserPrompt(ctx context.Context) error {
	return c.Do(ctx, (*chat.Session).CancelUserPrompt)
}

// ResetHistory resets the backend's request history.
func (c *Client) ResetHistory(ctx context.Context) error {
	return c.Do(ctx, (*chat.Session).ResetHistory)
}

// EnableHistory turns request history on.
func (c *Client) EnableHistory(ctx context.Context) error {
	return c.Do(ctx, (*chat.Session).EnableHistory)
}

// DisableHistory turns request history off.
func (c *Client) DisableHistory(ctx context.Context) error {
	return c.Do(ctx, (*chat.Session).DisableHistory)
}

// LoadSystemPrompt requests the backend's system prompt.
func (c *Client) LoadSystemPrompt(ctx context.Context) error {
	return c.Do(ctx, (*chat.Session).LoadSystemPrompt)
}

// ClearChat resets the chat log to the greeting.
func (c *Client) ClearChat(ctx context.Context) error {
	return c.Do(ctx, func(s *chat.Session) error {
		s.ClearChat()
		return nil
	})
}

// ClearSystemPrompt empties the system prompt text.
func (c *Client) ClearSystemPrompt(ctx context.Context) error {
	return c.Do(ctx, func(s *chat.Session) error {
		s.ClearSystemPrompt()
		return nil
	})
}

// RestoreLog replaces the chat log.
func (c *Client) RestoreLog(ctx context.Context, entries []chat.Entry) error {
	return c.Do(ctx, func(s *chat.Session) error {
		s.RestoreLog(entries)
		return nil
	})
}

// Snapshot returns a copy of the session state.
func (c *Client) Snapshot(ctx context.Context) (chat.State, error) {
	var state chat.State
	err := c.Do(ctx, func(s *chat.Session) error {
		state = s.State()
		return nil
	})
	return state, err
}

// ConnectionState returns the connection manager's state.
func (c *Client) ConnectionState(ctx context.Context) (chat.ConnectionState, error) {
	var state chat.ConnectionState
	err := c.Do(ctx, func(*chat.Session) error {
		state = c.manager.State()
		return nil
	})
	return state, err
}

// sessionHandler forwards connection events to the session.
type sessionHandler struct{ c *Client }

func (h sessionHandler) ConnectionConnecting()      { h.c.session.ConnectionConnecting() }
func (h sessionHandler) ConnectionOpened()          { h.c.session.ConnectionOpened() }
func (h sessionHandler) ConnectionClosed(err error) { h.c.session.ConnectionClosed(err) }
func (h sessionHandler) MessageReceived(raw string) { h.c.session.HandleMessage(raw) }
