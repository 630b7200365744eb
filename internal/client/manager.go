package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/assistant-session/internal/chat"
	"github.com/omochice/assistant-session/internal/transport"
)

var (
	// ErrNotConnected is returned by Send when no connection is open. The
	// frame is dropped.
	ErrNotConnected = errors.New("not connected to server")
	// ErrSendQueueFull is returned by Send when the write queue is full.
	ErrSendQueueFull = errors.New("send queue full")
)

// Handler receives connection events. All methods are called on the
// goroutine that owns the Manager.
type Handler interface {
	ConnectionConnecting()
	ConnectionOpened()
	ConnectionClosed(err error)
	MessageReceived(raw string)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	URL          string
	Header       http.Header
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	SendQueue    int
}

// Manager owns the transport connection and its lifecycle state.
//
// Manager is not safe for concurrent use. Its methods must be called from a
// single owning goroutine; results of blocking I/O done on helper goroutines
// are handed back to that goroutine through post. post must return false
// once the owner stops accepting work.
type Manager struct {
	cfg     ManagerConfig
	dialer  transport.Dialer
	handler Handler
	post    func(func()) bool
	logger  zerolog.Logger

	state      chat.ConnectionState
	generation uint64
	conn       *connection
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(cfg ManagerConfig, dialer transport.Dialer, handler Handler, post func(func()) bool, logger zerolog.Logger) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		post:    post,
		logger:  logger.With().Str("component", "connection").Logger(),
		state:   chat.Disconnected,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State returns the connection state.
func (m *Manager) State() chat.ConnectionState {
	return m.state
}

// Connect starts a connection attempt. It is a no-op unless the state is
// Disconnected, so at most one attempt or connection exists at a time.
func (m *Manager) Connect() {
	if m.state != chat.Disconnected || m.closed {
		return
	}

	m.generation++
	gen := m.generation
	m.state = chat.Connecting
	m.logger.Debug().Uint64("conn", gen).Str("url", m.cfg.URL).Msg("connecting")
	m.handler.ConnectionConnecting()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
		defer cancel()

		conn, err := m.dialer.Dial(ctx, m.cfg.URL, m.cfg.Header)
		if !m.post(func() { m.dialed(gen, conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()
}

// Tick is the watchdog: it reconnects when the state is Disconnected.
func (m *Manager) Tick() {
	if m.state == chat.Disconnected {
		m.Connect()
	}
}

// Send queues raw for delivery. When no connection is open it starts one
// and drops raw with ErrNotConnected.
func (m *Manager) Send(raw string) error {
	if m.state != chat.Open {
		m.Connect()
	}
	if m.state != chat.Open || m.conn == nil {
		m.logger.Warn().Str("frame", raw).Msg("not connected, dropping frame")
		return ErrNotConnected
	}
	if !m.conn.enqueue([]byte(raw)) {
		m.conn.logger.Warn().Msg("send channel full, skipping")
		return ErrSendQueueFull
	}
	return nil
}

// Close tears down the connection and stops further attempts.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.generation++
	m.cancel()
	if m.conn != nil {
		m.conn.close()
		m.conn = nil
	}
	m.state = chat.Disconnected
}

// Wait blocks until every helper goroutine has exited. Call it after Close
// once post has stopped accepting work.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) dialed(gen uint64, conn transport.Conn, err error) {
	if gen != m.generation || m.closed {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		m.state = chat.Disconnected
		m.logger.Warn().Err(err).Msg("connection attempt failed")
		m.handler.ConnectionClosed(err)
		return
	}

	c := newConnection(conn, gen, m.cfg.SendQueue, m.logger)
	m.conn = c
	m.state = chat.Open
	c.logger.Info().Msg("connected")

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		c.readLoop(m.ctx,
			func(data []byte) bool {
				raw := string(data)
				return m.post(func() { m.received(c, raw) })
			},
			func(err error) {
				m.post(func() { m.lost(c, err) })
			},
		)
	}()
	go func() {
		defer m.wg.Done()
		c.writeLoop(m.cfg.WriteTimeout)
	}()

	m.handler.ConnectionOpened()
}

func (m *Manager) received(c *connection, raw string) {
	if m.conn != c {
		return
	}
	m.handler.MessageReceived(raw)
}

func (m *Manager) lost(c *connection, err error) {
	if m.conn != c {
		return
	}
	m.conn = nil
	m.state = chat.Disconnected
	c.logger.Warn().Err(err).Msg("connection lost")
	m.handler.ConnectionClosed(err)
}
