// Package server implements a stub assistant backend that speaks the session
// protocol over WebSocket. It is used for local development and tests.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/assistant-session/internal/config"
	"github.com/omochice/assistant-session/internal/transport/gorilla"
	"github.com/omochice/assistant-session/pkg/protocol"
)

// Server accepts WebSocket connections on /ws and answers protocol frames.
type Server struct {
	cfg       config.ServerConfig
	assistant Assistant
	hub       *Hub
	logger    zerolog.Logger

	listener net.Listener
	server   *http.Server
	mu       sync.RWMutex
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Server. A nil assistant uses EchoAssistant.
func New(cfg config.ServerConfig, assistant Assistant, logger zerolog.Logger) *Server {
	if assistant == nil {
		assistant = EchoAssistant{}
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	return &Server{
		cfg:       cfg,
		assistant: assistant,
		hub:       NewHub(),
		logger:    logger.With().Str("component", "server").Logger(),
		quit:      make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Unlock()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("websocket server started")
	return nil
}

// Handler returns the HTTP handler that serves /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Serve serves connections until Stop is called. Listen must be called first.
func (s *Server) Serve() error {
	s.mu.RLock()
	listener, server := s.listener, s.server
	s.mu.RUnlock()
	if listener == nil {
		return errors.New("server is not listening")
	}

	s.wg.Add(1)
	go s.keepAlive()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop stops the server and closes every client connection.
func (s *Server) Stop() {
	s.mu.Lock()
	s.quitOnce.Do(func() { close(s.quit) })
	server := s.server
	s.mu.Unlock()
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = server.Shutdown(ctx)
		cancel()
	}

	s.hub.CloseAll()
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// keepAlive pings every client on the configured period.
func (s *Server) keepAlive() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()

	ping := []byte(protocol.Encode(protocol.EventPing, "ping"))
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			for _, client := range s.hub.Broadcast(ping) {
				s.logger.Warn().Str("client", client.ID).Msg("client channel full, skipping")
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := gorilla.Accept(w, r)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, 32),
	}
	logger := s.logger.With().Str("client", client.ID).Str("remote", conn.RemoteAddr()).Logger()

	if s.cfg.RequiredToken != "" {
		if cookie, err := r.Cookie("BearerToken"); err != nil || cookie.Value != s.cfg.RequiredToken {
			logger.Warn().Msg("rejecting client without bearer token")
			msg := protocol.Encode(protocol.EventDiagnostic, diagnosticHTML("BearerToken is not found in cookies content"))
			_ = conn.Write(r.Context(), []byte(msg))
			_ = conn.Close()
			return
		}
	}

	// Upgraded connections are hijacked, so http.Server.Shutdown does not
	// wait for them. Registration is serialized with Stop under s.mu.
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		logger.Debug().Msg("server stopping, closing new client")
		_ = conn.Close()
		return
	default:
	}
	s.hub.Register(client)
	s.wg.Add(2)
	s.mu.Unlock()
	logger.Info().Msg("client connected")

	p := newPeer(client, s.assistant, s.cfg, s.quit, logger)

	go s.handleClient(p)
	go s.writeLoop(p)
}

func (s *Server) handleClient(p *peer) {
	defer s.wg.Done()
	defer func() {
		p.stop()
		s.hub.Unregister(p.client)
		_ = p.client.Conn.Close()
		p.logger.Info().Msg("client disconnected")
	}()

	for {
		data, err := p.client.Conn.Read(context.Background())
		if err != nil {
			if gorilla.IsUnexpectedClose(err) {
				p.logger.Warn().Err(err).Msg("websocket error")
			}
			return
		}
		p.handle(string(data))
	}
}

func (s *Server) writeLoop(p *peer) {
	defer s.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case data := <-p.client.Outgoing:
			if err := p.client.Conn.Write(context.Background(), data); err != nil {
				p.logger.Warn().Err(err).Msg("failed to send message to client")
				return
			}
		}
	}
}
