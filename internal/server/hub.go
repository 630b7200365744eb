package server

import (
	"sync"

	"github.com/omochice/assistant-session/internal/transport"
)

// Client is one connected session client as seen by the backend.
type Client struct {
	ID       string
	Conn     transport.Conn
	Outgoing chan []byte
}

// Hub tracks the connected clients.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues data for every client. Clients whose queue is full are
// skipped and reported.
func (h *Hub) Broadcast(data []byte) (skipped []*Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Outgoing <- data:
		default:
			skipped = append(skipped, client)
		}
	}
	return skipped
}

// CloseAll closes every registered connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		_ = client.Conn.Close()
	}
}
