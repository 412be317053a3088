package sse

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tixswap/tixswap/internal/domain/notification"
)

// DefaultBuffer is the per-client queue length used when none is configured.
const DefaultBuffer = 16

// Client is one open event stream of a user.
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Messages chan *notification.Notification
}

// Hub fans stored notifications out to the recipient's open streams.
// A client whose queue is full misses the message; the inbox still has it.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	buffer  int
	logger  zerolog.Logger
}

func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		buffer:  buffer,
		logger:  logger.With().Str("component", "sse").Logger(),
	}
}

// Register opens a stream for userID.
func (h *Hub) Register(userID uuid.UUID) *Client {
	c := &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Messages: make(chan *notification.Notification, h.buffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	return c
}

// Unregister closes the client's queue.
func (h *Hub) Unregister(clientID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		close(c.Messages)
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements notification.Publisher.
func (h *Hub) Publish(_ context.Context, n *notification.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID != n.RecipientID {
			continue
		}
		if !trySend(c, n) {
			h.logger.Warn().
				Str("client_id", c.ID.String()).
				Str("notification_id", n.ID.String()).
				Msg("stream queue full, dropping message")
		}
	}
	return nil
}

// Stop closes every open stream.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.Messages)
		delete(h.clients, id)
	}
}

func trySend(c *Client, n *notification.Notification) bool {
	select {
	case c.Messages <- n:
		return true
	default:
		return false
	}
}
