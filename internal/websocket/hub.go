package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"casebook/internal/dto"
	"casebook/internal/pkg/logger"
	"casebook/internal/session"
)

// Hub fans session changes out to every socket a browser client has open on this
// instance. Other instances learn about changes through the auth relay and push
// them to their own sockets.
type Hub struct {
	// clientID -> open sockets (one per tab)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run serves register/unregister requests until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ClientID] = append(h.clients[client.ClientID], client)
			h.mu.Unlock()
			h.logger.Debug("Hub", "Socket registered", map[string]interface{}{"client_id": client.ClientID})

		case client := <-h.unregister:
			h.mu.Lock()
			clients := h.clients[client.ClientID]
			for i, c := range clients {
				if c == client {
					h.clients[client.ClientID] = append(clients[:i], clients[i+1:]...)
					close(client.Send)
					break
				}
			}
			if len(h.clients[client.ClientID]) == 0 {
				delete(h.clients, client.ClientID)
			}
			h.mu.Unlock()
		}
	}
}

// StatusOf is the socket payload for a session state.
func StatusOf(state session.State) dto.SessionStatus {
	if state.Session == nil {
		return dto.SessionStatus{}
	}
	return dto.SessionStatus{Authenticated: true, Email: state.Session.User.Email}
}

// Attach forwards every change of store to the store's sockets.
func (h *Hub) Attach(store *session.Store) {
	clientID := store.ClientID()
	store.Subscribe(func(state session.State) {
		h.Send(clientID, StatusOf(state))
	})
}

func (h *Hub) Send(clientID string, status dto.SessionStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	h.deliver(clientID, data)
}

func (h *Hub) deliver(clientID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[clientID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Socket buffer full, dropping message", map[string]interface{}{"client_id": clientID})
		}
	}
}

// Connections reports how many sockets clientID has open on this instance.
func (h *Hub) Connections(clientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[clientID])
}
