package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub manages WebSocket connections and per-ticker subscriptions. Clients
// subscribe to tickers; committed squeeze transitions and decision verdicts
// are fanned out to the subscribers of the relevant ticker.
type Hub struct {
	clients    map[*Client]bool
	groups     map[string]map[*Client]bool // ticker -> clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan *groupMessage
	mu         sync.RWMutex
	logger     *zap.Logger
}

type groupMessage struct {
	group   string
	payload []byte
}

// Event is the envelope every broadcast payload is wrapped in.
type Event struct {
	Type   string `json:"type"`
	Ticker string `json:"ticker"`
	Data   any    `json:"data"`
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		groups:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *groupMessage, 256),
		logger:     logger,
	}
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("connID", client.connID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for group := range client.groups {
					if clients, ok := h.groups[group]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.groups, group)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("connID", client.connID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.groups[msg.group]; ok {
				for client := range clients {
					select {
					case client.send <- msg.payload:
					default:
						// Buffer full, schedule disconnect
						go func(c *Client) {
							h.unregister <- c
						}(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.groups = make(map[string]map[*Client]bool)
}

func (h *Hub) joinGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
	client.groups[group] = true

	h.logger.Debug("client subscribed",
		zap.String("connID", client.connID),
		zap.String("ticker", group),
	)
}

func (h *Hub) leaveGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.groups[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)
}

// ActiveTickers returns the tickers with at least one subscriber.
func (h *Hub) ActiveTickers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var tickers []string
	for group, clients := range h.groups {
		if len(clients) > 0 {
			tickers = append(tickers, group)
		}
	}
	return tickers
}

// Publish encodes and broadcasts an event to the ticker's subscribers.
// Encoding failures are logged and dropped; the caller never blocks.
func (h *Hub) Publish(eventType, ticker string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Ticker: ticker, Data: data})
	if err != nil {
		h.logger.Warn("event encode failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &groupMessage{group: ticker, payload: payload}:
	default:
		h.logger.Warn("broadcast buffer full, event dropped", zap.String("ticker", ticker))
	}
}
