package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Send buffer size per client.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client represents a WebSocket client connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string
	groups map[string]bool
	logger *zap.Logger
}

// clientRequest is the only upstream message shape: subscribe to or
// unsubscribe from a ticker's event stream.
type clientRequest struct {
	Action string `json:"action"`
	Ticker string `json:"ticker"`
}

type serverAck struct {
	Type   string `json:"type"`
	Ticker string `json:"ticker,omitempty"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// HandleWS upgrades the connection and starts the read/write pumps.
// validTicker gates subscription requests.
func (h *Hub) HandleWS(validTicker func(string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			hub:    h,
			conn:   conn,
			send:   make(chan []byte, sendBufferSize),
			connID: uuid.New().String(),
			groups: make(map[string]bool),
			logger: h.logger,
		}

		h.register <- client

		go client.writePump()
		go client.readPump(validTicker)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump(validTicker func(string) bool) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error",
					zap.String("connID", c.connID),
					zap.Error(err),
				)
			}
			break
		}
		c.handleMessage(message, validTicker)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed, send close message
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write error",
					zap.String("connID", c.connID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming subscribe/unsubscribe request.
func (c *Client) handleMessage(data []byte, validTicker func(string) bool) {
	var req clientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Debug("bad client message",
			zap.String("connID", c.connID),
			zap.Error(err),
		)
		c.sendAck(serverAck{Type: "error", OK: false, Error: "malformed request"})
		return
	}

	switch req.Action {
	case "subscribe":
		if !validTicker(req.Ticker) {
			c.sendAck(serverAck{Type: "subscribed", Ticker: req.Ticker, OK: false, Error: "unknown ticker"})
			return
		}
		c.hub.joinGroup(c, req.Ticker)
		c.sendAck(serverAck{Type: "subscribed", Ticker: req.Ticker, OK: true})

	case "unsubscribe":
		c.hub.leaveGroup(c, req.Ticker)
		c.sendAck(serverAck{Type: "unsubscribed", Ticker: req.Ticker, OK: true})

	default:
		c.sendAck(serverAck{Type: "error", OK: false, Error: "unknown action"})
	}
}

func (c *Client) sendAck(ack serverAck) {
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
