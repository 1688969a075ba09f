package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain/repositories"
	"github.com/iarcanar99/MBB-Dalamud-sub001/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Overlay clients only send small control messages.
	maxMessageSize = 4 * 1024

	sendBufferSize = 64

	// Inbound control messages per client
	controlRate  = 5
	controlBurst = 10
)

var upgrader = websocket.Upgrader{
	// Overlays run on the same machine as the bridge, usually from file:// pages
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Controller is the part of the dispatcher overlay clients may drive
type Controller interface {
	SetEnabled(enabled bool)
	Enabled() bool
	Retrigger() bool
}

// Hub maintains the set of active overlay clients and broadcasts
// translations to them.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Closed when Run returns.
	done chan struct{}

	controller Controller
	validator  *MessageValidator
	logger     *zap.Logger
}

// Ensure Hub implements the DisplaySink interface
var _ repositories.DisplaySink = (*Hub)(nil)

// NewHub creates a new WebSocket hub. controller may be nil, in which case
// control messages are answered with an error.
func NewHub(controller Controller, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		controller: controller,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx is done every client is
// disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()
			metrics.OverlayClients.Set(float64(count))
			h.logger.Info("Overlay client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.OverlayClients.Set(float64(count))
			h.logger.Info("Overlay client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				if client.conn != nil {
					client.conn.Close()
				}
			}
			h.mu.Unlock()
			metrics.OverlayClients.Set(0)
			return
		}
	}
}

// Show implements repositories.DisplaySink. It never blocks on slow clients.
func (h *Hub) Show(text string) error {
	payload, err := json.Marshal(CreateTranslationMessage(text))
	if err != nil {
		return fmt.Errorf("failed to encode translation: %w", err)
	}
	h.Broadcast(payload)
	return nil
}

// Broadcast queues payload on every client and returns how many accepted it.
// Clients whose buffer is full miss the message.
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, client := range h.clients {
		select {
		case client.send <- payload:
			delivered++
		default:
			h.logger.Warn("Overlay client buffer full, dropping message", zap.String("clientID", id))
		}
	}
	return delivered
}

// SendToClient queues payload for a single client
func (h *Hub) SendToClient(clientID string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return fmt.Errorf("client %s not connected", clientID)
	}
	select {
	case client.send <- payload:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

// ClientCount returns the number of connected overlays
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetActiveClients returns the IDs of connected overlays
func (h *Hub) GetActiveClients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	id         string
	canControl bool
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, id string, canControl bool, logger *zap.Logger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		id:         id,
		canControl: canControl,
		limiter:    rate.NewLimiter(rate.Limit(controlRate), controlBurst),
		logger:     logger.With(zap.String("clientID", id)),
	}
}

// HandleWebSocket upgrades an unauthenticated overlay connection. Such
// clients may send control messages.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	return HandleWebSocketWithAuth(hub, c, "", true, logger)
}

// HandleWebSocketWithAuth upgrades a connection whose token was already
// checked. subject prefixes the generated client ID.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, subject string, canControl bool, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.New().String()
	if subject != "" {
		id = subject + "-" + id[:8]
	}

	client := newClient(hub, conn, id, canControl, logger)
	select {
	case client.hub.register <- client:
	case <-hub.done:
		logger.Warn("WebSocket rejected, hub is not running")
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.hub.done:
			return
		}
	}
}

// processMessage handles a control message from the overlay
func (c *Client) processMessage(message []byte) {
	if !c.limiter.Allow() {
		c.reply(CreateErrorMessage("rate_limited", "Too many messages", ""))
		return
	}

	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid overlay message", zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", "Invalid message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		c.reply(CreatePongMessage(m.Data))

	case *SetTranslationMessage:
		if !c.authorizeControl(string(MessageTypeSetTranslation)) {
			return
		}
		c.hub.controller.SetEnabled(*m.Enabled)
		c.logger.Info("Translation toggled by overlay", zap.Bool("enabled", *m.Enabled))
		c.reply(CreateAckMessage(string(MessageTypeSetTranslation), true, ""))

	case *RetriggerMessage:
		if !c.authorizeControl(string(MessageTypeRetrigger)) {
			return
		}
		ok := c.hub.controller.Retrigger()
		detail := ""
		if !ok {
			detail = "no message received yet"
		}
		c.reply(CreateAckMessage(string(MessageTypeRetrigger), ok, detail))
	}
}

func (c *Client) authorizeControl(action string) bool {
	if !c.canControl {
		c.reply(CreateErrorMessage("forbidden", "Token does not allow "+action, ""))
		return false
	}
	if c.hub.controller == nil {
		c.reply(CreateErrorMessage("unavailable", "Control is not available", ""))
		return false
	}
	return true
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Dropping reply, send buffer full")
	}
}
