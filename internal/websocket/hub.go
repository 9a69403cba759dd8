package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain/repositories"
	"github.com/satriahrh/drishti/internal/live"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames

	// Outbound messages buffered per client.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of connected Live clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	stopped chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	connector repositories.LiveConnector
	config    live.Config

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. Every client gets its own Live
// controller connected through connector with the given defaults.
func NewHub(connector repositories.LiveConnector, config live.Config, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		connector:  connector,
		config:     config,
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx ends every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.String("profileID", client.profileID))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.id)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.conn.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its Live controller.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed when the read side ends; senders stop waiting on send.
	done     chan struct{}
	doneOnce sync.Once

	id        string
	profileID string

	audio      *remoteAudio
	controller *live.Controller
	validator  *MessageValidator

	logger *zap.Logger
}

// HandleWebSocketWithAuth upgrades the request for an authenticated profile and
// starts relaying. instructions become the Live session's system instruction.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, profileID, instructions string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBuffer),
		done:      make(chan struct{}),
		id:        uuid.NewString(),
		profileID: profileID,
		validator: NewMessageValidator(),
	}
	client.logger = logger.With(zap.String("clientID", client.id))
	client.audio = newRemoteAudio(client.deliver)

	config := hub.config
	config.SystemInstruction = instructions
	client.controller = live.NewController(client.logger, client.audio, hub.connector, config)

	select {
	case client.hub.register <- client:
	case <-client.hub.stopped:
		conn.Close()
		return nil
	}

	updates, unsubscribe := client.controller.Subscribe()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.forwardUpdates(updates, unsubscribe)
	go client.readPump()

	return nil
}

// deliver queues v as a JSON text message. It blocks while the buffer is full
// and gives up once the client has gone.
func (c *Client) deliver(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return false
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

// readPump pumps messages from the websocket connection to the controller.
func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.controller.Stop()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
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

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the client's queue to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// forwardUpdates relays controller snapshots as state and transcript messages
func (c *Client) forwardUpdates(updates <-chan live.Update, unsubscribe func()) {
	defer unsubscribe()

	lastState := c.controller.State()
	lastErr := ""
	var lastTurns []byte

	if !c.deliver(CreateStateMessage(string(lastState), nil)) {
		return
	}

	for {
		select {
		case <-c.done:
			return
		case update := <-updates:
			errText := ""
			if update.Err != nil {
				errText = update.Err.Error()
			}
			if update.State != lastState || errText != lastErr {
				lastState, lastErr = update.State, errText
				if !c.deliver(CreateStateMessage(string(update.State), update.Err)) {
					return
				}
			}

			turns, _ := json.Marshal(update.Turns)
			if string(turns) != string(lastTurns) {
				lastTurns = turns
				if !c.deliver(CreateTranscriptMessage(update.Turns)) {
					return
				}
			}
		}
	}
}

// processMessage handles a control message from the client
func (c *Client) processMessage(message []byte) {
	msg, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid control message", zap.Error(err))
		c.deliver(CreateErrorMessage("invalid_message", err.Error()))
		return
	}

	switch msg.Type {
	case MessageTypeStart:
		c.audio.beginAttempt()
		go c.handleStart()
	case MessageTypeStop:
		c.controller.Stop()
	case MessageTypeMicDenied:
		c.logger.Info("Client reported microphone denied")
		c.audio.denyMicrophone()
	case MessageTypePing:
		c.deliver(CreatePongMessage(msg.Data))
	}
}

// handleStart runs the controller setup off the read loop, which must keep
// reading for the microphone grant to arrive.
func (c *Client) handleStart() {
	err := c.controller.Start(context.Background())
	switch {
	case err == nil:
		c.logger.Info("Live session started")
	case errors.Is(err, live.ErrSessionActive):
		c.deliver(CreateErrorMessage("session_active", "A live session is already running"))
	case errors.Is(err, live.ErrAborted):
		c.logger.Info("Live session start aborted")
	default:
		c.logger.Warn("Live session failed to start", zap.Error(err))
	}
}

// processBinaryFrame handles a block of float32 microphone samples
func (c *Client) processBinaryFrame(data []byte) {
	samples, err := DecodeFloat32Frame(data)
	if err != nil {
		c.logger.Warn("Invalid audio frame", zap.Int("size", len(data)), zap.Error(err))
		return
	}
	c.audio.pushFrame(samples)
}
