package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub tracks WebSocket viewers per room and broadcasts messages to them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Connection]bool // room code -> viewers
	logger zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Connection]bool),
		logger: logger,
	}
}

// Register adds a viewer to a room and returns the viewer count after the
// add. A return of 1 means this viewer is the room's first.
func (h *Hub) Register(roomCode string, conn *Connection) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[*Connection]bool)
	}
	h.rooms[roomCode][conn] = true
	h.logger.Info().Str("room_code", roomCode).Int("viewers", len(h.rooms[roomCode])).Msg("viewer registered")
	return len(h.rooms[roomCode])
}

// Unregister removes a viewer and returns the room's remaining viewer count.
func (h *Hub) Unregister(roomCode string, conn *Connection) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	viewers := h.rooms[roomCode]
	if viewers == nil {
		return 0
	}
	if viewers[conn] {
		delete(viewers, conn)
		conn.Close()
	}
	remaining := len(viewers)
	if remaining == 0 {
		delete(h.rooms, roomCode)
	}
	return remaining
}

// Broadcast sends a message to every viewer of a room. Best effort: a
// viewer with a full send queue just misses the message.
func (h *Hub) Broadcast(roomCode string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.rooms[roomCode] {
		if err := conn.Send(msg); err != nil {
			h.logger.Warn().Err(err).Str("room_code", roomCode).Msg("viewer send failed")
		}
	}
}

// ViewerCount returns the number of connected viewers for a room.
func (h *Hub) ViewerCount(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

// CloseAll shuts down every connection, used on server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for code, viewers := range h.rooms {
		for conn := range viewers {
			conn.Close()
		}
		delete(h.rooms, code)
	}
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 256),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump sends messages from the send queue.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler until the connection
// drops. onPong, if set, fires whenever the client answers a ping.
func (c *Connection) ReadPump(handler func(Message) error, onPong func()) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if onPong != nil {
			onPong()
		}
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err == nil {
			c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		} else {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionClosed = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull    = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
