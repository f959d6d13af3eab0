package room

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/frameparty/frameparty/internal/event"
	"github.com/frameparty/frameparty/pkg/http/ws"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the frontend host is pinned down
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSHandler serves the per-room event stream. Every viewer of a room
// shares one bus subscription: the first viewer opens it, the last one
// closes it.
type WSHandler struct {
	service *Service
	hub     *ws.Hub
	bus     event.Bus
	logger  zerolog.Logger

	mu    sync.Mutex
	pumps map[string]*event.Subscription
}

// NewWSHandler creates the WebSocket handler for room streams.
func NewWSHandler(service *Service, hub *ws.Hub, bus event.Bus, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		bus:     bus,
		logger:  logger.With().Str("component", "room_ws").Logger(),
		pumps:   make(map[string]*event.Subscription),
	}
}

// HandleRoom handles GET /ws/rooms/{code}. An optional player_id query
// parameter ties the connection's liveness to that player's heartbeat.
func (h *WSHandler) HandleRoom(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)

	// Resolve the snapshot before upgrading so a bad code still gets a
	// proper HTTP error.
	snap, err := h.service.GetRoom(r.Context(), code)
	if err != nil {
		respondDomainError(w, err, h.logger)
		return
	}

	var playerID uuid.UUID
	if raw := r.URL.Query().Get("player_id"); raw != "" {
		playerID, _ = uuid.Parse(raw)
	}

	rawConn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("room_code", code).Msg("websocket upgrade failed")
		return
	}

	conn := ws.NewConnection(rawConn, h.logger)
	go conn.WritePump()

	// Snapshot first, then live events.
	if payload, err := json.Marshal(snap); err == nil {
		conn.Send(ws.Message{Type: ws.TypeRoomUpdated, Payload: payload})
	}

	if h.hub.Register(code, conn) == 1 {
		if err := h.startPump(code); err != nil {
			h.logger.Error().Err(err).Str("room_code", code).Msg("event subscription failed")
			h.hub.Unregister(code, conn)
			return
		}
	}

	h.readLoop(code, playerID, conn)
}

// readLoop consumes client messages until the connection drops, then
// releases the viewer and, if it was the last one, the room's pump.
func (h *WSHandler) readLoop(code string, playerID uuid.UUID, conn *ws.Connection) {
	touch := func() {
		if playerID == uuid.Nil {
			return
		}
		if err := h.service.Heartbeat(context.Background(), code, playerID); err != nil {
			h.logger.Debug().Err(err).Str("room_code", code).Msg("heartbeat failed")
		}
	}

	conn.ReadPump(func(msg ws.Message) error {
		switch msg.Type {
		case ws.TypeHeartbeat:
			var hb ws.HeartbeatPayload
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &hb); err != nil {
					return err
				}
			}
			if hb.PlayerID != "" {
				id, err := uuid.Parse(hb.PlayerID)
				if err != nil {
					return err
				}
				return h.service.Heartbeat(context.Background(), code, id)
			}
			touch()
			return nil
		default:
			payload, _ := json.Marshal(ws.ErrorPayload{Code: "unknown_message_type", Message: "Unknown message type: " + msg.Type})
			return conn.Send(ws.Message{Type: ws.TypeError, Payload: payload})
		}
	}, touch)

	if h.hub.Unregister(code, conn) == 0 {
		h.stopPump(code)
	}
}

// startPump opens the room's bus subscription and fans its events into the
// hub. Caller ensures at most one pump per room.
func (h *WSHandler) startPump(code string) error {
	sub, err := h.bus.Subscribe(context.Background(), code)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.pumps[code] = sub
	h.mu.Unlock()

	go func() {
		for evt := range sub.Events() {
			h.hub.Broadcast(code, ws.Message{Type: string(evt.Kind), Payload: evt.Payload})
		}
	}()
	return nil
}

func (h *WSHandler) stopPump(code string) {
	h.mu.Lock()
	sub := h.pumps[code]
	delete(h.pumps, code)
	h.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Close shuts down every pump and connection, used on server shutdown.
func (h *WSHandler) Close() {
	h.mu.Lock()
	subs := h.pumps
	h.pumps = make(map[string]*event.Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	h.hub.CloseAll()
}
