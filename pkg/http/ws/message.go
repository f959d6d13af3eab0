package ws

import "encoding/json"

// MessageType constants for the room WebSocket protocol.
const (
	// Client -> Server
	TypeHeartbeat = "heartbeat"

	// Server -> Client
	TypeRoomUpdated            = "room_updated"
	TypeMatchStartingRedirect  = "match_starting_redirect"
	TypeMatchStartingCountdown = "match_starting_countdown"
	TypeError                  = "error"
)

// Message wraps all WebSocket payloads with their type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HeartbeatPayload identifies the player whose presence to refresh.
type HeartbeatPayload struct {
	PlayerID string `json:"player_id"`
}

// CountdownPayload carries the remaining pre-roll seconds.
type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

// ErrorPayload reports a protocol-level failure to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
