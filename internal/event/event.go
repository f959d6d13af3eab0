// Package event fans room notifications out to subscribers, keyed by room
// code. Delivery is best-effort: publishing never blocks a room mutation,
// and a subscriber that stops draining is dropped rather than waited on.
package event

import (
	"context"
	"encoding/json"
)

// Kind identifies the event type carried by an Event.
type Kind string

const (
	// KindRoomUpdated carries a full room snapshot.
	KindRoomUpdated Kind = "room_updated"
	// KindMatchStartingRedirect tells viewers to switch to the match view.
	KindMatchStartingRedirect Kind = "match_starting_redirect"
	// KindMatchStartingCountdown carries the remaining pre-roll seconds,
	// emitted once per second down to zero.
	KindMatchStartingCountdown Kind = "match_starting_countdown"
)

// Event is one notification for a room.
type Event struct {
	Kind     Kind            `json:"kind"`
	RoomCode string          `json:"room_code"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// CountdownPayload is the payload of KindMatchStartingCountdown.
type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

// Bus publishes room events and hands out live subscriptions.
type Bus interface {
	// Publish delivers evt to current subscribers of the room. Fire and
	// forget: errors are logged by implementations, never returned to the
	// mutation path.
	Publish(ctx context.Context, roomCode string, evt Event)

	// Subscribe returns a live, ordered stream of events for the room,
	// open until Close is called on the subscription.
	Subscribe(ctx context.Context, roomCode string) (*Subscription, error)
}

// subscriptionBuffer is the per-subscriber queue depth; events beyond it
// are dropped for that subscriber.
const subscriptionBuffer = 32

// Subscription is one subscriber's event stream.
type Subscription struct {
	ch     chan Event
	cancel func()
}

// Events returns the receive channel. It is closed when the subscription
// ends.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscriber.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
