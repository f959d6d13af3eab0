package event

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryBus is a process-local Bus for single-node deployments and tests.
// Multi-process deployments should use RedisBus so every node sees every
// room's events.
type MemoryBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*Subscription
	logger zerolog.Logger
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus(logger zerolog.Logger) *MemoryBus {
	return &MemoryBus{
		subs:   make(map[string]map[int]*Subscription),
		logger: logger.With().Str("component", "event_bus").Logger(),
	}
}

// Publish delivers evt to every current subscriber of the room, dropping
// it for subscribers whose buffer is full.
func (b *MemoryBus) Publish(_ context.Context, roomCode string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[roomCode] {
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn().Str("room_code", roomCode).Str("kind", string(evt.Kind)).Msg("subscriber buffer full, event dropped")
		}
	}
}

// Subscribe registers a new subscriber for the room.
func (b *MemoryBus) Subscribe(_ context.Context, roomCode string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &Subscription{ch: make(chan Event, subscriptionBuffer)}
	sub.cancel = func() { b.unsubscribe(roomCode, id) }

	if b.subs[roomCode] == nil {
		b.subs[roomCode] = make(map[int]*Subscription)
	}
	b.subs[roomCode][id] = sub
	return sub, nil
}

func (b *MemoryBus) unsubscribe(roomCode string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.subs[roomCode]
	sub, ok := room[id]
	if !ok {
		return
	}
	delete(room, id)
	if len(room) == 0 {
		delete(b.subs, roomCode)
	}
	close(sub.ch)
}
