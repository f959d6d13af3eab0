package event

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversPerRoom(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	ctx := context.Background()

	subA, err := bus.Subscribe(ctx, "AAAAAA")
	require.NoError(t, err)
	defer subA.Close()
	subB, err := bus.Subscribe(ctx, "BBBBBB")
	require.NoError(t, err)
	defer subB.Close()

	bus.Publish(ctx, "AAAAAA", Event{Kind: KindRoomUpdated, RoomCode: "AAAAAA"})

	select {
	case evt := <-subA.Events():
		assert.Equal(t, KindRoomUpdated, evt.Kind)
		assert.Equal(t, "AAAAAA", evt.RoomCode)
	case <-time.After(time.Second):
		t.Fatal("subscriber A got nothing")
	}

	select {
	case evt := <-subB.Events():
		t.Fatalf("subscriber B must not see room A events, got %+v", evt)
	default:
	}
}

func TestMemoryBusPreservesOrder(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "AAAAAA")
	require.NoError(t, err)
	defer sub.Close()

	kinds := []Kind{KindRoomUpdated, KindMatchStartingRedirect, KindMatchStartingCountdown}
	for _, k := range kinds {
		bus.Publish(ctx, "AAAAAA", Event{Kind: k, RoomCode: "AAAAAA"})
	}

	for _, want := range kinds {
		select {
		case evt := <-sub.Events():
			assert.Equal(t, want, evt.Kind)
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", want)
		}
	}
}

func TestMemoryBusCloseEndsStream(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "AAAAAA")
	require.NoError(t, err)
	sub.Close()

	_, open := <-sub.Events()
	assert.False(t, open, "channel must be closed after Close")

	// Publishing to a room with no subscribers is a no-op.
	bus.Publish(ctx, "AAAAAA", Event{Kind: KindRoomUpdated, RoomCode: "AAAAAA"})

	// A second Close is harmless.
	sub.Close()
}

func TestMemoryBusDropsWhenBufferFull(t *testing.T) {
	bus := NewMemoryBus(zerolog.Nop())
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "AAAAAA")
	require.NoError(t, err)
	defer sub.Close()

	// Publish never blocks, even against a subscriber that is not draining.
	for i := 0; i < subscriptionBuffer*2; i++ {
		bus.Publish(ctx, "AAAAAA", Event{Kind: KindRoomUpdated, RoomCode: "AAAAAA"})
	}

	got := 0
	for {
		select {
		case <-sub.Events():
			got++
		default:
			assert.Equal(t, subscriptionBuffer, got)
			return
		}
	}
}
