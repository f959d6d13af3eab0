package room

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameparty/frameparty/internal/event"
)

// collideStore rejects the first n inserts with ErrCodeTaken, simulating a
// concurrent creator winning the same code between the availability check
// and the insert.
type collideStore struct {
	stubStore
	rejects int
	codes   []string
}

func (s *collideStore) CreateRoom(_ context.Context, rm *Room, _ *Player, _ string) error {
	s.codes = append(s.codes, rm.Code)
	if s.rejects > 0 {
		s.rejects--
		return ErrCodeTaken
	}
	return nil
}

func TestCreateRoomRetriesOnCodeCollision(t *testing.T) {
	store := &collideStore{rejects: 1}
	svc := NewService(store, event.NewMemoryBus(zerolog.Nop()), nil, Config{}, zerolog.Nop())
	t.Cleanup(svc.Close)

	snap, host, token, err := svc.CreateRoom(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, store.codes, 2)

	assert.Equal(t, store.codes[1], snap.Room.Code)
	assert.Equal(t, snap.Room.Code, host.RoomCode)
	assert.NotEmpty(t, token)
	assert.True(t, ValidCode(snap.Room.Code))
}

func TestCreateRoomGivesUpAfterRepeatedCollisions(t *testing.T) {
	store := &collideStore{rejects: maxCodeAttempts}
	svc := NewService(store, event.NewMemoryBus(zerolog.Nop()), nil, Config{}, zerolog.Nop())
	t.Cleanup(svc.Close)

	_, _, _, err := svc.CreateRoom(context.Background(), "alice")
	require.Error(t, err)
	assert.Len(t, store.codes, maxCodeAttempts)
}
