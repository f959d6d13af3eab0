// Package memory provides an in-process implementation of room.Store.
// A single mutex serializes transactions, which trivially satisfies the
// per-room serializability contract. Used by tests and single-node setups
// that don't want a Postgres dependency.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frameparty/frameparty/internal/room"
)

type roomState struct {
	room    room.Room
	players []room.Player
	tokens  map[string]uuid.UUID // host token -> player id
	frames  []room.Frame
	guesses []room.GuessEvent
}

// Store keeps all room state in process memory.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*roomState
}

var _ room.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{rooms: make(map[string]*roomState)}
}

func (s *Store) CreateRoom(_ context.Context, r *room.Room, host *room.Player, hostToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[r.Code]; exists {
		return room.ErrCodeTaken
	}
	s.rooms[r.Code] = &roomState{
		room:    *r,
		players: []room.Player{*host},
		tokens:  map[string]uuid.UUID{hostToken: host.ID},
	}
	return nil
}

func (s *Store) CodeInUse(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.rooms[code]
	return ok, nil
}

func (s *Store) View(ctx context.Context, code string, fn func(tx room.Tx) error) error {
	return s.Mutate(ctx, code, fn)
}

func (s *Store) Mutate(_ context.Context, code string, fn func(tx room.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[code]
	if !ok {
		return room.ErrRoomNotFound
	}

	// Run against a copy so fn's writes roll back on error.
	work := st.clone()
	if err := fn(&memTx{store: s, code: code, st: work}); err != nil {
		return err
	}
	if work.deleted {
		delete(s.rooms, code)
		return nil
	}
	s.rooms[code] = &work.roomState
	return nil
}

func (s *Store) TouchPlayer(_ context.Context, code string, playerID uuid.UUID, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[code]
	if !ok {
		return room.ErrRoomNotFound
	}
	for i := range st.players {
		if st.players[i].ID == playerID {
			st.players[i].LastSeenAt = seenAt
			return nil
		}
	}
	return room.ErrPlayerNotFound
}

func (s *Store) RoomsWithStalePlayers(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var codes []string
	for code, st := range s.rooms {
		for _, p := range st.players {
			if p.LastSeenAt.Before(cutoff) {
				codes = append(codes, code)
				break
			}
		}
	}
	return codes, nil
}

type txState struct {
	roomState
	deleted bool
}

func (st *roomState) clone() *txState {
	out := &txState{}
	out.room = st.room
	out.players = append([]room.Player(nil), st.players...)
	out.frames = append([]room.Frame(nil), st.frames...)
	out.guesses = append([]room.GuessEvent(nil), st.guesses...)
	out.tokens = make(map[string]uuid.UUID, len(st.tokens))
	for k, v := range st.tokens {
		out.tokens[k] = v
	}
	return out
}

type memTx struct {
	store *Store
	code  string
	st    *txState
}

var _ room.Tx = (*memTx)(nil)

func (t *memTx) Room() (*room.Room, error) {
	r := t.st.room
	return &r, nil
}

func (t *memTx) UpdateRoom(r *room.Room) error {
	t.st.room = *r
	return nil
}

func (t *memTx) DeleteRoom() error {
	t.st.deleted = true
	return nil
}

func (t *memTx) Players() ([]room.Player, error) {
	return append([]room.Player(nil), t.st.players...), nil
}

func (t *memTx) Player(id uuid.UUID) (*room.Player, error) {
	for _, p := range t.st.players {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, room.ErrPlayerNotFound
}

func (t *memTx) AddPlayer(p *room.Player) error {
	t.st.players = append(t.st.players, *p)
	return nil
}

func (t *memTx) RemovePlayer(id uuid.UUID) error {
	for i, p := range t.st.players {
		if p.ID == id {
			t.st.players = append(t.st.players[:i], t.st.players[i+1:]...)
			return nil
		}
	}
	return room.ErrPlayerNotFound
}

func (t *memTx) RemoveStalePlayers(cutoff time.Time) ([]room.Player, error) {
	var removed []room.Player
	kept := t.st.players[:0]
	for _, p := range t.st.players {
		if p.LastSeenAt.Before(cutoff) {
			removed = append(removed, p)
		} else {
			kept = append(kept, p)
		}
	}
	t.st.players = kept
	return removed, nil
}

func (t *memTx) HostByToken(token string) (*room.Player, error) {
	id, ok := t.st.tokens[token]
	if !ok {
		return nil, room.ErrUnauthorized
	}
	for _, p := range t.st.players {
		if p.ID == id && p.Role == room.RoleHost {
			out := p
			return &out, nil
		}
	}
	return nil, room.ErrUnauthorized
}

func (t *memTx) AddScore(playerID uuid.UUID, delta int) error {
	for i := range t.st.players {
		if t.st.players[i].ID == playerID {
			t.st.players[i].Score += delta
			return nil
		}
	}
	return room.ErrPlayerNotFound
}

func (t *memTx) ResetScores() error {
	for i := range t.st.players {
		t.st.players[i].Score = 0
	}
	return nil
}

func (t *memTx) ReplaceFrames(frames []room.Frame) error {
	t.st.frames = append([]room.Frame(nil), frames...)
	return nil
}

func (t *memTx) FrameCount() (int, error) {
	return len(t.st.frames), nil
}

func (t *memTx) FrameAt(order int) (*room.Frame, error) {
	for _, f := range t.st.frames {
		if f.Order == order {
			out := f
			return &out, nil
		}
	}
	return nil, room.ErrNoFrames
}

func (t *memTx) HasSolved(playerID, frameID uuid.UUID) (bool, error) {
	for _, g := range t.st.guesses {
		if g.PlayerID == playerID && g.FrameID == frameID && g.IsCorrect {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) AppendGuess(evt *room.GuessEvent) error {
	t.st.guesses = append(t.st.guesses, *evt)
	return nil
}

func (t *memTx) SolvedPlayers(frameID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, g := range t.st.guesses {
		if g.FrameID == frameID && g.IsCorrect && !seen[g.PlayerID] {
			seen[g.PlayerID] = true
			out = append(out, g.PlayerID)
		}
	}
	return out, nil
}

// GuessEvents returns a copy of a room's guess log. Test helper; the
// service itself only reads derived facts through Tx.
func (s *Store) GuessEvents(code string) []room.GuessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[code]
	if !ok {
		return nil
	}
	return append([]room.GuessEvent(nil), st.guesses...)
}
