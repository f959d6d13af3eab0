package room

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable backing for rooms, players, frames and guess events.
// Implementations must make Mutate calls on the same room code serializable
// with respect to each other; the Postgres implementation takes a row lock
// on the room, the in-memory one a mutex.
type Store interface {
	// CreateRoom persists a new lobby room together with its host player and
	// the host credential, atomically.
	CreateRoom(ctx context.Context, r *Room, host *Player, hostToken string) error

	// CodeInUse reports whether a room with the given code exists.
	CodeInUse(ctx context.Context, code string) (bool, error)

	// View runs fn inside a read-only transaction on the room.
	// Returns ErrRoomNotFound if the code is unknown.
	View(ctx context.Context, code string, fn func(tx Tx) error) error

	// Mutate runs fn inside a transaction holding exclusive access to the
	// room. A serialization failure is retried once internally; a retry that
	// fails again surfaces ErrConflict. fn returning an error rolls back
	// every write.
	Mutate(ctx context.Context, code string, fn func(tx Tx) error) error

	// TouchPlayer updates a player's last-seen timestamp.
	TouchPlayer(ctx context.Context, code string, playerID uuid.UUID, seenAt time.Time) error

	// RoomsWithStalePlayers lists codes of rooms that currently have at least
	// one player whose last-seen timestamp is before cutoff.
	RoomsWithStalePlayers(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Tx exposes the per-room operations available inside a Store transaction.
type Tx interface {
	Room() (*Room, error)
	UpdateRoom(r *Room) error
	DeleteRoom() error

	Players() ([]Player, error)
	Player(id uuid.UUID) (*Player, error)
	AddPlayer(p *Player) error
	RemovePlayer(id uuid.UUID) error
	// RemoveStalePlayers deletes players last seen before cutoff and returns
	// the removed rows.
	RemoveStalePlayers(cutoff time.Time) ([]Player, error)
	// HostByToken resolves a presented credential to this room's host player.
	// Any mismatch returns ErrUnauthorized.
	HostByToken(token string) (*Player, error)
	AddScore(playerID uuid.UUID, delta int) error
	ResetScores() error

	// ReplaceFrames swaps the room's frozen frame sequence wholesale.
	ReplaceFrames(frames []Frame) error
	FrameCount() (int, error)
	FrameAt(order int) (*Frame, error)

	// HasSolved reports whether a correct guess event already exists for the
	// player against this exact frame. Keying by frame ID keeps solved
	// state from leaking across frame sequences: ReplaceFrames installs
	// frames with fresh IDs, so old events never match the new sequence.
	HasSolved(playerID, frameID uuid.UUID) (bool, error)
	AppendGuess(evt *GuessEvent) error
	// SolvedPlayers derives the solver set for a frame from the guess log.
	SolvedPlayers(frameID uuid.UUID) ([]uuid.UUID, error)
}
