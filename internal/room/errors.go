package room

import "errors"

// Typed failures surfaced by room operations. The HTTP layer maps these to
// status codes; the core never converts them to user-facing text.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrRoundNotActive    = errors.New("round not active")
	ErrFrameNotRevealed  = errors.New("frame not revealed yet")
	ErrGuessWindowClosed = errors.New("guess window closed")
	ErrNoFrames          = errors.New("no frames available")
	ErrFramesRequired    = errors.New("frames required before start")
	ErrRoomNotJoinable   = errors.New("room is not accepting players")
	ErrRoomFull          = errors.New("room is full")
	ErrInvalidName       = errors.New("name must not be empty")
	ErrInvalidCode       = errors.New("malformed room code")
	ErrInvalidSettings   = errors.New("invalid room settings")
	ErrEmptyAnswer       = errors.New("answer must not be empty")

	// ErrCodeTaken reports that a freshly generated room code collided with
	// an existing room at insert time. Callers retry with a new code.
	ErrCodeTaken = errors.New("room code already taken")

	// ErrNoEligibleContent is returned by assemblers when the catalog has
	// zero usable candidates for the requested filters.
	ErrNoEligibleContent = errors.New("no eligible catalog content")

	// ErrUnauthorized covers every host-credential mismatch. Deliberately
	// generic so callers cannot distinguish which check failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict marks a mutation that lost a serialization race after the
	// store's internal retry. Safe for the caller to retry.
	ErrConflict = errors.New("concurrent update conflict")
)
