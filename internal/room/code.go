package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
)

// codeAlphabet omits 0/O/1/I/L so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

// maxCodeAttempts bounds collision retries; with 31^6 codes the loop
// effectively never runs this long.
const maxCodeAttempts = 20

func randomCode() string {
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(buf)
}

// ValidCode reports whether code has the persisted 6-character format.
func ValidCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		found := false
		for j := 0; j < len(codeAlphabet); j++ {
			if code[i] == codeAlphabet[j] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// createWithUniqueCode generates codes and persists the room under the
// first free one. The pre-check keeps the common case to one insert, but
// the insert itself is the arbiter: two creators can draw the same code
// between check and insert, so ErrCodeTaken from the store triggers a
// fresh draw instead of surfacing to the caller.
func (s *Service) createWithUniqueCode(ctx context.Context, rm *Room, host *Player, token string) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := randomCode()
		inUse, err := s.store.CodeInUse(ctx, code)
		if err != nil {
			return fmt.Errorf("check code: %w", err)
		}
		if inUse {
			continue
		}
		rm.Code = code
		host.RoomCode = code
		if err := s.store.CreateRoom(ctx, rm, host, token); err != nil {
			if errors.Is(err, ErrCodeTaken) {
				continue
			}
			return fmt.Errorf("create room: %w", err)
		}
		return nil
	}
	return fmt.Errorf("could not allocate a unique room code")
}
