package room

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuessWindowPerDifficulty(t *testing.T) {
	assert.Equal(t, 30*time.Second, DifficultyEasy.GuessWindow())
	assert.Equal(t, 20*time.Second, DifficultyNormal.GuessWindow())
	assert.Equal(t, 10*time.Second, DifficultyHard.GuessWindow())

	// Unknown values fall back to the normal window.
	assert.Equal(t, 20*time.Second, Difficulty("nightmare").GuessWindow())
}

func TestTargetFrameCount(t *testing.T) {
	cases := []struct {
		difficulty Difficulty
		minutes    int
		want       int
	}{
		{DifficultyNormal, 5, 15},
		{DifficultyEasy, 5, 10},
		{DifficultyHard, 5, 30},
		{DifficultyNormal, 1, 3},
		{DifficultyEasy, 1, 2},
		// Never below one frame, even for degenerate durations.
		{DifficultyEasy, 0, 1},
	}
	for _, c := range cases {
		r := &Room{Difficulty: c.difficulty, DurationMinutes: c.minutes}
		assert.Equal(t, c.want, r.TargetFrameCount(), "%s/%dm", c.difficulty, c.minutes)
	}
}

func TestGuessDeadline(t *testing.T) {
	r := &Room{Difficulty: DifficultyHard}

	_, ok := r.GuessDeadline()
	assert.False(t, ok)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.FrameStartedAt = &started
	deadline, ok := r.GuessDeadline()
	assert.True(t, ok)
	assert.Equal(t, started.Add(10*time.Second), deadline)
}

func TestRandomCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := randomCode()
		assert.Len(t, code, codeLength)
		assert.True(t, ValidCode(code), "generated code %q must be valid", code)
	}
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("ABC234"))
	assert.False(t, ValidCode("abc234"), "lowercase is not part of the alphabet")
	assert.False(t, ValidCode("ABC23"), "too short")
	assert.False(t, ValidCode("ABC2345"), "too long")
	assert.False(t, ValidCode("ABC0NE"), "0 is excluded from the alphabet")
	assert.False(t, ValidCode(""))
}

func TestCodeAlphabetOmitsAmbiguousCharacters(t *testing.T) {
	for _, c := range "0O1IL" {
		assert.False(t, strings.ContainsRune(codeAlphabet, c), "alphabet must not contain %q", c)
	}
}
