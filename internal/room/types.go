package room

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusLobby      Status = "lobby"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Difficulty controls how long each frame's guess window stays open.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// GuessWindow returns the per-frame guess window for the difficulty.
func (d Difficulty) GuessWindow() time.Duration {
	switch d {
	case DifficultyEasy:
		return 30 * time.Second
	case DifficultyHard:
		return 10 * time.Second
	default:
		return 20 * time.Second
	}
}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Role distinguishes the room owner from regular participants.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Room is one playable session, looked up by its short code.
type Room struct {
	Code              string     `json:"code"`
	Status            Status     `json:"status"`
	Difficulty        Difficulty `json:"difficulty"`
	DurationMinutes   int        `json:"duration_minutes"`
	CurrentFrameIndex int        `json:"current_frame_index"`
	RoundStartedAt    *time.Time `json:"round_started_at,omitempty"`
	FrameStartedAt    *time.Time `json:"frame_started_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TargetFrameCount derives how many frames the configured duration allows,
// never less than one.
func (r *Room) TargetFrameCount() int {
	window := int(r.Difficulty.GuessWindow().Seconds())
	n := r.DurationMinutes * 60 / window
	if n < 1 {
		n = 1
	}
	return n
}

// GuessDeadline returns when the current frame's guess window closes,
// or false when no frame clock is running.
func (r *Room) GuessDeadline() (time.Time, bool) {
	if r.FrameStartedAt == nil {
		return time.Time{}, false
	}
	return r.FrameStartedAt.Add(r.Difficulty.GuessWindow()), true
}

// Player is one participant of a room. Exactly one player per room holds
// RoleHost; the host credential is bound to that row for the room's lifetime.
type Player struct {
	ID         uuid.UUID `json:"id"`
	RoomCode   string    `json:"room_code"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Score      int       `json:"score"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Frame is one quiz question, frozen at assembly time. The sequence for a
// room is only ever replaced wholesale, never mutated in place.
type Frame struct {
	ID            uuid.UUID `json:"id"`
	RoomCode      string    `json:"room_code"`
	Order         int       `json:"order"`
	ImageURL      string    `json:"image_url"`
	CorrectAnswer string    `json:"-"`
}

// GuessEvent is the append-only record of one guess attempt. It is the
// source of truth for solved-state and scoring audits.
type GuessEvent struct {
	ID            uuid.UUID `json:"id"`
	RoomCode      string    `json:"room_code"`
	PlayerID      uuid.UUID `json:"player_id"`
	FrameID       uuid.UUID `json:"frame_id"`
	FrameIndex    int       `json:"frame_index"`
	SubmittedText string    `json:"submitted_text"`
	IsCorrect     bool      `json:"is_correct"`
	PointsAwarded int       `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
}

// Outcome classifies the result of a guess submission.
type Outcome string

const (
	OutcomeCorrect       Outcome = "correct"
	OutcomeAlreadySolved Outcome = "already_solved"
	OutcomeIncorrect     Outcome = "incorrect"
)

// FrameView is the client-visible portion of the active frame. The image
// URL is withheld until the pre-roll has elapsed.
type FrameView struct {
	Order    int    `json:"order"`
	ImageURL string `json:"image_url,omitempty"`
}

// Snapshot is the full client-facing state of a room, published on every
// visible change and sent to each new subscriber.
type Snapshot struct {
	Room               Room        `json:"room"`
	Players            []Player    `json:"players"`
	FrameCount         int         `json:"frame_count"`
	TargetFrameCount   int         `json:"target_frame_count"`
	GuessWindowSeconds int         `json:"guess_window_seconds"`
	CurrentFrame       *FrameView  `json:"current_frame,omitempty"`
	SolvedPlayerIDs    []uuid.UUID `json:"solved_player_ids,omitempty"`
}
