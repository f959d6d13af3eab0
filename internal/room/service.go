package room

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frameparty/frameparty/internal/event"
	"github.com/frameparty/frameparty/internal/guess"
)

// Assembler produces a frozen frame sequence for a room. Implemented by
// the catalog-backed assembler in internal/frame.
type Assembler interface {
	Assemble(ctx context.Context, req AssembleRequest) ([]Frame, error)
}

// AssembleRequest asks the assembler for a frame sequence.
type AssembleRequest struct {
	RoomCode         string
	TargetFrameCount int
	Difficulty       Difficulty
	GenreID          int
	Year             int
}

// Config groups gameplay tunables for the service.
type Config struct {
	// PreRoll is the delay between start and the first frame's reveal.
	PreRoll time.Duration
	// Capacity is the maximum number of players per room.
	Capacity int
	// AdvanceGrace pads the auto-advance timer past the guess window so a
	// host-driven advance usually wins the race.
	AdvanceGrace time.Duration
	// DefaultDifficulty and DefaultDurationMinutes seed new rooms.
	DefaultDifficulty      Difficulty
	DefaultDurationMinutes int
	// Clock overrides the wall clock, for tests.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PreRoll <= 0 {
		c.PreRoll = 5 * time.Second
	}
	if c.Capacity <= 0 {
		c.Capacity = 12
	}
	if c.AdvanceGrace <= 0 {
		c.AdvanceGrace = 500 * time.Millisecond
	}
	if !c.DefaultDifficulty.Valid() {
		c.DefaultDifficulty = DifficultyNormal
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = 5
	}
	return c
}

// Service owns the room lifecycle: status transitions, frame advancement,
// guess scoring, host authorization and event publication. Every mutation
// of a room runs inside one store transaction, so concurrent calls on the
// same room are serialized.
type Service struct {
	store     Store
	bus       event.Bus
	assembler Assembler
	watcher   *watcher
	cfg       Config
	logger    zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewService wires the room service. assembler may be nil when frame
// assembly is handled elsewhere (tests install fakes).
func NewService(store Store, bus event.Bus, assembler Assembler, cfg Config, logger zerolog.Logger) *Service {
	s := &Service{
		store:     store,
		bus:       bus,
		assembler: assembler,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "room_service").Logger(),
		now:       time.Now,
	}
	if cfg.Clock != nil {
		s.now = cfg.Clock
	}
	s.watcher = newWatcher(s, logger)
	return s
}

// Close cancels all pending auto-advance timers.
func (s *Service) Close() {
	s.watcher.stopAll()
}

// CreateRoom creates a lobby room with its host player and returns the
// host credential. The credential is the only way to perform host-only
// mutations on the room.
func (s *Service) CreateRoom(ctx context.Context, hostName string) (*Snapshot, *Player, string, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return nil, nil, "", ErrInvalidName
	}

	now := s.now()
	rm := &Room{
		Status:          StatusLobby,
		Difficulty:      s.cfg.DefaultDifficulty,
		DurationMinutes: s.cfg.DefaultDurationMinutes,
		CreatedAt:       now,
	}
	host := &Player{
		ID:         uuid.New(),
		Name:       hostName,
		Role:       RoleHost,
		JoinedAt:   now,
		LastSeenAt: now,
	}
	token := uuid.NewString()

	if err := s.createWithUniqueCode(ctx, rm, host, token); err != nil {
		return nil, nil, "", err
	}

	roomsCreated.Inc()
	s.logger.Info().Str("room_code", rm.Code).Str("host", hostName).Msg("room created")

	snap := &Snapshot{
		Room:               *rm,
		Players:            []Player{*host},
		TargetFrameCount:   rm.TargetFrameCount(),
		GuessWindowSeconds: int(rm.Difficulty.GuessWindow().Seconds()),
	}
	return snap, host, token, nil
}

// JoinRoom adds a guest player to a lobby room.
func (s *Service) JoinRoom(ctx context.Context, code, playerName string) (*Snapshot, *Player, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, nil, ErrInvalidName
	}
	if !ValidCode(code) {
		return nil, nil, ErrInvalidCode
	}

	now := s.now()
	player := &Player{
		ID:         uuid.New(),
		RoomCode:   code,
		Name:       playerName,
		Role:       RoleGuest,
		JoinedAt:   now,
		LastSeenAt: now,
	}

	var snap *Snapshot
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if rm.Status != StatusLobby {
			return ErrRoomNotJoinable
		}
		players, err := tx.Players()
		if err != nil {
			return err
		}
		if len(players) >= s.cfg.Capacity {
			return ErrRoomFull
		}
		if err := tx.AddPlayer(player); err != nil {
			return err
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishSnapshot(ctx, code, snap)
	s.logger.Info().Str("room_code", code).Str("player", playerName).Msg("player joined")
	return snap, player, nil
}

// LeaveRoom removes a player; an emptied room is deleted.
func (s *Service) LeaveRoom(ctx context.Context, code string, playerID uuid.UUID) error {
	var (
		snap        *Snapshot
		roomDeleted bool
	)
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		if _, err := tx.Player(playerID); err != nil {
			return err
		}
		if err := tx.RemovePlayer(playerID); err != nil {
			return err
		}
		players, err := tx.Players()
		if err != nil {
			return err
		}
		if len(players) == 0 {
			roomDeleted = true
			return tx.DeleteRoom()
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return err
	}

	if roomDeleted {
		s.watcher.cancel(code)
		s.logger.Info().Str("room_code", code).Msg("last player left, room deleted")
		return nil
	}
	s.publishSnapshot(ctx, code, snap)
	return nil
}

// AssembleFrames replaces the room's frozen frame sequence from the
// catalog. Host-only; allowed only while the room is in the lobby. The
// catalog call runs outside the room transaction so a slow catalog never
// holds the room lock.
func (s *Service) AssembleFrames(ctx context.Context, code, token string, genreID, year int) (*Snapshot, error) {
	if s.assembler == nil {
		return nil, fmt.Errorf("assembler not configured")
	}

	var req AssembleRequest
	err := s.store.View(ctx, code, func(tx Tx) error {
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if _, err := tx.HostByToken(token); err != nil {
			return err
		}
		if rm.Status != StatusLobby {
			return ErrRoomNotJoinable
		}
		req = AssembleRequest{
			RoomCode:         code,
			TargetFrameCount: rm.TargetFrameCount(),
			Difficulty:       rm.Difficulty,
			GenreID:          genreID,
			Year:             year,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	frames, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	var snap *Snapshot
	err = s.store.Mutate(ctx, code, func(tx Tx) error {
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if _, err := tx.HostByToken(token); err != nil {
			return err
		}
		if rm.Status != StatusLobby {
			return ErrRoomNotJoinable
		}
		if err := tx.ReplaceFrames(frames); err != nil {
			return err
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishSnapshot(ctx, code, snap)
	return snap, nil
}

// StartMatch transitions lobby -> in_progress. Requires a non-empty frozen
// frame sequence. The first frame reveals after the pre-roll; viewers get a
// redirect event plus a once-per-second countdown.
func (s *Service) StartMatch(ctx context.Context, code, token string) (*Snapshot, error) {
	var (
		snap     *Snapshot
		deadline time.Time
	)
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if _, err := tx.HostByToken(token); err != nil {
			return err
		}
		if rm.Status != StatusLobby {
			return ErrRoomNotJoinable
		}
		total, err := tx.FrameCount()
		if err != nil {
			return err
		}
		if total == 0 {
			return ErrFramesRequired
		}

		now := s.now()
		reveal := now.Add(s.cfg.PreRoll)
		rm.Status = StatusInProgress
		rm.RoundStartedAt = &now
		rm.FrameStartedAt = &reveal
		rm.CurrentFrameIndex = 0
		if err := tx.UpdateRoom(rm); err != nil {
			return err
		}
		deadline = reveal.Add(rm.Difficulty.GuessWindow())
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishSnapshot(ctx, code, snap)
	s.bus.Publish(ctx, code, event.Event{Kind: event.KindMatchStartingRedirect, RoomCode: code})
	go s.runCountdown(code, int(s.cfg.PreRoll.Seconds()))
	s.watcher.schedule(code, deadline.Add(s.cfg.AdvanceGrace))

	s.logger.Info().Str("room_code", code).Msg("match started")
	return snap, nil
}

// AdvanceFrame moves to the next frame, or completes the match when the
// target is exhausted. Host-only; the auto-advance watcher takes the same
// transition through advanceRoom.
func (s *Service) AdvanceFrame(ctx context.Context, code, token string) (*Snapshot, error) {
	return s.advance(ctx, code, func(tx Tx) error {
		_, err := tx.HostByToken(token)
		return err
	})
}

func (s *Service) advance(ctx context.Context, code string, authorize func(tx Tx) error) (*Snapshot, error) {
	var (
		snap      *Snapshot
		completed bool
		deadline  time.Time
	)
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		if err := authorize(tx); err != nil {
			return err
		}
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if rm.Status != StatusInProgress {
			return ErrRoundNotActive
		}
		total, err := tx.FrameCount()
		if err != nil {
			return err
		}
		if total == 0 {
			return ErrNoFrames
		}

		completed, err = s.advanceRoom(rm, total)
		if err != nil {
			return err
		}
		if err := tx.UpdateRoom(rm); err != nil {
			return err
		}
		if !completed {
			deadline = rm.FrameStartedAt.Add(rm.Difficulty.GuessWindow())
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if completed {
		s.watcher.cancel(code)
	} else {
		s.watcher.schedule(code, deadline.Add(s.cfg.AdvanceGrace))
	}
	s.publishSnapshot(ctx, code, snap)
	return snap, nil
}

// advanceRoom applies the frame-advance transition to rm in place and
// reports whether the match completed. The playable range is
// min(targetFrameCount, totalFrames) frames.
func (s *Service) advanceRoom(rm *Room, total int) (bool, error) {
	target := rm.TargetFrameCount()
	if total < target {
		target = total
	}
	next := rm.CurrentFrameIndex + 1
	if next >= target {
		rm.Status = StatusCompleted
		rm.FrameStartedAt = nil
		rm.CurrentFrameIndex = target - 1
		return true, nil
	}
	rm.CurrentFrameIndex = next
	now := s.now()
	rm.FrameStartedAt = &now
	return false, nil
}

// CompleteMatch ends an in-progress match immediately.
func (s *Service) CompleteMatch(ctx context.Context, code, token string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		if _, err := tx.HostByToken(token); err != nil {
			return err
		}
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if rm.Status != StatusInProgress {
			return ErrRoundNotActive
		}
		rm.Status = StatusCompleted
		rm.FrameStartedAt = nil
		if err := tx.UpdateRoom(rm); err != nil {
			return err
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.watcher.cancel(code)
	s.publishSnapshot(ctx, code, snap)
	return snap, nil
}

// ResetToLobby returns an in-progress or completed room to the lobby,
// clearing the frame pointer and timestamps. Scores survive unless
// clearScores is set.
func (s *Service) ResetToLobby(ctx context.Context, code, token string, clearScores bool) (*Snapshot, error) {
	var snap *Snapshot
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		if _, err := tx.HostByToken(token); err != nil {
			return err
		}
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if rm.Status == StatusLobby {
			return ErrRoundNotActive
		}
		rm.Status = StatusLobby
		rm.RoundStartedAt = nil
		rm.FrameStartedAt = nil
		rm.CurrentFrameIndex = 0
		if err := tx.UpdateRoom(rm); err != nil {
			return err
		}
		if clearScores {
			if err := tx.ResetScores(); err != nil {
				return err
			}
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.watcher.cancel(code)
	s.publishSnapshot(ctx, code, snap)
	return snap, nil
}

// UpdateSettings changes difficulty and duration. While in progress it
// restarts the current frame's timer and clamps the frame pointer to the
// new target.
func (s *Service) UpdateSettings(ctx context.Context, code, token string, difficulty Difficulty, durationMinutes int) (*Snapshot, error) {
	if !difficulty.Valid() || durationMinutes < 1 || durationMinutes > 120 {
		return nil, ErrInvalidSettings
	}

	var (
		snap       *Snapshot
		inProgress bool
		deadline   time.Time
	)
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		if _, err := tx.HostByToken(token); err != nil {
			return err
		}
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		rm.Difficulty = difficulty
		rm.DurationMinutes = durationMinutes

		if rm.Status == StatusInProgress {
			inProgress = true
			now := s.now()
			rm.FrameStartedAt = &now

			if max := rm.TargetFrameCount() - 1; rm.CurrentFrameIndex > max {
				rm.CurrentFrameIndex = max
			}
			total, err := tx.FrameCount()
			if err != nil {
				return err
			}
			if total > 0 && rm.CurrentFrameIndex > total-1 {
				rm.CurrentFrameIndex = total - 1
			}
			deadline = now.Add(rm.Difficulty.GuessWindow())
		}
		if err := tx.UpdateRoom(rm); err != nil {
			return err
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if inProgress {
		s.watcher.schedule(code, deadline.Add(s.cfg.AdvanceGrace))
	}
	s.publishSnapshot(ctx, code, snap)
	return snap, nil
}

// SubmitGuess evaluates one guess against the active frame. A player who
// already solved the frame gets OutcomeAlreadySolved with no new event and
// no score change; every other attempt is recorded, and a correct one
// scores a point atomically with the event write.
func (s *Service) SubmitGuess(ctx context.Context, code string, playerID uuid.UUID, rawAnswer string) (*Snapshot, Outcome, error) {
	if strings.TrimSpace(rawAnswer) == "" {
		return nil, "", ErrEmptyAnswer
	}

	var (
		snap    *Snapshot
		outcome Outcome
	)
	err := s.store.Mutate(ctx, code, func(tx Tx) error {
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if _, err := tx.Player(playerID); err != nil {
			return err
		}
		if rm.Status != StatusInProgress {
			return ErrRoundNotActive
		}

		now := s.now()
		if rm.FrameStartedAt == nil || now.Before(*rm.FrameStartedAt) {
			return ErrFrameNotRevealed
		}
		if now.Sub(*rm.FrameStartedAt) >= rm.Difficulty.GuessWindow() {
			return ErrGuessWindowClosed
		}

		frame, err := tx.FrameAt(rm.CurrentFrameIndex)
		if err != nil {
			return err
		}

		solved, err := tx.HasSolved(playerID, frame.ID)
		if err != nil {
			return err
		}
		if solved {
			outcome = OutcomeAlreadySolved
			snap, err = s.snapshotTx(tx)
			return err
		}

		correct := guess.Matches(rawAnswer, frame.CorrectAnswer)
		points := 0
		if correct {
			points = 1
		}
		evt := &GuessEvent{
			ID:            uuid.New(),
			RoomCode:      code,
			PlayerID:      playerID,
			FrameID:       frame.ID,
			FrameIndex:    rm.CurrentFrameIndex,
			SubmittedText: rawAnswer,
			IsCorrect:     correct,
			PointsAwarded: points,
			CreatedAt:     now,
		}
		if err := tx.AppendGuess(evt); err != nil {
			return err
		}
		if correct {
			if err := tx.AddScore(playerID, 1); err != nil {
				return err
			}
			outcome = OutcomeCorrect
		} else {
			outcome = OutcomeIncorrect
		}
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	guessesTotal.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeCorrect {
		s.publishSnapshot(ctx, code, snap)
	}
	return snap, outcome, nil
}

// GetRoom returns the current snapshot for a room.
func (s *Service) GetRoom(ctx context.Context, code string) (*Snapshot, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}
	var snap *Snapshot
	err := s.store.View(ctx, code, func(tx Tx) error {
		var err error
		snap, err = s.snapshotTx(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Heartbeat records that a player is still connected.
func (s *Service) Heartbeat(ctx context.Context, code string, playerID uuid.UUID) error {
	return s.store.TouchPlayer(ctx, code, playerID, s.now())
}

// snapshotTx builds the client-facing snapshot inside a transaction so it
// is consistent with the mutation it reports.
func (s *Service) snapshotTx(tx Tx) (*Snapshot, error) {
	rm, err := tx.Room()
	if err != nil {
		return nil, err
	}
	players, err := tx.Players()
	if err != nil {
		return nil, err
	}
	total, err := tx.FrameCount()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Room:               *rm,
		Players:            players,
		FrameCount:         total,
		TargetFrameCount:   rm.TargetFrameCount(),
		GuessWindowSeconds: int(rm.Difficulty.GuessWindow().Seconds()),
	}

	if rm.Status != StatusLobby && total > 0 {
		frame, err := tx.FrameAt(rm.CurrentFrameIndex)
		if err != nil {
			return nil, err
		}
		view := &FrameView{Order: frame.Order}
		// The image stays hidden until the pre-roll elapses.
		if rm.FrameStartedAt != nil && !s.now().Before(*rm.FrameStartedAt) {
			view.ImageURL = frame.ImageURL
		}
		if rm.Status == StatusCompleted {
			view.ImageURL = frame.ImageURL
		}
		snap.CurrentFrame = view

		solved, err := tx.SolvedPlayers(frame.ID)
		if err != nil {
			return nil, err
		}
		snap.SolvedPlayerIDs = solved
	}

	return snap, nil
}

func (s *Service) publishSnapshot(ctx context.Context, code string, snap *Snapshot) {
	if snap == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn().Err(err).Str("room_code", code).Msg("failed to encode snapshot")
		return
	}
	s.bus.Publish(ctx, code, event.Event{
		Kind:     event.KindRoomUpdated,
		RoomCode: code,
		Payload:  payload,
	})
}

// runCountdown publishes the pre-roll countdown, one event per second from
// `from` down to zero.
func (s *Service) runCountdown(code string, from int) {
	ctx := context.Background()
	for remaining := from; remaining >= 0; remaining-- {
		payload, _ := json.Marshal(event.CountdownPayload{Seconds: remaining})
		s.bus.Publish(ctx, code, event.Event{
			Kind:     event.KindMatchStartingCountdown,
			RoomCode: code,
			Payload:  payload,
		})
		if remaining > 0 {
			time.Sleep(time.Second)
		}
	}
}
