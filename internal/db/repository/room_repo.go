// Package repository implements room.Store on Postgres via pgx. Every
// mutation takes a row-level lock on the room (SELECT ... FOR UPDATE), so
// concurrent mutations of the same room serialize; serialization and
// deadlock failures are retried once before surfacing room.ErrConflict.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/frameparty/frameparty/internal/room"
)

// RoomStore is the pgx-backed room.Store.
type RoomStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ room.Store = (*RoomStore)(nil)

func NewRoomStore(pool *pgxpool.Pool, logger zerolog.Logger) *RoomStore {
	return &RoomStore{
		pool:   pool,
		logger: logger.With().Str("component", "room_store").Logger(),
	}
}

func (s *RoomStore) CreateRoom(ctx context.Context, r *room.Room, host *room.Player, hostToken string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rooms (code, status, difficulty, duration_minutes, current_frame_index, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)`,
		r.Code, r.Status, r.Difficulty, r.DurationMinutes, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "rooms_pkey") {
			return room.ErrCodeTaken
		}
		return fmt.Errorf("insert room: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO players (id, room_code, name, role, score, host_token, joined_at, last_seen_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)`,
		host.ID, host.RoomCode, host.Name, host.Role, hostToken, host.JoinedAt, host.LastSeenAt)
	if err != nil {
		return fmt.Errorf("insert host: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *RoomStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (s *RoomStore) View(ctx context.Context, code string, fn func(tx room.Tx) error) error {
	return s.run(ctx, code, false, fn)
}

func (s *RoomStore) Mutate(ctx context.Context, code string, fn func(tx room.Tx) error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.run(ctx, code, true, fn)
		if isSerializationFailure(err) {
			s.logger.Warn().Str("room_code", code).Msg("serialization failure, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if isSerializationFailure(err) {
		return fmt.Errorf("%w: %v", room.ErrConflict, err)
	}
	return err
}

func (s *RoomStore) run(ctx context.Context, code string, forUpdate bool, fn func(tx room.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	lock := `SELECT code FROM rooms WHERE code = $1`
	if forUpdate {
		lock += ` FOR UPDATE`
	}
	var locked string
	if err := tx.QueryRow(ctx, lock, code).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return room.ErrRoomNotFound
		}
		return fmt.Errorf("lock room: %w", err)
	}

	if err := fn(&pgTx{ctx: ctx, tx: tx, code: code}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *RoomStore) TouchPlayer(ctx context.Context, code string, playerID uuid.UUID, seenAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players SET last_seen_at = $1 WHERE id = $2 AND room_code = $3`,
		seenAt, playerID, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return room.ErrPlayerNotFound
	}
	return nil
}

func (s *RoomStore) RoomsWithStalePlayers(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT room_code FROM players WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

// pgTx implements room.Tx over one open pgx transaction.
type pgTx struct {
	ctx  context.Context
	tx   pgx.Tx
	code string
}

var _ room.Tx = (*pgTx)(nil)

func (t *pgTx) Room() (*room.Room, error) {
	var r room.Room
	err := t.tx.QueryRow(t.ctx, `
		SELECT code, status, difficulty, duration_minutes, current_frame_index,
		       round_started_at, frame_started_at, created_at
		FROM rooms WHERE code = $1`, t.code).Scan(
		&r.Code, &r.Status, &r.Difficulty, &r.DurationMinutes, &r.CurrentFrameIndex,
		&r.RoundStartedAt, &r.FrameStartedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, room.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *pgTx) UpdateRoom(r *room.Room) error {
	_, err := t.tx.Exec(t.ctx, `
		UPDATE rooms
		SET status = $2, difficulty = $3, duration_minutes = $4,
		    current_frame_index = $5, round_started_at = $6, frame_started_at = $7
		WHERE code = $1`,
		t.code, r.Status, r.Difficulty, r.DurationMinutes,
		r.CurrentFrameIndex, r.RoundStartedAt, r.FrameStartedAt)
	return err
}

func (t *pgTx) DeleteRoom() error {
	_, err := t.tx.Exec(t.ctx, `DELETE FROM rooms WHERE code = $1`, t.code)
	return err
}

const playerColumns = `id, room_code, name, role, score, joined_at, last_seen_at`

func scanPlayer(row pgx.Row) (*room.Player, error) {
	var p room.Player
	err := row.Scan(&p.ID, &p.RoomCode, &p.Name, &p.Role, &p.Score, &p.JoinedAt, &p.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) Players() ([]room.Player, error) {
	rows, err := t.tx.Query(t.ctx,
		`SELECT `+playerColumns+` FROM players WHERE room_code = $1 ORDER BY joined_at`, t.code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []room.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (t *pgTx) Player(id uuid.UUID) (*room.Player, error) {
	p, err := scanPlayer(t.tx.QueryRow(t.ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1 AND room_code = $2`, id, t.code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, room.ErrPlayerNotFound
	}
	return p, err
}

func (t *pgTx) AddPlayer(p *room.Player) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO players (id, room_code, name, role, score, joined_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.RoomCode, p.Name, p.Role, p.Score, p.JoinedAt, p.LastSeenAt)
	return err
}

func (t *pgTx) RemovePlayer(id uuid.UUID) error {
	tag, err := t.tx.Exec(t.ctx,
		`DELETE FROM players WHERE id = $1 AND room_code = $2`, id, t.code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return room.ErrPlayerNotFound
	}
	return nil
}

func (t *pgTx) RemoveStalePlayers(cutoff time.Time) ([]room.Player, error) {
	rows, err := t.tx.Query(t.ctx, `
		DELETE FROM players WHERE room_code = $1 AND last_seen_at < $2
		RETURNING `+playerColumns, t.code, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var removed []room.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		removed = append(removed, *p)
	}
	return removed, rows.Err()
}

func (t *pgTx) HostByToken(token string) (*room.Player, error) {
	p, err := scanPlayer(t.tx.QueryRow(t.ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE room_code = $1 AND host_token = $2 AND role = 'host'`, t.code, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, room.ErrUnauthorized
	}
	return p, err
}

func (t *pgTx) AddScore(playerID uuid.UUID, delta int) error {
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE players SET score = score + $1 WHERE id = $2 AND room_code = $3`,
		delta, playerID, t.code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return room.ErrPlayerNotFound
	}
	return nil
}

func (t *pgTx) ResetScores() error {
	_, err := t.tx.Exec(t.ctx, `UPDATE players SET score = 0 WHERE room_code = $1`, t.code)
	return err
}

func (t *pgTx) ReplaceFrames(frames []room.Frame) error {
	if _, err := t.tx.Exec(t.ctx, `DELETE FROM frames WHERE room_code = $1`, t.code); err != nil {
		return err
	}
	for _, f := range frames {
		_, err := t.tx.Exec(t.ctx, `
			INSERT INTO frames (id, room_code, frame_order, image_url, correct_answer)
			VALUES ($1, $2, $3, $4, $5)`,
			f.ID, t.code, f.Order, f.ImageURL, f.CorrectAnswer)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) FrameCount() (int, error) {
	var n int
	err := t.tx.QueryRow(t.ctx,
		`SELECT COUNT(*) FROM frames WHERE room_code = $1`, t.code).Scan(&n)
	return n, err
}

func (t *pgTx) FrameAt(order int) (*room.Frame, error) {
	var f room.Frame
	err := t.tx.QueryRow(t.ctx, `
		SELECT id, room_code, frame_order, image_url, correct_answer
		FROM frames WHERE room_code = $1 AND frame_order = $2`, t.code, order).Scan(
		&f.ID, &f.RoomCode, &f.Order, &f.ImageURL, &f.CorrectAnswer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, room.ErrNoFrames
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (t *pgTx) HasSolved(playerID, frameID uuid.UUID) (bool, error) {
	var solved bool
	err := t.tx.QueryRow(t.ctx, `
		SELECT EXISTS (
			SELECT 1 FROM guess_events
			WHERE room_code = $1 AND player_id = $2 AND frame_id = $3 AND is_correct
		)`, t.code, playerID, frameID).Scan(&solved)
	return solved, err
}

func (t *pgTx) AppendGuess(evt *room.GuessEvent) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO guess_events (id, room_code, player_id, frame_id, frame_index, submitted_text, is_correct, points_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		evt.ID, evt.RoomCode, evt.PlayerID, evt.FrameID, evt.FrameIndex,
		evt.SubmittedText, evt.IsCorrect, evt.PointsAwarded, evt.CreatedAt)
	return err
}

func (t *pgTx) SolvedPlayers(frameID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(t.ctx, `
		SELECT DISTINCT player_id FROM guess_events
		WHERE room_code = $1 AND frame_id = $2 AND is_correct`, t.code, frameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
