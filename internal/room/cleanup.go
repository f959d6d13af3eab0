package room

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically prunes players whose heartbeat has gone silent.
// A room emptied by the sweep is deleted, same as an explicit last leave.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	ttl      time.Duration
	logger   zerolog.Logger
}

func NewSweeper(svc *Service, interval, ttl time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		ttl:      ttl,
		logger:   logger.With().Str("component", "cleanup_sweeper").Logger(),
	}
}

// Run blocks until context cancellation.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.svc.PruneStalePlayers(ctx, w.ttl); err != nil {
				w.logger.Warn().Err(err).Msg("cleanup sweep failed")
			}
		}
	}
}

// PruneStalePlayers removes every player last seen longer than ttl ago and
// deletes rooms the pruning empties. Rooms that survive get a fresh
// snapshot published.
func (s *Service) PruneStalePlayers(ctx context.Context, ttl time.Duration) error {
	cutoff := s.now().Add(-ttl)
	codes, err := s.store.RoomsWithStalePlayers(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, code := range codes {
		var (
			snap        *Snapshot
			removed     []Player
			roomDeleted bool
		)
		err := s.store.Mutate(ctx, code, func(tx Tx) error {
			var err error
			removed, err = tx.RemoveStalePlayers(cutoff)
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				return nil
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
		if errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("room_code", code).Msg("failed to prune room")
			continue
		}
		if len(removed) == 0 {
			continue
		}

		playersPruned.Add(float64(len(removed)))
		if roomDeleted {
			s.watcher.cancel(code)
			s.logger.Info().Str("room_code", code).Int("pruned", len(removed)).Msg("room emptied by cleanup, deleted")
			continue
		}
		s.publishSnapshot(ctx, code, snap)
		s.logger.Info().Str("room_code", code).Int("pruned", len(removed)).Msg("stale players pruned")
	}
	return nil
}
