package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// watcher owns one timer per active room and fires the frame advance when
// a guess window elapses without a host-driven advance. This replaces the
// original client-side arrangement where a disconnected host could stall a
// match indefinitely.
type watcher struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	svc    *Service
	logger zerolog.Logger
}

func newWatcher(svc *Service, logger zerolog.Logger) *watcher {
	return &watcher{
		timers: make(map[string]*time.Timer),
		svc:    svc,
		logger: logger.With().Str("component", "advance_watcher").Logger(),
	}
}

// schedule arms (or re-arms) the room's timer to fire at the given time.
func (w *watcher) schedule(code string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[code]; ok {
		t.Stop()
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	w.timers[code] = time.AfterFunc(d, func() { w.fire(code) })
}

// cancel stops the room's timer, if any.
func (w *watcher) cancel(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[code]; ok {
		t.Stop()
		delete(w.timers, code)
	}
}

func (w *watcher) stopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for code, t := range w.timers {
		t.Stop()
		delete(w.timers, code)
	}
}

func (w *watcher) fire(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.svc.autoAdvance(ctx, code); err != nil {
		w.logger.Warn().Err(err).Str("room_code", code).Msg("auto-advance failed")
	}
}

// autoAdvance is the watcher's transition path. It re-checks the deadline
// inside the transaction: a settings change or a manual advance may have
// moved it since the timer was armed, in which case the timer is re-armed
// instead of advancing.
func (s *Service) autoAdvance(ctx context.Context, code string) error {
	var rearmAt time.Time
	_, err := s.advance(ctx, code, func(tx Tx) error {
		rm, err := tx.Room()
		if err != nil {
			return err
		}
		if rm.Status != StatusInProgress {
			return ErrRoundNotActive
		}
		deadline, ok := rm.GuessDeadline()
		if !ok {
			return ErrRoundNotActive
		}
		if s.now().Before(deadline) {
			rearmAt = deadline.Add(s.cfg.AdvanceGrace)
			return errDeadlineMoved
		}
		return nil
	})
	if errors.Is(err, errDeadlineMoved) {
		s.watcher.schedule(code, rearmAt)
		return nil
	}
	if errors.Is(err, ErrRoundNotActive) || errors.Is(err, ErrRoomNotFound) {
		// Completed, reset or deleted since the timer was armed.
		return nil
	}
	return err
}

var errDeadlineMoved = errors.New("guess window deadline moved")
