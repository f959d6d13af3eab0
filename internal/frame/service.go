// Package frame assembles the frozen frame sequence a room plays through:
// it selects eligible candidates from the external movie catalog, shuffles
// them uniformly, and freezes (image, correct answer) pairs in order.
package frame

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/frameparty/frameparty/internal/frame/external"
	"github.com/frameparty/frameparty/internal/room"
)

// ErrNoEligibleContent means the catalog yielded zero usable candidates
// for the requested filters; the room stays in the lobby.
var ErrNoEligibleContent = room.ErrNoEligibleContent

// PageCache caches discover pages (implemented by the Redis-backed Cache).
type PageCache interface {
	Get(ctx context.Context, f external.Filters, page int) (*external.DiscoverPage, error)
	Set(ctx context.Context, f external.Filters, page int, resp external.DiscoverPage) error
}

type catalog interface {
	Discover(ctx context.Context, f external.Filters, page int) (external.DiscoverPage, error)
}

// Service selects and freezes frame sequences from the catalog.
type Service struct {
	catalog      catalog
	cache        PageCache
	imageBaseURL string
	maxPages     int
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

// ServiceOptions configures the assembler.
type ServiceOptions struct {
	// ImageBaseURL is prefixed to catalog backdrop paths.
	ImageBaseURL string
	// MaxPages bounds how many discover pages one assembly may fetch.
	MaxPages int
	// FetchTimeout caps the total time spent on catalog calls.
	FetchTimeout time.Duration
}

func NewService(cat catalog, cache PageCache, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = "https://image.tmdb.org/t/p/w1280"
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 4 * time.Second
	}
	return &Service{
		catalog:      cat,
		cache:        cache,
		imageBaseURL: opts.ImageBaseURL,
		maxPages:     opts.MaxPages,
		fetchTimeout: opts.FetchTimeout,
		logger:       logger.With().Str("component", "frame_assembler").Logger(),
	}
}

var _ room.Assembler = (*Service)(nil)

// Assemble selects up to req.TargetFrameCount eligible candidates, shuffles
// them with a uniform unbiased shuffle, and returns the frozen ordered
// sequence. Fewer candidates than requested is not an error; zero is.
func (s *Service) Assemble(ctx context.Context, req room.AssembleRequest) ([]room.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	filters := external.Filters{GenreID: req.GenreID, Year: req.Year}

	candidates, err := s.collect(ctx, filters, req.TargetFrameCount)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoEligibleContent
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if len(candidates) > req.TargetFrameCount {
		candidates = candidates[:req.TargetFrameCount]
	}

	frames := make([]room.Frame, len(candidates))
	for i, m := range candidates {
		frames[i] = room.Frame{
			ID:            uuid.New(),
			RoomCode:      req.RoomCode,
			Order:         i,
			ImageURL:      s.imageBaseURL + m.BackdropPath,
			CorrectAnswer: m.Title,
		}
	}

	s.logger.Info().
		Str("room_code", req.RoomCode).
		Int("requested", req.TargetFrameCount).
		Int("assembled", len(frames)).
		Msg("frame sequence assembled")

	return frames, nil
}

// collect walks discover pages until it has seen enough eligible,
// deduplicated candidates or runs out of pages.
func (s *Service) collect(ctx context.Context, filters external.Filters, target int) ([]external.Movie, error) {
	// Over-fetch a bit so the shuffle has a pool to pick from.
	want := target * 2

	var candidates []external.Movie
	seen := make(map[int]bool)

	for page := 1; page <= s.maxPages; page++ {
		resp, err := s.page(ctx, filters, page)
		if err != nil {
			// A page failure after we already have candidates is not fatal.
			if len(candidates) > 0 {
				s.logger.Warn().Err(err).Int("page", page).Msg("catalog page fetch failed, using partial pool")
				break
			}
			return nil, err
		}

		for _, m := range resp.Results {
			if m.BackdropPath == "" || m.Title == "" || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			candidates = append(candidates, m)
		}

		if len(candidates) >= want || page >= resp.TotalPages {
			break
		}
	}

	return candidates, nil
}

func (s *Service) page(ctx context.Context, filters external.Filters, page int) (external.DiscoverPage, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, filters, page); err == nil && cached != nil {
			return *cached, nil
		}
	}

	resp, err := s.catalog.Discover(ctx, filters, page)
	if err != nil {
		return external.DiscoverPage{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, filters, page, resp); err != nil {
			s.logger.Warn().Err(err).Int("page", page).Msg("failed to cache catalog page")
		}
	}
	return resp, nil
}
