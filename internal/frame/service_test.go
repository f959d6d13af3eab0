package frame

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameparty/frameparty/internal/frame/external"
	"github.com/frameparty/frameparty/internal/room"
)

type stubCatalog struct {
	pages map[int]external.DiscoverPage
	err   error
	calls int
}

func (s *stubCatalog) Discover(_ context.Context, _ external.Filters, page int) (external.DiscoverPage, error) {
	s.calls++
	if s.err != nil {
		return external.DiscoverPage{}, s.err
	}
	p, ok := s.pages[page]
	if !ok {
		return external.DiscoverPage{}, fmt.Errorf("no page %d", page)
	}
	return p, nil
}

type memoryPageCache struct {
	store map[string]external.DiscoverPage
}

func newMemoryPageCache() *memoryPageCache {
	return &memoryPageCache{store: map[string]external.DiscoverPage{}}
}

func (c *memoryPageCache) key(f external.Filters, page int) string {
	return fmt.Sprintf("%d:%d:%d", f.GenreID, f.Year, page)
}

func (c *memoryPageCache) Get(_ context.Context, f external.Filters, page int) (*external.DiscoverPage, error) {
	if p, ok := c.store[c.key(f, page)]; ok {
		return &p, nil
	}
	return nil, nil
}

func (c *memoryPageCache) Set(_ context.Context, f external.Filters, page int, resp external.DiscoverPage) error {
	c.store[c.key(f, page)] = resp
	return nil
}

func movies(n int, offset int) []external.Movie {
	out := make([]external.Movie, n)
	for i := range out {
		out[i] = external.Movie{
			ID:           offset + i,
			Title:        fmt.Sprintf("Movie %d", offset+i),
			BackdropPath: fmt.Sprintf("/backdrop-%d.jpg", offset+i),
		}
	}
	return out
}

func onePage(results []external.Movie) map[int]external.DiscoverPage {
	return map[int]external.DiscoverPage{
		1: {Page: 1, TotalPages: 1, Results: results},
	}
}

func TestAssembleFreezesOrderedSequence(t *testing.T) {
	cat := &stubCatalog{pages: onePage(movies(10, 100))}
	svc := NewService(cat, nil, ServiceOptions{ImageBaseURL: "https://img.example"}, zerolog.Nop())

	frames, err := svc.Assemble(context.Background(), room.AssembleRequest{
		RoomCode:         "ABC234",
		TargetFrameCount: 4,
	})
	require.NoError(t, err)
	require.Len(t, frames, 4)

	seen := make(map[string]bool)
	for i, f := range frames {
		assert.Equal(t, "ABC234", f.RoomCode)
		assert.Equal(t, i, f.Order)
		assert.NotEmpty(t, f.CorrectAnswer)
		assert.Contains(t, f.ImageURL, "https://img.example/backdrop-")
		assert.False(t, seen[f.CorrectAnswer], "duplicate title %q", f.CorrectAnswer)
		seen[f.CorrectAnswer] = true
	}
}

func TestAssembleSkipsIneligibleCandidates(t *testing.T) {
	results := []external.Movie{
		{ID: 1, Title: "Good", BackdropPath: "/good.jpg"},
		{ID: 2, Title: "No Backdrop"},
		{ID: 3, BackdropPath: "/untitled.jpg"},
		{ID: 1, Title: "Good", BackdropPath: "/good.jpg"}, // duplicate ID
	}
	cat := &stubCatalog{pages: onePage(results)}
	svc := NewService(cat, nil, ServiceOptions{}, zerolog.Nop())

	frames, err := svc.Assemble(context.Background(), room.AssembleRequest{
		RoomCode:         "ABC234",
		TargetFrameCount: 10,
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "Good", frames[0].CorrectAnswer)
}

func TestAssembleNoEligibleContent(t *testing.T) {
	cat := &stubCatalog{pages: onePage([]external.Movie{{ID: 1, Title: "No Backdrop"}})}
	svc := NewService(cat, nil, ServiceOptions{}, zerolog.Nop())

	_, err := svc.Assemble(context.Background(), room.AssembleRequest{TargetFrameCount: 5})
	assert.ErrorIs(t, err, ErrNoEligibleContent)
}

func TestAssembleShortPoolIsNotAnError(t *testing.T) {
	cat := &stubCatalog{pages: onePage(movies(3, 0))}
	svc := NewService(cat, nil, ServiceOptions{}, zerolog.Nop())

	frames, err := svc.Assemble(context.Background(), room.AssembleRequest{TargetFrameCount: 10})
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestAssemblePropagatesCatalogFailure(t *testing.T) {
	cat := &stubCatalog{err: errors.New("upstream down")}
	svc := NewService(cat, nil, ServiceOptions{}, zerolog.Nop())

	_, err := svc.Assemble(context.Background(), room.AssembleRequest{TargetFrameCount: 5})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoEligibleContent)
}

func TestAssembleWalksPagesUntilPoolIsFull(t *testing.T) {
	cat := &stubCatalog{pages: map[int]external.DiscoverPage{
		1: {Page: 1, TotalPages: 3, Results: movies(5, 0)},
		2: {Page: 2, TotalPages: 3, Results: movies(5, 5)},
		3: {Page: 3, TotalPages: 3, Results: movies(5, 10)},
	}}
	svc := NewService(cat, nil, ServiceOptions{}, zerolog.Nop())

	frames, err := svc.Assemble(context.Background(), room.AssembleRequest{TargetFrameCount: 4})
	require.NoError(t, err)
	assert.Len(t, frames, 4)
	// 2x over-fetch target of 8 is reached after two pages.
	assert.Equal(t, 2, cat.calls)
}

func TestAssembleUsesPageCache(t *testing.T) {
	cache := newMemoryPageCache()
	cat := &stubCatalog{pages: onePage(movies(10, 0))}
	svc := NewService(cat, cache, ServiceOptions{}, zerolog.Nop())

	req := room.AssembleRequest{RoomCode: "ABC234", TargetFrameCount: 3}
	_, err := svc.Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.calls)

	_, err = svc.Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.calls, "second assembly must hit the cache")
}
