package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CatalogClient fetches candidate movies from the external catalog's
// discover endpoint (TMDB-compatible API surface).
type CatalogClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewCatalogClient(baseURL, apiKey string, httpClient *http.Client) *CatalogClient {
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 4 * time.Second}
	}
	return &CatalogClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Movie is one catalog candidate. BackdropPath is the landscape still used
// as the quiz image; candidates without one are ineligible.
type Movie struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	BackdropPath string `json:"backdrop_path"`
	ReleaseDate  string `json:"release_date"`
}

// DiscoverPage is one page of discover results.
type DiscoverPage struct {
	Page       int     `json:"page"`
	TotalPages int     `json:"total_pages"`
	Results    []Movie `json:"results"`
}

// Filters narrows the discover query. Zero values mean "no filter".
type Filters struct {
	GenreID int `json:"genre_id"`
	Year    int `json:"year"`
}

// Discover fetches one page of candidates matching the filters.
func (c *CatalogClient) Discover(ctx context.Context, f Filters, page int) (DiscoverPage, error) {
	values := url.Values{}
	values.Set("api_key", c.apiKey)
	values.Set("page", fmt.Sprint(page))
	values.Set("sort_by", "popularity.desc")
	if f.GenreID > 0 {
		values.Set("with_genres", fmt.Sprint(f.GenreID))
	}
	if f.Year > 0 {
		values.Set("primary_release_year", fmt.Sprint(f.Year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/discover/movie?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return DiscoverPage{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DiscoverPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return DiscoverPage{}, fmt.Errorf("catalog non-200: %d", resp.StatusCode)
	}

	var payload DiscoverPage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return DiscoverPage{}, err
	}
	return payload, nil
}
