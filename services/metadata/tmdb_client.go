package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

type tmdbClient struct {
	apiKey   string
	language string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// transientError marks a response worth retrying (throttling, server errors).
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// doGET performs an HTTP GET with rate limiting and backoff on transient
// failures.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, v any) error {
	return retry.Do(
		func() error {
			c.throttleMu.Lock()
			since := time.Since(c.lastRequest)
			if since < c.minInterval {
				time.Sleep(c.minInterval - since)
			}
			c.lastRequest = time.Now()
			c.throttleMu.Unlock()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return &transientError{err: err}
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return &transientError{err: fmt.Errorf("tmdb request failed: %s", resp.Status)}
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("tmdb request failed: %s", resp.Status)
			}

			return json.NewDecoder(resp.Body).Decode(v)
		},
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			var te *transientError
			return errors.As(err, &te)
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

type tmdbMovieResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	Runtime     int     `json:"runtime"`
	ReleaseDate string  `json:"release_date"` // "2006-01-02" or ""
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

// movieDetails fetches the movie record for a TMDB id.
func (c *tmdbClient) movieDetails(ctx context.Context, tmdbID int) (*TMDBMovie, error) {
	if !c.isConfigured() {
		return nil, fmt.Errorf("tmdb api key not configured")
	}

	endpoint := fmt.Sprintf("%s/movie/%d?api_key=%s&language=%s",
		tmdbBaseURL, tmdbID, url.QueryEscape(c.apiKey), url.QueryEscape(c.language))

	var resp tmdbMovieResponse
	if err := c.doGET(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	movie := &TMDBMovie{
		Title:          resp.Title,
		Overview:       resp.Overview,
		PosterPath:     resp.PosterPath,
		RuntimeMinutes: resp.Runtime,
		VoteAverage:    resp.VoteAverage,
		VoteCount:      resp.VoteCount,
	}
	if resp.ReleaseDate != "" {
		if released, err := time.ParseInLocation("2006-01-02", resp.ReleaseDate, time.UTC); err == nil {
			movie.ReleaseDate = &released
		}
	}

	return movie, nil
}
