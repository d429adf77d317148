package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no cloud endpoint is configured.
var ErrNotConfigured = errors.New("cloud: backup endpoint not configured")

// MovieFlags is the minimal per-movie payload exchanged with the backup
// service. Pointer fields are only sent when the action changed them.
type MovieFlags struct {
	TmdbID         int   `json:"tmdbId"`
	IsInCollection *bool `json:"isInCollection,omitempty"`
	IsInWatchlist  *bool `json:"isInWatchlist,omitempty"`
	IsWatched      *bool `json:"isWatched,omitempty"`
}

// movieList wraps the movies array for the save endpoint.
type movieList struct {
	Movies []MovieFlags `json:"movies"`
}

// Client talks to the personal cloud backup service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a cloud backup client for the given endpoint. Passing a
// nil http.Client uses a default with a 30s timeout.
func NewClient(baseURL, apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpc,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// UpdateEndpoint points the client at a new endpoint, for settings reloads.
func (c *Client) UpdateEndpoint(baseURL, apiKey string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.apiKey = apiKey
}

// IsConfigured reports whether the client has an endpoint to talk to.
func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

// SaveMovies uploads the flag changes for one or more movies.
func (c *Client) SaveMovies(ctx context.Context, movies []MovieFlags) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(movieList{Movies: movies})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/movies/save", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cloud save movies failed: %s - %s", resp.Status, string(respBody))
	}

	return nil
}

// DownloadMovies fetches all movie flags stored in the backup, for restoring
// the local library.
func (c *Client) DownloadMovies(ctx context.Context) ([]MovieFlags, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/movies", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloud api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cloud download movies failed: %s - %s", resp.Status, string(respBody))
	}

	var list movieList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return list.Movies, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
