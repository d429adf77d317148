package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"reelsync/models"
)

const (
	traktAPIBaseURL = "https://api.trakt.tv"
	traktAPIVersion = "2"
)

var (
	// ErrUnauthorized indicates expired or invalid authorization (HTTP 401/403).
	ErrUnauthorized = errors.New("trakt: unauthorized")
	// ErrNoActiveCheckin is returned by DeleteActiveCheckin when nothing is checked in.
	ErrNoActiveCheckin = errors.New("trakt: no active check-in")
)

// CheckinInProgressError is returned when Trakt rejects a check-in because
// another one is still active (HTTP 409). ExpiresAt is when the active
// check-in ends; zero when Trakt did not report it.
type CheckinInProgressError struct {
	ExpiresAt time.Time
}

func (e *CheckinInProgressError) Error() string {
	if e.ExpiresAt.IsZero() {
		return "trakt: check-in already in progress"
	}
	return fmt.Sprintf("trakt: check-in already in progress until %s", e.ExpiresAt.Format(time.RFC3339))
}

// Client handles Trakt API interactions for OAuth, sync and check-ins.
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
}

// NewClient creates a new Trakt API client. Passing a nil http.Client uses a
// default with a 30s timeout.
func NewClient(clientID, clientSecret string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient:   httpc,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// HasCredentials checks if the client has API credentials configured.
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// UpdateCredentials updates the client credentials.
func (c *Client) UpdateCredentials(clientID, clientSecret string) {
	c.clientID = clientID
	c.clientSecret = clientSecret
}

// setTraktHeaders adds required Trakt API headers to a request.
func (c *Client) setTraktHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// DeviceCodeResponse represents the response from /oauth/device/code.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// TokenResponse represents the response from /oauth/device/token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// GetDeviceCode initiates the device code OAuth flow.
func (c *Client) GetDeviceCode() (*DeviceCodeResponse, error) {
	payload := map[string]string{
		"client_id": c.clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, traktAPIBaseURL+"/oauth/device/code", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt device code failed: %s - %s", resp.Status, string(respBody))
	}

	var deviceCode DeviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&deviceCode); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &deviceCode, nil
}

// PollForToken polls for the OAuth token after user has authorized.
// Returns nil, nil if still pending authorization.
func (c *Client) PollForToken(deviceCode string) (*TokenResponse, error) {
	payload := map[string]string{
		"code":          deviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, traktAPIBaseURL+"/oauth/device/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var token TokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &token, nil
	case http.StatusBadRequest:
		// 400 means still waiting for user to authorize - expected during polling
		return nil, nil
	case http.StatusGone:
		return nil, fmt.Errorf("device code expired")
	case http.StatusConflict:
		return nil, fmt.Errorf("device code already used")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("polling too fast, slow down")
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt token poll failed: %s - %s", resp.Status, string(respBody))
	}
}

// RefreshAccessToken refreshes an expired access token.
func (c *Client) RefreshAccessToken(refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		"grant_type":    "refresh_token",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, traktAPIBaseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt token refresh failed: %s - %s", resp.Status, string(respBody))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &token, nil
}

// SyncEndpoint identifies one of the /sync write endpoints.
type SyncEndpoint string

const (
	SyncCollection       SyncEndpoint = "sync/collection"
	SyncCollectionRemove SyncEndpoint = "sync/collection/remove"
	SyncWatchlist        SyncEndpoint = "sync/watchlist"
	SyncWatchlistRemove  SyncEndpoint = "sync/watchlist/remove"
	SyncHistory          SyncEndpoint = "sync/history"
	SyncHistoryRemove    SyncEndpoint = "sync/history/remove"
	SyncRatings          SyncEndpoint = "sync/ratings"
	SyncRatingsRemove    SyncEndpoint = "sync/ratings/remove"
)

// SyncIDs holds external identifiers for sync operations.
type SyncIDs struct {
	Trakt int    `json:"trakt,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
}

// SyncMovie represents a single movie in a sync request.
type SyncMovie struct {
	IDs       SyncIDs `json:"ids"`
	Rating    int     `json:"rating,omitempty"`
	WatchedAt string  `json:"watched_at,omitempty"` // ISO 8601
}

// SyncRequest represents the request body for /sync endpoints.
type SyncRequest struct {
	Movies []SyncMovie `json:"movies"`
}

// SyncResponse represents the response from /sync endpoints.
type SyncResponse struct {
	Added struct {
		Movies int `json:"movies"`
	} `json:"added"`
	Deleted struct {
		Movies int `json:"movies"`
	} `json:"deleted"`
	NotFound struct {
		Movies []SyncMovie `json:"movies"`
	} `json:"not_found"`
}

// MovieNotFound reports whether the sync response flagged any movie as not
// present in Trakt's catalog.
func (r *SyncResponse) MovieNotFound() bool {
	return r != nil && len(r.NotFound.Movies) != 0
}

// SyncOneMovie submits a single-movie sync request to the given endpoint. A
// 401 or 403 response is returned as ErrUnauthorized so callers can classify
// authorization failures; other non-success responses are generic errors.
func (c *Client) SyncOneMovie(ctx context.Context, accessToken string, endpoint SyncEndpoint, movie SyncMovie) (*SyncResponse, error) {
	body, err := json.Marshal(SyncRequest{Movies: []SyncMovie{movie}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, traktAPIBaseURL+"/"+string(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		// decoded below
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt %s failed: %s - %s", endpoint, resp.Status, string(respBody))
	}

	var syncResp SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&syncResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &syncResp, nil
}

// movieRatingsResponse represents the response from /movies/{id}/ratings.
type movieRatingsResponse struct {
	Rating float64 `json:"rating"`
	Votes  int     `json:"votes"`
}

// MovieRatings fetches the public community rating for a movie by TMDB id.
// No user authorization is required.
func (c *Client) MovieRatings(ctx context.Context, tmdbID int) (*models.Rating, error) {
	url := fmt.Sprintf("%s/movies/tmdb:%d/ratings", traktAPIBaseURL, tmdbID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt movie ratings failed: %s - %s", resp.Status, string(respBody))
	}

	var ratings movieRatingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ratings); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &models.Rating{Value: ratings.Rating, Votes: ratings.Votes}, nil
}

// checkinRequest represents the request body for /checkin.
type checkinRequest struct {
	Movie   checkinMovie `json:"movie"`
	Message string       `json:"message,omitempty"`
}

type checkinMovie struct {
	IDs SyncIDs `json:"ids"`
}

// checkinConflictResponse carries the end time of the blocking check-in.
type checkinConflictResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckinMovie starts a check-in for the movie. When another check-in is
// still active, Trakt responds 409 and the error is a *CheckinInProgressError
// carrying the reported expiry.
func (c *Client) CheckinMovie(ctx context.Context, accessToken string, tmdbID int, message string) error {
	body, err := json.Marshal(checkinRequest{
		Movie:   checkinMovie{IDs: SyncIDs{TMDB: tmdbID}},
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, traktAPIBaseURL+"/checkin", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		var conflict checkinConflictResponse
		// a missing or malformed expiry still signals the conflict
		_ = json.NewDecoder(resp.Body).Decode(&conflict)
		return &CheckinInProgressError{ExpiresAt: conflict.ExpiresAt}
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trakt checkin failed: %s - %s", resp.Status, string(respBody))
	}
}

// DeleteActiveCheckin cancels the user's active check-in, if any.
func (c *Client) DeleteActiveCheckin(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, traktAPIBaseURL+"/checkin", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNoActiveCheckin
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trakt delete checkin failed: %s - %s", resp.Status, string(respBody))
	}
}
