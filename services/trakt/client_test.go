package trakt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestClient(rt roundTripFunc) *Client {
	return NewClient("client-id", "client-secret", &http.Client{Transport: rt})
}

func TestSyncOneMovieSendsHeadersAndBody(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte

	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		captured = req
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusCreated, `{"added":{"movies":1},"not_found":{"movies":[]}}`), nil
	})

	resp, err := client.SyncOneMovie(context.Background(), "token-123", SyncCollection, SyncMovie{IDs: SyncIDs{TMDB: 550}})
	if err != nil {
		t.Fatalf("SyncOneMovie failed: %v", err)
	}
	if resp.Added.Movies != 1 {
		t.Errorf("expected 1 added movie, got %d", resp.Added.Movies)
	}
	if resp.MovieNotFound() {
		t.Error("expected MovieNotFound to be false")
	}

	if captured.URL.Path != "/sync/collection" {
		t.Errorf("expected path /sync/collection, got %s", captured.URL.Path)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer token-123" {
		t.Errorf("expected bearer token header, got %q", got)
	}
	if got := captured.Header.Get("trakt-api-key"); got != "client-id" {
		t.Errorf("expected trakt-api-key header, got %q", got)
	}
	if !bytes.Contains(capturedBody, []byte(`"tmdb":550`)) {
		t.Errorf("expected body to contain tmdb id, got %s", capturedBody)
	}
}

func TestSyncOneMovieUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client := newTestClient(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(status, `{}`), nil
		})

		_, err := client.SyncOneMovie(context.Background(), "stale", SyncWatchlist, SyncMovie{IDs: SyncIDs{TMDB: 1}})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("status %d: expected ErrUnauthorized, got %v", status, err)
		}
	}
}

func TestSyncOneMovieNotFound(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"added":{"movies":0},"not_found":{"movies":[{"ids":{"tmdb":99}}]}}`), nil
	})

	resp, err := client.SyncOneMovie(context.Background(), "token", SyncHistory, SyncMovie{IDs: SyncIDs{TMDB: 99}})
	if err != nil {
		t.Fatalf("SyncOneMovie failed: %v", err)
	}
	if !resp.MovieNotFound() {
		t.Error("expected MovieNotFound to be true")
	}
}

func TestCheckinMovieConflict(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusConflict, `{"expires_at":"2026-01-02T15:04:05.000Z"}`), nil
	})

	err := client.CheckinMovie(context.Background(), "token", 550, "")
	var conflict *CheckinInProgressError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected CheckinInProgressError, got %v", err)
	}
	want := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	if !conflict.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %s, got %s", want, conflict.ExpiresAt)
	}
}

func TestCheckinMovieConflictWithoutExpiry(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusConflict, `{}`), nil
	})

	err := client.CheckinMovie(context.Background(), "token", 550, "")
	var conflict *CheckinInProgressError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected CheckinInProgressError, got %v", err)
	}
	if !conflict.ExpiresAt.IsZero() {
		t.Errorf("expected zero expiry, got %s", conflict.ExpiresAt)
	}
}

func TestCheckinMovieSuccess(t *testing.T) {
	var captured *http.Request
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusCreated, `{}`), nil
	})

	if err := client.CheckinMovie(context.Background(), "token", 550, "movie night"); err != nil {
		t.Fatalf("CheckinMovie failed: %v", err)
	}
	if captured.URL.Path != "/checkin" {
		t.Errorf("expected path /checkin, got %s", captured.URL.Path)
	}
}

func TestDeleteActiveCheckin(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", req.Method)
		}
		return jsonResponse(http.StatusNoContent, ``), nil
	})
	if err := client.DeleteActiveCheckin(context.Background(), "token"); err != nil {
		t.Fatalf("DeleteActiveCheckin failed: %v", err)
	}
}

func TestDeleteActiveCheckinNoneActive(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})
	err := client.DeleteActiveCheckin(context.Background(), "token")
	if !errors.Is(err, ErrNoActiveCheckin) {
		t.Fatalf("expected ErrNoActiveCheckin, got %v", err)
	}
}

func TestMovieRatings(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/movies/tmdb:550/ratings" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if req.Header.Get("Authorization") != "" {
			t.Error("ratings lookup must not send user authorization")
		}
		return jsonResponse(http.StatusOK, `{"rating":8.32,"votes":12345}`), nil
	})

	rating, err := client.MovieRatings(context.Background(), 550)
	if err != nil {
		t.Fatalf("MovieRatings failed: %v", err)
	}
	if rating.Value != 8.32 || rating.Votes != 12345 {
		t.Errorf("unexpected rating %+v", rating)
	}
}
