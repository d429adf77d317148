package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelsync/handlers"
	"reelsync/models"
	"reelsync/services/cloud"
)

type fakeDownloader struct {
	configured bool
	flags      []cloud.MovieFlags
	err        error
}

func (f *fakeDownloader) IsConfigured() bool { return f.configured }

func (f *fakeDownloader) DownloadMovies(ctx context.Context) ([]cloud.MovieFlags, error) {
	return f.flags, f.err
}

type fakeRestoreStore struct {
	rows     map[int]*models.LocalMovie
	upserted []models.LocalMovie
}

func (f *fakeRestoreStore) Get(ctx context.Context, movieID int) (*models.LocalMovie, error) {
	return f.rows[movieID], nil
}

func (f *fakeRestoreStore) Upsert(ctx context.Context, m models.LocalMovie) error {
	f.upserted = append(f.upserted, m)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestRestoreMergesIntoExistingRows(t *testing.T) {
	downloader := &fakeDownloader{
		configured: true,
		flags: []cloud.MovieFlags{
			{TmdbID: 550, IsWatched: boolPtr(true)},
			{TmdbID: 603, IsInWatchlist: boolPtr(true)},
		},
	}
	store := &fakeRestoreStore{
		rows: map[int]*models.LocalMovie{
			550: {MovieID: 550, Title: "Fight Club", InCollection: true, ReleasedAtMs: 123},
		},
	}
	h := handlers.NewSyncHandler(downloader, store)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/restore", nil)
	w := httptest.NewRecorder()
	h.Restore(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["restored"] != 2 {
		t.Errorf("expected 2 restored, got %d", resp["restored"])
	}

	if len(store.upserted) != 2 {
		t.Fatalf("expected 2 upserts, got %d", len(store.upserted))
	}
	// Existing row keeps its cached content and untouched flags
	first := store.upserted[0]
	if first.Title != "Fight Club" || !first.InCollection || !first.IsWatched {
		t.Errorf("unexpected merged row: %+v", first)
	}
	// New row starts with the unknown-release sentinel
	second := store.upserted[1]
	if second.MovieID != 603 || !second.InWatchlist || second.ReleasedAtMs != models.ReleaseDateUnknownMs {
		t.Errorf("unexpected new row: %+v", second)
	}
}

func TestRestoreNotConfigured(t *testing.T) {
	h := handlers.NewSyncHandler(&fakeDownloader{configured: false}, &fakeRestoreStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/restore", nil)
	w := httptest.NewRecorder()
	h.Restore(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestRestoreDownloadFailure(t *testing.T) {
	h := handlers.NewSyncHandler(&fakeDownloader{configured: true, err: errors.New("cloud down")}, &fakeRestoreStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync/restore", nil)
	w := httptest.NewRecorder()
	h.Restore(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}
}
