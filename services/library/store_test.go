package library

import (
	"context"
	"path/filepath"
	"testing"

	"reelsync/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetUntrackedMovieReturnsNil(t *testing.T) {
	store := openTestStore(t)

	m, err := store.Get(context.Background(), 550)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil for untracked movie, got %+v", m)
	}
}

func TestUpsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	movie := models.LocalMovie{
		MovieID:        550,
		Title:          "Fight Club",
		Overview:       "An insomniac office worker...",
		PosterPath:     "/poster.jpg",
		RuntimeMinutes: 139,
		ReleasedAtMs:   940982400000,
		PublicRating:   models.Rating{Value: 8.4, Votes: 27000},
		SocialRating:   models.Rating{Value: 8.3, Votes: 12000},
		InCollection:   true,
		UserRating:     9,
	}
	if err := store.Upsert(ctx, movie); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, 550)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a row")
	}
	if *got != movie {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, movie)
	}

	// Second upsert replaces in place
	movie.Title = "Fight Club (1999)"
	movie.InWatchlist = true
	if err := store.Upsert(ctx, movie); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, err = store.Get(ctx, 550)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Fight Club (1999)" || !got.InWatchlist {
		t.Errorf("expected updated row, got %+v", got)
	}
}

func TestSetFlagOnUntrackedMovieIsNoOp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SetFlag(ctx, 123, FlagWatched, true); err != nil {
		t.Fatalf("SetFlag on untracked movie should not error: %v", err)
	}
	m, err := store.Get(ctx, 123)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m != nil {
		t.Errorf("no row should have been created, got %+v", m)
	}
}

func TestSetFlagUnknownFlag(t *testing.T) {
	store := openTestStore(t)

	err := store.SetFlag(context.Background(), 550, Flag("favorite"), true)
	if err != ErrUnknownFlag {
		t.Errorf("expected ErrUnknownFlag, got %v", err)
	}
}

func TestSetFlagAndUserRating(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, models.LocalMovie{MovieID: 550, ReleasedAtMs: models.ReleaseDateUnknownMs}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.SetFlag(ctx, 550, FlagInWatchlist, true); err != nil {
		t.Fatalf("SetFlag failed: %v", err)
	}
	if err := store.SetUserRating(ctx, 550, 7); err != nil {
		t.Fatalf("SetUserRating failed: %v", err)
	}

	got, err := store.Get(ctx, 550)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.InWatchlist || got.UserRating != 7 {
		t.Errorf("unexpected state: %+v", got)
	}

	// Clearing the rating stores zero
	if err := store.SetUserRating(ctx, 550, 0); err != nil {
		t.Fatalf("SetUserRating failed: %v", err)
	}
	got, _ = store.Get(ctx, 550)
	if got.UserRating != 0 {
		t.Errorf("expected cleared rating, got %d", got.UserRating)
	}
}

func TestUpdateContentLeavesUserStateAlone(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, models.LocalMovie{
		MovieID:      550,
		Title:        "Old Title",
		ReleasedAtMs: models.ReleaseDateUnknownMs,
		InCollection: true,
		UserRating:   8,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	err := store.UpdateContent(ctx, 550, ContentUpdate{
		Content: &MovieContent{
			Title:          "Fight Club",
			Overview:       "fresh overview",
			PosterPath:     "/new.jpg",
			RuntimeMinutes: 139,
			ReleasedAtMs:   940982400000,
			PublicRating:   models.Rating{Value: 8.4, Votes: 27000},
		},
		SocialRating: &models.Rating{Value: 8.3, Votes: 12000},
	})
	if err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}

	got, err := store.Get(ctx, 550)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Fight Club" || got.SocialRating.Votes != 12000 {
		t.Errorf("content not refreshed: %+v", got)
	}
	if !got.InCollection || got.UserRating != 8 {
		t.Errorf("user state must survive a content refresh: %+v", got)
	}
}

func TestUpdateContentPartial(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, models.LocalMovie{
		MovieID:      550,
		Title:        "Cached Title",
		ReleasedAtMs: 940982400000,
		SocialRating: models.Rating{Value: 8.0, Votes: 100},
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Only the social rating arrived; cached content columns must be kept
	err := store.UpdateContent(ctx, 550, ContentUpdate{
		SocialRating: &models.Rating{Value: 8.5, Votes: 200},
	})
	if err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}

	got, _ := store.Get(ctx, 550)
	if got.Title != "Cached Title" {
		t.Errorf("cached content must survive a partial update: %+v", got)
	}
	if got.SocialRating.Value != 8.5 || got.SocialRating.Votes != 200 {
		t.Errorf("social rating not refreshed: %+v", got)
	}

	// An empty update is a no-op, not an error
	if err := store.UpdateContent(ctx, 550, ContentUpdate{}); err != nil {
		t.Fatalf("empty UpdateContent failed: %v", err)
	}
}

func TestListByFlagOrdersByReleaseDate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rows := []models.LocalMovie{
		{MovieID: 1, Title: "Oldest", ReleasedAtMs: 100, InWatchlist: true},
		{MovieID: 2, Title: "Newest", ReleasedAtMs: 300, InWatchlist: true},
		{MovieID: 3, Title: "Middle", ReleasedAtMs: 200, InWatchlist: true},
		{MovieID: 4, Title: "Not listed", ReleasedAtMs: 400},
	}
	for _, m := range rows {
		if err := store.Upsert(ctx, m); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.ListByFlag(ctx, FlagInWatchlist)
	if err != nil {
		t.Fatalf("ListByFlag failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 movies, got %d", len(got))
	}
	for i, want := range []string{"Newest", "Middle", "Oldest"} {
		if got[i].Title != want {
			t.Errorf("position %d: expected %q, got %q", i, want, got[i].Title)
		}
	}
}
