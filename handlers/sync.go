package handlers

import (
	"context"
	"log"
	"net/http"

	"reelsync/models"
	"reelsync/services/cloud"
	"reelsync/services/library"
)

type cloudDownloader interface {
	IsConfigured() bool
	DownloadMovies(ctx context.Context) ([]cloud.MovieFlags, error)
}

type restoreStore interface {
	Get(ctx context.Context, movieID int) (*models.LocalMovie, error)
	Upsert(ctx context.Context, m models.LocalMovie) error
}

var _ cloudDownloader = (*cloud.Client)(nil)
var _ restoreStore = (*library.Store)(nil)

// SyncHandler restores movie flags from the cloud backup into the local
// library.
type SyncHandler struct {
	Cloud cloudDownloader
	Store restoreStore
}

func NewSyncHandler(c cloudDownloader, s restoreStore) *SyncHandler {
	return &SyncHandler{Cloud: c, Store: s}
}

// Restore downloads all backed-up movie flags and merges them into the local
// library, creating rows for movies not tracked yet.
func (h *SyncHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.Cloud.IsConfigured() {
		writeError(w, http.StatusBadRequest, "cloud backup is not configured")
		return
	}

	flags, err := h.Cloud.DownloadMovies(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	restored := 0
	for _, f := range flags {
		if f.TmdbID <= 0 {
			continue
		}
		row, err := h.Store.Get(r.Context(), f.TmdbID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if row == nil {
			row = &models.LocalMovie{
				MovieID:      f.TmdbID,
				ReleasedAtMs: models.ReleaseDateUnknownMs,
			}
		}
		if f.IsInCollection != nil {
			row.InCollection = *f.IsInCollection
		}
		if f.IsInWatchlist != nil {
			row.InWatchlist = *f.IsInWatchlist
		}
		if f.IsWatched != nil {
			row.IsWatched = *f.IsWatched
		}
		if err := h.Store.Upsert(r.Context(), *row); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		restored++
	}

	log.Printf("[sync] restored %d movie(s) from cloud backup", restored)
	writeJSON(w, http.StatusOK, map[string]int{"restored": restored})
}
