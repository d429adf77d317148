package movies

import (
	"context"
	"log"

	"reelsync/models"
	"reelsync/services/library"
	"reelsync/services/metadata"
)

// fetcher is the remote metadata collaborator. Its result may be partial or
// empty; it never reports an error.
type fetcher interface {
	FetchMovie(ctx context.Context, tmdbID int) metadata.FetchResult
}

// detailStore is the local library subset the reconciler needs.
type detailStore interface {
	Get(ctx context.Context, movieID int) (*models.LocalMovie, error)
	UpdateContent(ctx context.Context, movieID int, u library.ContentUpdate) error
}

// Reconciler merges one remote metadata fetch with the local library row into
// a single consistent MovieDetail.
//
// Merge policy: user-state fields (collection, watchlist, watched, user
// rating) always come from the local row and default to false/absent without
// one. Content fields come from the remote fetch when that part succeeded,
// otherwise from the local row, otherwise stay absent. Reconcile never fails;
// a dead network degrades to cached data and a movie that is nowhere yields a
// detail with only the id set.
type Reconciler struct {
	fetch fetcher
	store detailStore
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(fetch fetcher, store detailStore) *Reconciler {
	return &Reconciler{fetch: fetch, store: store}
}

// Reconcile produces the merged detail record for one movie.
func (r *Reconciler) Reconcile(ctx context.Context, movieID int) models.MovieDetail {
	fetched := r.fetch.FetchMovie(ctx, movieID)

	// Best-effort cache refresh; a failure here never affects the result.
	if err := r.store.UpdateContent(ctx, movieID, contentUpdate(fetched)); err != nil {
		log.Printf("[movies] cache refresh for %d failed: %v", movieID, err)
	}

	row, err := r.store.Get(ctx, movieID)
	if err != nil {
		log.Printf("[movies] local read for %d failed: %v", movieID, err)
		row = nil
	}

	detail := models.MovieDetail{MovieID: movieID}

	// User state: the local row is the sole source of truth. No row means
	// the movie is in no list and unwatched, never inferred otherwise.
	if row != nil {
		detail.InCollection = row.InCollection
		detail.InWatchlist = row.InWatchlist
		detail.IsWatched = row.IsWatched
		if row.UserRating > 0 {
			rating := row.UserRating
			detail.UserRating = &rating
		}
	}

	// Content fields: remote wins when its part of the fetch succeeded.
	if fetched.TMDB != nil {
		detail.Title = fetched.TMDB.Title
		detail.Overview = fetched.TMDB.Overview
		detail.PosterPath = fetched.TMDB.PosterPath
		detail.RuntimeMinutes = fetched.TMDB.RuntimeMinutes
		detail.ReleaseDate = fetched.TMDB.ReleaseDate
		detail.PublicRating = models.Rating{Value: fetched.TMDB.VoteAverage, Votes: fetched.TMDB.VoteCount}
	} else if row != nil {
		detail.Title = row.Title
		detail.Overview = row.Overview
		detail.PosterPath = row.PosterPath
		detail.RuntimeMinutes = row.RuntimeMinutes
		detail.ReleaseDate = row.ReleaseDate()
		detail.PublicRating = row.PublicRating
	}

	if fetched.SocialRatings != nil {
		detail.SocialRating = *fetched.SocialRatings
	} else if row != nil {
		detail.SocialRating = row.SocialRating
	}

	return detail
}

// contentUpdate converts a fetch result into the library's cache refresh
// shape.
func contentUpdate(fetched metadata.FetchResult) library.ContentUpdate {
	update := library.ContentUpdate{SocialRating: fetched.SocialRatings}
	if fetched.TMDB != nil {
		releasedAtMs := models.ReleaseDateUnknownMs
		if fetched.TMDB.ReleaseDate != nil {
			releasedAtMs = fetched.TMDB.ReleaseDate.UnixMilli()
		}
		update.Content = &library.MovieContent{
			Title:          fetched.TMDB.Title,
			Overview:       fetched.TMDB.Overview,
			PosterPath:     fetched.TMDB.PosterPath,
			RuntimeMinutes: fetched.TMDB.RuntimeMinutes,
			ReleasedAtMs:   releasedAtMs,
			PublicRating:   models.Rating{Value: fetched.TMDB.VoteAverage, Votes: fetched.TMDB.VoteCount},
		}
	}
	return update
}
