package movies

import (
	"context"
	"errors"
	"log"
	"time"

	"reelsync/models"
	"reelsync/services/cloud"
	"reelsync/services/library"
	"reelsync/services/trakt"
)

// socialClient is the remote-social (Trakt) subset the executor needs.
type socialClient interface {
	SyncOneMovie(ctx context.Context, accessToken string, endpoint trakt.SyncEndpoint, movie trakt.SyncMovie) (*trakt.SyncResponse, error)
	CheckinMovie(ctx context.Context, accessToken string, tmdbID int, message string) error
}

// cloudClient is the remote-cloud backup subset the executor needs.
type cloudClient interface {
	SaveMovies(ctx context.Context, movies []cloud.MovieFlags) error
}

// credentialSource answers whether the user is logged in to Trakt and hands
// out a usable access token.
type credentialSource interface {
	HasValidCredentials() bool
	SyncEnabled() bool
	AccessToken() (string, error)
}

// actionStore is the local library subset the executor writes to.
type actionStore interface {
	SetFlag(ctx context.Context, movieID int, flag library.Flag, value bool) error
	SetUserRating(ctx context.Context, movieID, rating int) error
}

// publisher delivers the always-fired completion event.
type publisher interface {
	Publish(movieID int)
}

// Executor applies one movie action across the cloud backup, Trakt and the
// local library, in that order. The first failing stage decides the single
// result code and skips everything after it; a completion event is published
// on every path, including cancellation, so callers can release optimistic
// per-movie locks.
type Executor struct {
	cloud        cloudClient
	social       socialClient
	store        actionStore
	creds        credentialSource
	connectivity ConnectivityChecker
	events       publisher
	// cloudEnabled is checked live per execution, never stored on the action.
	cloudEnabled func() bool
	now          func() time.Time
}

// NewExecutor wires an executor over its collaborators.
func NewExecutor(cloudc cloudClient, social socialClient, store actionStore, creds credentialSource,
	connectivity ConnectivityChecker, events publisher, cloudEnabled func() bool) *Executor {
	return &Executor{
		cloud:        cloudc,
		social:       social,
		store:        store,
		creds:        creds,
		connectivity: connectivity,
		events:       events,
		cloudEnabled: cloudEnabled,
		now:          time.Now,
	}
}

// stageFunc runs one pipeline stage. terminal=true stops the pipeline with
// the returned status.
type stageFunc func(ctx context.Context, action models.PendingAction) (status models.ActionStatus, terminal bool)

// Execute runs the ordered stage pipeline for one action.
func (e *Executor) Execute(ctx context.Context, action models.PendingAction) models.ActionResult {
	defer e.events.Publish(action.MovieID)

	stages := []stageFunc{
		e.stageCancellation,
		e.stageConnectivity,
		e.stageCloud,
		e.stageSocial,
		e.stageLocal,
	}

	for _, stage := range stages {
		if status, terminal := stage(ctx, action); terminal {
			if status != models.StatusSuccess && status != models.StatusCancelled {
				log.Printf("[movies] action %s for %d failed: %s", action.Kind, action.MovieID, status)
			}
			return models.ActionResult{Status: status, MovieID: action.MovieID}
		}
	}

	return models.ActionResult{Status: models.StatusSuccess, MovieID: action.MovieID}
}

// sendsToCloud reports whether this action is mirrored to the cloud backup.
// Ratings and check-ins are Trakt-only.
func (e *Executor) sendsToCloud(action models.PendingAction) bool {
	switch action.Kind {
	case models.ActionRate, models.ActionCheckin:
		return false
	}
	return e.cloudEnabled != nil && e.cloudEnabled()
}

// sendsToSocial reports whether this action is mirrored to Trakt.
func (e *Executor) sendsToSocial(action models.PendingAction) bool {
	if action.Kind == models.ActionCheckin {
		// a check-in exists only remotely; it always targets Trakt
		return true
	}
	return e.creds.SyncEnabled()
}

// stageCancellation bails out before any network activity when the caller
// already gave up. Once a remote call is in flight it runs to completion.
func (e *Executor) stageCancellation(ctx context.Context, action models.PendingAction) (models.ActionStatus, bool) {
	if ctx.Err() != nil {
		return models.StatusCancelled, true
	}
	return 0, false
}

// stageConnectivity fails fast when remote stages would run without network,
// so no partial writes happen.
func (e *Executor) stageConnectivity(ctx context.Context, action models.PendingAction) (models.ActionStatus, bool) {
	if !e.sendsToCloud(action) && !e.sendsToSocial(action) {
		return 0, false
	}
	if !e.connectivity.IsNetworkAvailable() {
		return models.StatusErrorNetwork, true
	}
	return 0, false
}

// stageCloud uploads the flag change to the cloud backup. A cloud failure is
// fatal to the whole action: the social and local stages never run, so the
// backup cannot silently diverge from state the user believes was applied.
func (e *Executor) stageCloud(ctx context.Context, action models.PendingAction) (models.ActionStatus, bool) {
	if !e.sendsToCloud(action) {
		return 0, false
	}

	flags := cloud.MovieFlags{TmdbID: action.MovieID}
	value := action.TargetValue
	switch action.Kind {
	case models.ActionAddToCollection, models.ActionRemoveFromCollection:
		flags.IsInCollection = &value
	case models.ActionAddToWatchlist, models.ActionRemoveFromWatchlist:
		flags.IsInWatchlist = &value
	case models.ActionSetWatched, models.ActionSetUnwatched:
		flags.IsWatched = &value
	}

	if err := e.cloud.SaveMovies(ctx, []cloud.MovieFlags{flags}); err != nil {
		log.Printf("[movies] cloud save for %d failed: %v", action.MovieID, err)
		return models.StatusErrorCloudAPI, true
	}
	return 0, false
}

// stageSocial submits the single-movie change to Trakt and classifies the
// response.
func (e *Executor) stageSocial(ctx context.Context, action models.PendingAction) (models.ActionStatus, bool) {
	if !e.sendsToSocial(action) {
		return 0, false
	}

	if !e.creds.HasValidCredentials() {
		return models.StatusErrorSocialAuth, true
	}
	accessToken, err := e.creds.AccessToken()
	if err != nil || accessToken == "" {
		return models.StatusErrorSocialAuth, true
	}

	if action.Kind == models.ActionCheckin {
		err := e.social.CheckinMovie(ctx, accessToken, action.MovieID, action.Message)
		switch {
		case err == nil:
			return 0, false
		case errors.Is(err, trakt.ErrUnauthorized):
			return models.StatusErrorSocialAuth, true
		default:
			// a still-active check-in on this path is a plain failure; the
			// override flow owns the one permitted retry
			return models.StatusErrorSocialAPI, true
		}
	}

	endpoint, movie := e.syncRequestFor(action)
	resp, err := e.social.SyncOneMovie(ctx, accessToken, endpoint, movie)
	switch {
	case errors.Is(err, trakt.ErrUnauthorized):
		return models.StatusErrorSocialAuth, true
	case err != nil:
		return models.StatusErrorSocialAPI, true
	case resp.MovieNotFound():
		return models.StatusErrorSocialNotFound, true
	}
	return 0, false
}

// stageLocal applies the change to the library row. An untracked movie is a
// silent no-op, not an error.
func (e *Executor) stageLocal(ctx context.Context, action models.PendingAction) (models.ActionStatus, bool) {
	var err error
	switch action.Kind {
	case models.ActionAddToCollection, models.ActionRemoveFromCollection:
		err = e.store.SetFlag(ctx, action.MovieID, library.FlagInCollection, action.TargetValue)
	case models.ActionAddToWatchlist, models.ActionRemoveFromWatchlist:
		err = e.store.SetFlag(ctx, action.MovieID, library.FlagInWatchlist, action.TargetValue)
	case models.ActionSetWatched, models.ActionSetUnwatched:
		err = e.store.SetFlag(ctx, action.MovieID, library.FlagWatched, action.TargetValue)
	case models.ActionCheckin:
		err = e.store.SetFlag(ctx, action.MovieID, library.FlagWatched, true)
	case models.ActionRate:
		err = e.store.SetUserRating(ctx, action.MovieID, action.Rating)
	}
	if err != nil {
		log.Printf("[movies] local update for %d failed: %v", action.MovieID, err)
		return models.StatusErrorLocal, true
	}
	return 0, false
}

// syncRequestFor maps an action to its Trakt sync endpoint and payload.
func (e *Executor) syncRequestFor(action models.PendingAction) (trakt.SyncEndpoint, trakt.SyncMovie) {
	movie := trakt.SyncMovie{IDs: trakt.SyncIDs{TMDB: action.MovieID}}
	switch action.Kind {
	case models.ActionAddToCollection:
		return trakt.SyncCollection, movie
	case models.ActionRemoveFromCollection:
		return trakt.SyncCollectionRemove, movie
	case models.ActionAddToWatchlist:
		return trakt.SyncWatchlist, movie
	case models.ActionRemoveFromWatchlist:
		return trakt.SyncWatchlistRemove, movie
	case models.ActionSetWatched:
		movie.WatchedAt = e.now().UTC().Format(time.RFC3339)
		return trakt.SyncHistory, movie
	case models.ActionSetUnwatched:
		return trakt.SyncHistoryRemove, movie
	case models.ActionRate:
		if action.Rating == 0 {
			return trakt.SyncRatingsRemove, movie
		}
		movie.Rating = action.Rating
		return trakt.SyncRatings, movie
	}
	return trakt.SyncHistory, movie
}
