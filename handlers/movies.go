package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"reelsync/models"
	"reelsync/services/library"
	"reelsync/services/movies"

	"github.com/gorilla/mux"
)

type reconciler interface {
	Reconcile(ctx context.Context, movieID int) models.MovieDetail
}

type actionExecutor interface {
	Execute(ctx context.Context, action models.PendingAction) models.ActionResult
}

type movieLister interface {
	ListByFlag(ctx context.Context, flag library.Flag) ([]models.LocalMovie, error)
}

var _ reconciler = (*movies.Reconciler)(nil)
var _ actionExecutor = (*movies.Executor)(nil)
var _ movieLister = (*library.Store)(nil)

type MoviesHandler struct {
	Reconciler reconciler
	Executor   actionExecutor
	Store      movieLister
}

func NewMoviesHandler(r reconciler, e actionExecutor, s movieLister) *MoviesHandler {
	return &MoviesHandler{Reconciler: r, Executor: e, Store: s}
}

// GetMovie returns the reconciled detail record for one movie. This never
// fails outright: with every remote down it still serves cached local data.
func (h *MoviesHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	movieID, ok := moviePathID(w, r)
	if !ok {
		return
	}

	detail := h.Reconciler.Reconcile(r.Context(), movieID)
	writeJSON(w, http.StatusOK, detail)
}

// SetCollection handles POST (add) and DELETE (remove) for the collection flag.
func (h *MoviesHandler) SetCollection(w http.ResponseWriter, r *http.Request) {
	h.runFlagAction(w, r, models.ActionAddToCollection, models.ActionRemoveFromCollection)
}

// SetWatchlist handles POST (add) and DELETE (remove) for the watchlist flag.
func (h *MoviesHandler) SetWatchlist(w http.ResponseWriter, r *http.Request) {
	h.runFlagAction(w, r, models.ActionAddToWatchlist, models.ActionRemoveFromWatchlist)
}

// SetWatched handles POST (watched) and DELETE (unwatched).
func (h *MoviesHandler) SetWatched(w http.ResponseWriter, r *http.Request) {
	h.runFlagAction(w, r, models.ActionSetWatched, models.ActionSetUnwatched)
}

// SetRating handles POST with a body of {"rating": 1-10}; 0 clears the rating.
func (h *MoviesHandler) SetRating(w http.ResponseWriter, r *http.Request) {
	movieID, ok := moviePathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Rating int `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Rating < 0 || body.Rating > 10 {
		writeError(w, http.StatusBadRequest, "rating must be between 0 and 10")
		return
	}

	result := h.Executor.Execute(r.Context(), models.PendingAction{
		MovieID:     movieID,
		Kind:        models.ActionRate,
		TargetValue: body.Rating != 0,
		Rating:      body.Rating,
	})
	writeActionResult(w, result)
}

// ListMovies serves the collection, watchlist and watched pages from the
// local library.
func (h *MoviesHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	var flag library.Flag
	switch mux.Vars(r)["list"] {
	case "collection":
		flag = library.FlagInCollection
	case "watchlist":
		flag = library.FlagInWatchlist
	case "watched":
		flag = library.FlagWatched
	default:
		writeError(w, http.StatusBadRequest, "unknown list")
		return
	}

	items, err := h.Store.ListByFlag(r.Context(), flag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MoviesHandler) runFlagAction(w http.ResponseWriter, r *http.Request, add, remove models.ActionKind) {
	movieID, ok := moviePathID(w, r)
	if !ok {
		return
	}

	kind, target := add, true
	if r.Method == http.MethodDelete {
		kind, target = remove, false
	}

	result := h.Executor.Execute(r.Context(), models.PendingAction{
		MovieID:     movieID,
		Kind:        kind,
		TargetValue: target,
	})
	writeActionResult(w, result)
}

func moviePathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	movieID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || movieID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid movie id")
		return 0, false
	}
	return movieID, true
}

// writeActionResult maps the action outcome to an HTTP status and writes the
// result body.
func writeActionResult(w http.ResponseWriter, result models.ActionResult) {
	writeJSON(w, actionHTTPStatus(result.Status), result)
}

func actionHTTPStatus(status models.ActionStatus) int {
	switch status {
	case models.StatusSuccess, models.StatusCancelled:
		return http.StatusOK
	case models.StatusErrorNetwork:
		return http.StatusServiceUnavailable
	case models.StatusErrorSocialAuth:
		return http.StatusUnauthorized
	case models.StatusErrorSocialNotFound:
		return http.StatusNotFound
	case models.StatusErrorCloudAPI, models.StatusErrorSocialAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
