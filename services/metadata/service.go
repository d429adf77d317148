package metadata

import (
	"context"
	"log"
	"net/http"
	"time"

	"reelsync/models"

	"github.com/sourcegraph/conc"
)

// TMDBMovie is the content subset fetched from TMDB.
type TMDBMovie struct {
	Title          string
	Overview       string
	PosterPath     string
	RuntimeMinutes int
	ReleaseDate    *time.Time
	VoteAverage    float64
	VoteCount      int
}

// ratingsSource fetches the public community rating for a movie.
type ratingsSource interface {
	MovieRatings(ctx context.Context, tmdbID int) (*models.Rating, error)
}

// FetchResult is the possibly-partial outcome of one remote metadata fetch.
// Either part is nil when its source failed; a nil part never aborts the
// fetch as a whole.
type FetchResult struct {
	TMDB          *TMDBMovie
	SocialRatings *models.Rating
}

// FailedCompletely reports whether no remote source returned anything.
func (r FetchResult) FailedCompletely() bool {
	return r.TMDB == nil && r.SocialRatings == nil
}

// Service fetches movie metadata from TMDB plus community ratings from Trakt.
type Service struct {
	client  *tmdbClient
	ratings ratingsSource
}

// NewService creates a metadata service. ratings may be nil when no social
// ratings source is available.
func NewService(tmdbAPIKey, language string, httpc *http.Client, ratings ratingsSource) *Service {
	return &Service{
		client:  newTMDBClient(tmdbAPIKey, language, httpc),
		ratings: ratings,
	}
}

// UpdateAPIKey swaps the TMDB credentials, for settings reloads.
func (s *Service) UpdateAPIKey(apiKey, language string) {
	s.client = newTMDBClient(apiKey, language, s.client.httpc)
}

// FetchMovie retrieves metadata and ratings for one movie. The two sources
// are queried in parallel and fail independently; FetchMovie itself never
// returns an error, only a partial (possibly empty) result.
func (s *Service) FetchMovie(ctx context.Context, tmdbID int) FetchResult {
	var result FetchResult

	var wg conc.WaitGroup
	wg.Go(func() {
		movie, err := s.client.movieDetails(ctx, tmdbID)
		if err != nil {
			log.Printf("[metadata] tmdb fetch for %d failed: %v", tmdbID, err)
			return
		}
		result.TMDB = movie
	})
	wg.Go(func() {
		if s.ratings == nil {
			return
		}
		rating, err := s.ratings.MovieRatings(ctx, tmdbID)
		if err != nil {
			log.Printf("[metadata] trakt ratings for %d failed: %v", tmdbID, err)
			return
		}
		result.SocialRatings = rating
	})
	wg.Wait()

	return result
}
