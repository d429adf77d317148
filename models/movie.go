package models

import (
	"math"
	"time"
)

// ReleaseDateUnknownMs is stored in the library's released_at_ms column when a
// movie has no known release date. It must never be surfaced as a real date.
const ReleaseDateUnknownMs int64 = math.MaxInt64

// Rating is a rating value together with how many votes produced it.
type Rating struct {
	Value float64 `json:"value"`
	Votes int     `json:"votes"`
}

// MovieDetail is the fully reconciled view of one movie, keyed by its TMDB id.
// Content fields come from the remote fetch when available, otherwise from the
// local library row. User state (InCollection, InWatchlist, IsWatched,
// UserRating) always comes from the local row and is never taken from remote
// data.
type MovieDetail struct {
	MovieID        int        `json:"movieId"`
	Title          string     `json:"title,omitempty"`
	Overview       string     `json:"overview,omitempty"`
	PosterPath     string     `json:"posterPath,omitempty"`
	RuntimeMinutes int        `json:"runtimeMinutes,omitempty"`
	ReleaseDate    *time.Time `json:"releaseDate,omitempty"`

	PublicRating Rating `json:"publicRating"`
	SocialRating Rating `json:"socialRating"`

	InCollection bool `json:"inCollection"`
	InWatchlist  bool `json:"inWatchlist"`
	IsWatched    bool `json:"isWatched"`
	UserRating   *int `json:"userRating,omitempty"`
}

// LocalMovie is one row of the local movie library.
type LocalMovie struct {
	MovieID        int    `json:"movieId"`
	Title          string `json:"title"`
	Overview       string `json:"overview"`
	PosterPath     string `json:"posterPath"`
	RuntimeMinutes int    `json:"runtimeMinutes"`
	// ReleasedAtMs is the release date as Unix milliseconds, or
	// ReleaseDateUnknownMs when the date is not known.
	ReleasedAtMs int64 `json:"releasedAtMs"`

	PublicRating Rating `json:"publicRating"`
	SocialRating Rating `json:"socialRating"`

	InCollection bool `json:"inCollection"`
	InWatchlist  bool `json:"inWatchlist"`
	IsWatched    bool `json:"isWatched"`
	// UserRating is 1-10, 0 means the user has not rated the movie.
	UserRating int `json:"userRating"`
}

// ReleaseDate converts the stored millisecond timestamp back to a time,
// returning nil for the unknown-date sentinel.
func (m *LocalMovie) ReleaseDate() *time.Time {
	if m.ReleasedAtMs == ReleaseDateUnknownMs {
		return nil
	}
	t := time.UnixMilli(m.ReleasedAtMs).UTC()
	return &t
}
