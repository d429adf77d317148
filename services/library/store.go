package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"reelsync/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Flag identifies one of the boolean user-state columns.
type Flag string

const (
	FlagInCollection Flag = "in_collection"
	FlagInWatchlist  Flag = "in_watchlist"
	FlagWatched      Flag = "watched"
)

// ErrUnknownFlag is returned when a flag does not map to a known column.
var ErrUnknownFlag = errors.New("library: unknown flag")

func (f Flag) valid() bool {
	switch f {
	case FlagInCollection, FlagInWatchlist, FlagWatched:
		return true
	}
	return false
}

// Store is the local movie library, backed by SQLite. It is the sole source
// of truth for user state (collection, watchlist, watched, user rating).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the library database and runs pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open library db: %w", err)
	}
	// sqlite serializes writes; a single connection avoids SQLITE_BUSY churn
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate library db: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const movieColumns = `tmdb_id, title, overview, poster_path, runtime_min, released_at_ms,
	rating_tmdb, rating_votes_tmdb, rating_trakt, rating_votes_trakt,
	in_collection, in_watchlist, watched, rating_user`

func scanMovie(row interface{ Scan(...any) error }) (*models.LocalMovie, error) {
	var m models.LocalMovie
	err := row.Scan(&m.MovieID, &m.Title, &m.Overview, &m.PosterPath, &m.RuntimeMinutes,
		&m.ReleasedAtMs,
		&m.PublicRating.Value, &m.PublicRating.Votes,
		&m.SocialRating.Value, &m.SocialRating.Votes,
		&m.InCollection, &m.InWatchlist, &m.IsWatched, &m.UserRating)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Get returns the library row for a movie, or nil when the movie is not
// tracked locally.
func (s *Store) Get(ctx context.Context, movieID int) (*models.LocalMovie, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE tmdb_id = ?`, movieID)
	m, err := scanMovie(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query movie %d: %w", movieID, err)
	}
	return m, nil
}

// Upsert inserts or replaces a full library row.
func (s *Store) Upsert(ctx context.Context, m models.LocalMovie) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO movies (`+movieColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tmdb_id) DO UPDATE SET
			title = excluded.title,
			overview = excluded.overview,
			poster_path = excluded.poster_path,
			runtime_min = excluded.runtime_min,
			released_at_ms = excluded.released_at_ms,
			rating_tmdb = excluded.rating_tmdb,
			rating_votes_tmdb = excluded.rating_votes_tmdb,
			rating_trakt = excluded.rating_trakt,
			rating_votes_trakt = excluded.rating_votes_trakt,
			in_collection = excluded.in_collection,
			in_watchlist = excluded.in_watchlist,
			watched = excluded.watched,
			rating_user = excluded.rating_user`,
		m.MovieID, m.Title, m.Overview, m.PosterPath, m.RuntimeMinutes, m.ReleasedAtMs,
		m.PublicRating.Value, m.PublicRating.Votes,
		m.SocialRating.Value, m.SocialRating.Votes,
		m.InCollection, m.InWatchlist, m.IsWatched, m.UserRating)
	if err != nil {
		return fmt.Errorf("upsert movie %d: %w", m.MovieID, err)
	}
	return nil
}

// SetFlag updates one boolean user-state column. Updating a movie that is not
// tracked locally is a silent no-op, not an error.
func (s *Store) SetFlag(ctx context.Context, movieID int, flag Flag, value bool) error {
	if !flag.valid() {
		return ErrUnknownFlag
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE movies SET `+string(flag)+` = ? WHERE tmdb_id = ?`, value, movieID)
	if err != nil {
		return fmt.Errorf("update %s for movie %d: %w", flag, movieID, err)
	}
	return nil
}

// SetUserRating stores the user's own rating (1-10, 0 clears it). A movie not
// tracked locally is a silent no-op.
func (s *Store) SetUserRating(ctx context.Context, movieID, rating int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE movies SET rating_user = ? WHERE tmdb_id = ?`, rating, movieID)
	if err != nil {
		return fmt.Errorf("update user rating for movie %d: %w", movieID, err)
	}
	return nil
}

// MovieContent carries freshly fetched content fields for the cache refresh.
type MovieContent struct {
	Title          string
	Overview       string
	PosterPath     string
	RuntimeMinutes int
	ReleasedAtMs   int64
	PublicRating   models.Rating
}

// ContentUpdate groups the independently sourced parts of a cache refresh.
// A nil part means that source returned nothing and its columns keep their
// cached values.
type ContentUpdate struct {
	Content      *MovieContent
	SocialRating *models.Rating
}

// UpdateContent refreshes the cached content fields of an existing row. A
// movie not tracked locally is a no-op: the library only caches movies the
// user put in a list. An empty update is also a no-op.
func (s *Store) UpdateContent(ctx context.Context, movieID int, u ContentUpdate) error {
	if u.Content == nil && u.SocialRating == nil {
		return nil
	}

	assignments := make([]string, 0, 8)
	args := make([]any, 0, 10)
	if u.Content != nil {
		assignments = append(assignments,
			"title = ?", "overview = ?", "poster_path = ?", "runtime_min = ?",
			"released_at_ms = ?", "rating_tmdb = ?", "rating_votes_tmdb = ?")
		args = append(args, u.Content.Title, u.Content.Overview, u.Content.PosterPath,
			u.Content.RuntimeMinutes, u.Content.ReleasedAtMs,
			u.Content.PublicRating.Value, u.Content.PublicRating.Votes)
	}
	if u.SocialRating != nil {
		assignments = append(assignments, "rating_trakt = ?", "rating_votes_trakt = ?")
		args = append(args, u.SocialRating.Value, u.SocialRating.Votes)
	}
	args = append(args, movieID)

	query := `UPDATE movies SET ` + strings.Join(assignments, ", ") + ` WHERE tmdb_id = ?`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update content for movie %d: %w", movieID, err)
	}
	return nil
}

// ListByFlag returns all movies with the given flag set, newest release first.
func (s *Store) ListByFlag(ctx context.Context, flag Flag) ([]models.LocalMovie, error) {
	if !flag.valid() {
		return nil, ErrUnknownFlag
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE `+string(flag)+` = 1 ORDER BY released_at_ms DESC, tmdb_id`)
	if err != nil {
		return nil, fmt.Errorf("list movies by %s: %w", flag, err)
	}
	defer rows.Close()

	movies := make([]models.LocalMovie, 0)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie row: %w", err)
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}
