package api

import (
	"crypto/subtle"
	"net/http"

	"reelsync/config"
	"reelsync/handlers"

	"github.com/gorilla/mux"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// pinAuthMiddleware requires the 6-digit PIN on every request, either as an
// X-Reelsync-PIN header or a ?pin= query parameter.
func pinAuthMiddleware(cfgManager *config.Manager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			settings, err := cfgManager.Load()
			if err != nil {
				http.Error(w, "failed to load settings", http.StatusInternalServerError)
				return
			}

			pin := r.Header.Get("X-Reelsync-PIN")
			if pin == "" {
				pin = r.URL.Query().Get("pin")
			}
			if subtle.ConstantTimeCompare([]byte(pin), []byte(settings.Server.PIN)) != 1 {
				http.Error(w, "invalid or missing PIN", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	cfgManager *config.Manager,
	moviesHandler *handlers.MoviesHandler,
	checkinHandler *handlers.CheckinHandler,
	syncHandler *handlers.SyncHandler,
	settingsHandler *handlers.SettingsHandler,
	traktAuthHandler *handlers.TraktAuthHandler,
	posterHandler *handlers.PosterHandler,
) {
	api := r.PathPrefix("/api").Subrouter()

	// Add CORS middleware to API subrouter
	api.Use(corsMiddleware)

	// Poster endpoint (public - Image components can't send auth headers)
	// Must be registered before protected routes to avoid the PIN middleware
	api.HandleFunc("/posters", posterHandler.Serve).Methods(http.MethodGet)
	api.HandleFunc("/posters", handleOptions).Methods(http.MethodOptions)

	// All routes require the PIN
	protected := api.PathPrefix("").Subrouter()
	protected.Use(pinAuthMiddleware(cfgManager))

	// Movie detail and flag actions
	protected.HandleFunc("/movies/{id}", moviesHandler.GetMovie).Methods(http.MethodGet)
	protected.HandleFunc("/movies/{id}", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/movies/{id}/collection", moviesHandler.SetCollection).Methods(http.MethodPost, http.MethodDelete)
	protected.HandleFunc("/movies/{id}/collection", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/movies/{id}/watchlist", moviesHandler.SetWatchlist).Methods(http.MethodPost, http.MethodDelete)
	protected.HandleFunc("/movies/{id}/watchlist", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/movies/{id}/watched", moviesHandler.SetWatched).Methods(http.MethodPost, http.MethodDelete)
	protected.HandleFunc("/movies/{id}/watched", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/movies/{id}/rating", moviesHandler.SetRating).Methods(http.MethodPost)
	protected.HandleFunc("/movies/{id}/rating", handleOptions).Methods(http.MethodOptions)

	// Library lists
	protected.HandleFunc("/movies/list/{list}", moviesHandler.ListMovies).Methods(http.MethodGet)
	protected.HandleFunc("/movies/list/{list}", handleOptions).Methods(http.MethodOptions)

	// Check-in flow
	protected.HandleFunc("/movies/{id}/checkin", checkinHandler.Checkin).Methods(http.MethodPost)
	protected.HandleFunc("/movies/{id}/checkin", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/checkin/decision", checkinHandler.Decide).Methods(http.MethodPost)
	protected.HandleFunc("/checkin/decision", handleOptions).Methods(http.MethodOptions)

	// Cloud restore
	protected.HandleFunc("/sync/restore", syncHandler.Restore).Methods(http.MethodPost)
	protected.HandleFunc("/sync/restore", handleOptions).Methods(http.MethodOptions)

	// Settings
	protected.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	protected.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)
	protected.HandleFunc("/settings", handleOptions).Methods(http.MethodOptions)

	// Trakt device auth
	protected.HandleFunc("/trakt/auth/start", traktAuthHandler.Start).Methods(http.MethodPost)
	protected.HandleFunc("/trakt/auth/start", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/trakt/auth/poll", traktAuthHandler.Poll).Methods(http.MethodPost)
	protected.HandleFunc("/trakt/auth/poll", handleOptions).Methods(http.MethodOptions)
	protected.HandleFunc("/trakt/auth/logout", traktAuthHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/trakt/auth/logout", handleOptions).Methods(http.MethodOptions)

	// Health check (no PIN so load balancers can probe it)
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
}
