package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reelsync/api"
	"reelsync/config"
	"reelsync/handlers"
	"reelsync/services/cloud"
	"reelsync/services/events"
	"reelsync/services/library"
	"reelsync/services/metadata"
	"reelsync/services/movies"
	"reelsync/services/trakt"
	"reelsync/utils"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 reelsync Backend Starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("REELSYNC_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			// Redirect standard log to both console and file
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	// Apply port override if specified
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Generate PIN if missing
	settings.Server.PIN = strings.TrimSpace(settings.Server.PIN)
	if settings.Server.PIN == "" {
		pin, err := utils.GeneratePIN()
		if err != nil {
			log.Fatalf("failed to generate PIN: %v", err)
		}
		settings.Server.PIN = pin
		if err := cfgManager.Save(settings); err != nil {
			log.Fatalf("failed to persist generated PIN: %v", err)
		}
		fmt.Println("📱 Configure your frontend to use this 6-digit PIN for authentication.")
	}
	fmt.Printf("🔑 reelsync PIN: %s\n", settings.Server.PIN)

	// Open the movie library database (runs migrations)
	if dbDir := filepath.Dir(settings.Database.Path); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			log.Fatalf("failed to create database directory: %v", err)
		}
	}
	store, err := library.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open library database: %v", err)
	}
	defer store.Close()

	// Remote clients
	traktClient := trakt.NewClient(settings.Trakt.ClientID, settings.Trakt.ClientSecret, nil)
	traktCreds := trakt.NewCredentials(traktClient, cfgManager)
	cloudClient := cloud.NewClient(settings.Cloud.BaseURL, settings.Cloud.APIKey, nil)
	metadataService := metadata.NewService(settings.Metadata.TMDBAPIKey, settings.Metadata.Language, nil, traktClient)

	// Core services
	eventBus := events.NewBus()
	connectivity := movies.NewDialChecker()
	cloudEnabled := func() bool {
		s, err := cfgManager.Load()
		if err != nil {
			return false
		}
		return s.Cloud.HasAccount()
	}
	executor := movies.NewExecutor(cloudClient, traktClient, store, traktCreds, connectivity, eventBus, cloudEnabled)
	reconciler := movies.NewReconciler(metadataService, store)
	newCoordinator := func() *movies.CheckinCoordinator {
		return movies.NewCheckinCoordinator(traktClient, traktCreds, store, connectivity, eventBus, executor.Execute)
	}

	// Log movie-changed events so action flows are traceable end to end
	changes := eventBus.Subscribe()
	defer eventBus.Unsubscribe(changes)
	go func() {
		for ev := range changes {
			log.Printf("[events] movie %d changed (event %s)", ev.MovieID, ev.EventID)
		}
	}()

	// Handlers
	moviesHandler := handlers.NewMoviesHandler(reconciler, executor, store)
	checkinHandler := handlers.NewCheckinHandler(newCoordinator)
	syncHandler := handlers.NewSyncHandler(cloudClient, store)
	settingsHandler := handlers.NewSettingsHandler(cfgManager)
	settingsHandler.SetMetadataService(metadataService)
	settingsHandler.SetTraktClient(traktClient)
	settingsHandler.SetCloudClient(cloudClient)
	traktAuthHandler := handlers.NewTraktAuthHandler(cfgManager, traktClient)
	posterHandler := handlers.NewPosterHandler(filepath.Dir(settings.Database.Path))

	r := mux.NewRouter()
	api.Register(r, cfgManager, moviesHandler, checkinHandler, syncHandler, settingsHandler, traktAuthHandler, posterHandler)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
