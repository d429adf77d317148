package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

const tmdbImageBaseURL = "https://image.tmdb.org/t/p/original"

// PosterHandler serves movie poster images by their TMDB poster path, with
// on-disk caching and optional downscaling so clients never hit TMDB directly.
type PosterHandler struct {
	cacheDir   string
	httpc      *http.Client
	mu         sync.Mutex
	inProgress map[string]chan struct{} // prevent duplicate fetches
}

// NewPosterHandler creates a poster handler caching under cacheDir.
func NewPosterHandler(cacheDir string) *PosterHandler {
	posterCacheDir := filepath.Join(cacheDir, "posters")
	if err := os.MkdirAll(posterCacheDir, 0755); err != nil {
		log.Printf("[posters] Warning: could not create cache dir %s: %v", posterCacheDir, err)
	}

	return &PosterHandler{
		cacheDir: posterCacheDir,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		inProgress: make(map[string]chan struct{}),
	}
}

// Serve handles poster requests.
// Query params:
//   - path: TMDB poster path, e.g. "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg" (required)
//   - w: target width (optional, default: original)
//   - q: JPEG quality 1-100 (optional, default: 80)
func (h *PosterHandler) Serve(w http.ResponseWriter, r *http.Request) {
	posterPath := r.URL.Query().Get("path")
	if posterPath == "" {
		http.Error(w, "path parameter required", http.StatusBadRequest)
		return
	}
	// Poster paths are a single path segment from TMDB, nothing else
	if !strings.HasPrefix(posterPath, "/") || strings.Contains(posterPath[1:], "/") || strings.Contains(posterPath, "..") {
		http.Error(w, "invalid poster path", http.StatusBadRequest)
		return
	}

	targetWidth := 0
	if wStr := r.URL.Query().Get("w"); wStr != "" {
		if parsed, err := strconv.Atoi(wStr); err == nil && parsed > 0 && parsed <= 2000 {
			targetWidth = parsed
		}
	}

	quality := 80
	if qStr := r.URL.Query().Get("q"); qStr != "" {
		if parsed, err := strconv.Atoi(qStr); err == nil && parsed >= 1 && parsed <= 100 {
			quality = parsed
		}
	}

	cacheKey := h.cacheKey(posterPath, targetWidth, quality)
	cachePath := filepath.Join(h.cacheDir, cacheKey+".jpg")

	if h.serveFromCache(w, cachePath, "HIT") {
		return
	}

	// Prevent duplicate fetches for the same poster
	h.mu.Lock()
	if ch, exists := h.inProgress[cacheKey]; exists {
		h.mu.Unlock()
		<-ch
		if h.serveFromCache(w, cachePath, "HIT") {
			return
		}
		http.Error(w, "failed to load poster", http.StatusInternalServerError)
		return
	}
	ch := make(chan struct{})
	h.inProgress[cacheKey] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.inProgress, cacheKey)
		close(ch)
		h.mu.Unlock()
	}()

	resp, err := h.httpc.Get(tmdbImageBaseURL + posterPath)
	if err != nil {
		log.Printf("[posters] fetch error for %s: %v", posterPath, err)
		http.Error(w, "failed to fetch poster", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[posters] fetch returned %d for %s", resp.StatusCode, posterPath)
		http.Error(w, "poster source error", resp.StatusCode)
		return
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		log.Printf("[posters] decode error for %s: %v", posterPath, err)
		http.Error(w, "failed to decode poster", http.StatusInternalServerError)
		return
	}

	if targetWidth > 0 {
		bounds := img.Bounds()
		origWidth := bounds.Dx()
		origHeight := bounds.Dy()

		// Only resize if target is smaller than original
		if targetWidth < origWidth {
			ratio := float64(targetWidth) / float64(origWidth)
			targetHeight := int(float64(origHeight) * ratio)

			dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
			// CatmullRom for high quality downscaling
			draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
			img = dst
		}
	}

	// Encode as JPEG for consistent output and better compression
	tmpPath := cachePath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		log.Printf("[posters] cache create error: %v", err)
		// Still serve the image, just don't cache
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Cache", "MISS-NOCACHE")
		_ = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		return
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		os.Remove(tmpPath)
		log.Printf("[posters] encode error: %v", err)
		http.Error(w, "failed to encode poster", http.StatusInternalServerError)
		return
	}
	f.Close()

	if err := os.Rename(tmpPath, cachePath); err != nil {
		os.Remove(tmpPath)
		log.Printf("[posters] cache rename error: %v", err)
	}

	if !h.serveFromCache(w, cachePath, "MISS") {
		http.Error(w, "failed to read cached poster", http.StatusInternalServerError)
	}
}

func (h *PosterHandler) serveFromCache(w http.ResponseWriter, cachePath, cacheState string) bool {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=2592000") // 30 days
	w.Header().Set("X-Cache", cacheState)
	_, _ = w.Write(data)
	return true
}

// cacheKey generates a unique cache key for one rendered poster variant.
func (h *PosterHandler) cacheKey(path string, width, quality int) string {
	data := fmt.Sprintf("%s|%d|%d", path, width, quality)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// ClearCache removes all cached posters.
func (h *PosterHandler) ClearCache() error {
	entries, err := os.ReadDir(h.cacheDir)
	if err != nil {
		return err
	}

	var failed int
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jpg") {
			if err := os.Remove(filepath.Join(h.cacheDir, entry.Name())); err != nil {
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to remove %d files", failed)
	}
	return nil
}
