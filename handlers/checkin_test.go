package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelsync/handlers"
	"reelsync/models"
	"reelsync/services/library"
	"reelsync/services/movies"
	"reelsync/services/trakt"

	"github.com/gorilla/mux"
)

type fakeSession struct {
	checkinErrs []error
	deleteErr   error
	deleteCalls int
}

func (f *fakeSession) CheckinMovie(ctx context.Context, accessToken string, tmdbID int, message string) error {
	if len(f.checkinErrs) == 0 {
		return nil
	}
	err := f.checkinErrs[0]
	f.checkinErrs = f.checkinErrs[1:]
	return err
}

func (f *fakeSession) DeleteActiveCheckin(ctx context.Context, accessToken string) error {
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeSession) SyncOneMovie(ctx context.Context, accessToken string, endpoint trakt.SyncEndpoint, movie trakt.SyncMovie) (*trakt.SyncResponse, error) {
	return &trakt.SyncResponse{}, nil
}

type fakeCreds struct{}

func (fakeCreds) HasValidCredentials() bool    { return true }
func (fakeCreds) SyncEnabled() bool            { return true }
func (fakeCreds) AccessToken() (string, error) { return "token", nil }

type fakeActionStore struct{}

func (fakeActionStore) SetFlag(ctx context.Context, movieID int, flag library.Flag, value bool) error {
	return nil
}
func (fakeActionStore) SetUserRating(ctx context.Context, movieID, rating int) error { return nil }

type alwaysOnline struct{}

func (alwaysOnline) IsNetworkAvailable() bool { return true }

type nullEvents struct{}

func (nullEvents) Publish(movieID int) {}

func newCheckinHandler(session *fakeSession) *handlers.CheckinHandler {
	execute := func(ctx context.Context, action models.PendingAction) models.ActionResult {
		return models.ActionResult{Status: models.StatusSuccess, MovieID: action.MovieID}
	}
	return handlers.NewCheckinHandler(func() *movies.CheckinCoordinator {
		return movies.NewCheckinCoordinator(session, fakeCreds{}, fakeActionStore{},
			alwaysOnline{}, nullEvents{}, execute)
	})
}

func postCheckin(t *testing.T, h *handlers.CheckinHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/movies/550/checkin", reader)
	req = mux.SetURLVars(req, map[string]string{"id": "550"})
	w := httptest.NewRecorder()
	h.Checkin(w, req)
	return w
}

func postDecision(t *testing.T, h *handlers.CheckinHandler, decision string) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"decision": decision})
	req := httptest.NewRequest(http.MethodPost, "/api/checkin/decision", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	h.Decide(w, req)
	return w
}

func TestCheckinSuccess(t *testing.T) {
	h := newCheckinHandler(&fakeSession{})

	w := postCheckin(t, h, `{"message":"movie night"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Status != "SUCCESS" {
		t.Errorf("expected SUCCESS, got %s", result.Status)
	}
}

func TestCheckinConflictThenOverride(t *testing.T) {
	session := &fakeSession{
		checkinErrs: []error{&trakt.CheckinInProgressError{ExpiresAt: time.Now().Add(10 * time.Minute)}},
	}
	h := newCheckinHandler(session)

	w := postCheckin(t, h, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
	var conflict struct {
		MovieID          int  `json:"movieId"`
		RemainingSeconds *int `json:"remainingSeconds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("failed to decode conflict: %v", err)
	}
	if conflict.MovieID != 550 {
		t.Errorf("expected movie 550, got %d", conflict.MovieID)
	}
	if conflict.RemainingSeconds == nil || *conflict.RemainingSeconds <= 0 {
		t.Errorf("expected a positive remaining time, got %v", conflict.RemainingSeconds)
	}

	w = postDecision(t, h, "override")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 after override, got %d", w.Code)
	}
	if session.deleteCalls != 1 {
		t.Errorf("expected one session cancel, got %d", session.deleteCalls)
	}

	// The conflict slot is spent
	w = postDecision(t, h, "override")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for a spent conflict, got %d", w.Code)
	}
}

func TestCheckinConflictThenWait(t *testing.T) {
	session := &fakeSession{checkinErrs: []error{&trakt.CheckinInProgressError{}}}
	h := newCheckinHandler(session)

	w := postCheckin(t, h, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}

	w = postDecision(t, h, "wait")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 after wait, got %d", w.Code)
	}
	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Status != "CANCELLED" {
		t.Errorf("expected CANCELLED, got %s", result.Status)
	}
	if session.deleteCalls != 0 {
		t.Errorf("wait must not cancel the remote session, got %d calls", session.deleteCalls)
	}
}

func TestDecideWithoutPendingConflict(t *testing.T) {
	h := newCheckinHandler(&fakeSession{})

	w := postDecision(t, h, "wait")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	h := newCheckinHandler(&fakeSession{})

	w := postDecision(t, h, "maybe")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
