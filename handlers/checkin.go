package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"reelsync/models"
	"reelsync/services/movies"
)

// CheckinHandler drives check-in submissions and the wait-or-override
// decision for the active-session conflict. A single pending conflict is
// held at a time; resolving it frees the slot.
type CheckinHandler struct {
	NewCoordinator func() *movies.CheckinCoordinator

	mu      sync.Mutex
	pending *movies.CheckinCoordinator
}

func NewCheckinHandler(newCoordinator func() *movies.CheckinCoordinator) *CheckinHandler {
	return &CheckinHandler{NewCoordinator: newCoordinator}
}

type checkinConflictResponse struct {
	MovieID          int    `json:"movieId"`
	RemainingSeconds *int   `json:"remainingSeconds,omitempty"`
	Message          string `json:"message"`
}

// Checkin submits a check-in for the movie in the path. A 409 response means
// another check-in is still active and a decision is expected on /decision.
func (h *CheckinHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	movieID, ok := moviePathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if r.Body != nil {
		// body is optional; a bare POST checks in without a message
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	coordinator := h.NewCoordinator()
	result, conflict := coordinator.Begin(r.Context(), models.PendingAction{
		MovieID: movieID,
		Kind:    models.ActionCheckin,
		Message: body.Message,
	})
	if conflict == nil {
		writeActionResult(w, result)
		return
	}

	h.mu.Lock()
	h.pending = coordinator
	h.mu.Unlock()

	resp := checkinConflictResponse{
		MovieID: movieID,
		Message: "another check-in is in progress",
	}
	if conflict.Remaining != nil {
		seconds := int(conflict.Remaining.Seconds())
		resp.RemainingSeconds = &seconds
	}
	writeJSON(w, http.StatusConflict, resp)
}

// Decide resolves the pending conflict with {"decision": "wait"|"override"}.
func (h *CheckinHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	decision := movies.Decision(body.Decision)
	if decision != movies.DecisionWait && decision != movies.DecisionOverride {
		writeError(w, http.StatusBadRequest, "decision must be wait or override")
		return
	}

	h.mu.Lock()
	coordinator := h.pending
	h.pending = nil
	h.mu.Unlock()

	if coordinator == nil {
		writeError(w, http.StatusNotFound, "no check-in conflict pending")
		return
	}

	result, err := coordinator.Decide(r.Context(), decision)
	if errors.Is(err, movies.ErrDecisionNotPending) {
		writeError(w, http.StatusNotFound, "no check-in conflict pending")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeActionResult(w, result)
}
