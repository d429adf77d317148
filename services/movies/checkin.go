package movies

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reelsync/models"
	"reelsync/services/library"
	"reelsync/services/trakt"
)

// CheckinState is the lifecycle of one check-in conflict.
type CheckinState int

const (
	StateIdle CheckinState = iota
	StateAwaitingDecision
	StateWaiting
	StateCancelling
	StateRetrying
	StateDone
)

func (s CheckinState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateWaiting:
		return "waiting"
	case StateCancelling:
		return "cancelling"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// checkinTransitions is the complete set of legal state changes. Anything
// else is a programming error, which structurally rules out a retry loop:
// Retrying can only reach Done.
var checkinTransitions = map[CheckinState][]CheckinState{
	StateIdle:             {StateAwaitingDecision, StateDone},
	StateAwaitingDecision: {StateWaiting, StateCancelling},
	StateWaiting:          {StateDone},
	StateCancelling:       {StateRetrying, StateDone},
	StateRetrying:         {StateDone},
}

// Decision is the user's answer to an active check-in conflict.
type Decision string

const (
	// DecisionWait accepts the delay; the blocked action is abandoned for now.
	DecisionWait Decision = "wait"
	// DecisionOverride cancels the active check-in and retries the action once.
	DecisionOverride Decision = "override"
)

// SessionConflict describes the active check-in blocking a new action.
// Remaining is nil when Trakt did not report how long it still runs.
type SessionConflict struct {
	Remaining *time.Duration
	Action    models.PendingAction
}

// ErrDecisionNotPending is returned when Decide is called with no conflict
// awaiting a decision.
var ErrDecisionNotPending = errors.New("movies: no check-in conflict awaiting decision")

// sessionControl is the Trakt check-in session subset the coordinator needs.
type sessionControl interface {
	CheckinMovie(ctx context.Context, accessToken string, tmdbID int, message string) error
	DeleteActiveCheckin(ctx context.Context, accessToken string) error
}

// executeFunc resubmits a blocked action through the action pipeline.
type executeFunc func(ctx context.Context, action models.PendingAction) models.ActionResult

// CheckinCoordinator submits check-ins and resolves the one documented
// conflict: Trakt refusing a check-in while another is still active. The
// user either waits it out (the action is dropped) or overrides, which
// cancels the remote session and resubmits the blocked action through the
// executor exactly once. One coordinator handles one conflict; Done is
// terminal.
type CheckinCoordinator struct {
	social       sessionControl
	creds        credentialSource
	store        actionStore
	connectivity ConnectivityChecker
	events       publisher
	execute      executeFunc
	now          func() time.Time

	mu       sync.Mutex
	state    CheckinState
	conflict *SessionConflict
}

// NewCheckinCoordinator creates an idle coordinator.
func NewCheckinCoordinator(social sessionControl, creds credentialSource, store actionStore,
	connectivity ConnectivityChecker, events publisher, execute executeFunc) *CheckinCoordinator {
	return &CheckinCoordinator{
		social:       social,
		creds:        creds,
		store:        store,
		connectivity: connectivity,
		events:       events,
		execute:      execute,
		now:          time.Now,
		state:        StateIdle,
	}
}

// State returns the coordinator's current state.
func (c *CheckinCoordinator) State() CheckinState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Conflict returns the pending conflict, or nil.
func (c *CheckinCoordinator) Conflict() *SessionConflict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conflict
}

// transition moves to the next state, rejecting anything the state machine
// does not allow.
func (c *CheckinCoordinator) transition(to CheckinState) error {
	for _, allowed := range checkinTransitions[c.state] {
		if allowed == to {
			c.state = to
			return nil
		}
	}
	return fmt.Errorf("movies: illegal check-in transition %s -> %s", c.state, to)
}

// Begin submits the check-in. On any outcome other than an active-session
// conflict it returns a terminal result and publishes the completion event.
// On a conflict it parks in AwaitingDecision and returns the conflict for the
// caller to present; the completion event is deferred until the decision
// resolves.
func (c *CheckinCoordinator) Begin(ctx context.Context, action models.PendingAction) (models.ActionResult, *SessionConflict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := func(status models.ActionStatus) models.ActionResult {
		return models.ActionResult{Status: status, MovieID: action.MovieID}
	}
	finish := func(status models.ActionStatus) (models.ActionResult, *SessionConflict) {
		_ = c.transition(StateDone)
		c.events.Publish(action.MovieID)
		return result(status), nil
	}

	if ctx.Err() != nil {
		return finish(models.StatusCancelled)
	}
	if !c.connectivity.IsNetworkAvailable() {
		return finish(models.StatusErrorNetwork)
	}
	if !c.creds.HasValidCredentials() {
		return finish(models.StatusErrorSocialAuth)
	}
	accessToken, err := c.creds.AccessToken()
	if err != nil || accessToken == "" {
		return finish(models.StatusErrorSocialAuth)
	}

	err = c.social.CheckinMovie(ctx, accessToken, action.MovieID, action.Message)
	var inProgress *trakt.CheckinInProgressError
	switch {
	case err == nil:
		// checked in remotely; the movie is now watched locally too
		if err := c.store.SetFlag(ctx, action.MovieID, library.FlagWatched, true); err != nil {
			return finish(models.StatusErrorLocal)
		}
		return finish(models.StatusSuccess)
	case errors.As(err, &inProgress):
		conflict := &SessionConflict{Action: action}
		if !inProgress.ExpiresAt.IsZero() {
			remaining := inProgress.ExpiresAt.Sub(c.now())
			conflict.Remaining = &remaining
		}
		if err := c.transition(StateAwaitingDecision); err != nil {
			return finish(models.StatusErrorSocialAPI)
		}
		c.conflict = conflict
		return result(models.StatusErrorSocialAPI), conflict
	case errors.Is(err, trakt.ErrUnauthorized):
		return finish(models.StatusErrorSocialAuth)
	default:
		return finish(models.StatusErrorSocialAPI)
	}
}

// Decide resolves a pending conflict. Wait abandons the blocked action with
// no further remote calls. Override cancels the active check-in and, if that
// succeeds (or nothing was active anymore), resubmits the blocked action
// through the executor exactly once; a second conflict during that retry is
// surfaced as a plain failure.
func (c *CheckinCoordinator) Decide(ctx context.Context, decision Decision) (models.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingDecision || c.conflict == nil {
		return models.ActionResult{}, ErrDecisionNotPending
	}
	action := c.conflict.Action

	switch decision {
	case DecisionWait:
		if err := c.transition(StateWaiting); err != nil {
			return models.ActionResult{}, err
		}
		_ = c.transition(StateDone)
		c.conflict = nil
		c.events.Publish(action.MovieID)
		return models.ActionResult{Status: models.StatusCancelled, MovieID: action.MovieID}, nil

	case DecisionOverride:
		if err := c.transition(StateCancelling); err != nil {
			return models.ActionResult{}, err
		}
		status, ok := c.cancelActiveCheckin(ctx)
		if !ok {
			_ = c.transition(StateDone)
			c.conflict = nil
			c.events.Publish(action.MovieID)
			return models.ActionResult{Status: status, MovieID: action.MovieID}, nil
		}

		if err := c.transition(StateRetrying); err != nil {
			return models.ActionResult{}, err
		}
		result := c.execute(ctx, action)
		_ = c.transition(StateDone)
		c.conflict = nil
		return result, nil

	default:
		return models.ActionResult{}, fmt.Errorf("movies: unknown check-in decision %q", decision)
	}
}

// cancelActiveCheckin terminates the blocking session. ok=false carries the
// terminal status for a failed override; failures here are reported, never
// retried.
func (c *CheckinCoordinator) cancelActiveCheckin(ctx context.Context) (models.ActionStatus, bool) {
	if !c.creds.HasValidCredentials() {
		return models.StatusErrorSocialAuth, false
	}
	accessToken, err := c.creds.AccessToken()
	if err != nil || accessToken == "" {
		return models.StatusErrorSocialAuth, false
	}

	err = c.social.DeleteActiveCheckin(ctx, accessToken)
	switch {
	case err == nil, errors.Is(err, trakt.ErrNoActiveCheckin):
		// nothing blocking anymore either way
		return models.StatusSuccess, true
	case errors.Is(err, trakt.ErrUnauthorized):
		return models.StatusErrorSocialAuth, false
	default:
		return models.StatusErrorSocialAPI, false
	}
}
