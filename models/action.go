package models

// ActionStatus is the single outcome code of one executed movie action. Every
// pipeline stage failure maps to exactly one of these values.
type ActionStatus int

const (
	StatusSuccess ActionStatus = iota
	StatusCancelled
	StatusErrorNetwork
	StatusErrorCloudAPI
	StatusErrorSocialAuth
	StatusErrorSocialAPI
	StatusErrorSocialNotFound
	StatusErrorLocal
)

// String returns the wire name of the status.
func (s ActionStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusCancelled:
		return "CANCELLED"
	case StatusErrorNetwork:
		return "ERROR_NETWORK"
	case StatusErrorCloudAPI:
		return "ERROR_CLOUD_API"
	case StatusErrorSocialAuth:
		return "ERROR_SOCIAL_AUTH"
	case StatusErrorSocialAPI:
		return "ERROR_SOCIAL_API"
	case StatusErrorSocialNotFound:
		return "ERROR_SOCIAL_NOT_FOUND"
	case StatusErrorLocal:
		return "ERROR_LOCAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status as its wire name.
func (s ActionStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ActionKind identifies which movie state field an action changes.
type ActionKind string

const (
	ActionAddToCollection      ActionKind = "add_to_collection"
	ActionRemoveFromCollection ActionKind = "remove_from_collection"
	ActionAddToWatchlist       ActionKind = "add_to_watchlist"
	ActionRemoveFromWatchlist  ActionKind = "remove_from_watchlist"
	ActionSetWatched           ActionKind = "set_watched"
	ActionSetUnwatched         ActionKind = "set_unwatched"
	ActionRate                 ActionKind = "rate"
	ActionCheckin              ActionKind = "checkin"
)

// PendingAction is one queued user action against a single movie. Which remote
// backends it is sent to is decided from the live login/account state at
// execution time, never stored on the action itself.
type PendingAction struct {
	MovieID     int        `json:"movieId"`
	Kind        ActionKind `json:"kind"`
	TargetValue bool       `json:"targetValue"`
	// Rating is only meaningful for ActionRate (1-10).
	Rating int `json:"rating,omitempty"`
	// Message is only meaningful for ActionCheckin.
	Message string `json:"message,omitempty"`
}

// ActionResult is the terminal outcome of one executed action.
type ActionResult struct {
	Status  ActionStatus `json:"status"`
	MovieID int          `json:"movieId"`
}
