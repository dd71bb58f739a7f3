package models

import "time"

// DecisionKind is a user's terminal judgment on a catalog entry.
type DecisionKind string

const (
	DecisionWatchLater    DecisionKind = "watch_later"
	DecisionAlreadySeen   DecisionKind = "already_seen"
	DecisionNotInterested DecisionKind = "not_interested"
)

// ParseDecisionKind converts a string into a DecisionKind.
func ParseDecisionKind(s string) (DecisionKind, bool) {
	switch DecisionKind(s) {
	case DecisionWatchLater, DecisionAlreadySeen, DecisionNotInterested:
		return DecisionKind(s), true
	}
	return "", false
}

// Decision records a user's judgment on one title. At most one decision
// exists per (user, title); a later decision overwrites the earlier one.
// Any title with a decision is excluded from future suggestions.
type Decision struct {
	UserID    int64        `json:"user_id"`
	TitleID   int64        `json:"title_id"`
	Kind      DecisionKind `json:"kind"`
	DecidedAt time.Time    `json:"decided_at"`
}
