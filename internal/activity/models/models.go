package models

import (
	"time"

	"cliquey/pkg/platform/audit"
)

const (
	// DefaultRecentLimit applies when GET /audit/recent has no limit.
	DefaultRecentLimit = 50
	// MaxRecentLimit caps a single page of recent events.
	MaxRecentLimit = 500
)

// ActivityEvent is the client view of an audit event. The client IP is
// withheld.
type ActivityEvent struct {
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Subject   string    `json:"subject,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ActivityResponse struct {
	Events []ActivityEvent `json:"events"`
	Total  int             `json:"total"`
}

// ClampLimit maps a requested page size into [1, MaxRecentLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}

func FromEvent(e audit.Event) ActivityEvent {
	out := ActivityEvent{
		Action:    e.Action,
		Category:  string(e.Category),
		Subject:   e.Subject,
		Reason:    e.Reason,
		ActorID:   e.ActorID,
		RequestID: e.RequestID,
		Timestamp: e.Timestamp,
	}
	if !e.UserID.IsNil() {
		out.UserID = e.UserID.String()
	}
	return out
}

func NewActivityResponse(events []audit.Event) ActivityResponse {
	out := make([]ActivityEvent, 0, len(events))
	for _, e := range events {
		out = append(out, FromEvent(e))
	}
	return ActivityResponse{Events: out, Total: len(out)}
}
