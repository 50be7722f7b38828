package audit

import (
	"context"
	"time"

	id "cliquey/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers account lifecycle events that must be retained.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication outcomes and session revocation.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity on profiles and invitations.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// UserID is the account the event is about. For anonymous failures it is nil.
	UserID    id.UserID
	Subject   string
	Action    string
	Reason    string
	RequestID string
	// ActorID is set when someone other than UserID performed the action,
	// e.g. the rater of a profile.
	ActorID string
	IP      string
}

type AuditEvent string

const (
	// Account events
	EventUserRegistered AuditEvent = "user_registered"
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginFailed    AuditEvent = "login_failed"
	EventSessionRevoked AuditEvent = "session_revoked"

	// Invitation events
	EventInvitationIssued AuditEvent = "invitation_issued"

	// Profile events
	EventProfileCreated AuditEvent = "profile_created"
	EventProfileUpdated AuditEvent = "profile_updated"
	EventProfileDeleted AuditEvent = "profile_deleted"
	EventProfileRated   AuditEvent = "profile_rated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserRegistered:   CategoryCompliance,
	EventProfileDeleted:   CategoryCompliance,
	EventLoginFailed:      CategorySecurity,
	EventSessionRevoked:   CategorySecurity,
	EventInvitationIssued: CategorySecurity,
	EventLoginSucceeded:   CategoryOperations,
	EventProfileCreated:   CategoryOperations,
	EventProfileUpdated:   CategoryOperations,
	EventProfileRated:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink forwards events to an external system after they are stored.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
