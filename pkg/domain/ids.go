package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "cliquey/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so the compiler rejects passing a profile ID
// where a user ID is expected.
type (
	UserID       uuid.UUID
	SessionID    uuid.UUID
	ProfileID    uuid.UUID
	InvitationID uuid.UUID
	// PublicID is the stable identifier exposed in public URLs. It is never the
	// primary key of the record it names.
	PublicID uuid.UUID
)

func NewUserID() UserID             { return UserID(uuid.New()) }
func NewSessionID() SessionID       { return SessionID(uuid.New()) }
func NewProfileID() ProfileID       { return ProfileID(uuid.New()) }
func NewInvitationID() InvitationID { return InvitationID(uuid.New()) }
func NewPublicID() PublicID         { return PublicID(uuid.New()) }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id SessionID) String() string    { return uuid.UUID(id).String() }
func (id ProfileID) String() string    { return uuid.UUID(id).String() }
func (id InvitationID) String() string { return uuid.UUID(id).String() }
func (id PublicID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id InvitationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PublicID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Text encoding renders IDs as canonical UUID strings in JSON.

func (id UserID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ProfileID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id InvitationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id PublicID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProfileID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *InvitationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PublicID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user ID", s)
	return UserID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session ID", s)
	return SessionID(u), err
}

func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID("profile ID", s)
	return ProfileID(u), err
}

func ParseInvitationID(s string) (InvitationID, error) {
	u, err := parseUUID("invitation ID", s)
	return InvitationID(u), err
}

func ParsePublicID(s string) (PublicID, error) {
	u, err := parseUUID("public ID", s)
	return PublicID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs at trust boundaries.
func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}
