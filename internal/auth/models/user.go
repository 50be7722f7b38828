package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
)

// Role gates privileged operations. Only admins mint invitation codes.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

const (
	MinUsernameLen = 3
	MaxUsernameLen = 64
	MaxEmailLen    = 254
	MinPasswordLen = 8
	// MaxPasswordLen is bcrypt's input limit in bytes.
	MaxPasswordLen = 72
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// User is a registered account.
//
// Invariants:
//   - Login is unique, lower-case, and either an email or a username
//   - PasswordHash is a bcrypt hash; the plaintext is never stored
//   - PublicID is distinct from ID and stable for the account's lifetime
type User struct {
	ID           id.UserID   `json:"id"`
	PublicID     id.PublicID `json:"public_id"`
	Login        string      `json:"login"`
	PasswordHash string      `json:"-"`
	Role         Role        `json:"role"`
	// InvitationCode is the code redeemed at registration. Empty for the
	// bootstrap admin.
	InvitationCode string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NewUser builds a user from an already-normalized login and a password hash.
func NewUser(userID id.UserID, login, passwordHash string, role Role, invitationCode string, now time.Time) (*User, error) {
	if err := ValidateLogin(login); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role")
	}
	return &User{
		ID:             userID,
		PublicID:       id.NewPublicID(),
		Login:          login,
		PasswordHash:   passwordHash,
		Role:           role,
		InvitationCode: invitationCode,
		CreatedAt:      now,
	}, nil
}

// NormalizeLogin trims and lower-cases a login so uniqueness is case-insensitive.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// ValidateLogin accepts an email address or a 3–64 character username.
func ValidateLogin(login string) error {
	if login == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "login is required")
	}
	if strings.Contains(login, "@") {
		if len(login) > MaxEmailLen || !govalidator.IsEmail(login) {
			return dErrors.New(dErrors.CodeInvalidInput, "login must be a valid email address")
		}
		return nil
	}
	if len(login) < MinUsernameLen || len(login) > MaxUsernameLen {
		return dErrors.New(dErrors.CodeInvalidInput, "username must be between 3 and 64 characters")
	}
	if !usernamePattern.MatchString(login) {
		return dErrors.New(dErrors.CodeInvalidInput, "username may contain only letters, digits, '.', '_' and '-'")
	}
	return nil
}

// ValidatePassword enforces length bounds. The upper bound is bcrypt's.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLen {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at most 72 bytes")
	}
	return nil
}
