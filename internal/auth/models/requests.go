package models

import (
	"strings"
	"time"

	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
)

type RegisterRequest struct {
	Login          string `json:"login"`
	Password       string `json:"password"`
	InvitationCode string `json:"invitation_code"`
}

func (r *RegisterRequest) Normalize() {
	if r == nil {
		return
	}
	r.Login = NormalizeLogin(r.Login)
	r.InvitationCode = strings.TrimSpace(r.InvitationCode)
}

// Validate checks field shape only. Whether the code is redeemable is decided
// against the ledger.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := ValidateLogin(r.Login); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.InvitationCode == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "invitation_code is required")
	}
	return nil
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	if r == nil {
		return
	}
	r.Login = NormalizeLogin(r.Login)
}

// Validate only checks presence. Shape errors on login would tell a caller more
// than AuthenticationFailed does.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Login == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeBadRequest, "login and password are required")
	}
	return nil
}

type RegisterResponse struct {
	UserID id.UserID `json:"user_id"`
}

// Session is the result of a successful login.
type Session struct {
	UserID      id.UserID
	SessionID   id.SessionID
	AccessToken string
	ExpiresAt   time.Time
	TTL         time.Duration
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
