package service

import (
	"context"
	"errors"
	"time"

	"cliquey/internal/auth/models"
	"cliquey/internal/auth/secrets"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/requestcontext"
)

// errAuthenticationFailed is returned for every credential failure so the
// response does not reveal whether the login exists.
var errAuthenticationFailed = dErrors.New(dErrors.CodeAuthenticationFailed, "invalid login or password")

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByLogin(ctx, req.Login)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up login")
		}
		secrets.VerifyDummy(req.Password)
		s.loginFailed(ctx, req.Login, "unknown_login")
		return nil, errAuthenticationFailed
	}

	if err := secrets.Verify(req.Password, user.PasswordHash); err != nil {
		if !errors.Is(err, secrets.ErrMismatch) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
		}
		s.loginFailed(ctx, req.Login, "bad_password")
		return nil, errAuthenticationFailed
	}

	now := requestcontext.Now(ctx)
	sessionID := id.NewSessionID()
	token, expiresAt, err := s.tokens.GenerateSessionToken(user.ID, sessionID, now, s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session token")
	}

	s.incrementLogins("success")
	s.logAudit(ctx, audit.EventLoginSucceeded,
		"user_id", user.ID.String(),
		"session_id", sessionID.String(),
	)
	return &models.Session{
		UserID:      user.ID,
		SessionID:   sessionID,
		AccessToken: token,
		ExpiresAt:   expiresAt,
		TTL:         s.sessionTTL,
	}, nil
}

func (s *Service) loginFailed(ctx context.Context, login, reason string) {
	s.incrementLogins("failure")
	s.logAudit(ctx, audit.EventLoginFailed,
		"subject", login,
		"reason", reason,
	)
}

// Logout revokes sessionID until the token's own expiry. A token that has
// already expired needs no entry.
func (s *Service) Logout(ctx context.Context, userID id.UserID, sessionID id.SessionID, expiresAt time.Time) error {
	if userID.IsNil() || sessionID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "session required")
	}
	ttl := expiresAt.Sub(requestcontext.Now(ctx))
	if expiresAt.IsZero() {
		ttl = s.sessionTTL
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.trl.RevokeToken(ctx, sessionID.String(), ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	s.logAudit(ctx, audit.EventSessionRevoked,
		"user_id", userID.String(),
		"session_id", sessionID.String(),
		"reason", "user_logout",
	)
	return nil
}

// IsTokenRevoked satisfies the auth middleware's revocation checker.
func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.trl.IsRevoked(ctx, jti)
}

// FindUser returns the stored account. Role checks read it so a demoted user
// loses privileges without re-login.
func (s *Service) FindUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}
