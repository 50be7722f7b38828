package service

import (
	"context"
	"errors"

	"cliquey/internal/auth/models"
	"cliquey/internal/auth/secrets"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/requestcontext"
)

// EnsureAdmin creates an admin account with login and password unless the login
// already exists. It reports whether an account was created. Without it no
// one could issue the first invitation code.
func (s *Service) EnsureAdmin(ctx context.Context, login, password string) (bool, error) {
	login = models.NormalizeLogin(login)
	if err := models.ValidateLogin(login); err != nil {
		return false, err
	}
	if err := models.ValidatePassword(password); err != nil {
		return false, err
	}

	existing, err := s.users.FindByLogin(ctx, login)
	if err == nil {
		if !existing.IsAdmin() {
			s.logger.WarnContext(ctx, "bootstrap login exists without admin role", "user_id", existing.ID.String())
		}
		return false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up bootstrap admin")
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return false, err
	}
	admin, err := models.NewUser(id.NewUserID(), login, hash, models.RoleAdmin, "", requestcontext.Now(ctx))
	if err != nil {
		return false, err
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Another instance seeded it first.
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create bootstrap admin")
	}
	s.logAudit(ctx, audit.EventUserRegistered,
		"user_id", admin.ID.String(),
		"subject", admin.Login,
		"reason", "bootstrap_admin",
	)
	return true, nil
}

// NeedsBootstrap reports whether no account exists yet, in which case nobody
// can log in to issue invitation codes.
func (s *Service) NeedsBootstrap(ctx context.Context) (bool, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
	}
	return n == 0, nil
}
