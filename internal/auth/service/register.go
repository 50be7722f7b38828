package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cliquey/internal/auth/models"
	"cliquey/internal/auth/secrets"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
	"cliquey/pkg/requestcontext"
)

var errInvalidInvitation = dErrors.New(dErrors.CodeInvalidInvitation, "invitation code is invalid or expired")

// Register creates an account by redeeming an invitation code. Either the user
// is created and the code consumed, or neither happens.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "auth.Register", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	code, err := s.invitations.FindByCode(ctx, req.InvitationCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errInvalidInvitation
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invitation code")
	}
	if !code.IsRedeemableAt(now) {
		return nil, errInvalidInvitation
	}

	if _, err := s.users.FindByLogin(ctx, req.Login); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicateIdentity, "login is already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up login")
	}

	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	user, err := models.NewUser(id.NewUserID(), req.Login, hash, models.RoleUser, req.InvitationCode, now)
	if err != nil {
		return nil, err
	}

	txCtx := tx.WithLockKey(ctx, "invitation:"+req.InvitationCode)
	err = s.tx.RunInTx(txCtx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDuplicateIdentity, "login is already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		if _, err := s.invitations.Consume(ctx, req.InvitationCode, user.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidState) {
				return errInvalidInvitation
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume invitation code")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("user_id", user.ID.String()))
	s.logAudit(ctx, audit.EventUserRegistered,
		"user_id", user.ID.String(),
		"subject", user.Login,
	)
	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
	}
	return user, nil
}
