package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	authModels "cliquey/internal/auth/models"
	"cliquey/internal/auth/secrets"
	"cliquey/internal/invitation/models"
	"cliquey/internal/platform/metrics"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/requestcontext"
)

var tracer = otel.Tracer("cliquey/internal/invitation/service")

// maxCodeAttempts bounds retries on a code collision.
const maxCodeAttempts = 3

type Store interface {
	Create(ctx context.Context, code *models.InvitationCode) error
	ListByIssuer(ctx context.Context, issuer id.UserID) ([]*models.InvitationCode, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, userID id.UserID) (*authModels.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service issues invitation codes on behalf of admins.
type Service struct {
	store          Store
	users          UserFinder
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	defaultHorizon time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaultHorizon sets the lifetime of codes issued without an explicit
// expiry. Values outside (0, MaxHorizon] are ignored.
func WithDefaultHorizon(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 && d <= models.MaxHorizon {
			s.defaultHorizon = d
		}
	}
}

func New(store Store, users UserFinder, opts ...Option) *Service {
	s := &Service{store: store, users: users, logger: slog.Default(), defaultHorizon: models.DefaultHorizon}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a code that expires after expiresInDays (0 means the default
// horizon). The requester's role is read from the store, not the token.
func (s *Service) Issue(ctx context.Context, issuerID id.UserID, expiresInDays int) (*models.InvitationCode, error) {
	ctx, span := tracer.Start(ctx, "invitation.Issue")
	defer span.End()

	if err := s.requireAdmin(ctx, issuerID); err != nil {
		return nil, err
	}
	horizon, err := models.HorizonFromDays(expiresInDays)
	if err != nil {
		return nil, err
	}
	if expiresInDays == 0 {
		horizon = s.defaultHorizon
	}

	now := requestcontext.Now(ctx)
	for attempt := 1; ; attempt++ {
		raw, err := secrets.GenerateHex(models.CodeBytes)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate invitation code")
		}
		code, err := models.NewInvitationCode(raw, issuerID, now, horizon)
		if err != nil {
			return nil, err
		}
		err = s.store.Create(ctx, code)
		if err == nil {
			span.SetAttributes(attribute.String("invitation_id", code.ID.String()))
			s.logger.InfoContext(ctx, string(audit.EventInvitationIssued),
				"event", string(audit.EventInvitationIssued),
				"log_type", "audit",
				"user_id", issuerID.String(),
				"invitation_id", code.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			s.emit(ctx, issuerID, code)
			if s.metrics != nil {
				s.metrics.IncrementInvitationsIssued()
			}
			return code, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) || attempt == maxCodeAttempts {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invitation code")
		}
	}
}

// ListIssued returns the codes issuerID has minted, oldest first.
func (s *Service) ListIssued(ctx context.Context, issuerID id.UserID) ([]*models.InvitationCode, error) {
	if err := s.requireAdmin(ctx, issuerID); err != nil {
		return nil, err
	}
	codes, err := s.store.ListByIssuer(ctx, issuerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invitation codes")
	}
	return codes, nil
}

func (s *Service) requireAdmin(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "account no longer exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "only admins can issue invitation codes")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, issuerID id.UserID, code *models.InvitationCode) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    issuerID,
		Subject:   code.ID.String(),
		Action:    string(audit.EventInvitationIssued),
		RequestID: requestcontext.RequestID(ctx),
		IP:        requestcontext.ClientIP(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(audit.EventInvitationIssued), "error", err)
	}
}
