package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"cliquey/internal/auth/models"
	"cliquey/internal/auth/secrets"
	invitationModels "cliquey/internal/invitation/models"
	"cliquey/internal/platform/metrics"
	"cliquey/pkg/attrs"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/tx"
	"cliquey/pkg/requestcontext"
)

var tracer = otel.Tracer("cliquey/internal/auth/service")

const DefaultSessionTTL = 12 * time.Hour

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

// InvitationLedger is the part of the invitation store registration needs.
type InvitationLedger interface {
	FindByCode(ctx context.Context, code string) (*invitationModels.InvitationCode, error)
	Consume(ctx context.Context, code string, userID id.UserID, now time.Time) (*invitationModels.InvitationCode, error)
}

// RevocationList records logged-out sessions until their tokens expire.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenIssuer interface {
	GenerateSessionToken(userID id.UserID, sessionID id.SessionID, now time.Time, ttl time.Duration) (string, time.Time, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs registration, login and logout.
type Service struct {
	users          UserStore
	invitations    InvitationLedger
	trl            RevocationList
	tokens         TokenIssuer
	tx             tx.Runner
	sessionTTL     time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func New(users UserStore, invitations InvitationLedger, trl RevocationList, tokens TokenIssuer, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		users:       users,
		invitations: invitations,
		trl:         trl,
		tokens:      tokens,
		tx:          runner,
		sessionTTL:  DefaultSessionTTL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := secrets.PrepareDummy(); err != nil {
		s.logger.Warn("dummy password hash not prepared", "error", err)
	}
	return s
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)

	if s.auditPublisher == nil {
		return
	}
	userIDStr := attrs.ExtractString(attributes, "user_id")
	userID, _ := id.ParseUserID(userIDStr)
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   attrs.ExtractString(attributes, "subject"),
		Action:    string(event),
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: requestID,
		IP:        requestcontext.ClientIP(ctx),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func (s *Service) incrementLogins(result string) {
	if s.metrics != nil {
		s.metrics.IncrementLogins(result)
	}
}
