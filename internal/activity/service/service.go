// Package service exposes the audit trail for reading: each account sees its
// own events, admins see the most recent events across all accounts.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cliquey/internal/activity/models"
	authModels "cliquey/internal/auth/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/sentinel"
)

var tracer = otel.Tracer("cliquey/internal/activity/service")

// Reader is the read half of audit.Store.
type Reader interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, userID id.UserID) (*authModels.User, error)
}

type Service struct {
	events Reader
	users  UserFinder
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(events Reader, users UserFinder, opts ...Option) *Service {
	s := &Service{events: events, users: users, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListMine returns the events recorded about userID, oldest first.
func (s *Service) ListMine(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	ctx, span := tracer.Start(ctx, "activity.ListMine")
	defer span.End()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activity")
	}
	span.SetAttributes(attribute.Int("events", len(events)))
	return events, nil
}

// ListRecent returns up to limit events across all accounts, newest first.
// Only admins may call it. limit is clamped to [1, models.MaxRecentLimit].
func (s *Service) ListRecent(ctx context.Context, requesterID id.UserID, limit int) ([]audit.Event, error) {
	ctx, span := tracer.Start(ctx, "activity.ListRecent")
	defer span.End()

	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}
	limit = models.ClampLimit(limit)
	span.SetAttributes(attribute.Int("limit", limit))

	events, err := s.events.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recent activity")
	}
	s.logger.InfoContext(ctx, "recent activity read",
		"log_type", "audit",
		"user_id", requesterID.String(),
		"limit", limit,
		"returned", len(events),
	)
	return events, nil
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
		return dErrors.New(dErrors.CodeForbidden, "only admins can read the audit trail")
	}
	return nil
}
