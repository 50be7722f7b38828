package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cliquey/internal/platform/metrics"
	"cliquey/internal/profile/models"
	"cliquey/pkg/attrs"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/sentinel"
	platformstrings "cliquey/pkg/platform/strings"
	"cliquey/pkg/platform/tx"
	"cliquey/pkg/requestcontext"
)

var tracer = otel.Tracer("cliquey/internal/profile/service")

type Store interface {
	Create(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	FindByPublicID(ctx context.Context, publicID id.PublicID) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
	UpdateRating(ctx context.Context, p *models.Profile) error
	Delete(ctx context.Context, profileID id.ProfileID) error
	IncrementVisits(ctx context.Context, publicID id.PublicID) (*models.Profile, error)
	ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Profile, error)
	Search(ctx context.Context, query models.SearchQuery) ([]*models.Profile, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the profile lifecycle and rating aggregation.
type Service struct {
	store          Store
	tx             tx.Runner
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

func New(store Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{store: store, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new profile owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID id.UserID, fields models.Fields) (*models.Profile, error) {
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	p, err := models.NewProfile(ownerID, fields, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}
	s.logAudit(ctx, audit.EventProfileCreated,
		"user_id", ownerID.String(),
		"subject", p.ID.String(),
	)
	return p, nil
}

// Edit overwrites the mutable fields of a profile the caller owns.
func (s *Service) Edit(ctx context.Context, userID id.UserID, profileID id.ProfileID, fields models.Fields) (*models.Profile, error) {
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	var updated *models.Profile
	err := s.tx.RunInTx(tx.WithLockKey(ctx, profileID.String()), func(ctx context.Context) error {
		p, err := s.loadOwned(ctx, userID, profileID)
		if err != nil {
			return err
		}
		p.ApplyFields(fields, requestcontext.Now(ctx))
		if err := s.store.Update(ctx, p); err != nil {
			return translateStoreError(err, "failed to update profile")
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventProfileUpdated,
		"user_id", userID.String(),
		"subject", profileID.String(),
	)
	return updated, nil
}

// Delete removes a profile the caller owns.
func (s *Service) Delete(ctx context.Context, userID id.UserID, profileID id.ProfileID) error {
	err := s.tx.RunInTx(tx.WithLockKey(ctx, profileID.String()), func(ctx context.Context) error {
		if _, err := s.loadOwned(ctx, userID, profileID); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, profileID); err != nil {
			return translateStoreError(err, "failed to delete profile")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventProfileDeleted,
		"user_id", userID.String(),
		"subject", profileID.String(),
	)
	return nil
}

// View returns the public snapshot and counts the visit. Each call adds
// exactly one visit.
func (s *Service) View(ctx context.Context, publicID id.PublicID) (*models.Profile, error) {
	var (
		p   *models.Profile
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		p, err = s.store.IncrementVisits(ctx, publicID)
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		s.incrementRetries("view")
	}
	if err != nil {
		return nil, translateStoreError(err, "failed to load profile")
	}
	if s.metrics != nil {
		s.metrics.IncrementProfileViews()
	}
	return p, nil
}

// ListOwned returns the caller's profiles in creation order.
func (s *Service) ListOwned(ctx context.Context, userID id.UserID) ([]*models.Profile, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	profiles, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list profiles")
	}
	return profiles, nil
}

// Search returns one page of the public listing.
func (s *Service) Search(ctx context.Context, query models.SearchQuery) ([]*models.Profile, error) {
	ctx, span := tracer.Start(ctx, "profile.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("terms", len(query.Terms)), attribute.Int("limit", query.Limit))

	if query.Limit <= 0 {
		query.Limit = models.DefaultPageSize
	}
	if query.Limit > models.MaxPageSize {
		query.Limit = models.MaxPageSize
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	query.Terms = platformstrings.DedupeLower(query.Terms)
	profiles, err := s.store.Search(ctx, query)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search profiles")
	}
	return profiles, nil
}

// loadOwned locks the profile and checks that userID owns it.
func (s *Service) loadOwned(ctx context.Context, userID id.UserID, profileID id.ProfileID) (*models.Profile, error) {
	p, err := s.store.FindByIDForUpdate(ctx, profileID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load profile")
	}
	if !p.IsOwnedBy(userID) {
		s.logger.WarnContext(ctx, "profile ownership check failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"profile_id", profileID.String(),
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "you do not own this profile")
	}
	return p, nil
}

func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeTemporaryFailure, "profile is busy, try again")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) incrementRetries(operation string) {
	if s.metrics != nil {
		s.metrics.IncrementTxRetries(operation)
	}
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
	userID, _ := id.ParseUserID(attrs.ExtractString(attributes, "user_id"))
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Subject:   attrs.ExtractString(attributes, "subject"),
		Action:    string(event),
		ActorID:   attrs.ExtractString(attributes, "actor_id"),
		RequestID: requestID,
		IP:        requestcontext.ClientIP(ctx),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
