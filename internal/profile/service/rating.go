package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"cliquey/internal/profile/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
)

// maxRateAttempts is one try plus one retry after a serialization conflict.
const maxRateAttempts = 2

// Rate folds rating into the profile's aggregate. The profile is addressed by
// its public ID, the only identifier other users see.
func (s *Service) Rate(ctx context.Context, raterID id.UserID, publicID id.PublicID, rating int) (*models.Profile, error) {
	ctx, span := tracer.Start(ctx, "profile.Rate")
	defer span.End()

	if raterID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := models.ValidateRating(rating); err != nil {
		return nil, err
	}

	target, err := s.store.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load profile")
	}
	if target.OwnerID == raterID {
		return nil, dErrors.New(dErrors.CodeSelfRatingForbidden, "you cannot rate your own profile")
	}
	span.SetAttributes(attribute.String("profile_id", target.ID.String()))

	var rated *models.Profile
	for attempt := 1; ; attempt++ {
		rated, err = s.applyRating(ctx, target.ID, raterID, rating)
		if err == nil {
			break
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, err
		}
		if attempt == maxRateAttempts {
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeTemporaryFailure, "rating could not be recorded, try again")
		}
		s.incrementRetries("rate")
	}

	s.logAudit(ctx, audit.EventProfileRated,
		"user_id", rated.OwnerID.String(),
		"subject", rated.ID.String(),
		"actor_id", raterID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementRatings()
	}
	return rated, nil
}

// applyRating runs one locked read-modify-write of the aggregate. Store
// conflicts are returned raw so Rate can retry them.
func (s *Service) applyRating(ctx context.Context, profileID id.ProfileID, raterID id.UserID, rating int) (*models.Profile, error) {
	var rated *models.Profile
	err := s.tx.RunInTx(tx.WithLockKey(ctx, profileID.String()), func(ctx context.Context) error {
		p, err := s.store.FindByIDForUpdate(ctx, profileID)
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return err
			}
			return translateStoreError(err, "failed to load profile")
		}
		if p.OwnerID == raterID {
			return dErrors.New(dErrors.CodeSelfRatingForbidden, "you cannot rate your own profile")
		}
		if err := p.ApplyRating(rating); err != nil {
			return err
		}
		if err := s.store.UpdateRating(ctx, p); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return err
			}
			return translateStoreError(err, "failed to record rating")
		}
		rated = p
		return nil
	})
	return rated, err
}
