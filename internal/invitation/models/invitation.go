package models

import (
	"time"

	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
)

const (
	// CodeBytes is the entropy of a generated code: 128 bits, hex encoded.
	CodeBytes = 16

	// MaxHorizonDays bounds an explicit expires_in_days.
	MaxHorizonDays = 365

	DefaultHorizon = 30 * 24 * time.Hour
	MaxHorizon     = MaxHorizonDays * 24 * time.Hour
)

// InvitationCode gates registration.
//
// Invariants:
//   - Redeemable at most once, and only while now < ExpiresAt
//   - ConsumedBy and ConsumedAt are set together with Consumed
type InvitationCode struct {
	ID         id.InvitationID `json:"id"`
	Code       string          `json:"code"`
	IssuerID   id.UserID       `json:"issuer_id"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Consumed   bool            `json:"consumed"`
	ConsumedBy *id.UserID      `json:"consumed_by,omitempty"`
	ConsumedAt *time.Time      `json:"consumed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewInvitationCode builds an unconsumed code valid for horizon from now.
func NewInvitationCode(code string, issuer id.UserID, now time.Time, horizon time.Duration) (*InvitationCode, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "code is required")
	}
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer is required")
	}
	if horizon <= 0 || horizon > MaxHorizon {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "horizon must be between 1 and 365 days")
	}
	return &InvitationCode{
		ID:        id.NewInvitationID(),
		Code:      code,
		IssuerID:  issuer,
		ExpiresAt: now.Add(horizon),
		CreatedAt: now,
	}, nil
}

// IsRedeemableAt reports whether the code can still be consumed at now.
func (c *InvitationCode) IsRedeemableAt(now time.Time) bool {
	return !c.Consumed && now.Before(c.ExpiresAt)
}

// Consume marks the code as redeemed by userID.
func (c *InvitationCode) Consume(userID id.UserID, now time.Time) error {
	if !c.IsRedeemableAt(now) {
		return dErrors.New(dErrors.CodeInvalidInvitation, "invitation code is invalid or expired")
	}
	c.Consumed = true
	c.ConsumedBy = &userID
	c.ConsumedAt = &now
	return nil
}

// HorizonFromDays converts an optional day count into a horizon. Zero means the
// default.
func HorizonFromDays(days int) (time.Duration, error) {
	if days == 0 {
		return DefaultHorizon, nil
	}
	if days < 1 || days > MaxHorizonDays {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "expires_in_days must be between 1 and 365")
	}
	return time.Duration(days) * 24 * time.Hour, nil
}
