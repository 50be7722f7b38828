package models

import (
	"time"

	dErrors "cliquey/pkg/domain-errors"
)

// GenerateCodeRequest is the body of POST /generate_code. All fields optional.
type GenerateCodeRequest struct {
	ExpiresInDays int `json:"expires_in_days,omitempty"`
}

func (r *GenerateCodeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	// The 1..365 range is enforced by the issuing service once the caller is
	// known to be an admin.
	if r.ExpiresInDays < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "expires_in_days must be between 1 and 365")
	}
	return nil
}

type GenerateCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type InvitationListResponse struct {
	Invitations []*InvitationCode `json:"invitations"`
}
