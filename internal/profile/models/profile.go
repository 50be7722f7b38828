package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
)

// Column widths of the profiles table.
const (
	MaxNameLen     = 100
	MaxPhoneLen    = 20
	MaxLinkedInLen = 200
	MaxBioLen      = 300

	MinRating = 1
	MaxRating = 5
)

// Profile is a user-authored record with a public view and a rating aggregate.
//
// Invariants:
//   - Name is non-empty
//   - AverageRating == RatingsSum / NumRatings when NumRatings > 0, else 0
//   - VisitCount never decreases
type Profile struct {
	ID            id.ProfileID `json:"id"`
	PublicID      id.PublicID  `json:"public_id"`
	OwnerID       id.UserID    `json:"owner_id"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone"`
	LinkedIn      string       `json:"linkedin"`
	Bio           string       `json:"bio"`
	VisitCount    int64        `json:"visit_count"`
	RatingsSum    int64        `json:"ratings_sum"`
	NumRatings    int64        `json:"num_ratings"`
	AverageRating float64      `json:"average_rating"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Fields are the owner-editable parts of a profile.
type Fields struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	LinkedIn string `json:"linkedin"`
	Bio      string `json:"bio"`
}

func (f *Fields) Normalize() {
	if f == nil {
		return
	}
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.LinkedIn = strings.TrimSpace(f.LinkedIn)
	f.Bio = strings.TrimSpace(f.Bio)
}

func (f *Fields) Validate() error {
	if f == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if f.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if len(f.Name) > MaxNameLen {
		return dErrors.New(dErrors.CodeInvalidInput, "name must be at most 100 characters")
	}
	if len(f.Phone) > MaxPhoneLen {
		return dErrors.New(dErrors.CodeInvalidInput, "phone must be at most 20 characters")
	}
	if len(f.LinkedIn) > MaxLinkedInLen {
		return dErrors.New(dErrors.CodeInvalidInput, "linkedin must be at most 200 characters")
	}
	if f.LinkedIn != "" && !govalidator.IsURL(f.LinkedIn) {
		return dErrors.New(dErrors.CodeInvalidInput, "linkedin must be a URL")
	}
	if len(f.Bio) > MaxBioLen {
		return dErrors.New(dErrors.CodeInvalidInput, "bio must be at most 300 characters")
	}
	return nil
}

// NewProfile builds a profile for owner with zeroed counters.
func NewProfile(owner id.UserID, fields Fields, now time.Time) (*Profile, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner is required")
	}
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	return &Profile{
		ID:        id.NewProfileID(),
		PublicID:  id.NewPublicID(),
		OwnerID:   owner,
		Name:      fields.Name,
		Phone:     fields.Phone,
		LinkedIn:  fields.LinkedIn,
		Bio:       fields.Bio,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Profile) IsOwnedBy(userID id.UserID) bool {
	return !userID.IsNil() && p.OwnerID == userID
}

// ApplyFields overwrites the mutable fields. fields must already be valid.
func (p *Profile) ApplyFields(fields Fields, now time.Time) {
	p.Name = fields.Name
	p.Phone = fields.Phone
	p.LinkedIn = fields.LinkedIn
	p.Bio = fields.Bio
	p.UpdatedAt = now
}

// ApplyRating folds one rating into the aggregate.
func (p *Profile) ApplyRating(rating int) error {
	if err := ValidateRating(rating); err != nil {
		return err
	}
	p.RatingsSum += int64(rating)
	p.NumRatings++
	p.AverageRating = Average(p.RatingsSum, p.NumRatings)
	return nil
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return dErrors.New(dErrors.CodeInvalidInput, "rating must be between 1 and 5")
	}
	return nil
}

// Average returns sum/count, or 0 when nothing has been rated.
func Average(sum, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// PublicProfile is what anonymous visitors see. Owner and internal IDs stay
// private.
type PublicProfile struct {
	PublicID      id.PublicID `json:"public_id"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone"`
	LinkedIn      string      `json:"linkedin"`
	Bio           string      `json:"bio"`
	VisitCount    int64       `json:"visit_count"`
	NumRatings    int64       `json:"num_ratings"`
	AverageRating float64     `json:"average_rating"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		PublicID:      p.PublicID,
		Name:          p.Name,
		Phone:         p.Phone,
		LinkedIn:      p.LinkedIn,
		Bio:           p.Bio,
		VisitCount:    p.VisitCount,
		NumRatings:    p.NumRatings,
		AverageRating: p.AverageRating,
		CreatedAt:     p.CreatedAt,
	}
}
