// Package store persists profiles. Both implementations return
// pkg/platform/sentinel errors and honor transactions opened by pkg/platform/tx.
package store

import (
	"cliquey/internal/profile/models"
)

// rankBefore orders profiles for the public listing: highest average first,
// then oldest, then by ID.
func rankBefore(a, b *models.Profile) bool {
	if a.AverageRating != b.AverageRating {
		return a.AverageRating > b.AverageRating
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
