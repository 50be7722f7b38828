package models

import (
	"net/url"
	"strconv"

	dErrors "cliquey/pkg/domain-errors"
	platformstrings "cliquey/pkg/platform/strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type RateRequest struct {
	Rating int `json:"rating"`
}

func (r *RateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return ValidateRating(r.Rating)
}

// SearchQuery is a parsed public listing request. An empty Terms slice matches
// every profile.
type SearchQuery struct {
	Terms  []string
	Limit  int
	Offset int
}

// ParseSearchQuery reads q, limit and offset from a query string.
func ParseSearchQuery(values url.Values) (SearchQuery, error) {
	query := SearchQuery{
		Terms: platformstrings.SearchTerms(values.Get("q")),
		Limit: DefaultPageSize,
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxPageSize {
			return SearchQuery{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 100")
		}
		query.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return SearchQuery{}, dErrors.New(dErrors.CodeInvalidInput, "offset must be a non-negative integer")
		}
		query.Offset = offset
	}
	return query, nil
}

type ProfileListResponse struct {
	Profiles []*Profile `json:"profiles"`
}

type SearchResponse struct {
	Profiles []PublicProfile `json:"profiles"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}
