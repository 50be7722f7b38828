package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cliquey/internal/profile/models"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
)

// InMemoryStore keeps profiles in process memory. Aggregate writes are made
// atomic by the caller's tx.MemoryRunner; every mutation registers an undo step.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]*models.Profile
	byPublic map[id.PublicID]id.ProfileID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[id.ProfileID]*models.Profile),
		byPublic: make(map[id.PublicID]id.ProfileID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.ID]; exists {
		return fmt.Errorf("profile %s: %w", p.ID, sentinel.ErrAlreadyUsed)
	}
	if _, exists := s.byPublic[p.PublicID]; exists {
		return fmt.Errorf("profile public id: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *p
	s.profiles[p.ID] = &cp
	s.byPublic[p.PublicID] = p.ID

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.profiles, p.ID)
		delete(s.byPublic, p.PublicID)
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// FindByIDForUpdate is FindByID. Row locking is the runner's job in memory.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.FindByID(ctx, profileID)
}

func (s *InMemoryStore) FindByPublicID(_ context.Context, publicID id.PublicID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profileID, ok := s.byPublic[publicID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.profiles[profileID]
	return &cp, nil
}

// Update overwrites the owner-editable fields.
func (s *InMemoryStore) Update(ctx context.Context, p *models.Profile) error {
	return s.mutate(ctx, p, copyEditable)
}

// UpdateRating persists the three aggregate fields together.
func (s *InMemoryStore) UpdateRating(ctx context.Context, p *models.Profile) error {
	return s.mutate(ctx, p, copyRating)
}

func (s *InMemoryStore) Delete(ctx context.Context, profileID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.profiles, profileID)
	delete(s.byPublic, p.PublicID)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.profiles[p.ID] = p
		s.byPublic[p.PublicID] = p.ID
	})
	return nil
}

// IncrementVisits adds one visit and returns the updated snapshot.
func (s *InMemoryStore) IncrementVisits(ctx context.Context, publicID id.PublicID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profileID, ok := s.byPublic[publicID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.profiles[profileID]
	p.VisitCount++
	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		p.VisitCount--
	})
	cp := *p
	return &cp, nil
}

// ListByOwner returns owner's profiles in creation order.
func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.UserID) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Profile, 0)
	for _, p := range s.profiles {
		if p.OwnerID == owner {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Search returns one page of profiles where every term is a case-insensitive
// substring of at least one text field.
func (s *InMemoryStore) Search(_ context.Context, query models.SearchQuery) ([]*models.Profile, error) {
	s.mu.RLock()
	matched := make([]*models.Profile, 0)
	for _, p := range s.profiles {
		if matchesAll(p, query.Terms) {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return rankBefore(matched[i], matched[j]) })

	if query.Offset >= len(matched) {
		return []*models.Profile{}, nil
	}
	end := len(matched)
	if query.Limit > 0 && query.Offset+query.Limit < end {
		end = query.Offset + query.Limit
	}
	return matched[query.Offset:end], nil
}

func matchesAll(p *models.Profile, terms []string) bool {
	fields := []string{
		strings.ToLower(p.Name),
		strings.ToLower(p.Phone),
		strings.ToLower(p.LinkedIn),
		strings.ToLower(p.Bio),
	}
	for _, term := range terms {
		found := false
		for _, f := range fields {
			if strings.Contains(f, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func copyEditable(dst, src *models.Profile) {
	dst.Name = src.Name
	dst.Phone = src.Phone
	dst.LinkedIn = src.LinkedIn
	dst.Bio = src.Bio
	dst.UpdatedAt = src.UpdatedAt
}

func copyRating(dst, src *models.Profile) {
	dst.RatingsSum = src.RatingsSum
	dst.NumRatings = src.NumRatings
	dst.AverageRating = src.AverageRating
}

// mutate copies one field group from p into the stored profile. The undo step
// restores only that group, so concurrent visit counts survive a rollback.
func (s *InMemoryStore) mutate(ctx context.Context, p *models.Profile, copyFields func(dst, src *models.Profile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.profiles[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	before := *stored
	copyFields(stored, p)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.profiles[p.ID]; ok {
			copyFields(current, &before)
		}
	})
	return nil
}
