package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cliquey/internal/invitation/models"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
)

// InMemoryStore keeps invitation codes in a map keyed by code. Consume
// registers an undo step so a rolled-back registration leaves the code
// redeemable.
type InMemoryStore struct {
	mu    sync.RWMutex
	codes map[string]*models.InvitationCode
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{codes: make(map[string]*models.InvitationCode)}
}

func (s *InMemoryStore) Create(ctx context.Context, code *models.InvitationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[code.Code]; exists {
		return fmt.Errorf("invitation code: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *code
	s.codes[code.Code] = &cp

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.codes, code.Code)
	})
	return nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string) (*models.InvitationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.codes[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Consume marks code redeemed by userID if it is still redeemable at now.
// Check and write happen under one lock.
func (s *InMemoryStore) Consume(ctx context.Context, code string, userID id.UserID, now time.Time) (*models.InvitationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	before := *c
	if err := c.Consume(userID, now); err != nil {
		return nil, fmt.Errorf("consume invitation code: %w", sentinel.ErrInvalidState)
	}

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		restored := before
		s.codes[code] = &restored
	})

	cp := *c
	return &cp, nil
}

// ListByIssuer returns the issuer's codes oldest first.
func (s *InMemoryStore) ListByIssuer(_ context.Context, issuer id.UserID) ([]*models.InvitationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.InvitationCode, 0)
	for _, c := range s.codes {
		if c.IssuerID == issuer {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
