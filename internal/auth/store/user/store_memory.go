package user

import (
	"context"
	"fmt"
	"sync"

	"cliquey/internal/auth/models"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
)

// InMemoryUserStore is a thread-safe in-memory user store. Inside a
// tx.MemoryRunner transaction, Create registers an undo step.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byLogin map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byLogin: make(map[string]id.UserID),
	}
}

// Create inserts the user unless its login is taken.
func (s *InMemoryUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byLogin[user.Login]; exists {
		return fmt.Errorf("login %q: %w", user.Login, sentinel.ErrAlreadyUsed)
	}
	cp := *user
	s.users[user.ID] = &cp
	s.byLogin[user.Login] = user.ID

	tx.RecordUndo(ctx, func() { s.remove(user.ID) })
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryUserStore) FindByLogin(_ context.Context, login string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byLogin[login]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.users[userID]
	return &cp, nil
}

func (s *InMemoryUserStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *InMemoryUserStore) remove(userID id.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		delete(s.byLogin, u.Login)
		delete(s.users, userID)
	}
}
