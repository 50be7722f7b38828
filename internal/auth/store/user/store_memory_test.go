package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cliquey/internal/auth/models"
	id "cliquey/pkg/domain"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = New()
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func newUser(login string) *models.User {
	return &models.User{
		ID:           id.NewUserID(),
		PublicID:     id.NewPublicID(),
		Login:        login,
		PasswordHash: "$2a$hash",
		Role:         models.RoleUser,
		CreatedAt:    time.Now(),
	}
}

func (s *InMemoryUserStoreSuite) TestLookupBehavior() {
	ctx := context.Background()
	u := newUser("jane@example.com")
	s.Require().NoError(s.store.Create(ctx, u))

	s.Run("by ID", func() {
		found, err := s.store.FindByID(ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(u, found)
	})

	s.Run("by login", func() {
		found, err := s.store.FindByLogin(ctx, "jane@example.com")
		s.Require().NoError(err)
		s.Equal(u.ID, found.ID)
	})

	s.Run("missing ID", func() {
		_, err := s.store.FindByID(ctx, id.NewUserID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("missing login", func() {
		_, err := s.store.FindByLogin(ctx, "nobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned copies do not alias store state", func() {
		found, err := s.store.FindByID(ctx, u.ID)
		s.Require().NoError(err)
		found.Role = models.RoleAdmin

		again, err := s.store.FindByID(ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(models.RoleUser, again.Role)
	})
}

func (s *InMemoryUserStoreSuite) TestDuplicateLogin() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newUser("dup")))

	err := s.store.Create(ctx, newUser("dup"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	n, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *InMemoryUserStoreSuite) TestCreateIsUndoneOnRollback() {
	runner := tx.NewMemoryRunner()
	u := newUser("rolled-back")

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := s.store.Create(ctx, u); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	_, err = s.store.FindByLogin(context.Background(), "rolled-back")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
