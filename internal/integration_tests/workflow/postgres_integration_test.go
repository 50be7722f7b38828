//go:build integration

package workflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	authModels "cliquey/internal/auth/models"
	"cliquey/internal/auth/secrets"
	authService "cliquey/internal/auth/service"
	"cliquey/internal/auth/store/revocation"
	userStore "cliquey/internal/auth/store/user"
	invitationModels "cliquey/internal/invitation/models"
	invitationStore "cliquey/internal/invitation/store"
	jwttoken "cliquey/internal/jwt_token"
	profileModels "cliquey/internal/profile/models"
	profileService "cliquey/internal/profile/service"
	profileStore "cliquey/internal/profile/store"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/sentinel"
	"cliquey/pkg/platform/tx"
	"cliquey/pkg/testutil/containers"
)

// failingLedger consumes the code inside the transaction and then fails.
type failingLedger struct {
	*invitationStore.PostgresStore
}

func (l failingLedger) Consume(ctx context.Context, code string, userID id.UserID, now time.Time) (*invitationModels.InvitationCode, error) {
	if _, err := l.PostgresStore.Consume(ctx, code, userID, now); err != nil {
		return nil, err
	}
	return nil, errors.New("injected fault")
}

type WorkflowSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	users       *userStore.PostgresStore
	invitations *invitationStore.PostgresStore
	profiles    *profileStore.PostgresStore
	runner      *tx.PostgresRunner
	auth        *authService.Service
	profile     *profileService.Service
	admin       *authModels.User
}

func TestWorkflowSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupSuite() {
	secrets.Cost = bcrypt.MinCost
	s.postgres = containers.GetManager().GetPostgres(s.T())
	db := s.postgres.DB
	s.users = userStore.NewPostgres(db)
	s.invitations = invitationStore.NewPostgres(db)
	s.profiles = profileStore.NewPostgres(db)
	s.runner = tx.NewPostgresRunner(db, tx.WithTimeout(5*time.Second))
	jwt := jwttoken.NewJWTService("integration-key", "cliquey", "cliquey-api")
	s.auth = authService.New(s.users, s.invitations, revocation.NewPostgresTRL(db), jwt, s.runner)
	s.profile = profileService.New(s.profiles, s.runner)
}

func (s *WorkflowSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "profiles", "invitation_codes", "token_revocations", "users"))

	_, err := s.auth.EnsureAdmin(ctx, "admin", "admin-password")
	s.Require().NoError(err)
	s.admin, err = s.users.FindByLogin(ctx, "admin")
	s.Require().NoError(err)
}

func (s *WorkflowSuite) issueCode(code string, ttl time.Duration) {
	inv, err := invitationModels.NewInvitationCode(code, s.admin.ID, time.Now(), ttl)
	s.Require().NoError(err)
	s.Require().NoError(s.invitations.Create(context.Background(), inv))
}

func (s *WorkflowSuite) register(login, code string) (*authModels.User, error) {
	return s.auth.Register(context.Background(), &authModels.RegisterRequest{
		Login:          login,
		Password:       "member-password",
		InvitationCode: code,
	})
}

func (s *WorkflowSuite) TestRegistrationConsumesCode() {
	s.issueCode("ABC123", time.Hour)

	user, err := s.register("alice", "ABC123")
	s.Require().NoError(err)

	inv, err := s.invitations.FindByCode(context.Background(), "ABC123")
	s.Require().NoError(err)
	s.True(inv.Consumed)
	s.Require().NotNil(inv.ConsumedBy)
	s.Equal(user.ID, *inv.ConsumedBy)

	_, err = s.register("bob", "ABC123")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInvitation))
}

func (s *WorkflowSuite) TestFaultBetweenWritesRollsBackBoth() {
	s.issueCode("FAULT1", time.Hour)
	faulty := authService.New(s.users, failingLedger{s.invitations}, revocation.NewPostgresTRL(s.postgres.DB),
		jwttoken.NewJWTService("k", "cliquey", "cliquey-api"), s.runner)

	_, err := faulty.Register(context.Background(), &authModels.RegisterRequest{
		Login:          "carol",
		Password:       "member-password",
		InvitationCode: "FAULT1",
	})
	s.Require().Error(err)

	_, err = s.users.FindByLogin(context.Background(), "carol")
	s.ErrorIs(err, sentinel.ErrNotFound)
	inv, err := s.invitations.FindByCode(context.Background(), "FAULT1")
	s.Require().NoError(err)
	s.False(inv.Consumed)
}

func (s *WorkflowSuite) TestConcurrentRedemptionHasOneWinner() {
	s.issueCode("RACE01", time.Hour)

	const attempts = 20
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			login := "racer" + string(rune('a'+i))
			if _, err := s.register(login, "RACE01"); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *WorkflowSuite) TestConcurrentRatingsAreAllCounted() {
	s.issueCode("OWNER1", time.Hour)
	owner, err := s.register("owner", "OWNER1")
	s.Require().NoError(err)
	p, err := s.profile.Create(context.Background(), owner.ID, profileModels.Fields{Name: "Owner"})
	s.Require().NoError(err)

	const raters = 30
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := range raters {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			if _, err := s.profile.Rate(context.Background(), id.NewUserID(), p.PublicID, rating); err != nil {
				failures.Add(1)
			}
		}(i%5 + 1)
	}
	wg.Wait()
	s.Require().Zero(failures.Load())

	stored, err := s.profiles.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(int64(raters), stored.NumRatings)
	s.Equal(int64(6*(1+2+3+4+5)), stored.RatingsSum)
	s.InDelta(3.0, stored.AverageRating, 1e-9)
}

func (s *WorkflowSuite) TestConcurrentViewsAreAllCounted() {
	s.issueCode("VIEWS1", time.Hour)
	owner, err := s.register("viewed", "VIEWS1")
	s.Require().NoError(err)
	p, err := s.profile.Create(context.Background(), owner.ID, profileModels.Fields{Name: "Viewed"})
	s.Require().NoError(err)

	const views = 40
	var wg sync.WaitGroup
	for range views {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.profile.View(context.Background(), p.PublicID)
		}()
	}
	wg.Wait()

	stored, err := s.profiles.FindByID(context.Background(), p.ID)
	s.Require().NoError(err)
	s.Equal(int64(views), stored.VisitCount)
}

func (s *WorkflowSuite) TestRevocationPurge() {
	trl := revocation.NewPostgresTRL(s.postgres.DB)
	ctx := context.Background()
	s.Require().NoError(trl.RevokeToken(ctx, "short-lived", time.Millisecond))
	s.Require().NoError(trl.RevokeToken(ctx, "long-lived", time.Hour))

	time.Sleep(10 * time.Millisecond)
	n, err := trl.PurgeExpired(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	revoked, err := trl.IsRevoked(ctx, "long-lived")
	s.Require().NoError(err)
	s.True(revoked)
}
