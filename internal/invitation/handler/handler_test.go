package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"cliquey/internal/invitation/handler/mocks"
	"cliquey/internal/invitation/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/invitation-mocks.go -package=mocks Service
type InvitationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	adminID id.UserID
}

func TestInvitationHandlerSuite(t *testing.T) {
	suite.Run(t, new(InvitationHandlerSuite))
}

func (s *InvitationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.adminID = id.NewUserID()
}

func (s *InvitationHandlerSuite) TestGenerateCode() {
	expiresAt := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	s.Run("empty body uses default horizon", func() {
		s.service.EXPECT().Issue(gomock.Any(), s.adminID, 0).
			Return(&models.InvitationCode{Code: "0123456789abcdef0123456789abcdef", ExpiresAt: expiresAt}, nil)

		req := testutil.WithAuth(testutil.NewRequest(s.T(), http.MethodPost, "/generate_code"), s.adminID, id.NewSessionID())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "code", "0123456789abcdef0123456789abcdef")
		testutil.AssertJSONContains(s.T(), rr, "expires_at", "2026-07-01T00:00:00Z")
	})

	s.Run("explicit horizon", func() {
		s.service.EXPECT().Issue(gomock.Any(), s.adminID, 7).
			Return(&models.InvitationCode{Code: "c", ExpiresAt: expiresAt}, nil)

		req := testutil.WithAuth(testutil.NewJSONRequest(s.T(), http.MethodPost, "/generate_code",
			map[string]int{"expires_in_days": 7}), s.adminID, id.NewSessionID())
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusCreated)
	})

	s.Run("horizon out of range", func() {
		s.service.EXPECT().Issue(gomock.Any(), s.adminID, 366).
			Return(nil, dErrors.New(dErrors.CodeInvalidInput, "expires_in_days must be between 1 and 365"))

		req := testutil.WithAuth(testutil.NewJSONRequest(s.T(), http.MethodPost, "/generate_code",
			map[string]int{"expires_in_days": 366}), s.adminID, id.NewSessionID())
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("negative horizon rejected before the service", func() {
		req := testutil.WithAuth(testutil.NewJSONRequest(s.T(), http.MethodPost, "/generate_code",
			map[string]int{"expires_in_days": -1}), s.adminID, id.NewSessionID())
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("non-admin forbidden", func() {
		s.service.EXPECT().Issue(gomock.Any(), gomock.Any(), 0).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "only admins can issue invitation codes"))

		req := testutil.WithAuth(testutil.NewRequest(s.T(), http.MethodPost, "/generate_code"), id.NewUserID(), id.NewSessionID())
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("anonymous rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/generate_code"))
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *InvitationHandlerSuite) TestListInvitations() {
	s.service.EXPECT().ListIssued(gomock.Any(), s.adminID).
		Return([]*models.InvitationCode{{Code: "a"}, {Code: "b"}}, nil)

	req := testutil.WithAuth(testutil.NewRequest(s.T(), http.MethodGet, "/invitations"), s.adminID, id.NewSessionID())
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[models.InvitationListResponse](s.T(), rr)
	s.Len(resp.Invitations, 2)
}
