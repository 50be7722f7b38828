package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"cliquey/internal/activity/handler/mocks"
	"cliquey/internal/activity/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/activity-mocks.go -package=mocks Service
type ActivityHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	userID  id.UserID
}

func TestActivityHandlerSuite(t *testing.T) {
	suite.Run(t, new(ActivityHandlerSuite))
}

func (s *ActivityHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.userID = id.NewUserID()
}

func (s *ActivityHandlerSuite) authed(path string) *http.Request {
	return testutil.WithAuth(testutil.NewRequest(s.T(), http.MethodGet, path), s.userID, id.NewSessionID())
}

func (s *ActivityHandlerSuite) TestMyActivity() {
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	s.Run("returns own events", func() {
		s.service.EXPECT().ListMine(gomock.Any(), s.userID).Return([]audit.Event{
			{Category: audit.CategoryCompliance, Action: "user_registered", UserID: s.userID, IP: "10.1.1.1", Timestamp: at},
		}, nil)

		rr := testutil.DoRequest(s.router, s.authed("/me/activity"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[models.ActivityResponse](s.T(), rr)
		s.Equal(1, resp.Total)
		s.Equal("user_registered", resp.Events[0].Action)
		s.NotContains(rr.Body.String(), "10.1.1.1")
	})

	s.Run("no events renders empty list", func() {
		s.service.EXPECT().ListMine(gomock.Any(), s.userID).Return(nil, nil)

		rr := testutil.DoRequest(s.router, s.authed("/me/activity"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.JSONEq(`{"events":[],"total":0}`, rr.Body.String())
	})

	s.Run("anonymous rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/me/activity"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("store failure", func() {
		s.service.EXPECT().ListMine(gomock.Any(), s.userID).
			Return(nil, dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed to load activity"))

		rr := testutil.DoRequest(s.router, s.authed("/me/activity"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, string(dErrors.CodeInternal))
	})
}

func (s *ActivityHandlerSuite) TestRecent() {
	s.Run("limit is passed through", func() {
		s.service.EXPECT().ListRecent(gomock.Any(), s.userID, 25).Return([]audit.Event{}, nil)

		rr := testutil.DoRequest(s.router, s.authed("/audit/recent?limit=25"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("missing limit means service default", func() {
		s.service.EXPECT().ListRecent(gomock.Any(), s.userID, 0).Return([]audit.Event{}, nil)

		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, s.authed("/audit/recent")), http.StatusOK)
	})

	s.Run("malformed limit", func() {
		rr := testutil.DoRequest(s.router, s.authed("/audit/recent?limit=many"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("negative limit", func() {
		rr := testutil.DoRequest(s.router, s.authed("/audit/recent?limit=-1"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("non-admin forbidden", func() {
		s.service.EXPECT().ListRecent(gomock.Any(), s.userID, 0).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "only admins can read the audit trail"))

		rr := testutil.DoRequest(s.router, s.authed("/audit/recent"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}
