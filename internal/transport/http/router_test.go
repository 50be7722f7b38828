package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	activityHandler "cliquey/internal/activity/handler"
	activityModels "cliquey/internal/activity/models"
	activityService "cliquey/internal/activity/service"
	authHandler "cliquey/internal/auth/handler"
	authModels "cliquey/internal/auth/models"
	"cliquey/internal/auth/secrets"
	authService "cliquey/internal/auth/service"
	"cliquey/internal/auth/store/revocation"
	userStore "cliquey/internal/auth/store/user"
	"cliquey/internal/health"
	invitationHandler "cliquey/internal/invitation/handler"
	invitationModels "cliquey/internal/invitation/models"
	invitationService "cliquey/internal/invitation/service"
	invitationStore "cliquey/internal/invitation/store"
	jwttoken "cliquey/internal/jwt_token"
	"cliquey/internal/platform/metrics"
	"cliquey/internal/platform/middleware"
	profileHandler "cliquey/internal/profile/handler"
	profileModels "cliquey/internal/profile/models"
	profileService "cliquey/internal/profile/service"
	profileStore "cliquey/internal/profile/store"
	"cliquey/internal/ratelimit/models"
	ratelimit "cliquey/internal/ratelimit/middleware"
	"cliquey/internal/ratelimit/store/bucket"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit/publisher"
	auditmemory "cliquey/pkg/platform/audit/store/memory"
	"cliquey/pkg/platform/tx"
	"cliquey/pkg/testutil"
)

const (
	adminLogin    = "admin"
	adminPassword = "correct horse battery"
	authBudget    = 20
)

// RouterSuite drives the assembled router over in-memory stores.
type RouterSuite struct {
	suite.Suite
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	secrets.Cost = bcrypt.MinCost
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry, registry)
	runner := tx.NewMemoryRunner()

	users := userStore.New()
	invitations := invitationStore.NewInMemory()
	jwt := jwttoken.NewJWTService("router-test-key", "cliquey", "cliquey-api")
	events := auditmemory.NewInMemoryStore()
	trail := publisher.NewPublisher(events)

	auth := authService.New(users, invitations, revocation.NewInMemoryTRL(nil), jwt, runner,
		authService.WithLogger(logger), authService.WithMetrics(m), authService.WithAuditPublisher(trail))
	_, err := auth.EnsureAdmin(context.Background(), adminLogin, adminPassword)
	s.Require().NoError(err)

	checker := health.New()
	checker.Add("memory", func(context.Context) error { return nil })

	limits := ratelimit.New(ratelimit.NewLimiter(bucket.NewInMemoryBucketStore()), logger,
		ratelimit.WithLimit(models.ClassAuth, models.Limit{Requests: authBudget, Window: time.Minute}),
		ratelimit.WithMetrics(m),
	)

	s.router = NewRouter(Deps{
		Logger:            logger,
		Metrics:           m,
		Health:            checker,
		Auth:              authHandler.New(auth, logger, false),
		Invitations:       invitationHandler.New(invitationService.New(invitations, users, invitationService.WithMetrics(m)), logger),
		Profiles:          profileHandler.New(profileService.New(profileStore.NewInMemory(), runner, profileService.WithMetrics(m)), logger),
		Activity:          activityHandler.New(activityService.New(events, users), logger),
		TokenValidator:    jwttoken.NewJWTServiceAdapter(jwt),
		RevocationChecker: auth,
		RateLimit:         limits,
	})
}

func (s *RouterSuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) login(login, password string) string {
	rr := s.do(http.MethodPost, "/login", map[string]string{"login": login, "password": password}, "")
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[authModels.LoginResponse](s.T(), rr).AccessToken
}

// signUp issues a code as admin and registers login with it.
func (s *RouterSuite) signUp(login string) string {
	adminToken := s.login(adminLogin, adminPassword)
	rr := s.do(http.MethodPost, "/generate_code", nil, adminToken)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	code := testutil.UnmarshalResponse[invitationModels.GenerateCodeResponse](s.T(), rr).Code

	rr = s.do(http.MethodPost, "/register", map[string]string{
		"login":           login,
		"password":        "s3cret-password",
		"invitation_code": code,
	}, "")
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return s.login(login, "s3cret-password")
}

func (s *RouterSuite) TestProfileLifecycle() {
	ownerToken := s.signUp("owner")
	raterToken := s.signUp("rater@example.com")

	rr := s.do(http.MethodPost, "/profile/create", map[string]string{"name": "Ada", "bio": "engines"}, ownerToken)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	created := testutil.UnmarshalResponse[profileModels.Profile](s.T(), rr)

	s.Run("anonymous view counts visits", func() {
		for range 3 {
			rr := s.do(http.MethodGet, "/profile/"+created.PublicID.String(), nil, "")
			testutil.AssertStatus(s.T(), rr, http.StatusOK)
		}
		rr := s.do(http.MethodGet, "/profile/"+created.PublicID.String(), nil, "")
		testutil.AssertJSONContains(s.T(), rr, "visit_count", float64(4))
	})

	s.Run("private id is not a public address", func() {
		rr := s.do(http.MethodGet, "/profile/"+created.ID.String(), nil, "")
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})

	s.Run("rating requires a session", func() {
		rr := s.do(http.MethodPost, "/profile/"+created.PublicID.String()+"/rate", map[string]int{"rating": 5}, "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("other user rates", func() {
		rr := s.do(http.MethodPost, "/profile/"+created.PublicID.String()+"/rate", map[string]int{"rating": 5}, raterToken)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "average_rating", float64(5))
	})

	s.Run("owner cannot rate", func() {
		rr := s.do(http.MethodPost, "/profile/"+created.PublicID.String()+"/rate", map[string]int{"rating": 5}, ownerToken)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeSelfRatingForbidden))
	})

	s.Run("non-owner cannot edit", func() {
		rr := s.do(http.MethodPost, "/profile/"+created.ID.String()+"/edit", map[string]string{"name": "Mallory"}, raterToken)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("search finds profile", func() {
		rr := s.do(http.MethodGet, "/profiles/search?q=ENGINES", nil, "")
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[profileModels.SearchResponse](s.T(), rr)
		s.Require().Len(resp.Profiles, 1)
		s.Equal(created.PublicID, resp.Profiles[0].PublicID)
	})

	s.Run("owner deletes", func() {
		rr := s.do(http.MethodPost, "/profile/"+created.ID.String()+"/delete", nil, ownerToken)
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
		rr = s.do(http.MethodGet, "/profile/"+created.PublicID.String(), nil, "")
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}

func (s *RouterSuite) TestLogoutRevokesToken() {
	token := s.signUp("leaver")

	testutil.AssertStatus(s.T(), s.do(http.MethodGet, "/profiles", nil, token), http.StatusOK)
	testutil.AssertStatus(s.T(), s.do(http.MethodPost, "/logout", nil, token), http.StatusNoContent)
	testutil.AssertStatusAndError(s.T(), s.do(http.MethodGet, "/profiles", nil, token), http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
}

func (s *RouterSuite) TestMemberCannotIssueCodes() {
	token := s.signUp("member")
	rr := s.do(http.MethodPost, "/generate_code", nil, token)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
}

func (s *RouterSuite) TestRequestIDIsEchoed() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/health")
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rr := testutil.DoRequest(s.router, req)
	s.Equal("req-123", rr.Header().Get(middleware.RequestIDHeader))
}

func (s *RouterSuite) TestOperationalEndpoints() {
	s.Run("health", func() {
		rr := s.do(http.MethodGet, "/health", nil, "")
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "status", health.StatusOK)
	})

	s.Run("metrics", func() {
		s.do(http.MethodGet, "/health", nil, "")
		rr := s.do(http.MethodGet, "/metrics", nil, "")
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.True(strings.Contains(rr.Body.String(), "cliquey_http_request_duration_seconds"))
	})

	s.Run("unknown route", func() {
		testutil.AssertStatusAndError(s.T(), s.do(http.MethodGet, "/nope", nil, ""), http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("non-json body rejected", func() {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("login=a"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusUnsupportedMediaType)
	})
}

func (s *RouterSuite) TestCredentialEndpointsAreRateLimited() {
	body := map[string]string{"login": "nobody", "password": "wrong password"}
	for range authBudget {
		rr := s.do(http.MethodPost, "/login", body, "")
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	}

	rr := s.do(http.MethodPost, "/login", body, "")
	testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, string(dErrors.CodeRateLimited))
	s.NotEmpty(rr.Header().Get("Retry-After"))

	rr = s.do(http.MethodPost, "/register", map[string]string{
		"login": "late@example.com", "password": "longenough", "invitation_code": "deadbeef",
	}, "")
	testutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)

	rr = s.do(http.MethodGet, "/profiles/search", nil, "")
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *RouterSuite) TestActivityTrail() {
	token := s.signUp("diarist")

	rr := s.do(http.MethodGet, "/me/activity", nil, token)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	mine := testutil.UnmarshalResponse[activityModels.ActivityResponse](s.T(), rr)
	var actions []string
	for _, e := range mine.Events {
		actions = append(actions, e.Action)
	}
	s.Equal([]string{"user_registered", "login_succeeded"}, actions)

	rr = s.do(http.MethodGet, "/audit/recent", nil, token)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))

	rr = s.do(http.MethodGet, "/audit/recent?limit=1", nil, s.login(adminLogin, adminPassword))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	recent := testutil.UnmarshalResponse[activityModels.ActivityResponse](s.T(), rr)
	s.Require().Equal(1, recent.Total)
	s.Equal("login_succeeded", recent.Events[0].Action)

	testutil.AssertStatus(s.T(), s.do(http.MethodGet, "/me/activity", nil, ""), http.StatusUnauthorized)
}

func (s *RouterSuite) TestForwardedHeadersDoNotResetBudget() {
	body := map[string]string{"login": "nobody", "password": "wrong password"}
	send := func(n int) *httptest.ResponseRecorder {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/login", body)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", n))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", n))
		return testutil.DoRequest(s.router, req)
	}

	for n := range authBudget {
		testutil.AssertStatus(s.T(), send(n), http.StatusUnauthorized)
	}
	testutil.AssertStatusAndError(s.T(), send(authBudget), http.StatusTooManyRequests, string(dErrors.CodeRateLimited))
}
