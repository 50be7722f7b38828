// Package httptransport assembles the HTTP surface: middleware chain, public
// and session-protected route groups, health and metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	activityHandler "cliquey/internal/activity/handler"
	authHandler "cliquey/internal/auth/handler"
	"cliquey/internal/health"
	invitationHandler "cliquey/internal/invitation/handler"
	"cliquey/internal/platform/metrics"
	"cliquey/internal/platform/middleware"
	profileHandler "cliquey/internal/profile/handler"
	"cliquey/internal/ratelimit/models"
	ratelimit "cliquey/internal/ratelimit/middleware"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/httputil"
	authmw "cliquey/pkg/platform/middleware/auth"
	"cliquey/pkg/platform/middleware/metadata"
	"cliquey/pkg/platform/middleware/requesttime"
)

// DefaultRequestTimeout bounds every API request.
const DefaultRequestTimeout = 10 * time.Second

// Deps are the collaborators the router mounts.
type Deps struct {
	Logger            *slog.Logger
	Metrics           *metrics.Metrics
	Health            *health.Checker
	Auth              *authHandler.Handler
	Invitations       *invitationHandler.Handler
	Profiles          *profileHandler.Handler
	Activity          *activityHandler.Handler
	TokenValidator    authmw.JWTValidator
	RevocationChecker authmw.TokenRevocationChecker
	// RateLimit guards /login and /register when set.
	RateLimit         *ratelimit.Middleware
	// TrustedProxies are the peers whose forwarding headers name the client.
	TrustedProxies    []netip.Prefix
	RequestTimeout    time.Duration
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.NewResolver(deps.TrustedProxies...).ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	})

	if deps.Health != nil {
		r.Get("/health", deps.Health.Handler)
	}
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.ContentTypeJSON)

		if deps.Auth != nil {
			r.Group(func(r chi.Router) {
				if deps.RateLimit != nil {
					r.Use(deps.RateLimit.RateLimit(models.ClassAuth))
				}
				deps.Auth.RegisterPublic(r)
			})
		}
		if deps.Profiles != nil {
			deps.Profiles.RegisterPublic(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(deps.TokenValidator, deps.RevocationChecker, logger))

			if deps.Auth != nil {
				deps.Auth.RegisterProtected(r)
			}
			if deps.Invitations != nil {
				deps.Invitations.Register(r)
			}
			if deps.Profiles != nil {
				deps.Profiles.RegisterProtected(r)
			}
			if deps.Activity != nil {
				deps.Activity.Register(r)
			}
		})
	})

	return r
}
