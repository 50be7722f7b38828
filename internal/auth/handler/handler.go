package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cliquey/internal/auth/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/httputil"
	authmw "cliquey/pkg/platform/middleware/auth"
	"cliquey/pkg/requestcontext"
)

// Service defines the interface for account operations.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error)
	Logout(ctx context.Context, userID id.UserID, sessionID id.SessionID, expiresAt time.Time) error
}

// Handler serves registration, login and logout.
type Handler struct {
	service       Service
	logger        *slog.Logger
	secureCookies bool
}

// New constructs an auth handler. secureCookies marks the session cookie
// Secure; disable it only for plain-HTTP development.
func New(service Service, logger *slog.Logger, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// RegisterPublic mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
}

// RegisterProtected mounts endpoints that need a session.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/logout", h.HandleLogout)
}

// HandleRegister handles POST /register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.RegisterResponse{UserID: user.ID})
}

// HandleLogin handles POST /login. The token is returned in the body and set as
// an HttpOnly cookie.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.Login(ctx, req)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeAuthenticationFailed) {
			h.logger.ErrorContext(ctx, "login failed",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(session.TTL.Seconds()),
	})
}

// HandleLogout handles POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	sessionID := requestcontext.SessionID(ctx)
	if userID.IsNil() || sessionID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.service.Logout(ctx, userID, sessionID, requestcontext.TokenExpiry(ctx)); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
