package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cliquey/internal/invitation/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/httputil"
	"cliquey/pkg/requestcontext"
)

// Service defines the interface for invitation operations.
type Service interface {
	Issue(ctx context.Context, issuerID id.UserID, expiresInDays int) (*models.InvitationCode, error)
	ListIssued(ctx context.Context, issuerID id.UserID) ([]*models.InvitationCode, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts invitation endpoints. All of them need a session.
func (h *Handler) Register(r chi.Router) {
	r.Post("/generate_code", h.HandleGenerateCode)
	r.Get("/invitations", h.HandleListInvitations)
}

// HandleGenerateCode handles POST /generate_code. An empty body is accepted and
// means the default expiry.
func (h *Handler) HandleGenerateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req := &models.GenerateCodeRequest{}
	if r.ContentLength != 0 {
		var ok bool
		req, ok = httputil.DecodeAndPrepare[models.GenerateCodeRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
	}

	code, err := h.service.Issue(ctx, userID, req.ExpiresInDays)
	if err != nil {
		h.logger.WarnContext(ctx, "invitation code not issued",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.GenerateCodeResponse{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	})
}

// HandleListInvitations handles GET /invitations.
func (h *Handler) HandleListInvitations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	codes, err := h.service.ListIssued(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.InvitationListResponse{Invitations: codes})
}
