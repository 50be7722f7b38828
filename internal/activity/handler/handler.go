package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cliquey/internal/activity/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/httputil"
	"cliquey/pkg/requestcontext"
)

// Service defines the interface for reading the audit trail.
type Service interface {
	ListMine(ctx context.Context, userID id.UserID) ([]audit.Event, error)
	ListRecent(ctx context.Context, requesterID id.UserID, limit int) ([]audit.Event, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts activity endpoints. All of them need a session.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me/activity", h.HandleMyActivity)
	r.Get("/audit/recent", h.HandleRecent)
}

// HandleMyActivity handles GET /me/activity.
func (h *Handler) HandleMyActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	events, err := h.service.ListMine(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewActivityResponse(events))
}

// HandleRecent handles GET /audit/recent?limit=N.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	events, err := h.service.ListRecent(ctx, userID, limit)
	if err != nil {
		h.logger.WarnContext(ctx, "recent activity not returned",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewActivityResponse(events))
}
