package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cliquey/internal/profile/models"
	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
	"cliquey/pkg/platform/httputil"
	"cliquey/pkg/requestcontext"
)

// Service defines the interface for profile operations.
type Service interface {
	Create(ctx context.Context, ownerID id.UserID, fields models.Fields) (*models.Profile, error)
	Edit(ctx context.Context, userID id.UserID, profileID id.ProfileID, fields models.Fields) (*models.Profile, error)
	Delete(ctx context.Context, userID id.UserID, profileID id.ProfileID) error
	View(ctx context.Context, publicID id.PublicID) (*models.Profile, error)
	ListOwned(ctx context.Context, userID id.UserID) ([]*models.Profile, error)
	Search(ctx context.Context, query models.SearchQuery) ([]*models.Profile, error)
	Rate(ctx context.Context, raterID id.UserID, publicID id.PublicID, rating int) (*models.Profile, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the anonymous read endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/profile/{id}", h.HandleView)
	r.Get("/profiles/search", h.HandleSearch)
}

// RegisterProtected mounts endpoints that need a session. Edit and delete take
// the private profile ID, rate takes the public ID.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/profile/create", h.HandleCreate)
	r.Post("/profile/{id}/edit", h.HandleEdit)
	r.Post("/profile/{id}/delete", h.HandleDelete)
	r.Post("/profile/{id}/rate", h.HandleRate)
	r.Get("/profiles", h.HandleListOwned)
}

// HandleCreate handles POST /profile/create.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	fields, ok := httputil.DecodeAndPrepare[models.Fields](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.Create(ctx, userID, *fields)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create profile",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleEdit handles POST /profile/{id}/edit.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	profileID, err := id.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	fields, ok := httputil.DecodeAndPrepare[models.Fields](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.Edit(ctx, userID, profileID, *fields)
	if err != nil {
		h.logger.WarnContext(ctx, "profile not updated",
			"request_id", requestID,
			"user_id", userID.String(),
			"profile_id", profileID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleDelete handles POST /profile/{id}/delete.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	profileID, err := id.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, userID, profileID); err != nil {
		h.logger.WarnContext(ctx, "profile not deleted",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"profile_id", profileID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleView handles GET /profile/{id}. Anyone may view a profile by its
// public ID and every view is counted.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	publicID, err := id.ParsePublicID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.View(r.Context(), publicID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.Public())
}

// HandleRate handles POST /profile/{id}/rate.
func (h *Handler) HandleRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}
	publicID, err := id.ParsePublicID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.RateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.Rate(ctx, userID, publicID, req.Rating)
	if err != nil {
		h.logger.WarnContext(ctx, "rating rejected",
			"request_id", requestID,
			"user_id", userID.String(),
			"public_id", publicID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.Public())
}

// HandleListOwned handles GET /profiles.
func (h *Handler) HandleListOwned(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, ctx)
	if !ok {
		return
	}

	profiles, err := h.service.ListOwned(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ProfileListResponse{Profiles: profiles})
}

// HandleSearch handles GET /profiles/search?q=&limit=&offset=.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := models.ParseSearchQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profiles, err := h.service.Search(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	public := make([]models.PublicProfile, 0, len(profiles))
	for _, p := range profiles {
		public = append(public, p.Public())
	}
	httputil.WriteJSON(w, http.StatusOK, models.SearchResponse{
		Profiles: public,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
}

func requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}
