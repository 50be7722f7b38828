package testutil

import (
	"net/http"
	"time"

	id "cliquey/pkg/domain"
	"cliquey/pkg/requestcontext"
)

// WithAuth simulates what the auth middleware does for an authenticated request.
func WithAuth(req *http.Request, userID id.UserID, sessionID id.SessionID) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	ctx = requestcontext.WithTokenExpiry(ctx, time.Now().Add(time.Hour))
	return req.WithContext(ctx)
}
