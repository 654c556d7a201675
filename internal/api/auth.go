package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"videoflix/internal/auth"
)

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// ContextWithUser stores the authenticated user ID in the provided context.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserFromContext retrieves the authenticated user ID from context if present.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userContextKey).(string)
	return userID, ok && userID != ""
}

// ExtractToken pulls a session token from the Authorization header or the
// session cookie.
func ExtractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie("videoflix_session"); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthenticateRequest validates the session token on the request and returns
// the user ID it belongs to.
func (h *Handler) AuthenticateRequest(r *http.Request) (string, error) {
	token := ExtractToken(r)
	if token == "" {
		return "", fmt.Errorf("missing session token")
	}
	userID, _, ok, err := h.sessionManager().Validate(token)
	if err != nil {
		return "", fmt.Errorf("session lookup failed: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("invalid or expired session")
	}
	return userID, nil
}

func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return "", false
	}
	return userID, true
}

// authorizeServiceToken checks the X-Service-Token header against the
// configured PBKDF2 hash. Used by the internal re-transcode hook so the auth
// service can trigger jobs without a user session.
func (h *Handler) authorizeServiceToken(r *http.Request) bool {
	if h.ServiceTokenHash == "" {
		return false
	}
	candidate := strings.TrimSpace(r.Header.Get("X-Service-Token"))
	if candidate == "" {
		return false
	}
	return auth.VerifyServiceToken(h.ServiceTokenHash, candidate) == nil
}
