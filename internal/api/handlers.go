package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"videoflix/internal/auth"
	"videoflix/internal/hls"
	"videoflix/internal/observability/metrics"
	"videoflix/internal/storage"
	"videoflix/internal/transcode"
)

type Handler struct {
	Store     storage.Repository
	Sessions  *auth.SessionManager
	Artifacts *hls.Store
	Processor *transcode.Processor
	Ladder    hls.Ladder
	Logger    *slog.Logger
	Metrics   *metrics.Recorder

	// ServiceTokenHash, when set, lets the external auth service trigger
	// re-transcodes with a shared credential instead of a user session.
	ServiceTokenHash string
}

func NewHandler(store storage.Repository, sessions *auth.SessionManager) *Handler {
	if sessions == nil {
		sessions = auth.NewSessionManager(24 * time.Hour)
	}
	return &Handler{Store: store, Sessions: sessions}
}

func (h *Handler) sessionManager() *auth.SessionManager {
	if h.Sessions == nil {
		h.Sessions = auth.NewSessionManager(24 * time.Hour)
	}
	return h.Sessions
}

func (h *Handler) ladder() hls.Ladder {
	if len(h.Ladder) == 0 {
		h.Ladder = hls.DefaultLadder()
	}
	return h.Ladder
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// clearSessionCookie drops the session cookie; issuing one is the auth
// service's job.
func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "videoflix_session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie removes the Videoflix session cookie from the response.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, r)
}

func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		for _, p := range strings.Split(proto, ",") {
			if strings.EqualFold(strings.TrimSpace(p), "https") {
				return true
			}
		}
	}
	if r.URL != nil && strings.EqualFold(r.URL.Scheme, "https") {
		return true
	}
	return false
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "ok"

	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			checks["storage"] = err.Error()
			status = "degraded"
		} else {
			checks["storage"] = "ok"
		}
	}
	if h.Sessions != nil {
		if err := h.Sessions.Ping(r.Context()); err != nil {
			checks["sessions"] = err.Error()
			status = "degraded"
		} else {
			checks["sessions"] = "ok"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"services": checks,
	})
}
