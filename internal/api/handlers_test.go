package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"videoflix/internal/auth"
	"videoflix/internal/hls"
	"videoflix/internal/storage"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return &Handler{
		Store:     store,
		Sessions:  auth.NewSessionManager(time.Hour),
		Artifacts: hls.NewStore(t.TempDir()),
		Ladder:    hls.DefaultLadder(),
	}
}

func authedRequest(method, target string, body *strings.Reader) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	return req.WithContext(ContextWithUser(req.Context(), "user-1"))
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) videoDetailResponse {
	t.Helper()
	var detail videoDetailResponse
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return detail
}

func TestVideosRequiresAuthentication(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()
	handler.Videos(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateAndListVideos(t *testing.T) {
	handler := newTestHandler(t)

	for _, title := range []string{"first", "second"} {
		body := strings.NewReader(`{"title":"` + title + `","category":"drama"}`)
		rec := httptest.NewRecorder()
		handler.Videos(rec, authedRequest(http.MethodPost, "/api/videos", body))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %q: expected 201, got %d (%s)", title, rec.Code, rec.Body.String())
		}
		time.Sleep(2 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	handler.Videos(rec, authedRequest(http.MethodGet, "/api/videos", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var videos []videoResponse
	if err := json.NewDecoder(rec.Body).Decode(&videos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}
	if videos[0].Title != "second" || videos[1].Title != "first" {
		t.Fatalf("expected newest first, got %q then %q", videos[0].Title, videos[1].Title)
	}
}

func TestCreateVideoValidation(t *testing.T) {
	handler := newTestHandler(t)
	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"category":"drama"}`},
		{"unknown field", `{"title":"x","bogus":true}`},
		{"malformed json", `{"title":`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Videos(rec, authedRequest(http.MethodPost, "/api/videos", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestVideoDetailReportsRenditions(t *testing.T) {
	handler := newTestHandler(t)

	created, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "movie", SourceFile: "/media/sources/movie.mp4"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	if err := handler.Artifacts.WriteManifest(created.ID, "480p", []byte("#EXTM3U\n")); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.VideoByID(rec, authedRequest(http.MethodGet, "/api/videos/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	detail := decodeDetail(t, rec)
	if !detail.HasSource {
		t.Fatal("expected hasSource true")
	}
	if len(detail.Renditions) != 1 || detail.Renditions[0] != "480p" {
		t.Fatalf("expected renditions [480p], got %v", detail.Renditions)
	}
}

func TestDeleteVideo(t *testing.T) {
	handler := newTestHandler(t)
	created, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "gone"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.VideoByID(rec, authedRequest(http.MethodDelete, "/api/videos/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.VideoByID(rec, authedRequest(http.MethodGet, "/api/videos/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.VideoByID(rec, authedRequest(http.MethodDelete, "/api/videos/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", rec.Code)
	}
}

func TestTranscodeTriggerRequiresSource(t *testing.T) {
	handler := newTestHandler(t)
	created, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "no source"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.VideoByID(rec, authedRequest(http.MethodPost, "/api/videos/"+created.ID+"/transcode", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestTranscodeTriggerServiceToken(t *testing.T) {
	handler := newTestHandler(t)
	hash, err := auth.HashServiceToken("hook-secret")
	if err != nil {
		t.Fatalf("HashServiceToken: %v", err)
	}
	handler.ServiceTokenHash = hash

	created, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "hooked", SourceFile: "/media/sources/hooked.mp4"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/videos/"+created.ID+"/transcode", nil)
	rec := httptest.NewRecorder()
	handler.VideoByID(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/videos/"+created.ID+"/transcode", nil)
	req.Header.Set("X-Service-Token", "hook-secret")
	rec = httptest.NewRecorder()
	handler.VideoByID(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with service token, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestPatchVideoUpdatesFields(t *testing.T) {
	handler := newTestHandler(t)
	created, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "draft"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	body := strings.NewReader(`{"title":"published","category":"documentary"}`)
	rec := httptest.NewRecorder()
	handler.VideoByID(rec, authedRequest(http.MethodPatch, "/api/videos/"+created.ID, body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	detail := decodeDetail(t, rec)
	if detail.Title != "published" || detail.Category != "documentary" {
		t.Fatalf("unexpected update result: %+v", detail)
	}
}

func TestHealthReportsOK(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("expected ok status, got %s", rec.Body.String())
	}
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer abc123")
	if got := ExtractToken(req); got != "abc123" {
		t.Fatalf("expected bearer token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.AddCookie(&http.Cookie{Name: "videoflix_session", Value: "cookie-token"})
	if got := ExtractToken(req); got != "cookie-token" {
		t.Fatalf("expected cookie token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	if got := ExtractToken(req); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestAuthenticateRequest(t *testing.T) {
	handler := newTestHandler(t)
	token, _, err := handler.Sessions.Create("user-42")
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	userID, err := handler.AuthenticateRequest(req)
	if err != nil {
		t.Fatalf("AuthenticateRequest: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("expected user-42, got %q", userID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	if _, err := handler.AuthenticateRequest(req); err == nil {
		t.Fatal("expected error for unknown token")
	}
}
