package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videoflix/internal/storage"
)

func newPlaybackFixture(t *testing.T) (*Handler, string) {
	t.Helper()
	handler := newTestHandler(t)
	created, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "feature", SourceFile: "/media/sources/feature.mp4"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return handler, created.ID
}

func writeRenditionArtifacts(t *testing.T, handler *Handler, videoID, resolution string, segments map[string][]byte, manifest string) {
	t.Helper()
	if err := handler.Artifacts.WriteManifest(videoID, resolution, []byte(manifest)); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	dir, err := handler.Artifacts.EnsureRenditionDir(videoID, resolution)
	if err != nil {
		t.Fatalf("EnsureRenditionDir: %v", err)
	}
	for name, data := range segments {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write segment %s: %v", name, err)
		}
	}
}

func TestPlaybackManifestRewrite(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)
	manifest := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:6.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n"
	writeRenditionArtifacts(t, handler, videoID, "480p", nil, manifest)

	req := httptest.NewRequest(http.MethodGet, "/api/video/"+videoID+"/480p/index.m3u8", nil)
	req.Host = "cdn.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	handler.Playback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != manifestContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rec.Body.String()
	want := "https://cdn.example.com/api/video/" + videoID + "/480p/segment_000.ts"
	if !strings.Contains(body, want) {
		t.Fatalf("expected rewritten segment URL %q in:\n%s", want, body)
	}
	if !strings.Contains(body, "#EXT-X-VERSION:3") {
		t.Fatalf("expected tag lines untouched:\n%s", body)
	}
	if strings.Contains(body, "https://cdn.example.com/api/video/"+videoID+"/480p/#EXTM3U") {
		t.Fatalf("comment line must not be rewritten:\n%s", body)
	}
}

func TestPlaybackManifestNotFoundCases(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)
	writeRenditionArtifacts(t, handler, videoID, "480p", nil, "#EXTM3U\n")

	noSource, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "metadata only"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}

	tests := []struct {
		name   string
		target string
	}{
		{"unknown rendition", "/api/video/" + videoID + "/144p/index.m3u8"},
		{"unknown video", "/api/video/nope/480p/index.m3u8"},
		{"video without source", "/api/video/" + noSource.ID + "/480p/index.m3u8"},
		{"malformed path", "/api/video/" + videoID + "/480p"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			rec := httptest.NewRecorder()
			handler.Playback(rec, req)
			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", rec.Code)
			}
		})
	}
}

func TestPlaybackServesArtifactsWithoutSource(t *testing.T) {
	// Renditions already on disk stay playable even when the video record
	// carries no source file; the source only matters while the manifest
	// is still absent.
	handler := newTestHandler(t)
	created, err := handler.Store.CreateVideo(storage.CreateVideoParams{Title: "detached"})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	payload := []byte("mpegts-payload-bytes")
	manifest := "#EXTM3U\n#EXTINF:6.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n"
	writeRenditionArtifacts(t, handler, created.ID, "480p", map[string][]byte{"segment_000.ts": payload}, manifest)

	req := httptest.NewRequest(http.MethodGet, "/api/video/"+created.ID+"/480p/index.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Playback(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected manifest 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/video/"+created.ID+"/480p/segment_000.ts", nil)
	rec = httptest.NewRecorder()
	handler.Playback(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected segment 200, got %d", rec.Code)
	}
	if rec.Body.String() != string(payload) {
		t.Fatalf("unexpected segment body %q", rec.Body.String())
	}
}

func TestPlaybackManifestStillGenerating(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/video/"+videoID+"/720p/index.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Playback(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while rendition is missing, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestPlaybackSegmentDelivery(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)
	payload := []byte("mpegts-payload-bytes")
	writeRenditionArtifacts(t, handler, videoID, "480p", map[string][]byte{"segment_000.ts": payload}, "#EXTM3U\n")

	req := httptest.NewRequest(http.MethodGet, "/api/video/"+videoID+"/480p/segment_000.ts", nil)
	rec := httptest.NewRecorder()
	handler.Playback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != segmentContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Body.String() != string(payload) {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestPlaybackSegmentRangeRequest(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)
	payload := []byte("0123456789")
	writeRenditionArtifacts(t, handler, videoID, "480p", map[string][]byte{"segment_001.ts": payload}, "#EXTM3U\n")

	req := httptest.NewRequest(http.MethodGet, "/api/video/"+videoID+"/480p/segment_001.ts", nil)
	req.Header.Set("Range", "bytes=0-3")
	rec := httptest.NewRecorder()
	handler.Playback(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if rec.Body.String() != "0123" {
		t.Fatalf("unexpected range body %q", rec.Body.String())
	}
}

func TestPlaybackSegmentRejectsUnsafeNames(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)
	writeRenditionArtifacts(t, handler, videoID, "480p", nil, "#EXTM3U\n")

	for _, segment := range []string{"..", "secret..ts"} {
		req := httptest.NewRequest(http.MethodGet, "/api/video/"+videoID+"/480p/"+segment, nil)
		rec := httptest.NewRecorder()
		handler.Playback(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("segment %q: expected 404, got %d", segment, rec.Code)
		}
	}
}

func TestPlaybackMissingSegment(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)
	writeRenditionArtifacts(t, handler, videoID, "480p", nil, "#EXTM3U\n")

	req := httptest.NewRequest(http.MethodGet, "/api/video/"+videoID+"/480p/segment_099.ts", nil)
	rec := httptest.NewRecorder()
	handler.Playback(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing segment, got %d", rec.Code)
	}
}

func TestPlaybackMethodNotAllowed(t *testing.T) {
	handler, videoID := newPlaybackFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/video/"+videoID+"/480p/index.m3u8", nil)
	rec := httptest.NewRecorder()
	handler.Playback(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
