package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"videoflix/internal/hls"
	"videoflix/internal/models"
)

const manifestContentType = "application/vnd.apple.mpegurl"
const segmentContentType = "video/MP2T"

// transcodeRetryAfterSeconds is advertised while a rendition is still being
// generated.
const transcodeRetryAfterSeconds = 10

// Playback serves /api/video/{id}/{resolution}/{artifact}: the rewritten
// rendition manifest and its media segments.
func (h *Handler) Playback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/video/")
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("resource not found"))
		return
	}
	videoID, resolution, artifact := parts[0], parts[1], parts[2]

	rendition, ok := h.ladder().Lookup(resolution)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown rendition %s", resolution))
		return
	}

	video, ok := h.Store.GetVideo(videoID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}

	if artifact == hls.ManifestFileName {
		h.serveManifest(w, r, video, rendition.Name)
		return
	}
	h.serveSegment(w, r, video.ID, rendition.Name, artifact)
}

// serveManifest delivers a rendition manifest whenever one exists on disk,
// even if the source file was since detached. Only when no manifest has been
// produced does the source decide the answer: a sourced video is still
// transcoding, an unsourced one has nothing to play.
func (h *Handler) serveManifest(w http.ResponseWriter, r *http.Request, video models.Video, resolution string) {
	manifest, err := h.Artifacts.ReadManifest(video.ID, resolution)
	if err != nil {
		if errors.Is(err, hls.ErrNotFound) {
			if !video.HasSource() {
				writeError(w, http.StatusNotFound, fmt.Errorf("video %s has no playable source", video.ID))
				return
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", transcodeRetryAfterSeconds))
			writeError(w, http.StatusServiceUnavailable, fmt.Errorf("rendition %s is still being generated", resolution))
			return
		}
		h.logger().Error("manifest read failed", "video_id", video.ID, "resolution", resolution, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("manifest unavailable"))
		return
	}

	base := fmt.Sprintf("%s/api/video/%s/%s", requestOrigin(r), video.ID, resolution)
	rewritten := hls.RewriteManifest(manifest, base)

	if h.Metrics != nil {
		h.Metrics.ObservePlayback("manifest")
	}
	w.Header().Set("Content-Type", manifestContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(rewritten)
}

func (h *Handler) serveSegment(w http.ResponseWriter, r *http.Request, videoID, resolution, segment string) {
	file, info, err := h.Artifacts.OpenSegment(videoID, resolution, segment)
	if err != nil {
		if errors.Is(err, hls.ErrInvalidName) || errors.Is(err, hls.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("segment not found"))
			return
		}
		h.logger().Error("segment open failed", "video_id", videoID, "resolution", resolution, "segment", segment, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("segment unavailable"))
		return
	}
	defer file.Close()

	if h.Metrics != nil {
		h.Metrics.ObservePlayback("segment")
	}
	w.Header().Set("Content-Type", segmentContentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// requestOrigin reconstructs the scheme://host prefix clients used to reach
// this request, honouring forwarding proxies.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			host = first
		}
	}
	return scheme + "://" + host
}
