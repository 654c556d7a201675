package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"videoflix/internal/models"
	"videoflix/internal/storage"
)

type createVideoRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	ThumbnailURL string `json:"thumbnailUrl"`
	SourceFile   string `json:"sourceFile"`
}

type updateVideoRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Category     *string `json:"category"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	SourceFile   *string `json:"sourceFile"`
}

type videoResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	HasSource    bool      `json:"hasSource"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type videoDetailResponse struct {
	videoResponse
	TranscodePhase string   `json:"transcodePhase,omitempty"`
	Renditions     []string `json:"renditions"`
}

func newVideoResponse(video models.Video) videoResponse {
	return videoResponse{
		ID:           video.ID,
		Title:        video.Title,
		Description:  video.Description,
		Category:     video.Category,
		ThumbnailURL: video.ThumbnailURL,
		HasSource:    video.HasSource(),
		CreatedAt:    video.CreatedAt,
		UpdatedAt:    video.UpdatedAt,
	}
}

func (h *Handler) newVideoDetailResponse(video models.Video) videoDetailResponse {
	detail := videoDetailResponse{
		videoResponse: newVideoResponse(video),
		Renditions:    []string{},
	}
	if h.Processor != nil {
		if phase, ok := h.Processor.Status(video.ID); ok {
			detail.TranscodePhase = string(phase)
		}
	}
	if h.Artifacts != nil {
		for _, rendition := range h.ladder() {
			if h.Artifacts.HasManifest(video.ID, rendition.Name) {
				detail.Renditions = append(detail.Renditions, rendition.Name)
			}
		}
	}
	return detail
}

// Videos serves the /api/videos collection: GET lists, POST creates.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requireAuthenticatedUser(w, r); !ok {
			return
		}
		videos := h.Store.ListVideos()
		responses := make([]videoResponse, 0, len(videos))
		for _, video := range videos {
			responses = append(responses, newVideoResponse(video))
		}
		writeJSON(w, http.StatusOK, responses)
	case http.MethodPost:
		if _, ok := h.requireAuthenticatedUser(w, r); !ok {
			return
		}
		var req createVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		video, err := h.Store.CreateVideo(storage.CreateVideoParams{
			Title:        req.Title,
			Description:  req.Description,
			Category:     req.Category,
			ThumbnailURL: req.ThumbnailURL,
			SourceFile:   req.SourceFile,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if video.HasSource() {
			h.enqueueTranscode(r.Context(), video.ID)
		}
		writeJSON(w, http.StatusCreated, h.newVideoDetailResponse(video))
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

// VideoByID serves /api/videos/{id} and /api/videos/{id}/transcode.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	parts := strings.Split(path, "/")
	for len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("video id missing"))
		return
	}
	videoID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			if _, ok := h.requireAuthenticatedUser(w, r); !ok {
				return
			}
			video, ok := h.Store.GetVideo(videoID)
			if !ok {
				writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
				return
			}
			writeJSON(w, http.StatusOK, h.newVideoDetailResponse(video))
		case http.MethodPatch:
			if _, ok := h.requireAuthenticatedUser(w, r); !ok {
				return
			}
			var req updateVideoRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			previous, ok := h.Store.GetVideo(videoID)
			if !ok {
				writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
				return
			}
			video, err := h.Store.UpdateVideo(videoID, storage.VideoUpdate{
				Title:        req.Title,
				Description:  req.Description,
				Category:     req.Category,
				ThumbnailURL: req.ThumbnailURL,
				SourceFile:   req.SourceFile,
			})
			if err != nil {
				if errors.Is(err, storage.ErrVideoNotFound) {
					writeError(w, http.StatusNotFound, err)
					return
				}
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if video.HasSource() && video.SourceFile != previous.SourceFile {
				h.enqueueTranscode(r.Context(), video.ID)
			}
			writeJSON(w, http.StatusOK, h.newVideoDetailResponse(video))
		case http.MethodDelete:
			if _, ok := h.requireAuthenticatedUser(w, r); !ok {
				return
			}
			if err := h.Store.DeleteVideo(videoID); err != nil {
				if errors.Is(err, storage.ErrVideoNotFound) {
					writeError(w, http.StatusNotFound, err)
					return
				}
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if h.Processor != nil {
				if err := h.Processor.EnqueuePurge(r.Context(), videoID); err != nil {
					h.logger().Error("purge enqueue failed", "video_id", videoID, "error", err)
				}
			}
			writeJSON(w, http.StatusNoContent, nil)
		default:
			w.Header().Set("Allow", "GET, PATCH, DELETE")
			writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		}
		return
	}

	if len(parts) == 2 && parts[1] == "transcode" {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
			return
		}
		if _, ok := UserFromContext(r.Context()); !ok && !h.authorizeServiceToken(r) {
			WriteError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
			return
		}
		video, ok := h.Store.GetVideo(videoID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
			return
		}
		if !video.HasSource() {
			writeError(w, http.StatusConflict, fmt.Errorf("video %s has no source file", videoID))
			return
		}
		h.enqueueTranscode(r.Context(), video.ID)
		writeJSON(w, http.StatusAccepted, h.newVideoDetailResponse(video))
		return
	}

	writeError(w, http.StatusNotFound, fmt.Errorf("resource not found"))
}

func (h *Handler) enqueueTranscode(ctx context.Context, videoID string) {
	if h.Processor == nil {
		return
	}
	if err := h.Processor.EnqueueTranscode(ctx, videoID); err != nil {
		h.logger().Error("transcode enqueue failed", "video_id", videoID, "error", err)
	}
}
