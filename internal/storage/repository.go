package storage

import (
	"context"
	"errors"

	"videoflix/internal/models"
)

// ErrVideoNotFound is returned when an operation references a video that does
// not exist in the datastore.
var ErrVideoNotFound = errors.New("video not found")

// CreateVideoParams captures the attributes that can be set when creating a
// video.
type CreateVideoParams struct {
	Title        string
	Description  string
	Category     string
	ThumbnailURL string
	SourceFile   string
}

// VideoUpdate mutates individual video fields; nil pointers leave the current
// value untouched.
type VideoUpdate struct {
	Title        *string
	Description  *string
	Category     *string
	ThumbnailURL *string
	SourceFile   *string
}

// Repository exposes the datastore operations required by the API handlers
// and the transcode pipeline.
type Repository interface {
	Ping(ctx context.Context) error

	CreateVideo(params CreateVideoParams) (models.Video, error)
	ListVideos() []models.Video
	GetVideo(id string) (models.Video, bool)
	UpdateVideo(id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(id string) error
}

var _ Repository = (*Storage)(nil)
