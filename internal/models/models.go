package models

import "time"

// Video captures the metadata for one uploaded source video. The media
// lifecycle (HLS renditions on disk) is keyed by ID and managed outside the
// datastore; SourceFile may be empty for videos whose media has not been
// attached yet.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	SourceFile   string    `json:"sourceFile,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasSource reports whether a readable source file has been attached.
func (v Video) HasSource() bool {
	return v.SourceFile != ""
}
