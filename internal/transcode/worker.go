package transcode

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"videoflix/internal/hls"
	"videoflix/internal/models"
)

// EncodeError reports the failure of a single rendition. Rendition failures
// are isolated: siblings keep processing.
type EncodeError struct {
	VideoID    string
	Resolution string
	Err        error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s/%s: %v", e.VideoID, e.Resolution, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// runTranscode processes every ladder rendition of one video in declared
// order. A rendition failure is logged and counted but never aborts its
// siblings; context cancellation does.
func (p *Processor) runTranscode(ctx context.Context, video models.Video) error {
	logger := p.logger.With("video_id", video.ID)
	if !video.HasSource() {
		logger.Info("video has no source file, skipping transcode")
		return nil
	}

	var failures []error
	succeeded := 0
	for _, rendition := range p.ladder {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.encodeRendition(ctx, video, rendition); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			encodeErr := &EncodeError{VideoID: video.ID, Resolution: rendition.Name, Err: err}
			logger.Error("rendition encode failed", "resolution", rendition.Name, "error", err)
			p.observeRendition(rendition.Name, "failed")
			failures = append(failures, encodeErr)
			continue
		}
		logger.Info("rendition ready", "resolution", rendition.Name)
		p.observeRendition(rendition.Name, "ok")
		succeeded++
	}
	if succeeded == 0 && len(failures) > 0 {
		return errors.Join(failures...)
	}
	return nil
}

func (p *Processor) encodeRendition(ctx context.Context, video models.Video, rendition hls.Rendition) error {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.slots.Release(1)

	dir, err := p.artifacts.EnsureRenditionDir(video.ID, rendition.Name)
	if err != nil {
		return err
	}
	return p.encoder.Encode(ctx, EncodeParams{
		Input:          video.SourceFile,
		Manifest:       filepath.Join(dir, hls.ManifestFileName),
		SegmentPattern: filepath.Join(dir, hls.SegmentFilePattern),
		Height:         rendition.Height,
		VideoBitrate:   rendition.VideoBitrate,
		AudioBitrate:   rendition.AudioBitrate,
		SegmentSeconds: p.segmentSeconds,
	})
}
