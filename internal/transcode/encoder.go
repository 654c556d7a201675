package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// EncodeParams describes one rendition encode: the source file, the playlist
// and segment paths inside the rendition directory, and the encode targets.
type EncodeParams struct {
	Input          string
	Manifest       string
	SegmentPattern string
	Height         int
	VideoBitrate   string
	AudioBitrate   string
	SegmentSeconds int
}

// Encoder produces one HLS rendition from a source file. Implementations must
// honour context cancellation.
type Encoder interface {
	Encode(ctx context.Context, params EncodeParams) error
}

// FFmpeg is the production encoder. It shells out to the configured ffmpeg
// binary and forwards the process's stderr to the logger line by line.
type FFmpeg struct {
	Binary string
	Logger *slog.Logger
}

// NewFFmpeg returns an encoder invoking the given binary ("ffmpeg" when
// empty).
func NewFFmpeg(binary string, logger *slog.Logger) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{Binary: binary, Logger: logger}
}

// Encode runs one ffmpeg invocation for one rendition. The produced playlist
// is a complete VOD playlist; ffmpeg writes it last, so its presence marks
// the rendition ready.
func (f *FFmpeg) Encode(ctx context.Context, params EncodeParams) error {
	if params.Input == "" {
		return fmt.Errorf("encode input is required")
	}
	if params.Manifest == "" || params.SegmentPattern == "" {
		return fmt.Errorf("encode output paths are required")
	}
	cmd := exec.CommandContext(ctx, f.Binary, buildArgs(params)...)
	cmd.Stdout = newLogWriter(f.Logger, slog.LevelDebug)
	cmd.Stderr = newLogWriter(f.Logger, slog.LevelDebug)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func buildArgs(params EncodeParams) []string {
	segmentSeconds := params.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = 6
	}
	return []string{
		"-y",
		"-i", params.Input,
		"-vf", fmt.Sprintf("scale=-2:%d", params.Height),
		"-c:v", "h264",
		"-b:v", params.VideoBitrate,
		"-c:a", "aac",
		"-b:a", params.AudioBitrate,
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", params.SegmentPattern,
		params.Manifest,
	}
}

type logWriter struct {
	logger *slog.Logger
	level  slog.Level
}

func newLogWriter(logger *slog.Logger, level slog.Level) *logWriter {
	return &logWriter{logger: logger, level: level}
}

func (w *logWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		var line []byte
		if idx == -1 {
			line = p
			p = nil
		} else {
			line = p[:idx]
			p = p[idx+1:]
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		w.logger.Log(context.Background(), w.level, string(line))
	}
	return total, nil
}
