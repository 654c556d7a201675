package transcode

import (
	"bytes"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	args := buildArgs(EncodeParams{
		Input:          "/media/source/vid.mp4",
		Manifest:       "/media/hls/42/720p/index.m3u8",
		SegmentPattern: "/media/hls/42/720p/segment_%03d.ts",
		Height:         720,
		VideoBitrate:   "2500k",
		AudioBitrate:   "128k",
		SegmentSeconds: 6,
	})
	want := []string{
		"-y",
		"-i", "/media/source/vid.mp4",
		"-vf", "scale=-2:720",
		"-c:v", "h264",
		"-b:v", "2500k",
		"-c:a", "aac",
		"-b:a", "128k",
		"-hls_time", "6",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", "/media/hls/42/720p/segment_%03d.ts",
		"/media/hls/42/720p/index.m3u8",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args\n got %v\nwant %v", args, want)
	}
}

func TestBuildArgsDefaultsSegmentDuration(t *testing.T) {
	args := buildArgs(EncodeParams{Height: 480, VideoBitrate: "1000k", AudioBitrate: "128k"})
	found := false
	for i, arg := range args {
		if arg == "-hls_time" && i+1 < len(args) {
			if args[i+1] != "6" {
				t.Fatalf("expected default segment duration 6, got %s", args[i+1])
			}
			found = true
		}
	}
	if !found {
		t.Fatal("expected -hls_time flag")
	}
}

func TestLogWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	writer := newLogWriter(logger, slog.LevelInfo)

	if _, err := io.WriteString(writer, "frame=1\nframe=2\n\npartial"); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"frame=1", "frame=2", "partial"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output:\n%s", want, out)
		}
	}
}
