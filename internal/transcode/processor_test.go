package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"videoflix/internal/hls"
	"videoflix/internal/models"
	"videoflix/internal/storage"
)

type fakeRepository struct {
	mu     sync.Mutex
	videos map[string]models.Video
}

func newFakeRepository(videos ...models.Video) *fakeRepository {
	repo := &fakeRepository{videos: make(map[string]models.Video)}
	for _, video := range videos {
		repo.videos[video.ID] = video
	}
	return repo
}

func (r *fakeRepository) Ping(ctx context.Context) error { return nil }

func (r *fakeRepository) CreateVideo(params storage.CreateVideoParams) (models.Video, error) {
	return models.Video{}, fmt.Errorf("not implemented")
}

func (r *fakeRepository) ListVideos() []models.Video { return nil }

func (r *fakeRepository) GetVideo(id string) (models.Video, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	video, ok := r.videos[id]
	return video, ok
}

func (r *fakeRepository) UpdateVideo(id string, update storage.VideoUpdate) (models.Video, error) {
	return models.Video{}, fmt.Errorf("not implemented")
}

func (r *fakeRepository) DeleteVideo(id string) error { return nil }

type fakeEncoder struct {
	mu      sync.Mutex
	calls   []EncodeParams
	failFor map[int]error // keyed by rendition height
}

func (e *fakeEncoder) Encode(ctx context.Context, params EncodeParams) error {
	e.mu.Lock()
	e.calls = append(e.calls, params)
	err := e.failFor[params.Height]
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(params.Manifest, []byte("#EXTM3U\nsegment_000.ts\n"), 0o644)
}

func (e *fakeEncoder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// gatedEncoder signals when its first encode starts and blocks every call
// until released, so tests can hold a job in the running state.
type gatedEncoder struct {
	fakeEncoder
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func newGatedEncoder() *gatedEncoder {
	return &gatedEncoder{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (e *gatedEncoder) Encode(ctx context.Context, params EncodeParams) error {
	e.startOnce.Do(func() { close(e.started) })
	select {
	case <-e.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.fakeEncoder.Encode(ctx, params)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, repo storage.Repository, encoder Encoder) (*Processor, *hls.Store) {
	t.Helper()
	artifacts := hls.NewStore(t.TempDir())
	processor := NewProcessor(ProcessorConfig{
		Store:     repo,
		Artifacts: artifacts,
		Ladder:    hls.DefaultLadder(),
		Encoder:   encoder,
		Queue:     NewMemoryQueue(8),
		Workers:   1,
		Logger:    testLogger(),
	})
	processor.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := processor.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return processor, artifacts
}

func waitForPhase(t *testing.T, processor *Processor, videoID string, want Phase) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if phase, ok := processor.Status(videoID); ok && phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	phase, ok := processor.Status(videoID)
	t.Fatalf("timed out waiting for phase %q, have %q (known=%v)", want, phase, ok)
}

func waitForNoPhase(t *testing.T, processor *Processor, videoID string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := processor.Status(videoID); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase of %s to clear", videoID)
}

func sourceVideo(t *testing.T, id string) models.Video {
	t.Helper()
	source := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(source, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("seed source: %v", err)
	}
	return models.Video{ID: id, Title: id, SourceFile: source}
}

func TestProcessorTranscodesAllRenditions(t *testing.T) {
	video := sourceVideo(t, "vid-1")
	repo := newFakeRepository(video)
	encoder := &fakeEncoder{}
	processor, artifacts := newTestProcessor(t, repo, encoder)

	if err := processor.EnqueueTranscode(context.Background(), video.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForPhase(t, processor, video.ID, PhaseDone)

	if got := encoder.callCount(); got != len(hls.DefaultLadder()) {
		t.Fatalf("expected %d encodes, got %d", len(hls.DefaultLadder()), got)
	}
	for _, rendition := range hls.DefaultLadder() {
		if !artifacts.HasManifest(video.ID, rendition.Name) {
			t.Fatalf("expected manifest for %s", rendition.Name)
		}
	}
}

func TestProcessorSkipsVideoWithoutSource(t *testing.T) {
	repo := newFakeRepository(models.Video{ID: "vid-2", Title: "no source"})
	encoder := &fakeEncoder{}
	processor, _ := newTestProcessor(t, repo, encoder)

	if err := processor.EnqueueTranscode(context.Background(), "vid-2"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForNoPhase(t, processor, "vid-2")
	if encoder.callCount() != 0 {
		t.Fatal("expected no encodes for sourceless video")
	}
}

func TestProcessorIsolatesRenditionFailure(t *testing.T) {
	video := sourceVideo(t, "vid-3")
	repo := newFakeRepository(video)
	encoder := &fakeEncoder{failFor: map[int]error{720: fmt.Errorf("encoder crashed")}}
	processor, artifacts := newTestProcessor(t, repo, encoder)

	if err := processor.EnqueueTranscode(context.Background(), video.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForPhase(t, processor, video.ID, PhaseDone)

	if !artifacts.HasManifest(video.ID, "480p") || !artifacts.HasManifest(video.ID, "1080p") {
		t.Fatal("expected sibling renditions to survive a failure")
	}
	if artifacts.HasManifest(video.ID, "720p") {
		t.Fatal("expected failed rendition to have no manifest")
	}
}

func TestProcessorFailsWhenEveryRenditionFails(t *testing.T) {
	video := sourceVideo(t, "vid-4")
	repo := newFakeRepository(video)
	encoder := &fakeEncoder{failFor: map[int]error{
		480:  fmt.Errorf("boom"),
		720:  fmt.Errorf("boom"),
		1080: fmt.Errorf("boom"),
	}}
	processor, _ := newTestProcessor(t, repo, encoder)

	if err := processor.EnqueueTranscode(context.Background(), video.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForPhase(t, processor, video.ID, PhaseFailed)
}

func TestProcessorCoalescesDuplicateTriggers(t *testing.T) {
	video := sourceVideo(t, "vid-5")
	repo := newFakeRepository(video)
	encoder := newGatedEncoder()
	processor, _ := newTestProcessor(t, repo, encoder)

	if err := processor.EnqueueTranscode(context.Background(), video.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-encoder.started:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for first encode to start")
	}

	// The job is now running; a second trigger must be coalesced.
	if err := processor.EnqueueTranscode(context.Background(), video.ID); err != nil {
		t.Fatalf("enqueue again: %v", err)
	}
	close(encoder.release)
	waitForPhase(t, processor, video.ID, PhaseDone)

	if got := encoder.callCount(); got != len(hls.DefaultLadder()) {
		t.Fatalf("expected coalesced triggers to encode once per rendition, got %d calls", got)
	}
}

func TestProcessorDropsCancelledJob(t *testing.T) {
	running := sourceVideo(t, "vid-6a")
	doomed := sourceVideo(t, "vid-6b")
	repo := newFakeRepository(running, doomed)
	encoder := newGatedEncoder()
	processor, _ := newTestProcessor(t, repo, encoder)

	// Occupy the single worker, then queue and cancel the second video.
	if err := processor.EnqueueTranscode(context.Background(), running.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-encoder.started:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for first encode to start")
	}
	if err := processor.EnqueueTranscode(context.Background(), doomed.ID); err != nil {
		t.Fatalf("enqueue doomed: %v", err)
	}
	processor.CancelVideo(doomed.ID)
	close(encoder.release)

	waitForPhase(t, processor, running.ID, PhaseDone)
	waitForNoPhase(t, processor, doomed.ID)

	encoder.mu.Lock()
	defer encoder.mu.Unlock()
	for _, call := range encoder.calls {
		if call.Input == doomed.SourceFile {
			t.Fatal("expected cancelled job to be dropped before encoding")
		}
	}
}

func TestProcessorPurgeRemovesArtifacts(t *testing.T) {
	video := sourceVideo(t, "vid-7")
	repo := newFakeRepository(video)
	encoder := &fakeEncoder{}
	processor, artifacts := newTestProcessor(t, repo, encoder)

	if err := processor.EnqueueTranscode(context.Background(), video.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitForPhase(t, processor, video.ID, PhaseDone)

	if err := processor.EnqueuePurge(context.Background(), video.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !artifacts.HasManifest(video.ID, "480p") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if artifacts.HasManifest(video.ID, "480p") {
		t.Fatal("expected purge to remove artifacts")
	}
}
