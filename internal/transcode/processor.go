package transcode

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"videoflix/internal/hls"
	"videoflix/internal/storage"
)

// Phase is the in-memory lifecycle of the most recent job for one video. It
// informs logs and the video detail response; rendition availability remains
// filesystem truth.
type Phase string

const (
	PhaseQueued  Phase = "queued"
	PhaseRunning Phase = "running"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

// Metrics receives job and rendition outcomes. All methods must be safe for
// concurrent use.
type Metrics interface {
	TranscodeJobStarted(kind string)
	TranscodeJobFinished(kind, outcome string)
	RenditionFinished(resolution, outcome string)
}

// ProcessorConfig wires the transcode pipeline together.
type ProcessorConfig struct {
	Store          storage.Repository
	Artifacts      *hls.Store
	Ladder         hls.Ladder
	Encoder        Encoder
	Queue          Queue
	Workers        int
	EncodeSlots    int
	SegmentSeconds int
	Timeout        time.Duration
	Logger         *slog.Logger
	Metrics        Metrics
}

// Processor consumes jobs from the queue with a bounded worker pool. It
// guards per-video uniqueness, coalesces duplicate triggers, bounds
// concurrent ffmpeg invocations with a weighted semaphore and honours
// cancellation tombstones left by deletes.
type Processor struct {
	store          storage.Repository
	artifacts      *hls.Store
	ladder         hls.Ladder
	encoder        Encoder
	queue          Queue
	workers        int
	segmentSeconds int
	timeout        time.Duration
	logger         *slog.Logger
	metrics        Metrics
	slots          *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	wg  sync.WaitGroup
	sub Subscription

	mu        sync.Mutex
	inFlight  map[string]context.CancelFunc
	cancelled map[string]struct{}
	phases    map[string]Phase
	started   bool
}

const (
	defaultTranscodeWorkers = 2
	defaultEncodeSlots      = 2
	defaultSegmentSeconds   = 6
	defaultTranscodeTimeout = 30 * time.Minute
)

// NewProcessor initialises the worker pool without starting it.
func NewProcessor(cfg ProcessorConfig) *Processor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultTranscodeWorkers
	}
	slots := cfg.EncodeSlots
	if slots <= 0 {
		slots = defaultEncodeSlots
	}
	segmentSeconds := cfg.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = defaultSegmentSeconds
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTranscodeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ladder := cfg.Ladder
	if len(ladder) == 0 {
		ladder = hls.DefaultLadder()
	}
	queue := cfg.Queue
	if queue == nil {
		queue = NewMemoryQueue(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		store:          cfg.Store,
		artifacts:      cfg.Artifacts,
		ladder:         ladder,
		encoder:        cfg.Encoder,
		queue:          queue,
		workers:        workers,
		segmentSeconds: segmentSeconds,
		timeout:        timeout,
		logger:         logger,
		metrics:        cfg.Metrics,
		slots:          semaphore.NewWeighted(int64(slots)),
		ctx:            ctx,
		cancel:         cancel,
		inFlight:       make(map[string]context.CancelFunc),
		cancelled:      make(map[string]struct{}),
		phases:         make(map[string]Phase),
	}
}

// Start subscribes to the queue and launches the worker pool. Calling Start
// twice is a no-op.
func (p *Processor) Start() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.sub = p.queue.Subscribe()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Shutdown stops accepting work and waits for in-flight jobs, bounded by ctx.
func (p *Processor) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.cancel()
	if p.sub != nil {
		p.sub.Close()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueTranscode publishes a transcode job for the video. Triggers for a
// video that is already queued or running are coalesced.
func (p *Processor) EnqueueTranscode(ctx context.Context, videoID string) error {
	if p == nil || strings.TrimSpace(videoID) == "" {
		return nil
	}
	p.mu.Lock()
	delete(p.cancelled, videoID)
	if phase, ok := p.phases[videoID]; ok && (phase == PhaseQueued || phase == PhaseRunning) {
		p.mu.Unlock()
		p.logger.Debug("transcode trigger coalesced", "video_id", videoID)
		return nil
	}
	p.phases[videoID] = PhaseQueued
	p.mu.Unlock()

	job := Job{Kind: KindTranscode, VideoID: videoID, EnqueuedAt: time.Now().UTC()}
	if err := p.queue.Publish(ctx, job); err != nil {
		p.mu.Lock()
		delete(p.phases, videoID)
		p.mu.Unlock()
		return err
	}
	p.logger.Info("transcode job enqueued", "video_id", videoID)
	return nil
}

// EnqueuePurge cancels pending work for the video and publishes a purge job.
func (p *Processor) EnqueuePurge(ctx context.Context, videoID string) error {
	if p == nil || strings.TrimSpace(videoID) == "" {
		return nil
	}
	p.CancelVideo(videoID)
	job := Job{Kind: KindPurge, VideoID: videoID, EnqueuedAt: time.Now().UTC()}
	if err := p.queue.Publish(ctx, job); err != nil {
		return err
	}
	p.logger.Info("purge job enqueued", "video_id", videoID)
	return nil
}

// CancelVideo leaves a tombstone so a queued-but-unstarted transcode is
// dropped when dequeued, and interrupts a running one.
func (p *Processor) CancelVideo(videoID string) {
	if p == nil || videoID == "" {
		return
	}
	p.mu.Lock()
	p.cancelled[videoID] = struct{}{}
	delete(p.phases, videoID)
	cancel := p.inFlight[videoID]
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Status reports the in-memory phase of the most recent job for the video.
func (p *Processor) Status(videoID string) (Phase, bool) {
	if p == nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	phase, ok := p.phases[videoID]
	return phase, ok
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.sub.Jobs():
			if !ok {
				return
			}
			p.handleJob(job)
		}
	}
}

func (p *Processor) handleJob(job Job) {
	videoID := strings.TrimSpace(job.VideoID)
	if videoID == "" {
		return
	}
	switch job.Kind {
	case KindPurge:
		p.handlePurge(videoID)
	case KindTranscode:
		p.handleTranscode(videoID)
	default:
		p.logger.Warn("unknown job kind", "kind", string(job.Kind), "video_id", videoID)
	}
}

func (p *Processor) handlePurge(videoID string) {
	p.observeJobStarted("purge")
	if err := p.artifacts.Purge(videoID); err != nil {
		p.logger.Error("artifact purge failed", "video_id", videoID, "error", err)
		p.observeJobFinished("purge", "failed")
		return
	}
	p.mu.Lock()
	delete(p.phases, videoID)
	p.mu.Unlock()
	p.logger.Info("artifacts purged", "video_id", videoID)
	p.observeJobFinished("purge", "ok")
}

func (p *Processor) handleTranscode(videoID string) {
	ctx, ok := p.beginWork(videoID)
	if !ok {
		return
	}
	defer p.finishWork(videoID)

	video, found := p.store.GetVideo(videoID)
	if !found {
		p.logger.Warn("transcode job for unknown video", "video_id", videoID)
		p.clearPhase(videoID)
		return
	}

	p.observeJobStarted("transcode")
	ctx, cancelTimeout := context.WithTimeout(ctx, p.timeout)
	defer cancelTimeout()

	err := p.runTranscode(ctx, video)
	switch {
	case err == nil && !video.HasSource():
		p.clearPhase(videoID)
		p.observeJobFinished("transcode", "skipped")
	case err == nil:
		p.setPhase(videoID, PhaseDone)
		p.observeJobFinished("transcode", "ok")
		p.logger.Info("transcode complete", "video_id", videoID)
	case ctx.Err() != nil && p.isCancelled(videoID):
		// Delete raced a running job: drop the partial output.
		if purgeErr := p.artifacts.Purge(videoID); purgeErr != nil {
			p.logger.Error("partial artifact purge failed", "video_id", videoID, "error", purgeErr)
		}
		p.clearPhase(videoID)
		p.observeJobFinished("transcode", "cancelled")
		p.logger.Info("transcode cancelled", "video_id", videoID)
	default:
		p.setPhase(videoID, PhaseFailed)
		p.observeJobFinished("transcode", "failed")
		p.logger.Error("transcode failed", "video_id", videoID, "error", err)
	}
}

// beginWork claims the per-video slot. It returns false when the job was
// cancelled before starting or another worker already holds the video.
func (p *Processor) beginWork(videoID string) (context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dropped := p.cancelled[videoID]; dropped {
		delete(p.cancelled, videoID)
		delete(p.phases, videoID)
		p.logger.Info("transcode job dropped before start", "video_id", videoID)
		return nil, false
	}
	if _, exists := p.inFlight[videoID]; exists {
		return nil, false
	}
	ctx, cancel := context.WithCancel(p.ctx)
	p.inFlight[videoID] = cancel
	p.phases[videoID] = PhaseRunning
	return ctx, true
}

func (p *Processor) finishWork(videoID string) {
	p.mu.Lock()
	cancel := p.inFlight[videoID]
	delete(p.inFlight, videoID)
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Processor) isCancelled(videoID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.cancelled[videoID]; ok {
		delete(p.cancelled, videoID)
		return true
	}
	return false
}

func (p *Processor) setPhase(videoID string, phase Phase) {
	p.mu.Lock()
	p.phases[videoID] = phase
	p.mu.Unlock()
}

func (p *Processor) clearPhase(videoID string) {
	p.mu.Lock()
	delete(p.phases, videoID)
	p.mu.Unlock()
}

func (p *Processor) observeJobStarted(kind string) {
	if p.metrics != nil {
		p.metrics.TranscodeJobStarted(kind)
	}
}

func (p *Processor) observeJobFinished(kind, outcome string) {
	if p.metrics != nil {
		p.metrics.TranscodeJobFinished(kind, outcome)
	}
}

func (p *Processor) observeRendition(resolution, outcome string) {
	if p.metrics != nil {
		p.metrics.RenditionFinished(resolution, outcome)
	}
}
