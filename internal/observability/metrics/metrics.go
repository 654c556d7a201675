package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// TranscodeJobLabel identifies a transcode job counter by job kind and final
// status.
type TranscodeJobLabel struct {
	Kind   string
	Status string
}

// RenditionLabel identifies a rendition counter by resolution and outcome.
type RenditionLabel struct {
	Resolution string
	Status     string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP
// requests, transcode jobs, rendition outcomes, and playback delivery. It
// coordinates concurrent writers via a RWMutex while exposing a thread-safe
// gauge for active job tracking.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	transcodeEvents map[TranscodeJobLabel]uint64
	renditionEvents map[RenditionLabel]uint64
	playbackEvents  map[string]uint64
	activeJobs      atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		transcodeEvents: make(map[TranscodeJobLabel]uint64),
		renditionEvents: make(map[RenditionLabel]uint64),
		playbackEvents:  make(map[string]uint64),
	}
}

// Default returns the singleton Recorder shared across helper functions for
// packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// TranscodeJobStarted records the start of a job of the provided kind and
// increments the active job gauge.
func (r *Recorder) TranscodeJobStarted(kind string) {
	r.recordTranscodeEvent(kind, "start")
	r.activeJobs.Add(1)
}

// TranscodeJobFinished records the terminal status of a job and decrements
// the active job gauge.
func (r *Recorder) TranscodeJobFinished(kind, outcome string) {
	r.recordTranscodeEvent(kind, outcome)
	r.decrementGauge(&r.activeJobs)
}

// RenditionFinished records one rendition outcome keyed by resolution label.
func (r *Recorder) RenditionFinished(resolution, outcome string) {
	label := RenditionLabel{
		Resolution: normalizeName(resolution),
		Status:     normalizeName(outcome),
	}
	r.mu.Lock()
	r.renditionEvents[label]++
	r.mu.Unlock()
}

// ObservePlayback records a delivered playback artifact ("manifest" or
// "segment").
func (r *Recorder) ObservePlayback(artifact string) {
	name := normalizeName(artifact)
	r.mu.Lock()
	r.playbackEvents[name]++
	r.mu.Unlock()
}

func (r *Recorder) recordTranscodeEvent(kind, status string) {
	label := TranscodeJobLabel{
		Kind:   normalizeName(kind),
		Status: normalizeName(status),
	}
	r.mu.Lock()
	r.transcodeEvents[label]++
	r.mu.Unlock()
}

// ActiveTranscodeJobs exposes the current number of running jobs.
func (r *Recorder) ActiveTranscodeJobs() int64 {
	return r.activeJobs.Load()
}

// TranscodeJobCounts returns copies of job event counters and the current
// active job gauge value.
func (r *Recorder) TranscodeJobCounts() (events map[TranscodeJobLabel]uint64, active int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events = make(map[TranscodeJobLabel]uint64, len(r.transcodeEvents))
	for k, v := range r.transcodeEvents {
		events[k] = v
	}
	return events, r.activeJobs.Load()
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.transcodeEvents = make(map[TranscodeJobLabel]uint64)
	r.renditionEvents = make(map[RenditionLabel]uint64)
	r.playbackEvents = make(map[string]uint64)
	r.activeJobs.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	transcodeLabels := r.sortedTranscodeJobLabels()
	renditionLabels := r.sortedRenditionLabels()
	playbackEvents := r.sortedPlaybackEvents()

	fmt.Fprintln(w, "# HELP videoflix_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE videoflix_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "videoflix_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP videoflix_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE videoflix_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "videoflix_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP videoflix_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE videoflix_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "videoflix_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP videoflix_transcode_jobs_total Transcode job events by kind and status")
	fmt.Fprintln(w, "# TYPE videoflix_transcode_jobs_total counter")
	for _, label := range transcodeLabels {
		count := r.transcodeEvents[label]
		fmt.Fprintf(w, "videoflix_transcode_jobs_total{kind=\"%s\",status=\"%s\"} %d\n", label.Kind, label.Status, count)
	}

	fmt.Fprintln(w, "# HELP videoflix_transcode_active_jobs Current number of active transcode jobs")
	fmt.Fprintln(w, "# TYPE videoflix_transcode_active_jobs gauge")
	fmt.Fprintf(w, "videoflix_transcode_active_jobs %d\n", r.activeJobs.Load())

	fmt.Fprintln(w, "# HELP videoflix_renditions_total Rendition encode outcomes by resolution and status")
	fmt.Fprintln(w, "# TYPE videoflix_renditions_total counter")
	for _, label := range renditionLabels {
		count := r.renditionEvents[label]
		fmt.Fprintf(w, "videoflix_renditions_total{resolution=\"%s\",status=\"%s\"} %d\n", label.Resolution, label.Status, count)
	}

	fmt.Fprintln(w, "# HELP videoflix_playback_artifacts_total Playback artifacts delivered by type")
	fmt.Fprintln(w, "# TYPE videoflix_playback_artifacts_total counter")
	for _, artifact := range playbackEvents {
		count := r.playbackEvents[artifact]
		fmt.Fprintf(w, "videoflix_playback_artifacts_total{artifact=\"%s\"} %d\n", artifact, count)
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedTranscodeJobLabels() []TranscodeJobLabel {
	labels := make([]TranscodeJobLabel, 0, len(r.transcodeEvents))
	for label := range r.transcodeEvents {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Kind != labels[j].Kind {
			return labels[i].Kind < labels[j].Kind
		}
		return labels[i].Status < labels[j].Status
	})
	return labels
}

func (r *Recorder) sortedRenditionLabels() []RenditionLabel {
	labels := make([]RenditionLabel, 0, len(r.renditionEvents))
	for label := range r.renditionEvents {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Resolution != labels[j].Resolution {
			return labels[i].Resolution < labels[j].Resolution
		}
		return labels[i].Status < labels[j].Status
	})
	return labels
}

func (r *Recorder) sortedPlaybackEvents() []string {
	events := make([]string, 0, len(r.playbackEvents))
	for event := range r.playbackEvents {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// TranscodeJobStarted records a job start on the default recorder.
func TranscodeJobStarted(kind string) {
	defaultRecorder.TranscodeJobStarted(kind)
}

// TranscodeJobFinished records a job outcome on the default recorder.
func TranscodeJobFinished(kind, outcome string) {
	defaultRecorder.TranscodeJobFinished(kind, outcome)
}

// RenditionFinished records a rendition outcome on the default recorder.
func RenditionFinished(resolution, outcome string) {
	defaultRecorder.RenditionFinished(resolution, outcome)
}

// ObservePlayback records a delivered artifact on the default recorder.
func ObservePlayback(artifact string) {
	defaultRecorder.ObservePlayback(artifact)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
