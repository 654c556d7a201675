package transcode

import (
	"context"
	"errors"
	"sync"
	"time"
)

// JobKind identifies the work a queued job requests.
type JobKind string

const (
	// KindTranscode requests a full ladder transcode of one video.
	KindTranscode JobKind = "transcode"
	// KindPurge requests removal of every artifact of one video.
	KindPurge JobKind = "purge"
)

// Job is the message published to the transcode queue. Jobs are not
// persisted; the queue is the only hand-off between the trigger and the
// worker pool.
type Job struct {
	Kind       JobKind   `json:"kind"`
	VideoID    string    `json:"videoId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue carries transcode jobs from the API boundary to the worker pool. The
// contract is intentionally minimal so in-memory deployments and test fakes
// stay trivial.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	Subscribe() Subscription
}

// Subscription represents an active job stream.
type Subscription interface {
	Jobs() <-chan Job
	Close()
}

// NewMemoryQueue initialises an in-memory fan-out queue suitable for tests
// and single-process deployments.
func NewMemoryQueue(buffer int) Queue {
	if buffer <= 0 {
		buffer = 32
	}
	return &memoryQueue{
		subs:   make(map[*memorySubscription]struct{}),
		buffer: buffer,
	}
}

type memoryQueue struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]struct{}
	buffer int
}

func (q *memoryQueue) Publish(ctx context.Context, job Job) error {
	if job.Kind == "" {
		return errors.New("job kind is required")
	}
	if job.VideoID == "" {
		return errors.New("job video id is required")
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	for sub := range q.subs {
		select {
		case sub.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (q *memoryQueue) Subscribe() Subscription {
	sub := &memorySubscription{
		queue: q,
		ch:    make(chan Job, q.buffer),
	}
	q.mu.Lock()
	q.subs[sub] = struct{}{}
	q.mu.Unlock()
	return sub
}

type memorySubscription struct {
	once  sync.Once
	queue *memoryQueue
	ch    chan Job
}

func (s *memorySubscription) Jobs() <-chan Job {
	return s.ch
}

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		s.queue.mu.Lock()
		delete(s.queue.subs, s)
		s.queue.mu.Unlock()
		close(s.ch)
	})
}
