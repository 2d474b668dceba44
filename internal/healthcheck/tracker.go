package healthcheck

import (
	"sync"
	"time"
)

// Snapshot describes the latest processed notification for health endpoints.
type Snapshot struct {
	LastProcessedTime    *time.Time `json:"last_processed_time"`
	ProcessingDurationMS int64      `json:"processing_duration_ms"`
	JobsEmitted          int        `json:"jobs_emitted"`
}

// Tracker records notification processing for health endpoints.
type Tracker struct {
	mu                 sync.RWMutex
	lastProcessed      time.Time
	processingDuration time.Duration
	jobsEmitted        int
	ready              bool
}

// NewTracker constructs a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetReady marks the service ready to accept hooks (store loaded, pipeline
// wired).
func (t *Tracker) SetReady() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()
}

// RecordProcessed updates processing details after one notification.
func (t *Tracker) RecordProcessed(duration time.Duration, jobsEmitted int) {
	if t == nil {
		return
	}
	now := time.Now().UTC()
	t.mu.Lock()
	t.lastProcessed = now
	t.processingDuration = duration
	t.jobsEmitted = jobsEmitted
	t.mu.Unlock()
}

// Ready reports whether the service is ready.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastProcessed.IsZero() {
		value := t.lastProcessed
		last = &value
	}
	return Snapshot{
		LastProcessedTime:    last,
		ProcessingDurationMS: int64(t.processingDuration / time.Millisecond),
		JobsEmitted:          t.jobsEmitted,
	}
}
