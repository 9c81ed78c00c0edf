// Package qos measures round trips and reduces them into latency / loss
// statistics.
package qos

import (
	"sync"
	"time"
)

// Sample is one successfully completed round trip.
type Sample struct {
	Seq      int           // 1-based ordinal of the attempt that produced it
	Duration time.Duration // never negative
}

// Recorder timestamps operations and keeps a sample for every one that is
// acknowledged. Operations that never reach Stop only show up in Attempts.
//
// One operation is in flight at a time; the mutex only guards against a
// reporter reading while the session records.
type Recorder struct {
	mu  sync.Mutex
	now func() time.Time

	started  time.Time
	inFlight bool
	attempts int
	samples  []Sample
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now. Tests use it to inject exact durations.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates an empty Recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start marks the beginning of an operation. It must be called immediately
// before the operation's first transport write. A previous operation that was
// started but neither stopped nor aborted is counted as lost.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	r.started = r.now()
	r.inFlight = true
}

// Stop marks the in-flight operation as acknowledged and records its sample.
// ok is false when no operation was in flight.
func (r *Recorder) Stop() (s Sample, ok bool) {
	end := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inFlight {
		return Sample{}, false
	}
	r.inFlight = false

	elapsed := end.Sub(r.started)
	if elapsed < 0 {
		elapsed = 0
	}

	s = Sample{Seq: r.attempts, Duration: elapsed}
	r.samples = append(r.samples, s)
	return s, true
}

// Abort drops the in-flight operation without a sample.
func (r *Recorder) Abort() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

// Attempts returns how many operations were started.
func (r *Recorder) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Samples returns a copy of the recorded samples in completion order.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Report aggregates the recorded samples against the recorder's own attempt
// count.
func (r *Recorder) Report() Report {
	r.mu.Lock()
	samples := make([]Sample, len(r.samples))
	copy(samples, r.samples)
	attempts := r.attempts
	r.mu.Unlock()

	return Aggregate(samples, attempts)
}
