// Package warmup measures frame timing over a capture window.
//
// The session records every capture timestamp into a Recorder from the
// transport callback. Measure sleeps for the window and then analyses the
// timestamps that fell inside it, so warm-up never consumes frames from the
// hand-off queue.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotEnoughFrames means fewer than two frames arrived in the window
	ErrNotEnoughFrames = errors.New("not enough frames")
	// ErrUnstable means the stream's FPS or jitter exceeded the thresholds
	ErrUnstable = errors.New("stream FPS unstable")
)

// DefaultCapacity holds about ten seconds of 30 FPS capture.
const DefaultCapacity = 300

// Recorder is a fixed-size ring of capture timestamps, safe for one writer
// and any number of readers.
type Recorder struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	count int
}

// NewRecorder creates a ring holding the last capacity timestamps.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{times: make([]time.Time, capacity)}
}

// Record stores t, overwriting the oldest entry when full.
func (r *Recorder) Record(t time.Time) {
	r.mu.Lock()
	r.times[r.next] = t
	r.next = (r.next + 1) % len(r.times)
	if r.count < len(r.times) {
		r.count++
	}
	r.mu.Unlock()
}

// Since returns the recorded timestamps not before t, oldest first.
func (r *Recorder) Since(t time.Time) []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]time.Time, 0, r.count)
	start := (r.next - r.count + len(r.times)) % len(r.times)
	for i := 0; i < r.count; i++ {
		ts := r.times[(start+i)%len(r.times)]
		if !ts.Before(t) {
			out = append(out, ts)
		}
	}
	return out
}

// Reset forgets every recorded timestamp.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.next, r.count = 0, 0
	r.mu.Unlock()
}

// Measure waits for window (or ctx) and returns the statistics of the
// frames recorded meanwhile.
//
// Returns ErrNotEnoughFrames if fewer than two frames arrived and
// ErrUnstable, together with the statistics, if the stream is not stable.
// A cancelled ctx returns ctx.Err().
func Measure(ctx context.Context, rec *Recorder, window time.Duration) (Stats, error) {
	slog.Info("warmup: starting stream warm-up", "duration", window)

	start := time.Now()
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-timer.C:
	}

	elapsed := time.Since(start)
	times := rec.Since(start)
	if len(times) < 2 {
		return Stats{FramesReceived: len(times), Duration: elapsed},
			fmt.Errorf("warmup: got %d frames in %v, need at least 2: %w", len(times), elapsed, ErrNotEnoughFrames)
	}

	st := CalculateFPSStats(times, elapsed)

	slog.Info("warmup: stream warm-up complete",
		"frames", st.FramesReceived,
		"duration", st.Duration,
		"fps_mean", fmt.Sprintf("%.2f", st.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", st.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", st.FPSMin, st.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", st.JitterMean),
		"stable", st.IsStable,
	)

	if !st.IsStable {
		return st, fmt.Errorf("warmup: mean=%.2f Hz stddev=%.2f jitter=%.3fs: %w",
			st.FPSMean, st.FPSStdDev, st.JitterMean, ErrUnstable)
	}
	return st, nil
}
