package uvccapture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/warmup"
)

// ErrUnstable is returned by Warmup, together with the measured statistics,
// when the stream's frame timing exceeds the stability thresholds.
var ErrUnstable = warmup.ErrUnstable

// Warmup measures the stream's frame timing for duration d.
//
// It does not consume frames: timestamps are recorded by the producer
// callback, so frames captured during warm-up stay queued (call
// ClearFrames afterwards to discard them). Requires StateStreaming.
//
// Stable when FPS stddev < 15% of mean and mean jitter < 20% of the
// expected interval. An unstable stream returns its stats and ErrUnstable.
func (c *Camera) Warmup(ctx context.Context, d time.Duration) (*WarmupStats, error) {
	if s := c.State(); s != StateStreaming {
		return nil, wrapErr("warmup", fmt.Errorf("state %s: %w", s, ErrInvalidState))
	}

	st, err := warmup.Measure(ctx, c.recorder, d)
	if err != nil && !errors.Is(err, warmup.ErrUnstable) {
		return nil, wrapErr("warmup", err)
	}

	out := toWarmupStats(st)
	if err != nil {
		return out, wrapErr("warmup", err)
	}
	return out, nil
}

// CalculateFPSStats computes warm-up statistics from a list of capture
// timestamps spanning totalDuration.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	return toWarmupStats(warmup.CalculateFPSStats(frameTimes, totalDuration))
}

func toWarmupStats(st warmup.Stats) *WarmupStats {
	return &WarmupStats{
		FramesReceived: st.FramesReceived,
		Duration:       st.Duration,
		FPSMean:        st.FPSMean,
		FPSStdDev:      st.FPSStdDev,
		FPSMin:         st.FPSMin,
		FPSMax:         st.FPSMax,
		JitterMean:     st.JitterMean,
		JitterStdDev:   st.JitterStdDev,
		JitterMax:      st.JitterMax,
		IsStable:       st.IsStable,
	}
}
