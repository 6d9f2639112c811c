package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the largest FPS standard deviation, as a
	// fraction of mean FPS, a stable stream may show.
	// 30 FPS mean -> stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the largest mean jitter, as a fraction of
	// the expected inter-frame interval, a stable stream may show.
	// 30 FPS (33ms interval) -> stable if mean jitter < 6.6ms
	jitterStabilityThreshold = 0.20
)

// Stats summarises the frame timing of a capture window.
type Stats struct {
	FramesReceived int
	Duration       time.Duration
	FPSMean        float64
	FPSStdDev      float64
	FPSMin         float64
	FPSMax         float64
	JitterMean     float64 // seconds
	JitterStdDev   float64 // seconds
	JitterMax      float64 // seconds
	IsStable       bool
}

// summary is mean, population stddev, min and max of a sample set.
type summary struct {
	mean, stddev, min, max float64
}

func summarise(values []float64) summary {
	if len(values) == 0 {
		return summary{}
	}
	s := summary{min: values[0], max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
	s.mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - s.mean
		sq += d * d
	}
	s.stddev = math.Sqrt(sq / float64(len(values)))
	return s
}

// CalculateFPSStats derives FPS and jitter statistics from capture timestamps.
//
// The mean FPS is frames / window. Instantaneous FPS is 1/interval for each
// positive interval; its spread is measured against the mean FPS. Jitter is
// |interval - 1/meanFPS|. A stream is stable when the FPS stddev is under
// 15% of the mean and the mean jitter is under 20% of the expected interval.
func CalculateFPSStats(frameTimes []time.Time, window time.Duration) Stats {
	n := len(frameTimes)
	st := Stats{FramesReceived: n, Duration: window}
	if n == 0 || window <= 0 {
		return st
	}
	st.FPSMean = float64(n) / window.Seconds()

	expected := 1.0 / st.FPSMean
	rates := make([]float64, 0, n-1)
	jitters := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			rates = append(rates, 1.0/interval)
		}
		jitters = append(jitters, math.Abs(interval-expected))
	}
	if len(rates) == 0 {
		return st
	}

	fps := summarise(rates)
	st.FPSMin, st.FPSMax = fps.min, fps.max

	// Spread around the overall rate, not around the mean of instantaneous rates
	var sq float64
	for _, r := range rates {
		d := r - st.FPSMean
		sq += d * d
	}
	st.FPSStdDev = math.Sqrt(sq / float64(len(rates)))

	jit := summarise(jitters)
	st.JitterMean, st.JitterStdDev, st.JitterMax = jit.mean, jit.stddev, jit.max

	st.IsStable = st.FPSStdDev < st.FPSMean*fpsStabilityThreshold &&
		st.JitterMean < expected*jitterStabilityThreshold
	return st
}
