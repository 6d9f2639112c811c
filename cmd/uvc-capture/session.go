package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	uvccapture "github.com/e7canasta/orion-care-sensor/modules/uvc-capture"
	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/telemetry"
)

// session is one camera lifetime: Init, StartStreaming, consume, Deinit.
// A config reload ends the session and starts a new one.
type session struct {
	cfg     *config.Config
	cam     *uvccapture.Camera
	saver   *frameSaver
	convert func(in, out *uvccapture.Frame) error
	mode    uvccapture.PollMode
	retry   uvccapture.RetryConfig
	started time.Time
}

// cameraConfig maps the YAML camera section onto a session config.
func cameraConfig(c config.CameraConfig) (uvccapture.Config, error) {
	format, err := uvccapture.ParseColorFormat(c.Format)
	if err != nil {
		return uvccapture.Config{}, err
	}
	mode, err := uvccapture.ParsePollMode(c.PollMode)
	if err != nil {
		return uvccapture.Config{}, err
	}
	return uvccapture.Config{
		Device:        c.Device,
		Format:        format,
		Width:         c.Width,
		Height:        c.Height,
		FPS:           c.FPS,
		PollMode:      mode,
		MaxQueueDepth: c.MaxQueueDepth,
	}, nil
}

func newSession(cfg *config.Config, retry uvccapture.RetryConfig) (*session, error) {
	camCfg, err := cameraConfig(cfg.Camera)
	if err != nil {
		return nil, err
	}
	transport, err := uvccapture.NewTransport(cfg.Camera.Backend)
	if err != nil {
		return nil, err
	}
	cam, err := uvccapture.NewCamera(transport, camCfg)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:     cfg,
		cam:     cam,
		convert: uvccapture.AnyToRGB,
		mode:    camCfg.PollMode,
		retry:   retry,
	}
	if cfg.Camera.OutputFormat == "BGR" {
		s.convert = uvccapture.AnyToBGR
	}
	if cfg.Output.Directory != "" {
		if s.saver, err = newFrameSaver(cfg.Output); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// run streams until ctx is cancelled (returns false) or max_frames frames
// were processed (returns true). The camera is always torn down on return.
func (s *session) run(ctx context.Context) (finished bool, err error) {
	if err := s.cam.InitWithRetry(ctx, s.retry); err != nil {
		s.cam.Deinit()
		return false, fmt.Errorf("failed to initialize camera: %w", err)
	}
	defer s.shutdown()

	if err := s.cam.StartStreaming(); err != nil {
		return false, fmt.Errorf("failed to start streaming: %w", err)
	}
	s.started = time.Now()

	if d := time.Duration(s.cfg.Camera.WarmupDurationS) * time.Second; d > 0 {
		if err := s.warmup(ctx, d); err != nil {
			return false, err
		}
	}

	out := &uvccapture.Frame{}
	var processed int
	for {
		frame, err := s.nextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, err
		}

		processed++
		if err := s.convert(frame, out); err != nil {
			slog.Warn("uvc-capture: conversion failed", "seq", frame.Seq, "error", err)
			continue
		}

		fmt.Printf("[%s] Frame #%-6d | Seq: %-8d | %s %dx%d | Size: %6.1f KB | Trace: %s\n",
			time.Now().Format("15:04:05"),
			processed,
			out.Seq,
			out.Format,
			out.Width,
			out.Height,
			float64(len(out.Data))/1024,
			out.TraceID,
		)

		if s.saver != nil {
			if _, err := s.saver.Save(out); err != nil {
				slog.Error("uvc-capture: failed to save frame", "error", err, "seq", out.Seq)
			}
		}

		if limit := s.cfg.Output.MaxFrames; limit > 0 && processed >= limit {
			fmt.Printf("\nReached maximum frames (%d), stopping...\n", limit)
			return true, nil
		}
	}
}

// nextFrame honours the configured poll mode.
func (s *session) nextFrame(ctx context.Context) (*uvccapture.Frame, error) {
	if s.mode == uvccapture.PollBlocking {
		return s.cam.WaitFrame(ctx)
	}

	interval := pollInterval(s.cfg.Camera.FPS)
	for {
		if frame, ok := s.cam.PollFrame(); ok {
			return frame, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// pollInterval is a quarter of the frame period, at least 1ms.
func pollInterval(fps int) time.Duration {
	if fps <= 0 {
		return 10 * time.Millisecond
	}
	d := time.Second / time.Duration(fps) / 4
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func (s *session) warmup(ctx context.Context, d time.Duration) error {
	fmt.Printf("\nRunning warmup (%s) to measure stream stability...\n", d)

	stats, err := s.cam.Warmup(ctx, d)
	if err != nil && !errors.Is(err, uvccapture.ErrUnstable) {
		return fmt.Errorf("warmup failed: %w", err)
	}

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Warmup Complete\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Received:    %6d frames\n", stats.FramesReceived)
	fmt.Printf("│ Duration:           %6.1f seconds\n", stats.Duration.Seconds())
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", stats.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", stats.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", stats.FPSMin, stats.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", stats.JitterMean)
	fmt.Printf("│ Jitter Max:         %6.3f s\n", stats.JitterMax)
	fmt.Printf("│ Stable:             %6v\n", stats.IsStable)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")

	if !stats.IsStable {
		fmt.Printf("\n⚠️  WARNING: Stream is unstable (high FPS variance or jitter)\n")
	}

	// Warm-up frames are stale by now
	if n := s.cam.ClearFrames(); n > 0 {
		slog.Debug("uvc-capture: discarded warm-up frames", "count", n)
	}
	return nil
}

func (s *session) shutdown() {
	slog.Info("uvc-capture: stopping stream")
	if err := s.cam.StopStreaming(); err != nil {
		slog.Error("uvc-capture: error stopping stream", "error", err)
	}
	if err := s.cam.Deinit(); err != nil {
		slog.Error("uvc-capture: error releasing camera", "error", err)
	}
}

// snapshot converts camera stats to the telemetry payload.
func (s *session) snapshot() telemetry.Snapshot {
	st := s.cam.Stats()
	snap := telemetry.Snapshot{
		InstanceID:     s.cfg.InstanceID,
		Timestamp:      time.Now(),
		Transport:      st.Transport,
		Device:         s.cfg.Camera.Device,
		State:          st.State.String(),
		Format:         st.Params.Format.String(),
		Width:          st.Params.Width,
		Height:         st.Params.Height,
		FPSTarget:      st.Params.FPS,
		FPSReal:        st.FPSReal,
		FramesCaptured: st.FramesCaptured,
		FramesPolled:   st.FramesPolled,
		FramesDropped:  st.FramesDropped,
		FramesCleared:  st.FramesCleared,
		QueueDepth:     st.QueueDepth,
		LatencyMS:      st.LatencyMS,
		ErrorsDevice:   st.Errors.Device,
		ErrorsFormat:   st.Errors.Format,
		ErrorsResource: st.Errors.Resource,
		ErrorsUnknown:  st.Errors.Unknown,
	}
	if s.saver != nil {
		snap.FramesSaved = s.saver.saved.Load()
	}
	return snap
}

func (s *session) printStats() {
	st := s.cam.Stats()
	uptime := time.Duration(0)
	if !s.started.IsZero() {
		uptime = time.Since(s.started)
	}

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Camera Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Transport:          %6s (%s)\n", st.Transport, st.State)
	fmt.Printf("│ Stream:             %s\n", st.Params)
	fmt.Printf("│ Frames Captured:    %6d frames\n", st.FramesCaptured)
	fmt.Printf("│ Frames Polled:      %6d frames\n", st.FramesPolled)
	if st.FramesDropped > 0 || st.FramesCleared > 0 {
		fmt.Printf("│ Queue Drops:        %6d frames\n", st.FramesDropped)
		fmt.Printf("│ Cleared:            %6d frames\n", st.FramesCleared)
	}
	fmt.Printf("│ Queue Depth:        %6d (high water %d)\n", st.QueueDepth, st.QueueHighWater)
	if s.saver != nil {
		fmt.Printf("│ Frames Saved:       %6d frames\n", s.saver.saved.Load())
		fmt.Printf("│ Save Failures:      %6d frames\n", s.saver.failed.Load())
	}
	if st.Errors.Total() > 0 {
		fmt.Printf("│ Device Errors:      %6d (format %d, resource %d, unknown %d)\n",
			st.Errors.Device, st.Errors.Format, st.Errors.Resource, st.Errors.Unknown)
	}
	fmt.Printf("│ Real FPS:           %6.2f fps\n", st.FPSReal)
	fmt.Printf("│ Latency:            %6d ms\n", st.LatencyMS)
	fmt.Printf("│ Bytes Read:         %6.2f MB\n", float64(st.BytesCaptured)/1024/1024)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}
