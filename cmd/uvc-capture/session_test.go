package main

import (
	"context"
	"os"
	"testing"
	"time"

	uvccapture "github.com/e7canasta/orion-care-sensor/modules/uvc-capture"
	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/config"
)

func syntheticConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Camera.Backend = "synthetic"
	cfg.Camera.Device = "bars"
	cfg.Camera.Width = 64
	cfg.Camera.Height = 48
	cfg.Camera.FPS = 100
	if err := config.Validate(cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestCameraConfigMapping(t *testing.T) {
	cfg := syntheticConfig(t)
	cfg.Camera.Format = "UYVY"
	cfg.Camera.PollMode = "non-blocking"
	cfg.Camera.MaxQueueDepth = 3

	got, err := cameraConfig(cfg.Camera)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format != uvccapture.ColorFormatUYVY || got.PollMode != uvccapture.PollNonBlocking || got.MaxQueueDepth != 3 {
		t.Errorf("unexpected mapping %+v", got)
	}
	if got.Device != "bars" || got.Width != 64 || got.Height != 48 || got.FPS != 100 {
		t.Errorf("unexpected geometry %+v", got)
	}
}

func TestSessionRunMaxFrames(t *testing.T) {
	for _, mode := range []string{"blocking", "non-blocking"} {
		t.Run(mode, func(t *testing.T) {
			cfg := syntheticConfig(t)
			cfg.Camera.PollMode = mode
			cfg.Camera.OutputFormat = "BGR"
			cfg.Output.Directory = t.TempDir()
			cfg.Output.MaxFrames = 5

			s, err := newSession(cfg, uvccapture.DefaultRetryConfig())
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			finished, err := s.run(ctx)
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if !finished {
				t.Fatal("run() returned before max_frames")
			}
			if s.cam.State() != uvccapture.StateDeinitialized {
				t.Errorf("camera left in state %s", s.cam.State())
			}

			entries, err := os.ReadDir(cfg.Output.Directory)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 5 || s.saver.saved.Load() != 5 {
				t.Errorf("saved %d files (%d counted), want 5", len(entries), s.saver.saved.Load())
			}

			snap := s.snapshot()
			if snap.Transport != "synthetic" || snap.FramesPolled < 5 || snap.FramesSaved != 5 {
				t.Errorf("unexpected snapshot %+v", snap)
			}
			t.Logf("✅ %s: %d frames captured, %d saved", mode, snap.FramesCaptured, snap.FramesSaved)
		})
	}
}

func TestSessionRunCancelled(t *testing.T) {
	cfg := syntheticConfig(t)

	s, err := newSession(cfg, uvccapture.DefaultRetryConfig())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		finished, err := s.run(ctx)
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
		done <- finished
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case finished := <-done:
		if finished {
			t.Error("cancelled run reported finished")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestPollInterval(t *testing.T) {
	if d := pollInterval(25); d != 10*time.Millisecond {
		t.Errorf("pollInterval(25) = %v", d)
	}
	if d := pollInterval(1000); d != time.Millisecond {
		t.Errorf("pollInterval(1000) = %v", d)
	}
	if d := pollInterval(0); d != 10*time.Millisecond {
		t.Errorf("pollInterval(0) = %v", d)
	}
}
