// Package gstreamer captures raw video through a GStreamer pipeline ending
// in an appsink, using github.com/tinyzimmer/go-gst.
package gstreamer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Stream runs one pipeline at a time for a fixed PipelineConfig.
type Stream struct {
	cfg PipelineConfig

	mu       sync.Mutex
	elements *PipelineElements
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  time.Time

	// Gate for the appsink callback (cleared before the pipeline is torn down)
	active atomic.Bool

	frames atomic.Uint64
	bytes  atomic.Uint64
	errors ErrorCounters
}

// NewStream creates a stream with fail-fast validation
//
// Returns an error if the config is invalid or GStreamer (or the needed
// source element) is not installed.
func NewStream(cfg PipelineConfig) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := CheckAvailable(cfg.Device); err != nil {
		return nil, err
	}
	return &Stream{cfg: cfg}, nil
}

// Start builds the pipeline, sets it PLAYING and delivers frames to onFrame
// from the appsink streaming thread.
func (s *Stream) Start(onFrame func(Frame)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.elements != nil {
		return fmt.Errorf("gstreamer: stream already started")
	}

	elements, err := CreatePipeline(s.cfg)
	if err != nil {
		return fmt.Errorf("gstreamer: failed to create pipeline: %w", err)
	}

	handler := &sampleHandler{
		cfg:     s.cfg,
		deliver: onFrame,
		active:  &s.active,
		frames:  &s.frames,
		bytes:   &s.bytes,
	}
	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: handler.newSample,
	})

	s.active.Store(true)
	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		s.active.Store(false)
		DestroyPipeline(elements)
		return fmt.Errorf("gstreamer: failed to start pipeline: %w", err)
	}

	s.elements = elements
	s.started = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.monitor(ctx, elements.Pipeline)

	slog.Info("gstreamer: stream started",
		"device", s.cfg.Device,
		"caps", BuildCaps(s.cfg.Format, s.cfg.Width, s.cfg.Height, s.cfg.FPS),
	)
	return nil
}

func (s *Stream) monitor(ctx context.Context, pipeline *gst.Pipeline) {
	defer s.wg.Done()

	if err := MonitorPipelineBus(ctx, pipeline, s.cfg.Device, &s.errors, &s.frames); err != nil {
		// No frames will follow; the owner sees the stall in its stats
		s.active.Store(false)
		slog.Error("gstreamer: stream stopped delivering frames",
			"device", s.cfg.Device,
			"error", err,
		)
	}
}

// Stop closes the callback gate, stops the bus monitor and sets the
// pipeline to NULL. Safe to call when not started.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.elements == nil {
		return nil
	}

	s.active.Store(false)
	s.cancel()
	s.wg.Wait()

	err := DestroyPipeline(s.elements)
	s.elements = nil
	s.cancel = nil

	slog.Info("gstreamer: stream stopped",
		"device", s.cfg.Device,
		"uptime", time.Since(s.started),
		"frames_processed", s.frames.Load(),
	)

	if err != nil {
		return fmt.Errorf("gstreamer: %w", err)
	}
	return nil
}

// Errors returns the classified bus error counters.
func (s *Stream) Errors() ErrorCounters {
	return s.errors.Snapshot()
}
