package gstreamer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCounters holds atomic counters for different error categories
type ErrorCounters struct {
	Device   uint64
	Format   uint64
	Resource uint64
	Unknown  uint64
}

// Add increments the counter of category c.
func (e *ErrorCounters) Add(c ErrorCategory) {
	switch c {
	case ErrCategoryDevice:
		atomic.AddUint64(&e.Device, 1)
	case ErrCategoryFormat:
		atomic.AddUint64(&e.Format, 1)
	case ErrCategoryResource:
		atomic.AddUint64(&e.Resource, 1)
	default:
		atomic.AddUint64(&e.Unknown, 1)
	}
}

// Snapshot returns a consistent-enough copy for reporting.
func (e *ErrorCounters) Snapshot() ErrorCounters {
	return ErrorCounters{
		Device:   atomic.LoadUint64(&e.Device),
		Format:   atomic.LoadUint64(&e.Format),
		Resource: atomic.LoadUint64(&e.Resource),
		Unknown:  atomic.LoadUint64(&e.Unknown),
	}
}

// MonitorPipelineBus polls the pipeline bus until ctx is cancelled or the
// pipeline reports EOS or an error.
//
// Errors are classified and counted. Returns nil on cancellation and an
// error describing the EOS or failure otherwise.
func MonitorPipelineBus(ctx context.Context, pipeline *gst.Pipeline, device string, counters *ErrorCounters, frames *atomic.Uint64) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstreamer: context cancelled, stopping pipeline monitor")
			return nil
		default:
		}

		// Short timeout for responsive shutdown
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gstreamer: end of stream received",
				"device", device,
				"uptime", time.Since(started),
				"frames_processed", frames.Load(),
			)
			return fmt.Errorf("end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			counters.Add(category)

			slog.Error("gstreamer: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"device", device,
				"uptime", time.Since(started),
				"frames_processed", frames.Load(),
			)
			return fmt.Errorf("pipeline error [%s]: %s", category.String(), gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, current := msg.ParseStateChanged()
				slog.Debug("gstreamer: pipeline state changed",
					"from", old,
					"to", current,
				)
			}
		}
	}
}
