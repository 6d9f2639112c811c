package gstreamer

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Frame is a minimal frame struct for internal use (avoids import cycle)
// The actual Frame type is defined in the parent package
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Step      int
	Format    string
	Data      []byte
}

// sampleHandler turns appsink samples into Frames for one running pipeline.
type sampleHandler struct {
	cfg     PipelineConfig
	deliver func(Frame)

	// Shared with Stream: the gate and the counters outlive one pipeline
	active *atomic.Bool
	frames *atomic.Uint64
	bytes  *atomic.Uint64
}

// newSample runs on the appsink streaming thread. GStreamer serialises it per
// sink, so deliver never runs concurrently with itself.
//
// Bad samples are skipped rather than returned as a flow error: one corrupt
// buffer must not end the stream.
func (h *sampleHandler) newSample(sink *app.Sink) gst.FlowReturn {
	data, ok := pullSample(sink)
	if !ok {
		return gst.FlowOK
	}

	if !h.active.Load() {
		slog.Debug("gstreamer: sample after stop, discarded", "device", h.cfg.Device)
		return gst.FlowOK
	}

	seq := h.frames.Add(1)
	h.bytes.Add(uint64(len(data)))

	h.deliver(Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     h.cfg.Width,
		Height:    h.cfg.Height,
		Step:      rowStride(len(data), h.cfg.Height),
		Format:    h.cfg.Format,
		Data:      data,
	})
	return gst.FlowOK
}

// pullSample copies the next sample's bytes out of the mapped buffer; the
// buffer goes back to GStreamer's pool when we return.
func pullSample(sink *app.Sink) ([]byte, bool) {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstreamer: appsink returned no sample, skipping")
		return nil, false
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstreamer: sample without buffer, skipping")
		return nil, false
	}

	mapped := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	src := mapped.Bytes()
	if len(src) == 0 {
		slog.Warn("gstreamer: empty buffer, skipping")
		return nil, false
	}
	return append([]byte(nil), src...), true
}

// rowStride derives bytes per row when the buffer divides evenly by height.
// 0 lets the converter assume tightly packed rows.
func rowStride(size, height int) int {
	if height <= 0 || size%height != 0 {
		return 0
	}
	return size / height
}
