package uvccapture

import (
	"context"
	"fmt"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/gstreamer"
)

// GStreamerTransport captures through v4l2src (or videotestsrc for the
// device name "test") and an appsink.
type GStreamerTransport struct{}

// NewGStreamerTransport creates the GStreamer transport.
func NewGStreamerTransport() *GStreamerTransport {
	return &GStreamerTransport{}
}

// Name implements Transport
func (t *GStreamerTransport) Name() string { return "gstreamer" }

// Open implements Transport. The pipeline itself is built by Negotiate,
// once the caps are known.
func (t *GStreamerTransport) Open(ctx context.Context, device string) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if device == "" {
		return nil, fmt.Errorf("gstreamer: device is required: %w", ErrInvalidParam)
	}
	return &gstDevice{name: device}, nil
}

type gstDevice struct {
	name string

	mu     sync.Mutex
	stream *gstreamer.Stream
	params StreamParams
}

func (d *gstDevice) Negotiate(params StreamParams) (StreamParams, error) {
	format := params.Format.GStreamerFormat()
	if format == "" {
		return StreamParams{}, fmt.Errorf("gstreamer: format %s: %w", params.Format, ErrNotSupported)
	}

	stream, err := gstreamer.NewStream(gstreamer.PipelineConfig{
		Device: d.name,
		Format: format,
		Width:  params.Width,
		Height: params.Height,
		FPS:    params.FPS,
	})
	if err != nil {
		return StreamParams{}, err
	}

	d.mu.Lock()
	d.stream = stream
	d.params = params
	d.mu.Unlock()

	// The capsfilter forces exactly the requested shape
	return params, nil
}

func (d *gstDevice) StartStreaming(cb FrameCallback) error {
	d.mu.Lock()
	stream := d.stream
	format := d.params.Format
	d.mu.Unlock()

	if stream == nil {
		return fmt.Errorf("gstreamer: device %s not negotiated: %w", d.name, ErrInvalidState)
	}

	source := d.name
	return stream.Start(func(f gstreamer.Frame) {
		cb(&Frame{
			Data:        f.Data,
			Width:       f.Width,
			Height:      f.Height,
			Format:      format,
			Step:        f.Step,
			CaptureTime: f.Timestamp,
			Source:      source,
		})
	})
}

// TransportErrors implements ErrorReporter from the bus monitor counters.
func (d *gstDevice) TransportErrors() TransportErrors {
	d.mu.Lock()
	stream := d.stream
	d.mu.Unlock()

	if stream == nil {
		return TransportErrors{}
	}
	e := stream.Errors()
	return TransportErrors{
		Device:   e.Device,
		Format:   e.Format,
		Resource: e.Resource,
		Unknown:  e.Unknown,
	}
}

func (d *gstDevice) StopStreaming() error {
	d.mu.Lock()
	stream := d.stream
	d.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Stop()
}

func (d *gstDevice) Close() error {
	d.mu.Lock()
	stream := d.stream
	d.stream = nil
	d.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Stop()
}
