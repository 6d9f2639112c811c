package uvccapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/v4l2"
)

// V4L2Options tunes the V4L2 transport. Zero values pick the defaults.
type V4L2Options struct {
	// Buffers is the number of mmap buffers (default 4)
	Buffers uint32
	// TimeoutSeconds bounds each wait for a frame (default 1)
	TimeoutSeconds uint32
}

// V4L2Transport opens /dev/videoN nodes directly.
type V4L2Transport struct {
	opts V4L2Options
}

// NewV4L2Transport creates the Video4Linux2 transport.
func NewV4L2Transport(opts V4L2Options) *V4L2Transport {
	return &V4L2Transport{opts: opts}
}

// Name implements Transport
func (t *V4L2Transport) Name() string { return "v4l2" }

// Open implements Transport
func (t *V4L2Transport) Open(ctx context.Context, device string) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := v4l2.Open(device, t.opts.Buffers, t.opts.TimeoutSeconds)
	if err != nil {
		return nil, err
	}
	return &v4l2Device{capture: c, name: device}, nil
}

type v4l2Device struct {
	capture *v4l2.Capture
	name    string
}

func (d *v4l2Device) Negotiate(params StreamParams) (StreamParams, error) {
	fourcc, err := FourCCCode(params.Format.FourCC())
	if err != nil {
		return StreamParams{}, fmt.Errorf("v4l2: format %s: %w", params.Format, ErrNotSupported)
	}

	format, err := d.capture.SetFormat(fourcc, params.Width, params.Height)
	if errors.Is(err, v4l2.ErrFormatUnsupported) {
		return StreamParams{}, fmt.Errorf("%w: %w", err, ErrNotSupported)
	}
	if err != nil {
		return StreamParams{}, err
	}

	setErr := d.capture.SetFramerate(params.FPS)
	if setErr != nil {
		// Many UVC drivers only offer fixed intervals; stream at the device rate
		slog.Warn("v4l2: framerate not applied", "device", d.name, "fps", params.FPS, "error", setErr)
	}
	actual, getErr := d.capture.Framerate()

	return StreamParams{
		Format: ColorFormatFromFourCC(format.FourCC),
		Width:  format.Width,
		Height: format.Height,
		FPS:    negotiatedFPS(params.FPS, setErr, actual, getErr),
	}, nil
}

// negotiatedFPS reports the rate the driver runs at. The requested rate is
// only assumed when it was accepted and the driver cannot be queried; 0
// means unknown.
func negotiatedFPS(requested int, setErr error, actual float32, getErr error) int {
	if getErr == nil && actual > 0 {
		return int(math.Round(float64(actual)))
	}
	if setErr == nil {
		return requested
	}
	return 0
}

// TransportErrors implements ErrorReporter. Capture loops that died on a
// device error count as device errors.
func (d *v4l2Device) TransportErrors() TransportErrors {
	return TransportErrors{Device: d.capture.Failures()}
}

func (d *v4l2Device) StartStreaming(cb FrameCallback) error {
	source := d.name
	return d.capture.Start(func(f v4l2.Frame) {
		cb(&Frame{
			Data:        f.Data,
			Width:       f.Width,
			Height:      f.Height,
			Format:      ColorFormatFromFourCC(f.FourCC),
			Step:        f.Step,
			CaptureTime: f.Timestamp,
			Source:      source,
		})
	})
}

func (d *v4l2Device) StopStreaming() error {
	return d.capture.Stop()
}

func (d *v4l2Device) Close() error {
	return d.capture.Close()
}
