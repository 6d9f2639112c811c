package uvccapture

import (
	"context"
	"fmt"
)

// NewTransport returns the backend named "v4l2", "gstreamer" or "synthetic".
func NewTransport(backend string) (Transport, error) {
	switch backend {
	case "v4l2", "":
		return NewV4L2Transport(V4L2Options{}), nil
	case "gstreamer", "gst":
		return NewGStreamerTransport(), nil
	case "synthetic", "mock":
		return NewSyntheticTransport(), nil
	default:
		return nil, fmt.Errorf("uvc-capture: unknown backend %q", backend)
	}
}

// FrameCallback receives each frame a Device produces.
//
// It runs on a transport-owned goroutine. A Device never invokes it
// concurrently with itself, and the callee takes ownership of the frame.
type FrameCallback func(*Frame)

// Transport opens capture devices. Implementations: V4L2 (blackjack/webcam),
// GStreamer (go-gst appsink) and a synthetic test-pattern generator.
type Transport interface {
	// Name identifies the backend in logs and stats (e.g. "v4l2")
	Name() string
	// Open acquires the named device
	Open(ctx context.Context, device string) (Device, error)
}

// TransportErrors counts runtime device errors by category.
type TransportErrors struct {
	// Device counts failures of the device itself, such as a camera unplugged mid-stream
	Device uint64
	// Format counts caps and negotiation failures reported while streaming
	Format uint64
	// Resource counts buffer and memory errors
	Resource uint64
	// Unknown counts errors that fit no other category
	Unknown uint64
}

// Total returns the sum of all categories.
func (e TransportErrors) Total() uint64 {
	return e.Device + e.Format + e.Resource + e.Unknown
}

// ErrorReporter is implemented by devices that classify the errors they
// hit while streaming. Camera.Stats reports them when available.
type ErrorReporter interface {
	TransportErrors() TransportErrors
}

// Device is one opened capture device.
type Device interface {
	// Negotiate requests a stream shape and returns what the device accepted.
	// It must be called before StartStreaming.
	Negotiate(params StreamParams) (StreamParams, error)
	// StartStreaming begins delivering frames to cb
	StartStreaming(cb FrameCallback) error
	// StopStreaming stops delivery. A callback already running may still
	// complete after it returns.
	StopStreaming() error
	// Close releases the device
	Close() error
}
