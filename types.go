package uvccapture

import (
	"fmt"
	"time"
)

// Frame represents a single video frame with metadata
type Frame struct {
	// Data holds the pixel bytes; len(Data) is the frame's byte count
	Data []byte
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Format is the pixel layout of Data
	Format ColorFormat
	// Step is the number of bytes per row
	Step int
	// Seq is the monotonic capture sequence number
	Seq uint64
	// CaptureTime is when the transport produced the frame
	CaptureTime time.Time
	// Source identifies the producing stream (e.g. "/dev/video0")
	Source string
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// DataBytes returns the size of the pixel buffer.
func (f *Frame) DataBytes() int {
	return len(f.Data)
}

// StreamParams describes the negotiated shape of a stream.
type StreamParams struct {
	Format ColorFormat
	Width  int
	Height int
	FPS    int
}

// String returns e.g. "YUYV 640x480@30".
func (p StreamParams) String() string {
	return fmt.Sprintf("%s %dx%d@%d", p.Format, p.Width, p.Height, p.FPS)
}

// PollMode selects the semantics of Camera.PollFrame.
type PollMode int

const (
	// PollNonBlocking returns immediately with ok=false when no frame is queued
	PollNonBlocking PollMode = iota
	// PollBlocking suspends the caller until a frame arrives or the session is torn down
	PollBlocking
)

// String returns a human-readable poll mode name
func (m PollMode) String() string {
	switch m {
	case PollNonBlocking:
		return "non-blocking"
	case PollBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// ParsePollMode parses "non-blocking"/"nonblocking"/"poll" or "blocking"/"wait".
func ParsePollMode(s string) (PollMode, error) {
	switch s {
	case "", "non-blocking", "nonblocking", "poll":
		return PollNonBlocking, nil
	case "blocking", "wait":
		return PollBlocking, nil
	default:
		return PollNonBlocking, fmt.Errorf("uvc-capture: unknown poll mode %q", s)
	}
}

// State is the lifecycle state of a Camera session.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateStreaming
	StateDeinitialized
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStreaming:
		return "streaming"
	case StateDeinitialized:
		return "deinitialized"
	default:
		return "unknown"
	}
}

// Config contains configuration for a Camera session
type Config struct {
	// Device is the transport-specific device name (e.g. "/dev/video0")
	Device string
	// Format is the requested source pixel format
	Format ColorFormat
	// Width and Height are the requested frame size in pixels
	Width  int
	Height int
	// FPS is the requested frame rate
	FPS int
	// PollMode selects PollFrame semantics
	PollMode PollMode
	// MaxQueueDepth bounds the frame queue with a drop-oldest policy (0 = unbounded)
	MaxQueueDepth int
}

// DefaultConfig returns YUYV 640x480@30 on /dev/video0.
func DefaultConfig() Config {
	return Config{
		Device: "/dev/video0",
		Format: ColorFormatYUYV,
		Width:  640,
		Height: 480,
		FPS:    30,
	}
}

// Params returns the stream parameters requested by the config.
func (c Config) Params() StreamParams {
	return StreamParams{Format: c.Format, Width: c.Width, Height: c.Height, FPS: c.FPS}
}

// Stats contains current session statistics
type Stats struct {
	// State is the session lifecycle state
	State State
	// FramesCaptured is the total number of frames delivered by the transport
	FramesCaptured uint64
	// FramesPolled is the total number of frames handed to the consumer
	FramesPolled uint64
	// FramesDropped counts frames evicted by the queue bound or delivered after teardown
	FramesDropped uint64
	// FramesCleared counts frames discarded by ClearFrames
	FramesCleared uint64
	// Errors holds the device's classified runtime errors (zero when the
	// transport does not report them or no device is open)
	Errors TransportErrors
	// QueueDepth is the number of frames currently queued
	QueueDepth int
	// QueueHighWater is the largest queue depth observed
	QueueHighWater int
	// BytesCaptured is the total number of pixel bytes delivered
	BytesCaptured uint64
	// FPSReal is frames captured divided by streaming uptime
	FPSReal float64
	// LatencyMS is the time since the last captured frame in milliseconds
	LatencyMS int64
	// Params are the negotiated stream parameters
	Params StreamParams
	// Transport is the name of the transport backend
	Transport string
}

// WarmupStats contains statistics collected during stream warm-up phase
type WarmupStats struct {
	// FramesReceived is the number of frames captured during warm-up
	FramesReceived int
	// Duration is the actual warm-up duration
	Duration time.Duration
	// FPSMean is the mean FPS across all frames
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	// FPSMin is the minimum instantaneous FPS
	FPSMin float64
	// FPSMax is the maximum instantaneous FPS
	FPSMax float64
	// JitterMean is the mean deviation from the expected inter-frame interval (seconds)
	JitterMean float64
	// JitterStdDev is the standard deviation of jitter (seconds)
	JitterStdDev float64
	// JitterMax is the largest deviation observed (seconds)
	JitterMax float64
	// IsStable is true if FPS and jitter are within thresholds
	IsStable bool
}
