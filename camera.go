package uvccapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/queue"
	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/warmup"
)

// Camera is one capture session: a device opened through a Transport, a
// frame queue fed by the device callback, and the consumer-side poll API.
//
// Lifecycle:
//
//	Uninitialized -> Init -> Initialized -> StartStreaming -> Streaming
//	Streaming -> StopStreaming -> Initialized -> Deinit -> Deinitialized
//	Deinitialized -> Init -> Initialized (a session may be re-opened)
//
// Lifecycle methods are serialised by an internal mutex. PollFrame,
// WaitFrame, ClearFrames and Stats may be called from any goroutine at
// any time.
type Camera struct {
	transport Transport
	cfg       Config

	mu     sync.Mutex // guards lifecycle fields below
	state  State
	device Device
	params StreamParams

	// Current frame queue. Replaced on re-Init after Deinit closed it.
	frames   atomic.Pointer[queue.Queue[*Frame]]
	recorder *warmup.Recorder

	// Statistics (atomic for thread-safety)
	seq            atomic.Uint64
	framesCaptured atomic.Uint64
	framesPolled   atomic.Uint64
	framesDropped  atomic.Uint64
	framesCleared  atomic.Uint64
	bytesCaptured  atomic.Uint64
	lastFrameAt    atomic.Int64 // unix nanoseconds

	// FPSReal window, guarded by mu
	streamingSince  time.Time
	capturedAtStart uint64
}

// NewCamera creates a session with fail-fast validation
//
// Validates configuration at construction time:
//   - transport must not be nil
//   - format must be YUYV, UYVY, RGB or BGR
//   - width, height and fps must be positive
//   - poll mode must be known
//   - queue depth must not be negative
//
// No device is touched until Init.
func NewCamera(transport Transport, cfg Config) (*Camera, error) {
	if transport == nil {
		return nil, wrapErr("new camera", fmt.Errorf("transport is required: %w", ErrInvalidParam))
	}
	switch cfg.Format {
	case ColorFormatYUYV, ColorFormatUYVY, ColorFormatRGB, ColorFormatBGR:
	default:
		return nil, wrapErr("new camera", fmt.Errorf("unsupported format %s: %w", cfg.Format, ErrInvalidParam))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, wrapErr("new camera", fmt.Errorf("invalid resolution %dx%d: %w", cfg.Width, cfg.Height, ErrInvalidParam))
	}
	if cfg.FPS <= 0 {
		return nil, wrapErr("new camera", fmt.Errorf("invalid fps %d: %w", cfg.FPS, ErrInvalidParam))
	}
	if cfg.PollMode != PollNonBlocking && cfg.PollMode != PollBlocking {
		return nil, wrapErr("new camera", fmt.Errorf("invalid poll mode %d: %w", cfg.PollMode, ErrInvalidParam))
	}
	if cfg.MaxQueueDepth < 0 {
		return nil, wrapErr("new camera", fmt.Errorf("invalid queue depth %d: %w", cfg.MaxQueueDepth, ErrInvalidParam))
	}

	c := &Camera{
		transport: transport,
		cfg:       cfg,
		state:     StateUninitialized,
		recorder:  warmup.NewRecorder(warmup.DefaultCapacity),
	}
	c.frames.Store(c.newQueue())

	slog.Info("uvc-capture: camera created",
		"transport", transport.Name(),
		"device", cfg.Device,
		"params", cfg.Params().String(),
		"poll_mode", cfg.PollMode.String(),
		"max_queue_depth", cfg.MaxQueueDepth,
	)

	return c, nil
}

func (c *Camera) newQueue() *queue.Queue[*Frame] {
	return queue.New[*Frame](
		queue.WithMaxDepth(c.cfg.MaxQueueDepth),
		queue.WithOnDrop(func(*Frame) { c.framesDropped.Add(1) }),
	)
}

// Init opens the device and negotiates the configured stream shape.
//
// The first failing step is returned immediately, wrapped. Init does not
// roll back a partially opened device; call Deinit to release it.
func (c *Camera) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUninitialized && c.state != StateDeinitialized {
		return wrapErr("init", fmt.Errorf("state %s: %w", c.state, ErrInvalidState))
	}

	// A device left behind by an earlier failed Init
	if c.device != nil {
		slog.Warn("uvc-capture: closing device from failed init", "device", c.cfg.Device)
		if err := c.device.Close(); err != nil {
			slog.Warn("uvc-capture: close failed", "device", c.cfg.Device, "error", err)
		}
		c.device = nil
	}

	if c.frames.Load().Closed() {
		c.frames.Store(c.newQueue())
	}

	requested := c.cfg.Params()
	slog.Info("uvc-capture: opening device",
		"transport", c.transport.Name(),
		"device", c.cfg.Device,
		"requested", requested.String(),
	)

	dev, err := c.transport.Open(ctx, c.cfg.Device)
	if err != nil {
		return wrapErr("init", fmt.Errorf("open %s: %w", c.cfg.Device, err))
	}
	c.device = dev

	negotiated, err := dev.Negotiate(requested)
	if err != nil {
		return wrapErr("init", fmt.Errorf("negotiate %s: %w", requested, err))
	}
	c.params = negotiated
	c.state = StateInitialized

	slog.Info("uvc-capture: device initialized",
		"device", c.cfg.Device,
		"negotiated", negotiated.String(),
	)
	if negotiated != requested {
		slog.Warn("uvc-capture: device adjusted stream parameters",
			"requested", requested.String(),
			"negotiated", negotiated.String(),
		)
	}

	return nil
}

// StartStreaming registers the producer callback with the device.
// On failure the session stays Initialized.
func (c *Camera) StartStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInitialized {
		return wrapErr("start streaming", fmt.Errorf("state %s: %w", c.state, ErrInvalidState))
	}

	q := c.frames.Load()
	if err := c.device.StartStreaming(c.onFrame(q)); err != nil {
		return wrapErr("start streaming", err)
	}

	c.state = StateStreaming
	c.streamingSince = time.Now()
	c.capturedAtStart = c.framesCaptured.Load()
	c.recorder.Reset()

	slog.Info("uvc-capture: streaming started",
		"device", c.cfg.Device,
		"params", c.params.String(),
	)

	return nil
}

// StopStreaming unregisters the producer callback. Queued frames are kept.
// Calling it when not streaming is a no-op.
func (c *Camera) StopStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStreaming {
		return nil
	}

	err := c.device.StopStreaming()
	c.state = StateInitialized

	slog.Info("uvc-capture: streaming stopped",
		"device", c.cfg.Device,
		"frames_captured", c.framesCaptured.Load(),
		"queue_depth", c.frames.Load().Len(),
		"uptime", time.Since(c.streamingSince),
	)

	if err != nil {
		return wrapErr("stop streaming", err)
	}
	return nil
}

// PollFrame takes the oldest queued frame.
//
// In PollNonBlocking mode it returns immediately with ok=false when the
// queue is empty. In PollBlocking mode it waits until a frame arrives and
// returns ok=false only once the session has been deinitialized.
func (c *Camera) PollFrame() (frame *Frame, ok bool) {
	q := c.frames.Load()
	if c.cfg.PollMode == PollBlocking {
		frame, ok = q.Pop()
	} else {
		frame, ok = q.TryPop()
	}
	if ok {
		c.framesPolled.Add(1)
	}
	return frame, ok
}

// WaitFrame blocks for the next frame regardless of poll mode.
// It returns ctx.Err() on cancellation and ErrClosed after Deinit.
func (c *Camera) WaitFrame(ctx context.Context) (*Frame, error) {
	frame, err := c.frames.Load().PopContext(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return nil, wrapErr("wait frame", err)
		}
		return nil, err
	}
	c.framesPolled.Add(1)
	return frame, nil
}

// ClearFrames discards every queued frame and returns how many were dropped.
func (c *Camera) ClearFrames() int {
	n := c.frames.Load().Clear()
	c.framesCleared.Add(uint64(n))
	if n > 0 {
		slog.Debug("uvc-capture: frames cleared", "count", n)
	}
	return n
}

// Deinit releases the device and wakes every blocked poller.
//
// Returns ErrStreaming if the session is still streaming. Safe after a
// failed Init and idempotent.
func (c *Camera) Deinit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStreaming {
		return wrapErr("deinit", ErrStreaming)
	}

	c.frames.Load().Close()

	var err error
	if c.device != nil {
		if cerr := c.device.Close(); cerr != nil {
			err = wrapErr("deinit", cerr)
		}
		c.device = nil
	}

	if c.state != StateDeinitialized {
		slog.Info("uvc-capture: camera deinitialized",
			"device", c.cfg.Device,
			"frames_captured", c.framesCaptured.Load(),
			"frames_polled", c.framesPolled.Load(),
			"frames_dropped", c.framesDropped.Load(),
		)
	}
	c.state = StateDeinitialized
	c.params = StreamParams{}

	return err
}

// State returns the lifecycle state.
func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Params returns the negotiated stream parameters (zero before Init).
func (c *Camera) Params() StreamParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Stats returns current session statistics.
func (c *Camera) Stats() Stats {
	c.mu.Lock()
	state := c.state
	params := c.params
	since := c.streamingSince
	atStart := c.capturedAtStart
	dev := c.device
	c.mu.Unlock()

	var deviceErrors TransportErrors
	if r, ok := dev.(ErrorReporter); ok {
		deviceErrors = r.TransportErrors()
	}

	qs := c.frames.Load().Stats()
	captured := c.framesCaptured.Load()

	var fpsReal float64
	if state == StateStreaming {
		if uptime := time.Since(since).Seconds(); uptime > 0 {
			fpsReal = float64(captured-atStart) / uptime
		}
	}

	var latencyMS int64
	if last := c.lastFrameAt.Load(); last > 0 {
		latencyMS = time.Since(time.Unix(0, last)).Milliseconds()
	}

	return Stats{
		State:          state,
		FramesCaptured: captured,
		FramesPolled:   c.framesPolled.Load(),
		FramesDropped:  c.framesDropped.Load(),
		FramesCleared:  c.framesCleared.Load(),
		Errors:         deviceErrors,
		QueueDepth:     qs.Depth,
		QueueHighWater: qs.HighWater,
		BytesCaptured:  c.bytesCaptured.Load(),
		FPSReal:        fpsReal,
		LatencyMS:      latencyMS,
		Params:         params,
		Transport:      c.transport.Name(),
	}
}

// onFrame builds the producer callback bound to q.
//
// It stamps the session's metadata, updates counters, records the capture
// time for warm-up and pushes. It never blocks.
func (c *Camera) onFrame(q *queue.Queue[*Frame]) FrameCallback {
	return func(f *Frame) {
		if f == nil {
			return
		}

		f.Seq = c.seq.Add(1)
		if f.CaptureTime.IsZero() {
			f.CaptureTime = time.Now()
		}
		if f.Source == "" {
			f.Source = c.cfg.Device
		}
		if f.TraceID == "" {
			f.TraceID = uuid.New().String()
		}

		c.framesCaptured.Add(1)
		c.bytesCaptured.Add(uint64(len(f.Data)))
		c.lastFrameAt.Store(f.CaptureTime.UnixNano())
		c.recorder.Record(f.CaptureTime)

		if !q.Push(f) {
			slog.Debug("uvc-capture: frame arrived after deinit, dropped",
				"seq", f.Seq,
				"trace_id", f.TraceID,
			)
			return
		}

		slog.Debug("uvc-capture: frame queued",
			"seq", f.Seq,
			"size_bytes", len(f.Data),
			"trace_id", f.TraceID,
		)
	}
}
