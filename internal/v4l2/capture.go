// Package v4l2 streams frames from a Video4Linux2 device via
// github.com/blackjack/webcam (mmap buffers, select-based wait).
package v4l2

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blackjack/webcam"
)

const (
	// DefaultBuffers is the number of mmap buffers requested from the driver
	DefaultBuffers = 4
	// DefaultTimeout is the WaitForFrame timeout in seconds. It also bounds
	// how long Stop waits for the capture goroutine.
	DefaultTimeout = 1
)

// Frame is a minimal frame struct for internal use (avoids import cycle)
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Step      int
	FourCC    uint32
	Data      []byte
}

// Format is a negotiated device format.
type Format struct {
	FourCC uint32
	Width  int
	Height int
}

// device is the subset of *webcam.Webcam used by Capture.
type device interface {
	GetSupportedFormats() map[webcam.PixelFormat]string
	SetImageFormat(f webcam.PixelFormat, width, height uint32) (webcam.PixelFormat, uint32, uint32, error)
	SetFramerate(fps float32) error
	GetFramerate() (float32, error)
	SetBufferCount(count uint32) error
	StartStreaming() error
	WaitForFrame(timeout uint32) error
	GetFrame() ([]byte, uint32, error)
	ReleaseFrame(index uint32) error
	StopStreaming() error
	Close() error
}

// Capture owns one opened V4L2 device.
type Capture struct {
	path     string
	cam      device
	buffers  uint32
	timeout  uint32
	stopWait time.Duration

	mu sync.Mutex
	// streaming is set between STREAMON and STREAMOFF. It stays set when
	// the capture goroutine dies so that Stop still turns the stream off.
	streaming bool
	stopping  bool
	format    Format
	stopCh    chan struct{}
	done      chan struct{}
	seq       uint64
	lastErr   error

	failures atomic.Uint64
}

// Open opens the device node (e.g. "/dev/video0").
func Open(path string, buffers, timeout uint32) (*Capture, error) {
	if buffers == 0 {
		buffers = DefaultBuffers
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("v4l2: open %s: %w", path, err)
	}

	slog.Debug("v4l2: device opened", "device", path)
	return newCapture(path, cam, buffers, timeout), nil
}

func newCapture(path string, cam device, buffers, timeout uint32) *Capture {
	return &Capture{
		path:     path,
		cam:      cam,
		buffers:  buffers,
		timeout:  timeout,
		stopWait: time.Duration(timeout+2) * time.Second,
	}
}

// SupportedFormats maps each pixel format code the device offers to its description.
func (c *Capture) SupportedFormats() map[uint32]string {
	out := make(map[uint32]string)
	for pf, desc := range c.cam.GetSupportedFormats() {
		out[uint32(pf)] = desc
	}
	return out
}

// SetFormat requests a pixel format and frame size; the driver may adjust both.
func (c *Capture) SetFormat(fourcc uint32, width, height int) (Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streaming {
		return Format{}, fmt.Errorf("v4l2: %s: cannot change format while streaming", c.path)
	}

	supported := c.SupportedFormats()
	if _, ok := supported[fourcc]; !ok {
		return Format{}, fmt.Errorf("v4l2: %s: pixel format %s (device offers %s): %w",
			c.path, fourccString(fourcc), formatList(supported), ErrFormatUnsupported)
	}

	pf, w, h, err := c.cam.SetImageFormat(webcam.PixelFormat(fourcc), uint32(width), uint32(height))
	if err != nil {
		return Format{}, fmt.Errorf("v4l2: %s: set format: %w", c.path, err)
	}

	c.format = Format{FourCC: uint32(pf), Width: int(w), Height: int(h)}
	slog.Info("v4l2: format negotiated",
		"device", c.path,
		"fourcc", fourccString(uint32(pf)),
		"width", w,
		"height", h,
	)
	return c.format, nil
}

// SetFramerate requests a frame rate. Drivers that do not support frame
// interval selection return an error; callers may treat that as advisory.
func (c *Capture) SetFramerate(fps int) error {
	if err := c.cam.SetFramerate(float32(fps)); err != nil {
		return fmt.Errorf("v4l2: %s: set framerate %d: %w", c.path, fps, err)
	}
	return nil
}

// Framerate returns the frame rate the driver is currently configured for.
func (c *Capture) Framerate() (float32, error) {
	fps, err := c.cam.GetFramerate()
	if err != nil {
		return 0, fmt.Errorf("v4l2: %s: get framerate: %w", c.path, err)
	}
	return fps, nil
}

var (
	// ErrFormatUnsupported reports a pixel format the device does not list.
	ErrFormatUnsupported = errors.New("format not offered by device")
	// ErrStopTimeout reports a capture goroutine that did not exit in time.
	// The stream is left on and the device open.
	ErrStopTimeout = errors.New("capture goroutine did not exit")
)

// Start begins streaming and delivers each frame to cb from a capture goroutine.
// cb is never invoked concurrently with itself and owns the frame it receives.
func (c *Capture) Start(cb func(Frame)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streaming {
		return fmt.Errorf("v4l2: %s: already streaming", c.path)
	}
	if c.format.FourCC == 0 {
		return fmt.Errorf("v4l2: %s: format not set", c.path)
	}

	if err := c.cam.SetBufferCount(c.buffers); err != nil {
		slog.Warn("v4l2: buffer count not applied", "device", c.path, "buffers", c.buffers, "error", err)
	}
	if err := c.cam.StartStreaming(); err != nil {
		return fmt.Errorf("v4l2: %s: start streaming: %w", c.path, err)
	}

	c.streaming = true
	c.stopping = false
	c.lastErr = nil
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	go c.capture(cb, c.format, c.stopCh, c.done)

	slog.Info("v4l2: streaming started", "device", c.path, "buffers", c.buffers)
	return nil
}

// Stop ends streaming and waits for the capture goroutine to exit.
// Safe to call when not streaming, and again after ErrStopTimeout.
//
// STREAMOFF is only issued once the goroutine has exited: it unmaps the
// buffer a pending GetFrame may still be reading.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return nil
	}
	if !c.stopping {
		c.stopping = true
		close(c.stopCh)
	}
	done := c.done
	c.mu.Unlock()

	// The loop notices stopCh at most one WaitForFrame timeout later
	select {
	case <-done:
	case <-time.After(c.stopWait):
		slog.Warn("v4l2: capture goroutine did not exit in time, stream left on",
			"device", c.path,
			"wait", c.stopWait,
		)
		return fmt.Errorf("v4l2: %s: %w", c.path, ErrStopTimeout)
	}

	err := c.cam.StopStreaming()

	c.mu.Lock()
	c.streaming = false
	c.stopping = false
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("v4l2: %s: stop streaming: %w", c.path, err)
	}
	slog.Info("v4l2: streaming stopped", "device", c.path)
	return nil
}

// Close stops streaming if needed and releases the device. When the
// capture goroutine cannot be stopped the device stays open and
// ErrStopTimeout is returned.
func (c *Capture) Close() error {
	stopErr := c.Stop()
	if errors.Is(stopErr, ErrStopTimeout) {
		return stopErr
	}
	if err := c.cam.Close(); err != nil {
		return fmt.Errorf("v4l2: close %s: %w", c.path, err)
	}
	return stopErr
}

// Err returns the error that ended the last capture loop, or nil while it
// is running or after a clean stop.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Failures counts capture loops that ended on a device error.
func (c *Capture) Failures() uint64 {
	return c.failures.Load()
}

// fail records why the capture loop gave up.
func (c *Capture) fail(err error) {
	c.failures.Add(1)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	slog.Error("v4l2: capture stopped on device error", "device", c.path, "error", err)
}

// capture runs the wait/dequeue/copy/requeue loop.
func (c *Capture) capture(cb func(Frame), format Format, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		err := c.cam.WaitForFrame(c.timeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			slog.Debug("v4l2: wait for frame timed out", "device", c.path)
			continue
		default:
			c.fail(fmt.Errorf("wait for frame: %w", err))
			return
		}

		buf, index, err := c.cam.GetFrame()
		if err != nil {
			c.fail(fmt.Errorf("dequeue: %w", err))
			return
		}
		if len(buf) == 0 {
			c.cam.ReleaseFrame(index)
			slog.Warn("v4l2: empty buffer received", "device", c.path)
			continue
		}

		// Copy out of the mmap buffer; the driver reuses it once released
		data := make([]byte, len(buf))
		copy(data, buf)
		if err := c.cam.ReleaseFrame(index); err != nil {
			slog.Warn("v4l2: requeue failed", "device", c.path, "index", index, "error", err)
		}

		c.seq++
		cb(Frame{
			Seq:       c.seq,
			Timestamp: time.Now(),
			Width:     format.Width,
			Height:    format.Height,
			Step:      rowStride(len(data), format.Height),
			FourCC:    format.FourCC,
			Data:      data,
		})
	}
}

// rowStride derives bytes-per-line from the payload size. Compressed
// payloads that do not divide evenly report 0.
func rowStride(n, height int) int {
	if height <= 0 || n%height != 0 {
		return 0
	}
	return n / height
}

// formatList renders supported formats as a sorted FourCC list.
func formatList(formats map[uint32]string) string {
	names := make([]string, 0, len(formats))
	for code := range formats {
		names = append(names, fourccString(code))
	}
	if len(names) == 0 {
		return "none"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func fourccString(code uint32) string {
	return string([]byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)})
}
