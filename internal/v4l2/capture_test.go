package v4l2

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blackjack/webcam"
)

var yuyvCode = uint32('Y') | uint32('U')<<8 | uint32('Y')<<16 | uint32('V')<<24

// scriptedCam is an in-memory device. getFrame decides what each dequeue returns.
type scriptedCam struct {
	getFrame func(n int) ([]byte, error)

	mu        sync.Mutex
	dequeues  int
	streamOff int
	closed    int
}

func (s *scriptedCam) GetSupportedFormats() map[webcam.PixelFormat]string {
	return map[webcam.PixelFormat]string{
		webcam.PixelFormat(yuyvCode): "YUYV 4:2:2",
		webcam.PixelFormat(uint32('M') | uint32('J')<<8 | uint32('P')<<16 | uint32('G')<<24): "Motion-JPEG",
	}
}

func (s *scriptedCam) SetImageFormat(f webcam.PixelFormat, w, h uint32) (webcam.PixelFormat, uint32, uint32, error) {
	return f, w, h, nil
}

func (s *scriptedCam) SetFramerate(float32) error     { return nil }
func (s *scriptedCam) GetFramerate() (float32, error) { return 30, nil }
func (s *scriptedCam) SetBufferCount(uint32) error    { return nil }
func (s *scriptedCam) StartStreaming() error          { return nil }
func (s *scriptedCam) ReleaseFrame(uint32) error      { return nil }

func (s *scriptedCam) WaitForFrame(timeout uint32) error {
	time.Sleep(time.Millisecond)
	return nil
}

func (s *scriptedCam) GetFrame() ([]byte, uint32, error) {
	s.mu.Lock()
	s.dequeues++
	n := s.dequeues
	s.mu.Unlock()
	data, err := s.getFrame(n)
	return data, 0, err
}

func (s *scriptedCam) StopStreaming() error {
	s.mu.Lock()
	s.streamOff++
	s.mu.Unlock()
	return nil
}

func (s *scriptedCam) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *scriptedCam) counts() (streamOff, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamOff, s.closed
}

func startScripted(t *testing.T, cam *scriptedCam, cb func(Frame)) *Capture {
	t.Helper()
	c := newCapture("/dev/scripted", cam, DefaultBuffers, DefaultTimeout)
	if _, err := c.SetFormat(yuyvCode, 4, 2); err != nil {
		t.Fatalf("SetFormat() failed: %v", err)
	}
	if err := c.Start(cb); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return c
}

func TestSetFormatUnsupportedListsOffered(t *testing.T) {
	c := newCapture("/dev/scripted", &scriptedCam{}, DefaultBuffers, DefaultTimeout)
	rgb3 := uint32('R') | uint32('G')<<8 | uint32('B')<<16 | uint32('3')<<24

	_, err := c.SetFormat(rgb3, 640, 480)
	if !errors.Is(err, ErrFormatUnsupported) {
		t.Fatalf("SetFormat() error = %v, want ErrFormatUnsupported", err)
	}
	if !strings.Contains(err.Error(), "device offers MJPG, YUYV") {
		t.Errorf("error does not list offered formats: %v", err)
	}
	t.Logf("✅ %v", err)
}

func TestCaptureDequeueFailure(t *testing.T) {
	cam := &scriptedCam{getFrame: func(n int) ([]byte, error) {
		if n > 3 {
			return nil, errors.New("no such device")
		}
		return make([]byte, 16), nil
	}}

	var frames atomic.Int64
	c := startScripted(t, cam, func(Frame) { frames.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for c.Err() == nil {
		if time.Now().After(deadline) {
			t.Fatal("capture loop did not record the dequeue failure")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if c.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", c.Failures())
	}
	if frames.Load() != 3 {
		t.Errorf("delivered %d frames, want 3", frames.Load())
	}

	// The stream is still on in the driver; Stop must turn it off
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() after failure error = %v", err)
	}
	if off, _ := cam.counts(); off != 1 {
		t.Errorf("StopStreaming called %d times, want 1", off)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if off, _ := cam.counts(); off != 1 {
		t.Errorf("StopStreaming called %d times after second Stop, want 1", off)
	}
	t.Logf("✅ failure recorded: %v", c.Err())
}

func TestCaptureStopTimeout(t *testing.T) {
	release := make(chan struct{})
	cam := &scriptedCam{getFrame: func(n int) ([]byte, error) {
		<-release
		return make([]byte, 16), nil
	}}

	c := startScripted(t, cam, func(Frame) {})
	c.stopWait = 20 * time.Millisecond

	// Give the loop time to block inside GetFrame
	time.Sleep(20 * time.Millisecond)

	if err := c.Stop(); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("Stop() error = %v, want ErrStopTimeout", err)
	}
	if err := c.Close(); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("Close() error = %v, want ErrStopTimeout", err)
	}
	if off, closed := cam.counts(); off != 0 || closed != 0 {
		t.Fatalf("device touched while dequeue pending: streamoff=%d close=%d", off, closed)
	}

	close(release)
	c.stopWait = time.Second
	if err := c.Close(); err != nil {
		t.Fatalf("Close() after release error = %v", err)
	}
	if off, closed := cam.counts(); off != 1 || closed != 1 {
		t.Errorf("streamoff=%d close=%d, want 1 and 1", off, closed)
	}
	t.Logf("✅ stream left on until the capture goroutine exited")
}

func TestRowStride(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		height int
		want   int
	}{
		{"yuyv_vga", 640 * 2 * 480, 480, 1280},
		{"padded_rows", 1344 * 480, 480, 1344},
		{"mjpeg_payload", 48211, 480, 0},
		{"zero_height", 1000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rowStride(tt.n, tt.height); got != tt.want {
				t.Errorf("rowStride(%d, %d) = %d, want %d", tt.n, tt.height, got, tt.want)
			}
		})
	}
}

func TestFourCCString(t *testing.T) {
	// 'Y' 'U' 'Y' 'V' little-endian
	if got := fourccString(yuyvCode); got != "YUYV" {
		t.Errorf("fourccString() = %q, want YUYV", got)
	}
}

// TestCaptureHardware streams a few frames from a real camera.
func TestCaptureHardware(t *testing.T) {
	const device = "/dev/video0"
	if _, err := os.Stat(device); err != nil {
		t.Skipf("Skipping hardware test: %s not present", device)
	}
	if testing.Short() {
		t.Skip("Skipping hardware test in short mode")
	}

	c, err := Open(device, 0, 0)
	if err != nil {
		t.Skipf("Skipping hardware test: %v", err)
	}
	defer c.Close()

	format, err := c.SetFormat(yuyvCode, 640, 480)
	if err != nil {
		t.Skipf("Skipping hardware test: YUYV unavailable: %v", err)
	}
	_ = c.SetFramerate(30)

	var count atomic.Int64
	var badSize atomic.Bool
	if err := c.Start(func(f Frame) {
		if f.Step*f.Height != len(f.Data) {
			badSize.Store(true)
		}
		count.Add(1)
	}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	time.Sleep(time.Second)
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}

	if count.Load() == 0 {
		t.Error("no frames captured in 1s")
	}
	if badSize.Load() {
		t.Error("frame with Step*Height != len(Data)")
	}
	t.Logf("✅ captured %d frames at %dx%d", count.Load(), format.Width, format.Height)
}
