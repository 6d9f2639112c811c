package uvccapture

import (
	"context"
	"fmt"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/synthetic"
)

// SyntheticTransport produces colour-bar frames without hardware.
// Every device name opens an independent generator.
type SyntheticTransport struct{}

// NewSyntheticTransport creates the test-pattern transport.
func NewSyntheticTransport() *SyntheticTransport {
	return &SyntheticTransport{}
}

// Name implements Transport
func (t *SyntheticTransport) Name() string { return "synthetic" }

// Open implements Transport
func (t *SyntheticTransport) Open(ctx context.Context, device string) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &syntheticDevice{name: device}, nil
}

type syntheticDevice struct {
	name string

	mu     sync.Mutex
	gen    *synthetic.Generator
	closed bool
}

func (d *syntheticDevice) Negotiate(params StreamParams) (StreamParams, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return StreamParams{}, fmt.Errorf("synthetic: device %s closed", d.name)
	}

	layout, ok := syntheticLayouts[params.Format]
	if !ok {
		return StreamParams{}, fmt.Errorf("synthetic: format %s: %w", params.Format, ErrNotSupported)
	}

	gen, err := synthetic.NewGenerator(synthetic.Config{
		Width:  params.Width,
		Height: params.Height,
		FPS:    params.FPS,
		Layout: layout,
	})
	if err != nil {
		return StreamParams{}, err
	}
	d.gen = gen

	// Report what the generator will actually emit
	out := gen.Config()
	return StreamParams{
		Format: syntheticFormats[out.Layout],
		Width:  out.Width,
		Height: out.Height,
		FPS:    out.FPS,
	}, nil
}

func (d *syntheticDevice) StartStreaming(cb FrameCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.gen == nil {
		return fmt.Errorf("synthetic: device %s not negotiated: %w", d.name, ErrInvalidState)
	}

	source := d.name
	return d.gen.Start(func(f synthetic.Frame) {
		cb(&Frame{
			Data:        f.Data,
			Width:       f.Width,
			Height:      f.Height,
			Format:      syntheticFormats[f.Layout],
			Step:        f.Step,
			CaptureTime: f.Timestamp,
			Source:      source,
		})
	})
}

func (d *syntheticDevice) StopStreaming() error {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	if gen != nil {
		gen.Stop()
	}
	return nil
}

func (d *syntheticDevice) Close() error {
	d.mu.Lock()
	gen := d.gen
	d.closed = true
	d.gen = nil
	d.mu.Unlock()

	if gen != nil {
		gen.Stop()
	}
	return nil
}

var syntheticLayouts = map[ColorFormat]synthetic.Layout{
	ColorFormatYUYV: synthetic.LayoutYUYV,
	ColorFormatUYVY: synthetic.LayoutUYVY,
	ColorFormatRGB:  synthetic.LayoutRGB,
	ColorFormatBGR:  synthetic.LayoutBGR,
}

var syntheticFormats = map[synthetic.Layout]ColorFormat{
	synthetic.LayoutYUYV: ColorFormatYUYV,
	synthetic.LayoutUYVY: ColorFormatUYVY,
	synthetic.LayoutRGB:  ColorFormatRGB,
	synthetic.LayoutBGR:  ColorFormatBGR,
}
