// Package synthetic generates test-pattern frames on a ticker goroutine.
//
// It stands in for a camera in tests, demos and CI machines without video
// hardware: eight vertical colour bars scroll one step per frame, encoded
// in any of the packed layouts the converters accept.
package synthetic

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Layout is the pixel encoding of generated frames.
type Layout int

const (
	LayoutYUYV Layout = iota
	LayoutUYVY
	LayoutRGB
	LayoutBGR
)

// String returns the layout name
func (l Layout) String() string {
	switch l {
	case LayoutYUYV:
		return "YUYV"
	case LayoutUYVY:
		return "UYVY"
	case LayoutRGB:
		return "RGB"
	case LayoutBGR:
		return "BGR"
	default:
		return "unknown"
	}
}

// Frame is a minimal frame struct for internal use (avoids import cycle)
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Step      int
	Layout    Layout
	Data      []byte
}

// Config describes the generated stream.
type Config struct {
	Width  int
	Height int
	FPS    int
	Layout Layout
}

// Validate checks the generator can produce this stream.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("synthetic: invalid resolution %dx%d", c.Width, c.Height)
	}
	if (c.Layout == LayoutYUYV || c.Layout == LayoutUYVY) && c.Width%2 != 0 {
		return fmt.Errorf("synthetic: 4:2:2 layouts need an even width, got %d", c.Width)
	}
	if c.FPS <= 0 || c.FPS > 1000 {
		return fmt.Errorf("synthetic: invalid fps %d", c.FPS)
	}
	if c.Layout < LayoutYUYV || c.Layout > LayoutBGR {
		return fmt.Errorf("synthetic: unknown layout %d", c.Layout)
	}
	return nil
}

// bars are 100% colour bars: white, yellow, cyan, green, magenta, red, blue, black
var bars = [8][3]uint8{
	{255, 255, 255},
	{255, 255, 0},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{0, 0, 255},
	{0, 0, 0},
}

// YCbCr returns the BT.601 full-range encoding of an RGB colour.
func YCbCr(r, g, b uint8) (y, cb, cr uint8) {
	fr, fg, fb := float64(r), float64(g), float64(b)
	fy := 0.299*fr + 0.587*fg + 0.114*fb
	return clamp(fy), clamp(128 + 0.564*(fb-fy)), clamp(128 + 0.713*(fr-fy))
}

func clamp(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// Generator emits frames to a callback until stopped.
type Generator struct {
	cfg Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	seq     uint64
}

// NewGenerator creates a generator with fail-fast validation.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Config returns the generated stream shape.
func (g *Generator) Config() Config {
	return g.cfg
}

// Start begins emitting frames to cb from a new goroutine.
// cb is never invoked concurrently with itself.
func (g *Generator) Start(cb func(Frame)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("synthetic: generator already running")
	}
	g.running = true
	g.stopCh = make(chan struct{})

	slog.Info("synthetic: generator starting",
		"width", g.cfg.Width,
		"height", g.cfg.Height,
		"fps", g.cfg.FPS,
		"layout", g.cfg.Layout.String(),
	)

	g.wg.Add(1)
	go g.run(cb, g.stopCh)
	return nil
}

// Stop halts the generator and waits for an in-flight callback to return.
// Safe to call when not running.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stopCh)
	g.mu.Unlock()

	g.wg.Wait()
	slog.Info("synthetic: generator stopped", "frames_emitted", g.emitted())
}

func (g *Generator) emitted() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

func (g *Generator) run(cb func(Frame), stop <-chan struct{}) {
	defer g.wg.Done()

	interval := time.Second / time.Duration(g.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			g.mu.Lock()
			g.seq++
			seq := g.seq
			g.mu.Unlock()

			cb(Render(g.cfg, seq, now))
		}
	}
}

// Render draws frame seq of the pattern. Bars scroll left by two pixels per frame.
func Render(cfg Config, seq uint64, ts time.Time) Frame {
	f := Frame{
		Seq:       seq,
		Timestamp: ts,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Layout:    cfg.Layout,
	}

	barWidth := cfg.Width / len(bars)
	if barWidth == 0 {
		barWidth = 1
	}
	offset := int(seq*2) % cfg.Width
	barAt := func(x int) [3]uint8 {
		return bars[((x+offset)%cfg.Width/barWidth)%len(bars)]
	}

	switch cfg.Layout {
	case LayoutYUYV, LayoutUYVY:
		f.Step = 2 * cfg.Width
		row := make([]byte, f.Step)
		for x := 0; x < cfg.Width; x += 2 {
			c0, c1 := barAt(x), barAt(x+1)
			y0, cb0, cr0 := YCbCr(c0[0], c0[1], c0[2])
			y1, cb1, cr1 := YCbCr(c1[0], c1[1], c1[2])
			cb := uint8((int(cb0) + int(cb1)) / 2)
			cr := uint8((int(cr0) + int(cr1)) / 2)
			p := row[x*2 : x*2+4]
			if cfg.Layout == LayoutYUYV {
				p[0], p[1], p[2], p[3] = y0, cb, y1, cr
			} else {
				p[0], p[1], p[2], p[3] = cb, y0, cr, y1
			}
		}
		f.Data = repeatRows(row, cfg.Height)

	case LayoutRGB, LayoutBGR:
		f.Step = 3 * cfg.Width
		row := make([]byte, f.Step)
		for x := 0; x < cfg.Width; x++ {
			c := barAt(x)
			p := row[x*3 : x*3+3]
			if cfg.Layout == LayoutRGB {
				p[0], p[1], p[2] = c[0], c[1], c[2]
			} else {
				p[0], p[1], p[2] = c[2], c[1], c[0]
			}
		}
		f.Data = repeatRows(row, cfg.Height)
	}

	return f
}

func repeatRows(row []byte, height int) []byte {
	data := make([]byte, len(row)*height)
	for y := 0; y < height; y++ {
		copy(data[y*len(row):], row)
	}
	return data
}
