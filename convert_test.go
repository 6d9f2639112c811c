package uvccapture

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

// newPacked builds a YUYV or UYVY frame filled by fill(x, y) -> (Y, Cb, Cr) per pair.
func newPacked(format ColorFormat, width, height int, fill func(x, y int) (uint8, uint8, uint8, uint8)) *Frame {
	data := make([]byte, width*2*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x += 2 {
			y0, cb, y1, cr := fill(x, y)
			p := data[(y*width+x)*2:]
			if format == ColorFormatYUYV {
				p[0], p[1], p[2], p[3] = y0, cb, y1, cr
			} else {
				p[0], p[1], p[2], p[3] = cb, y0, cr, y1
			}
		}
	}
	return &Frame{
		Data:        data,
		Width:       width,
		Height:      height,
		Format:      format,
		Step:        width * 2,
		Seq:         77,
		CaptureTime: time.Unix(1700000000, 0),
		Source:      "/dev/video0",
		TraceID:     "trace-1",
	}
}

func TestConvertMidGray(t *testing.T) {
	converters := []struct {
		name string
		src  ColorFormat
		dst  ColorFormat
		fn   func(in, out *Frame) error
	}{
		{"YUYVToRGB", ColorFormatYUYV, ColorFormatRGB, YUYVToRGB},
		{"YUYVToBGR", ColorFormatYUYV, ColorFormatBGR, YUYVToBGR},
		{"UYVYToRGB", ColorFormatUYVY, ColorFormatRGB, UYVYToRGB},
		{"UYVYToBGR", ColorFormatUYVY, ColorFormatBGR, UYVYToBGR},
	}

	for _, c := range converters {
		t.Run(c.name, func(t *testing.T) {
			in := newPacked(c.src, 16, 2, func(int, int) (uint8, uint8, uint8, uint8) {
				return 128, 128, 128, 128
			})
			out := &Frame{}

			if err := c.fn(in, out); err != nil {
				t.Fatalf("%s() error = %v", c.name, err)
			}
			if len(out.Data) != 96 {
				t.Fatalf("len(out.Data) = %d, want 96", len(out.Data))
			}
			for i, v := range out.Data {
				if v != 128 {
					t.Fatalf("out.Data[%d] = %d, want 128", i, v)
				}
			}
			if out.Format != c.dst || out.Step != 48 || out.Width != 16 || out.Height != 2 {
				t.Errorf("out metadata = format %s step %d size %dx%d", out.Format, out.Step, out.Width, out.Height)
			}
			if out.Seq != in.Seq || !out.CaptureTime.Equal(in.CaptureTime) || out.Source != in.Source || out.TraceID != in.TraceID {
				t.Errorf("metadata not copied: %+v", out)
			}
		})
	}
}

func TestConvertAgainstFloatReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const width, height = 24, 6

	in := newPacked(ColorFormatYUYV, width, height, func(int, int) (uint8, uint8, uint8, uint8) {
		return uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))
	})
	out := &Frame{}
	if err := YUYVToRGB(in, out); err != nil {
		t.Fatalf("YUYVToRGB() error = %v", err)
	}

	clamp := func(v float64) float64 { return math.Max(0, math.Min(255, v)) }
	for p := 0; p < width*height; p += 2 {
		s := in.Data[p*2 : p*2+4]
		cb, cr := float64(s[1])-128, float64(s[3])-128
		for k, y := range []float64{float64(s[0]), float64(s[2])} {
			want := [3]float64{
				clamp(y + 1.402*cr),
				clamp(y - 0.344136*cb - 0.714136*cr),
				clamp(y + 1.772*cb),
			}
			got := out.Data[(p+k)*3 : (p+k)*3+3]
			for ch := 0; ch < 3; ch++ {
				if math.Abs(float64(got[ch])-want[ch]) > 2 {
					t.Fatalf("pixel %d channel %d: got %d want %.2f", p+k, ch, got[ch], want[ch])
				}
			}
		}
	}
}

// TestConvertNeutralChroma validates that luma passes through when Cb=Cr=128.
func TestConvertNeutralChroma(t *testing.T) {
	in := newPacked(ColorFormatUYVY, 8, 1, func(x, _ int) (uint8, uint8, uint8, uint8) {
		return uint8(x * 30), 128, uint8(x*30 + 15), 128
	})
	out := &Frame{}
	if err := UYVYToBGR(in, out); err != nil {
		t.Fatalf("UYVYToBGR() error = %v", err)
	}

	for x := 0; x < 8; x++ {
		want := uint8(x * 30)
		if x%2 == 1 {
			want = uint8((x-1)*30 + 15)
		}
		px := out.Data[x*3 : x*3+3]
		if px[0] != want || px[1] != want || px[2] != want {
			t.Errorf("pixel %d = %v, want gray %d", x, px, want)
		}
	}
}

func TestConvertReusesBuffer(t *testing.T) {
	in := newPacked(ColorFormatYUYV, 16, 4, func(int, int) (uint8, uint8, uint8, uint8) { return 10, 20, 30, 40 })

	buf := make([]byte, 16*4*3)
	out := &Frame{Data: buf}
	if err := YUYVToRGB(in, out); err != nil {
		t.Fatalf("YUYVToRGB() error = %v", err)
	}
	if &out.Data[0] != &buf[0] {
		t.Error("correctly sized destination buffer was reallocated")
	}

	// Wrong size: reallocated to exactly 3*W*H
	small := &Frame{Data: make([]byte, 10)}
	if err := YUYVToRGB(in, small); err != nil {
		t.Fatalf("YUYVToRGB() error = %v", err)
	}
	if len(small.Data) != 16*4*3 {
		t.Errorf("len(Data) = %d, want %d", len(small.Data), 16*4*3)
	}

	large := &Frame{Data: make([]byte, 10000)}
	if err := YUYVToRGB(in, large); err != nil {
		t.Fatalf("YUYVToRGB() error = %v", err)
	}
	if len(large.Data) != 16*4*3 {
		t.Errorf("oversized buffer kept: len(Data) = %d", len(large.Data))
	}
}

func TestConvertInvalidParam(t *testing.T) {
	valid := func() *Frame {
		return newPacked(ColorFormatYUYV, 16, 2, func(int, int) (uint8, uint8, uint8, uint8) { return 1, 2, 3, 4 })
	}

	tests := []struct {
		name   string
		mutate func(f *Frame)
	}{
		{"wrong_format", func(f *Frame) { f.Format = ColorFormatUYVY }},
		{"short_data", func(f *Frame) { f.Data = f.Data[:len(f.Data)-1] }},
		{"odd_width", func(f *Frame) { f.Width = 15 }},
		{"zero_width", func(f *Frame) { f.Width = 0 }},
		{"zero_height", func(f *Frame) { f.Height = 0 }},
		{"step_too_small", func(f *Frame) { f.Step = 30 }},
		{"step_exceeds_data", func(f *Frame) { f.Step = 40 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(in)

			sentinel := []byte{9, 9, 9}
			out := &Frame{Data: sentinel, Width: 1, Height: 1, Format: ColorFormatGray8, Seq: 5}
			err := YUYVToRGB(in, out)
			if !errors.Is(err, ErrInvalidParam) {
				t.Fatalf("YUYVToRGB() error = %v, want ErrInvalidParam", err)
			}
			if len(out.Data) != 3 || out.Data[0] != 9 || out.Width != 1 || out.Format != ColorFormatGray8 || out.Seq != 5 {
				t.Errorf("destination modified on error: %+v", out)
			}
		})
	}

	t.Run("nil_frames", func(t *testing.T) {
		if err := YUYVToRGB(nil, &Frame{}); !errors.Is(err, ErrInvalidParam) {
			t.Errorf("nil in: error = %v", err)
		}
		if err := YUYVToRGB(valid(), nil); !errors.Is(err, ErrInvalidParam) {
			t.Errorf("nil out: error = %v", err)
		}
	})

	t.Run("same_frame", func(t *testing.T) {
		f := valid()
		if err := YUYVToRGB(f, f); !errors.Is(err, ErrInvalidParam) {
			t.Errorf("in == out: error = %v", err)
		}
	})
}

// TestConvertPaddedStride validates sources whose rows carry padding bytes.
func TestConvertPaddedStride(t *testing.T) {
	const width, height, step = 10, 3, 28
	packed := newPacked(ColorFormatYUYV, width, height, func(x, y int) (uint8, uint8, uint8, uint8) {
		return uint8(x * 20), uint8(100 + y), uint8(x*20 + 10), uint8(150 - y)
	})

	padded := *packed
	padded.Step = step
	// Last row needs no padding
	padded.Data = make([]byte, step*(height-1)+width*2)
	for y := 0; y < height; y++ {
		copy(padded.Data[y*step:], packed.Data[y*width*2:(y+1)*width*2])
		if y < height-1 {
			for i := width * 2; i < step; i++ {
				padded.Data[y*step+i] = 0xFF
			}
		}
	}

	a, b := &Frame{}, &Frame{}
	if err := YUYVToRGB(packed, a); err != nil {
		t.Fatalf("packed: %v", err)
	}
	if err := YUYVToRGB(&padded, b); err != nil {
		t.Fatalf("padded: %v", err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("byte %d: packed=%d padded=%d", i, a.Data[i], b.Data[i])
		}
	}
	if b.Step != width*3 {
		t.Errorf("out.Step = %d, want %d", b.Step, width*3)
	}
}

func TestConvertZeroStepDefaults(t *testing.T) {
	in := newPacked(ColorFormatYUYV, 6, 2, func(int, int) (uint8, uint8, uint8, uint8) { return 50, 128, 60, 128 })
	in.Step = 0
	out := &Frame{}
	if err := YUYVToRGB(in, out); err != nil {
		t.Fatalf("YUYVToRGB() error = %v", err)
	}
	if out.Data[0] != 50 || out.Data[3] != 60 {
		t.Errorf("out.Data = %v", out.Data[:6])
	}
}

func TestConvertNoMem(t *testing.T) {
	// Source geometry is valid but the RGB output would exceed MaxFrameBytes
	width, height := 8192, 4096
	in := &Frame{Format: ColorFormatYUYV, Width: width, Height: height, Data: make([]byte, width*2*height)}
	err := YUYVToRGB(in, &Frame{})
	if !errors.Is(err, ErrNoMem) {
		t.Errorf("YUYVToRGB() error = %v, want ErrNoMem", err)
	}
}

func TestAnyToRGBDispatch(t *testing.T) {
	yuyv := newPacked(ColorFormatYUYV, 8, 2, func(int, int) (uint8, uint8, uint8, uint8) { return 90, 60, 120, 200 })
	uyvy := newPacked(ColorFormatUYVY, 8, 2, func(int, int) (uint8, uint8, uint8, uint8) { return 90, 60, 120, 200 })

	a, b := &Frame{}, &Frame{}
	if err := AnyToRGB(yuyv, a); err != nil {
		t.Fatalf("AnyToRGB(YUYV) error = %v", err)
	}
	if err := AnyToRGB(uyvy, b); err != nil {
		t.Fatalf("AnyToRGB(UYVY) error = %v", err)
	}
	if string(a.Data) != string(b.Data) {
		t.Error("YUYV and UYVY encodings of the same pixels converted differently")
	}

	// RGB source is duplicated
	dup := &Frame{}
	if err := AnyToRGB(a, dup); err != nil {
		t.Fatalf("AnyToRGB(RGB) error = %v", err)
	}
	if string(dup.Data) != string(a.Data) || dup.Format != ColorFormatRGB {
		t.Error("AnyToRGB(RGB) did not duplicate")
	}

	// BGR source into RGB is not supported
	bgr := &Frame{}
	if err := AnyToBGR(yuyv, bgr); err != nil {
		t.Fatalf("AnyToBGR(YUYV) error = %v", err)
	}
	if err := AnyToRGB(bgr, &Frame{}); !errors.Is(err, ErrNotSupported) {
		t.Errorf("AnyToRGB(BGR) error = %v, want ErrNotSupported", err)
	}
	if err := AnyToBGR(a, &Frame{}); !errors.Is(err, ErrNotSupported) {
		t.Errorf("AnyToBGR(RGB) error = %v, want ErrNotSupported", err)
	}

	for _, f := range []ColorFormat{ColorFormatMJPEG, ColorFormatGray8, ColorFormatUnknown} {
		in := &Frame{Format: f, Width: 8, Height: 2, Data: make([]byte, 32)}
		if err := AnyToRGB(in, &Frame{}); !errors.Is(err, ErrNotSupported) {
			t.Errorf("AnyToRGB(%s) error = %v, want ErrNotSupported", f, err)
		}
		if err := AnyToBGR(in, &Frame{}); !errors.Is(err, ErrNotSupported) {
			t.Errorf("AnyToBGR(%s) error = %v, want ErrNotSupported", f, err)
		}
	}

	// BGR is RGB with channels swapped
	for p := 0; p < 16; p++ {
		if a.Data[p*3] != bgr.Data[p*3+2] || a.Data[p*3+2] != bgr.Data[p*3] {
			t.Fatalf("pixel %d: rgb=%v bgr=%v", p, a.Data[p*3:p*3+3], bgr.Data[p*3:p*3+3])
		}
	}
}

func TestDuplicateFrame(t *testing.T) {
	in := newPacked(ColorFormatYUYV, 8, 2, func(x, _ int) (uint8, uint8, uint8, uint8) {
		return uint8(x), uint8(x + 1), uint8(x + 2), uint8(x + 3)
	})

	out := &Frame{}
	if err := DuplicateFrame(in, out); err != nil {
		t.Fatalf("DuplicateFrame() error = %v", err)
	}
	if string(out.Data) != string(in.Data) {
		t.Error("bytes differ after duplicate")
	}
	if &out.Data[0] == &in.Data[0] {
		t.Error("duplicate shares the source buffer")
	}
	if out.Format != in.Format || out.Step != in.Step || out.Seq != in.Seq || out.TraceID != in.TraceID {
		t.Errorf("metadata differs: %+v", out)
	}

	// Same-size destination is reused
	buf := out.Data
	in.Data[0] = 0xAB
	if err := DuplicateFrame(in, out); err != nil {
		t.Fatalf("DuplicateFrame() error = %v", err)
	}
	if &out.Data[0] != &buf[0] || out.Data[0] != 0xAB {
		t.Error("same-size destination not reused in place")
	}

	if err := DuplicateFrame(nil, out); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("DuplicateFrame(nil) error = %v", err)
	}
	if err := DuplicateFrame(in, in); err != nil {
		t.Errorf("DuplicateFrame(in, in) error = %v", err)
	}
}

func TestAllocateFrame(t *testing.T) {
	f, err := AllocateFrame(1024)
	if err != nil || len(f.Data) != 1024 || f.DataBytes() != 1024 {
		t.Fatalf("AllocateFrame(1024) = %v, %v", f, err)
	}

	empty, err := AllocateFrame(0)
	if err != nil || empty.Data != nil {
		t.Errorf("AllocateFrame(0) = %+v, %v", empty, err)
	}

	for _, n := range []int{-1, MaxFrameBytes + 1} {
		if _, err := AllocateFrame(n); !errors.Is(err, ErrNoMem) {
			t.Errorf("AllocateFrame(%d) error = %v, want ErrNoMem", n, err)
		}
	}
}

func TestFrameImage(t *testing.T) {
	in := newPacked(ColorFormatYUYV, 8, 2, func(x, _ int) (uint8, uint8, uint8, uint8) {
		return 200, 128, 100, 128
	})
	rgb, bgr := &Frame{}, &Frame{}
	if err := AnyToRGB(in, rgb); err != nil {
		t.Fatal(err)
	}
	if err := AnyToBGR(in, bgr); err != nil {
		t.Fatal(err)
	}

	for _, f := range []*Frame{rgb, bgr} {
		img, err := f.Image()
		if err != nil {
			t.Fatalf("Image(%s) error = %v", f.Format, err)
		}
		if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 2 {
			t.Errorf("Bounds() = %v", b)
		}
		r, g, b, _ := img.At(1, 1).RGBA()
		if r>>8 != 100 || g>>8 != 100 || b>>8 != 100 {
			t.Errorf("%s At(1,1) = %d,%d,%d want 100", f.Format, r>>8, g>>8, b>>8)
		}
	}

	if _, err := in.Image(); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Image(YUYV) error = %v, want ErrNotSupported", err)
	}
}

func BenchmarkYUYVToRGB720p(b *testing.B) {
	in := newPacked(ColorFormatYUYV, 1280, 720, func(x, y int) (uint8, uint8, uint8, uint8) {
		return uint8(x), uint8(y), uint8(x + y), uint8(x ^ y)
	})
	out := &Frame{}

	b.SetBytes(int64(len(in.Data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := YUYVToRGB(in, out); err != nil {
			b.Fatal(err)
		}
	}
}
