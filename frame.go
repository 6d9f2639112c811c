package uvccapture

import (
	"fmt"
	"image"
	"image/color"
)

// MaxFrameBytes caps every buffer the converters or AllocateFrame will size.
// 64 MiB covers 8K RGB with room to spare.
const MaxFrameBytes = 64 << 20

// AllocateFrame returns an empty Frame whose Data holds dataBytes zeroed bytes.
// dataBytes == 0 yields a Frame with no buffer.
func AllocateFrame(dataBytes int) (*Frame, error) {
	if dataBytes < 0 || dataBytes > MaxFrameBytes {
		return nil, wrapErr("allocate frame", fmt.Errorf("%d bytes: %w", dataBytes, ErrNoMem))
	}
	f := &Frame{}
	if dataBytes > 0 {
		f.Data = make([]byte, dataBytes)
	}
	return f, nil
}

// Image exposes an RGB or BGR frame as an image.Image without copying pixels.
// Other formats return an error; convert them with AnyToRGB first.
func (f *Frame) Image() (image.Image, error) {
	if f.Format != ColorFormatRGB && f.Format != ColorFormatBGR {
		return nil, wrapErr("image", fmt.Errorf("format %s: %w", f.Format, ErrNotSupported))
	}
	step := f.Step
	if step == 0 {
		step = 3 * f.Width
	}
	if f.Width <= 0 || f.Height <= 0 || step < 3*f.Width || len(f.Data) < step*(f.Height-1)+3*f.Width {
		return nil, wrapErr("image", ErrInvalidParam)
	}

	img := &packedRGB{pix: f.Data, stride: step, w: f.Width, h: f.Height, r: 0, b: 2}
	if f.Format == ColorFormatBGR {
		img.r, img.b = 2, 0
	}
	return img, nil
}

// packedRGB adapts a 24-bit packed buffer to image.Image. r and b are the
// byte offsets of the red and blue channels inside a pixel.
type packedRGB struct {
	pix    []byte
	stride int
	w, h   int
	r, b   int
}

func (p *packedRGB) ColorModel() color.Model { return color.RGBAModel }

func (p *packedRGB) Bounds() image.Rectangle { return image.Rect(0, 0, p.w, p.h) }

func (p *packedRGB) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return color.RGBA{}
	}
	i := y*p.stride + x*3
	return color.RGBA{R: p.pix[i+p.r], G: p.pix[i+1], B: p.pix[i+p.b], A: 0xFF}
}
