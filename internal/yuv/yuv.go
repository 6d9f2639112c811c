// Package yuv holds the fixed-point packed 4:2:2 to 24-bit RGB kernel.
//
// One arithmetic core serves all four conversions. It is parameterised by
// the source Layout (byte offsets of Y0, Cb, Y1, Cr inside a 4-byte pair)
// and the destination Order (byte offsets of R, G, B inside a 3-byte pixel).
//
// Coefficients are ITU-R BT.601 scaled by 2^14:
//
//	r = Y + (22987*(Cr-128)) >> 14
//	g = Y + (-5636*(Cb-128) - 11698*(Cr-128)) >> 14
//	b = Y + (29049*(Cb-128)) >> 14
//
// and every channel is clamped to 0..255.
package yuv

// Layout gives the byte offsets of the four components of one 2-pixel group.
type Layout struct {
	Y0, Cb, Y1, Cr int
}

// Order gives the byte offsets of the three channels of one output pixel.
type Order struct {
	R, G, B int
}

var (
	// YUYV is Y0 Cb Y1 Cr
	YUYV = Layout{Y0: 0, Cb: 1, Y1: 2, Cr: 3}
	// UYVY is Cb Y0 Cr Y1
	UYVY = Layout{Y0: 1, Cb: 0, Y1: 3, Cr: 2}

	RGB = Order{R: 0, G: 1, B: 2}
	BGR = Order{R: 2, G: 1, B: 0}
)

const (
	// SrcPairBytes is the size of one 2-pixel 4:2:2 group
	SrcPairBytes = 4
	// DstPixelBytes is the size of one packed 24-bit pixel
	DstPixelBytes = 3

	blockPixels = 8
)

// Convert writes width*height pixels from src into dst.
//
// srcStride and dstStride are row sizes in bytes. The caller guarantees
// width is even, srcStride >= 2*width, dstStride >= 3*width, and both
// buffers hold height rows. Each row runs whole 8-pixel blocks through the
// unrolled path, then its remaining pairs one at a time; nothing past
// 2*width source bytes of a row is read.
func Convert(dst []byte, dstStride int, src []byte, srcStride int, width, height int, l Layout, o Order) {
	rowSrc := 2 * width
	rowDst := 3 * width
	blocks := width / blockPixels

	for y := 0; y < height; y++ {
		s := src[y*srcStride : y*srcStride+rowSrc]
		d := dst[y*dstStride : y*dstStride+rowDst]

		for b := 0; b < blocks; b++ {
			block8(d[b*blockPixels*DstPixelBytes:], s[b*blockPixels*2:], l, o)
		}
		for x := blocks * blockPixels; x < width; x += 2 {
			Pair(d[x*DstPixelBytes:], s[x*2:], l, o)
		}
	}
}

// block8 converts 8 pixels (4 pairs): 16 source bytes into 24 destination bytes.
func block8(d, s []byte, l Layout, o Order) {
	_ = s[15]
	_ = d[23]
	Pair(d[0:], s[0:], l, o)
	Pair(d[6:], s[4:], l, o)
	Pair(d[12:], s[8:], l, o)
	Pair(d[18:], s[12:], l, o)
}

// Pair converts one 4-byte source group into two destination pixels.
func Pair(d, s []byte, l Layout, o Order) {
	cb := int(s[l.Cb]) - 128
	cr := int(s[l.Cr]) - 128

	r := (22987 * cr) >> 14
	g := (-5636*cb - 11698*cr) >> 14
	b := (29049 * cb) >> 14

	y0 := int(s[l.Y0])
	d[o.R] = clamp8(y0 + r)
	d[o.G] = clamp8(y0 + g)
	d[o.B] = clamp8(y0 + b)

	y1 := int(s[l.Y1])
	d[DstPixelBytes+o.R] = clamp8(y1 + r)
	d[DstPixelBytes+o.G] = clamp8(y1 + g)
	d[DstPixelBytes+o.B] = clamp8(y1 + b)
}

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
