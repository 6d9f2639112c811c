package uvccapture

import (
	"fmt"
	"math"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/yuv"
)

// Color conversion
//
// The four converters share one contract:
//   - in must carry the converter's source format, an even Width > 0, a
//     Height > 0, and at least Step*(Height-1) + 2*Width bytes (Step 0 means
//     tightly packed, 2*Width). Otherwise ErrInvalidParam is returned and
//     out is not touched.
//   - out.Data is reused when it already has exactly 3*Width*Height bytes
//     and reallocated otherwise.
//   - out receives in's Width, Height, Seq, CaptureTime, Source and TraceID,
//     the target Format, and Step = 3*Width.
//
// Converters touch no shared state; distinct (in, out) pairs may be
// converted concurrently. in and out must not be the same Frame.

// YUYVToRGB converts a YUYV frame to packed RGB.
func YUYVToRGB(in, out *Frame) error {
	return convertPacked("yuyv to rgb", in, out, ColorFormatYUYV, yuv.YUYV, ColorFormatRGB, yuv.RGB)
}

// YUYVToBGR converts a YUYV frame to packed BGR.
func YUYVToBGR(in, out *Frame) error {
	return convertPacked("yuyv to bgr", in, out, ColorFormatYUYV, yuv.YUYV, ColorFormatBGR, yuv.BGR)
}

// UYVYToRGB converts a UYVY frame to packed RGB.
func UYVYToRGB(in, out *Frame) error {
	return convertPacked("uyvy to rgb", in, out, ColorFormatUYVY, yuv.UYVY, ColorFormatRGB, yuv.RGB)
}

// UYVYToBGR converts a UYVY frame to packed BGR.
func UYVYToBGR(in, out *Frame) error {
	return convertPacked("uyvy to bgr", in, out, ColorFormatUYVY, yuv.UYVY, ColorFormatBGR, yuv.BGR)
}

// AnyToRGB converts in to RGB, dispatching on in.Format.
// An RGB source is duplicated; formats other than YUYV, UYVY and RGB return
// ErrNotSupported.
func AnyToRGB(in, out *Frame) error {
	if in == nil || out == nil {
		return wrapErr("any to rgb", ErrInvalidParam)
	}
	switch in.Format {
	case ColorFormatYUYV:
		return YUYVToRGB(in, out)
	case ColorFormatUYVY:
		return UYVYToRGB(in, out)
	case ColorFormatRGB:
		return DuplicateFrame(in, out)
	default:
		return wrapErr("any to rgb", fmt.Errorf("source format %s: %w", in.Format, ErrNotSupported))
	}
}

// AnyToBGR converts in to BGR, dispatching on in.Format.
// A BGR source is duplicated; formats other than YUYV, UYVY and BGR return
// ErrNotSupported.
func AnyToBGR(in, out *Frame) error {
	if in == nil || out == nil {
		return wrapErr("any to bgr", ErrInvalidParam)
	}
	switch in.Format {
	case ColorFormatYUYV:
		return YUYVToBGR(in, out)
	case ColorFormatUYVY:
		return UYVYToBGR(in, out)
	case ColorFormatBGR:
		return DuplicateFrame(in, out)
	default:
		return wrapErr("any to bgr", fmt.Errorf("source format %s: %w", in.Format, ErrNotSupported))
	}
}

// DuplicateFrame copies in's metadata and pixel bytes into out.
// out.Data is reallocated only when it is absent or its length differs.
func DuplicateFrame(in, out *Frame) error {
	if in == nil || out == nil {
		return wrapErr("duplicate frame", ErrInvalidParam)
	}
	if in == out {
		return nil
	}
	n := len(in.Data)
	if n > MaxFrameBytes {
		return wrapErr("duplicate frame", fmt.Errorf("%d bytes: %w", n, ErrNoMem))
	}

	if out.Data == nil || len(out.Data) != n {
		out.Data = make([]byte, n)
	}
	copyMetadata(in, out)
	out.Format = in.Format
	out.Step = in.Step
	copy(out.Data, in.Data)
	return nil
}

func convertPacked(op string, in, out *Frame, src ColorFormat, layout yuv.Layout, dst ColorFormat, order yuv.Order) error {
	if in == nil || out == nil || in == out {
		return wrapErr(op, ErrInvalidParam)
	}
	if in.Format != src {
		return wrapErr(op, fmt.Errorf("source format %s, want %s: %w", in.Format, src, ErrInvalidParam))
	}

	srcStep, err := sourceStep(in)
	if err != nil {
		return wrapErr(op, err)
	}

	need, err := packedSize(in.Width, in.Height)
	if err != nil {
		return wrapErr(op, err)
	}

	if out.Data == nil || len(out.Data) != need {
		out.Data = make([]byte, need)
	}
	copyMetadata(in, out)
	out.Format = dst
	out.Step = 3 * in.Width

	yuv.Convert(out.Data, out.Step, in.Data, srcStep, in.Width, in.Height, layout, order)
	return nil
}

// sourceStep validates the geometry of a packed 4:2:2 frame and returns its
// effective row size.
func sourceStep(in *Frame) (int, error) {
	if in.Width <= 0 || in.Height <= 0 {
		return 0, fmt.Errorf("size %dx%d: %w", in.Width, in.Height, ErrInvalidParam)
	}
	if in.Width%2 != 0 {
		return 0, fmt.Errorf("odd width %d: %w", in.Width, ErrInvalidParam)
	}
	if in.Width > math.MaxInt/4 {
		return 0, fmt.Errorf("width %d: %w", in.Width, ErrInvalidParam)
	}

	row := 2 * in.Width
	step := in.Step
	if step == 0 {
		step = row
	}
	if step < row {
		return 0, fmt.Errorf("step %d below row size %d: %w", step, row, ErrInvalidParam)
	}
	if in.Height-1 > (math.MaxInt-row)/step {
		return 0, fmt.Errorf("size %dx%d step %d: %w", in.Width, in.Height, step, ErrInvalidParam)
	}
	if minLen := step*(in.Height-1) + row; len(in.Data) < minLen {
		return 0, fmt.Errorf("%d data bytes, need %d: %w", len(in.Data), minLen, ErrInvalidParam)
	}
	return step, nil
}

// packedSize returns 3*width*height, or ErrNoMem on overflow or above MaxFrameBytes.
func packedSize(width, height int) (int, error) {
	row := 3 * width
	if height > MaxFrameBytes/row {
		return 0, fmt.Errorf("%dx%d RGB frame: %w", width, height, ErrNoMem)
	}
	return row * height, nil
}

func copyMetadata(in, out *Frame) {
	out.Width = in.Width
	out.Height = in.Height
	out.Seq = in.Seq
	out.CaptureTime = in.CaptureTime
	out.Source = in.Source
	out.TraceID = in.TraceID
}
