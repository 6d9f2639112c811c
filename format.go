package uvccapture

import (
	"fmt"
	"strings"
)

// ColorFormat identifies the pixel layout of a Frame.
type ColorFormat int

const (
	// ColorFormatUnknown is the zero value; no conversion accepts it
	ColorFormatUnknown ColorFormat = iota
	// ColorFormatYUYV is packed 4:2:2, byte order Y0 Cb Y1 Cr
	ColorFormatYUYV
	// ColorFormatUYVY is packed 4:2:2, byte order Cb Y0 Cr Y1
	ColorFormatUYVY
	// ColorFormatRGB is packed 24-bit R G B
	ColorFormatRGB
	// ColorFormatBGR is packed 24-bit B G R
	ColorFormatBGR
	// ColorFormatMJPEG is compressed and passed through untouched
	ColorFormatMJPEG
	// ColorFormatGray8 is 8-bit luma only
	ColorFormatGray8
)

type formatInfo struct {
	name      string
	fourcc    string
	gstFormat string
	// bytesPerPixel is 0 for compressed formats
	bytesPerPixel int
}

var formatTable = map[ColorFormat]formatInfo{
	ColorFormatYUYV:  {name: "YUYV", fourcc: "YUYV", gstFormat: "YUY2", bytesPerPixel: 2},
	ColorFormatUYVY:  {name: "UYVY", fourcc: "UYVY", gstFormat: "UYVY", bytesPerPixel: 2},
	ColorFormatRGB:   {name: "RGB", fourcc: "RGB3", gstFormat: "RGB", bytesPerPixel: 3},
	ColorFormatBGR:   {name: "BGR", fourcc: "BGR3", gstFormat: "BGR", bytesPerPixel: 3},
	ColorFormatMJPEG: {name: "MJPEG", fourcc: "MJPG", gstFormat: "", bytesPerPixel: 0},
	ColorFormatGray8: {name: "GRAY8", fourcc: "GREY", gstFormat: "GRAY8", bytesPerPixel: 1},
}

// String returns the short format name.
func (f ColorFormat) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return "unknown"
}

// FourCC returns the V4L2 four character code, or "" if none.
func (f ColorFormat) FourCC() string {
	return formatTable[f].fourcc
}

// GStreamerFormat returns the video/x-raw format name, or "" for formats
// GStreamer does not carry as raw video.
func (f ColorFormat) GStreamerFormat() string {
	return formatTable[f].gstFormat
}

// BytesPerPixel returns the packed pixel size, 0 for compressed or unknown formats.
func (f ColorFormat) BytesPerPixel() int {
	return formatTable[f].bytesPerPixel
}

// IsPackedYUV reports whether f is one of the two 4:2:2 source layouts.
func (f ColorFormat) IsPackedYUV() bool {
	return f == ColorFormatYUYV || f == ColorFormatUYVY
}

// ParseColorFormat accepts a format name, a V4L2 FourCC or a GStreamer
// format name, case-insensitively.
func ParseColorFormat(s string) (ColorFormat, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	if needle == "" {
		return ColorFormatUnknown, fmt.Errorf("uvc-capture: empty color format")
	}
	for f, info := range formatTable {
		if needle == info.name || needle == info.fourcc || (info.gstFormat != "" && needle == info.gstFormat) {
			return f, nil
		}
	}
	// Common aliases seen in V4L2 format descriptions
	switch needle {
	case "YUYV 4:2:2", "YUY2 4:2:2", "YUV422":
		return ColorFormatYUYV, nil
	case "RGB24":
		return ColorFormatRGB, nil
	case "BGR24":
		return ColorFormatBGR, nil
	case "MOTION-JPEG", "JPEG":
		return ColorFormatMJPEG, nil
	}
	return ColorFormatUnknown, fmt.Errorf("uvc-capture: unknown color format %q", s)
}

// ColorFormatFromFourCC maps a V4L2 pixel format code to a ColorFormat.
func ColorFormatFromFourCC(code uint32) ColorFormat {
	b := []byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
	fourcc := string(b)
	for f, info := range formatTable {
		if info.fourcc == fourcc {
			return f
		}
	}
	return ColorFormatUnknown
}

// FourCCCode packs a four character code into a V4L2 pixel format value.
func FourCCCode(fourcc string) (uint32, error) {
	if len(fourcc) != 4 {
		return 0, fmt.Errorf("uvc-capture: %q: illegal FourCC", fourcc)
	}
	return uint32(fourcc[0]) | uint32(fourcc[1])<<8 | uint32(fourcc[2])<<16 | uint32(fourcc[3])<<24, nil
}
