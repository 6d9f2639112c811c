package gstreamer

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryDevice indicates the camera itself failed (missing node, busy, unplugged, permissions)
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryFormat indicates caps negotiation failures (unsupported format, size or rate)
	ErrCategoryFormat
	// ErrCategoryResource indicates allocation failures (buffer pools, memory)
	ErrCategoryResource
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryFormat:
		return "format"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

// ClassifyGStreamerError categorizes a bus error for telemetry.
// go-gst's GError does not expose the error domain, so this relies on the
// message and debug strings.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyMessage(gerr.Error(), gerr.DebugString())
}

// ClassifyMessage categorizes an error from its message and debug text.
//
// Format is checked first: a negotiation failure often mentions the device
// path too, and the format category is the more actionable one.
func ClassifyMessage(errMsg, debug string) ErrorCategory {
	combined := strings.ToLower(errMsg + " " + debug)

	switch {
	case containsAny(combined, formatKeywords):
		return ErrCategoryFormat
	case containsAny(combined, deviceKeywords):
		return ErrCategoryDevice
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	default:
		return ErrCategoryUnknown
	}
}

var formatKeywords = []string{
	"not negotiated",
	"not-negotiated",
	"negotiation",
	"caps",
	"format",
	"framerate",
	"resolution",
}

var deviceKeywords = []string{
	"/dev/video",
	"device",
	"busy",
	"no such file",
	"permission denied",
	"could not open",
	"cannot identify",
	"disconnected",
}

var resourceKeywords = []string{
	"resource",
	"memory",
	"allocate",
	"buffer pool",
	"bufferpool",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
