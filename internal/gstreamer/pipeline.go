package gstreamer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// TestDevice selects videotestsrc instead of v4l2src.
const TestDevice = "test"

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	Device string // v4l2 device node, or TestDevice
	Format string // raw format name: YUY2, UYVY, RGB, BGR, GRAY8
	Width  int
	Height int
	FPS    int
}

// Validate checks the config can be expressed as caps.
func (c PipelineConfig) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("gstreamer: device is required")
	}
	if c.Format == "" {
		return fmt.Errorf("gstreamer: raw format is required")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("gstreamer: invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("gstreamer: invalid fps %d", c.FPS)
	}
	return nil
}

// PipelineElements holds references to GStreamer pipeline elements
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	Source     *gst.Element
	CapsFilter *gst.Element
	AppSink    *app.Sink
}

// elementSpec is one stage of the capture chain.
type elementSpec struct {
	factory string
	props   map[string]interface{}
}

// chain lists the stages between source and appsink:
//
//	source -> videoconvert -> videoscale -> videorate -> capsfilter
//
// videoconvert and videoscale pass through when the camera already offers
// the requested caps. videorate only drops, never duplicates.
func chain(cfg PipelineConfig) []elementSpec {
	source := elementSpec{factory: "v4l2src", props: map[string]interface{}{"device": cfg.Device}}
	if cfg.Device == TestDevice {
		source = elementSpec{factory: "videotestsrc", props: map[string]interface{}{"is-live": true}}
	}
	return []elementSpec{
		source,
		{factory: "videoconvert"},
		{factory: "videoscale"},
		{factory: "videorate", props: map[string]interface{}{"drop-only": true}},
		{factory: "capsfilter", props: map[string]interface{}{
			"caps": gst.NewCapsFromString(BuildCaps(cfg.Format, cfg.Width, cfg.Height, cfg.FPS)),
		}},
	}
}

func newElement(spec elementSpec) (*gst.Element, error) {
	elem, err := gst.NewElement(spec.factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", spec.factory, err)
	}
	for name, value := range spec.props {
		if err := elem.SetProperty(name, value); err != nil {
			return nil, fmt.Errorf("%s: failed to set %s: %w", spec.factory, name, err)
		}
	}
	return elem, nil
}

// CreatePipeline builds the capture chain ending in an appsink.
// The pipeline is configured but NOT started.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	specs := chain(cfg)
	elems := make([]*gst.Element, 0, len(specs)+1)
	for _, spec := range specs {
		elem, err := newElement(spec)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	// Real-time: no clock sync, at most 2 buffers queued, oldest dropped
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 2)
	sink.SetProperty("drop", true)
	elems = append(elems, sink.Element)

	if err := pipeline.AddMany(elems...); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}
	if err := gst.ElementLinkMany(elems...); err != nil {
		return nil, fmt.Errorf("failed to link %s: %w", describe(specs), err)
	}

	slog.Debug("gstreamer: pipeline created",
		"device", cfg.Device,
		"chain", describe(specs)+" ! appsink",
	)

	return &PipelineElements{
		Pipeline:   pipeline,
		Source:     elems[0],
		CapsFilter: elems[len(specs)-1],
		AppSink:    sink,
	}, nil
}

// describe renders the chain in gst-launch notation.
func describe(specs []elementSpec) string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.factory
	}
	return strings.Join(names, " ! ")
}

// DestroyPipeline sets the pipeline to NULL, releasing the device.
// Safe to call with nil elements.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// BuildCaps builds the capsfilter string
//
// Format: "video/x-raw,format=F,width=W,height=H,framerate=N/1"
func BuildCaps(format string, width, height, fps int) string {
	return fmt.Sprintf(
		"video/x-raw,format=%s,width=%d,height=%d,framerate=%d/1",
		format, width, height, fps,
	)
}

// CheckAvailable verifies GStreamer and the needed source element load.
func CheckAvailable(device string) error {
	gst.Init(nil)

	factory := "v4l2src"
	if device == TestDevice {
		factory = "videotestsrc"
	}
	elem, err := gst.NewElement(factory)
	if err != nil {
		return fmt.Errorf("gstreamer: %s not available: %w", factory, err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
