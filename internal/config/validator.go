package config

import (
	"fmt"
	"regexp"
	"strings"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills derived defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if err := ValidateCamera(&cfg.Camera); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := validateOutput(&cfg.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	// MQTT is optional; defaults only matter when a broker is set
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = cfg.InstanceID
		}
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = fmt.Sprintf("care/uvc/%s/stats", cfg.InstanceID)
		}
		if cfg.MQTT.IntervalS <= 0 {
			cfg.MQTT.IntervalS = 10
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	return nil
}

// ValidateCamera validates the camera section. Enum values are normalised
// so callers can compare them directly.
func ValidateCamera(c *CameraConfig) error {
	c.Backend = strings.ToLower(c.Backend)
	switch c.Backend {
	case "v4l2", "gstreamer", "synthetic":
	default:
		return fmt.Errorf("backend must be v4l2, gstreamer or synthetic, got %q", c.Backend)
	}

	if c.Device == "" {
		return fmt.Errorf("device is required")
	}

	c.Format = strings.ToUpper(c.Format)
	switch c.Format {
	case "YUYV", "UYVY":
	case "RGB", "BGR":
		if c.Backend == "v4l2" {
			// Few UVC cameras offer packed RGB; converters need YUYV/UYVY input
			return fmt.Errorf("format %s is not captured natively by UVC devices; use YUYV or UYVY", c.Format)
		}
	default:
		return fmt.Errorf("format must be YUYV, UYVY, RGB or BGR, got %q", c.Format)
	}

	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.Width%2 != 0 {
		return fmt.Errorf("width must be even for 4:2:2 capture, got %d", c.Width)
	}
	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("fps must be between 1 and 240, got %d", c.FPS)
	}
	if c.MaxQueueDepth < 0 {
		return fmt.Errorf("max_queue_depth must be >= 0")
	}
	if c.WarmupDurationS < 0 {
		return fmt.Errorf("warmup_duration_s must be >= 0")
	}

	c.PollMode = strings.ToLower(c.PollMode)
	switch c.PollMode {
	case "", "non-blocking", "nonblocking", "poll", "blocking", "wait":
	default:
		return fmt.Errorf("poll_mode must be blocking or non-blocking, got %q", c.PollMode)
	}

	c.OutputFormat = strings.ToUpper(c.OutputFormat)
	if c.OutputFormat == "" {
		c.OutputFormat = "RGB"
	}
	if c.OutputFormat != "RGB" && c.OutputFormat != "BGR" {
		return fmt.Errorf("output_format must be RGB or BGR, got %q", c.OutputFormat)
	}
	// Packed RGB sources are copied, not swizzled
	if (c.Format == "RGB" || c.Format == "BGR") && c.Format != c.OutputFormat {
		return fmt.Errorf("output_format %s cannot be produced from %s", c.OutputFormat, c.Format)
	}

	return nil
}

func validateOutput(o *OutputConfig) error {
	o.ImageFormat = strings.ToLower(o.ImageFormat)
	switch o.ImageFormat {
	case "", "png":
		o.ImageFormat = "png"
	case "jpeg", "jpg":
		o.ImageFormat = "jpeg"
	default:
		return fmt.Errorf("image_format must be png or jpeg, got %q", o.ImageFormat)
	}

	if o.JPEGQuality == 0 {
		o.JPEGQuality = 90
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be 1-100, got %d", o.JPEGQuality)
	}
	if o.ScaleWidth < 0 {
		return fmt.Errorf("scale_width must be >= 0")
	}
	if o.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be >= 0")
	}
	return nil
}
