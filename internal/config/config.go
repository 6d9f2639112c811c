// Package config loads the uvc-capture YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete capture tool configuration
type Config struct {
	InstanceID string       `yaml:"instance_id"`
	Camera     CameraConfig `yaml:"camera"`
	Output     OutputConfig `yaml:"output"`
	MQTT       MQTTConfig   `yaml:"mqtt"`
}

// CameraConfig contains capture session settings
type CameraConfig struct {
	Backend         string `yaml:"backend"`           // v4l2, gstreamer, synthetic
	Device          string `yaml:"device"`            // /dev/video0, or "test" for gstreamer
	Format          string `yaml:"format"`            // YUYV, UYVY, RGB, BGR
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	FPS             int    `yaml:"fps"`
	PollMode        string `yaml:"poll_mode"`         // non-blocking, blocking
	MaxQueueDepth   int    `yaml:"max_queue_depth"`   // 0 = unbounded
	OutputFormat    string `yaml:"output_format"`     // RGB or BGR
	WarmupDurationS int    `yaml:"warmup_duration_s"` // 0 = skip warm-up
}

// OutputConfig contains frame saving settings
type OutputConfig struct {
	Directory   string `yaml:"directory"`    // empty = do not save
	ImageFormat string `yaml:"image_format"` // png, jpeg
	JPEGQuality int    `yaml:"jpeg_quality"` // 1-100
	ScaleWidth  int    `yaml:"scale_width"`  // 0 = native size
	MaxFrames   int    `yaml:"max_frames"`   // 0 = unlimited
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker    string `yaml:"broker"` // empty = telemetry disabled
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
	IntervalS int    `yaml:"interval_s"`
	QoS       byte   `yaml:"qos"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		InstanceID: "uvc-capture",
		Camera: CameraConfig{
			Backend:      "v4l2",
			Device:       "/dev/video0",
			Format:       "YUYV",
			Width:        640,
			Height:       480,
			FPS:          30,
			PollMode:     "blocking",
			OutputFormat: "RGB",
		},
		Output: OutputConfig{
			ImageFormat: "png",
			JPEGQuality: 90,
		},
		MQTT: MQTTConfig{
			IntervalS: 10,
		},
	}
}
