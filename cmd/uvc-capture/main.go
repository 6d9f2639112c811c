// Command uvc-capture streams frames from a UVC camera, converts them to
// RGB or BGR and optionally saves them, publishes stats over MQTT and
// restarts the camera when its YAML config changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	uvccapture "github.com/e7canasta/orion-care-sensor/modules/uvc-capture"
	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/telemetry"
)

// Version information
const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "YAML config file (optional, watched for changes)")
	backend := flag.String("backend", "", "Capture backend: v4l2, gstreamer, synthetic")
	device := flag.String("device", "", "Device path (e.g. /dev/video0, \"test\" for gstreamer)")
	format := flag.String("format", "", "Source pixel format: YUYV, UYVY")
	width := flag.Int("width", 0, "Frame width in pixels")
	height := flag.Int("height", 0, "Frame height in pixels")
	fps := flag.Int("fps", 0, "Target FPS")
	pollMode := flag.String("poll", "", "Poll mode: blocking, non-blocking")
	outputFormat := flag.String("output-format", "", "Converted format: RGB, BGR")
	outputDir := flag.String("output", "", "Directory to save converted frames (optional)")
	imageFormat := flag.String("image-format", "", "Saved image format: png, jpeg")
	jpegQuality := flag.Int("jpeg-quality", 0, "JPEG quality (1-100)")
	scaleWidth := flag.Int("scale-width", 0, "Downscale saved frames to this width (0 = native)")
	maxFrames := flag.Int("max-frames", 0, "Maximum frames to capture (0 = unlimited)")
	warmupSecs := flag.Int("warmup", -1, "Warm-up duration in seconds (0 = skip)")
	mqttBroker := flag.String("mqtt", "", "MQTT broker host:port for stats (optional)")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	retries := flag.Int("retries", 5, "Init retries while the device is busy")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("uvc-capture %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Flags given explicitly override the file, including on reload
	var overrides []func(*config.Config)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			overrides = append(overrides, func(c *config.Config) { c.Camera.Backend = *backend })
		case "device":
			overrides = append(overrides, func(c *config.Config) { c.Camera.Device = *device })
		case "format":
			overrides = append(overrides, func(c *config.Config) { c.Camera.Format = *format })
		case "width":
			overrides = append(overrides, func(c *config.Config) { c.Camera.Width = *width })
		case "height":
			overrides = append(overrides, func(c *config.Config) { c.Camera.Height = *height })
		case "fps":
			overrides = append(overrides, func(c *config.Config) { c.Camera.FPS = *fps })
		case "poll":
			overrides = append(overrides, func(c *config.Config) { c.Camera.PollMode = *pollMode })
		case "output-format":
			overrides = append(overrides, func(c *config.Config) { c.Camera.OutputFormat = *outputFormat })
		case "warmup":
			overrides = append(overrides, func(c *config.Config) { c.Camera.WarmupDurationS = *warmupSecs })
		case "output":
			overrides = append(overrides, func(c *config.Config) { c.Output.Directory = *outputDir })
		case "image-format":
			overrides = append(overrides, func(c *config.Config) { c.Output.ImageFormat = *imageFormat })
		case "jpeg-quality":
			overrides = append(overrides, func(c *config.Config) { c.Output.JPEGQuality = *jpegQuality })
		case "scale-width":
			overrides = append(overrides, func(c *config.Config) { c.Output.ScaleWidth = *scaleWidth })
		case "max-frames":
			overrides = append(overrides, func(c *config.Config) { c.Output.MaxFrames = *maxFrames })
		case "mqtt":
			overrides = append(overrides, func(c *config.Config) { c.MQTT.Broker = *mqttBroker })
		}
	})
	applyOverrides := func(c *config.Config) {
		for _, o := range overrides {
			o(c)
		}
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	applyOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	retryCfg := uvccapture.DefaultRetryConfig()
	retryCfg.MaxRetries = *retries

	printBanner(cfg, *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	reloads := make(chan *config.Config, 1)
	if *configPath != "" {
		if err := watchConfig(ctx, *configPath, applyOverrides, reloads); err != nil {
			slog.Warn("config: hot reload disabled", "error", err)
		}
	}

	var current atomic.Pointer[session]

	if cfg.MQTT.Broker != "" {
		emitter := telemetry.NewEmitter(cfg.InstanceID, cfg.MQTT)
		if err := emitter.Connect(ctx); err != nil {
			slog.Warn("telemetry: disabled", "error", err)
		} else {
			defer emitter.Disconnect()
			go emitter.Run(ctx, time.Duration(cfg.MQTT.IntervalS)*time.Second, func() telemetry.Snapshot {
				if s := current.Load(); s != nil {
					return s.snapshot()
				}
				return telemetry.Snapshot{State: "restarting"}
			})
		}
	}

	statsTicker := time.NewTicker(time.Duration(*statsInterval) * time.Second)
	defer statsTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				if s := current.Load(); s != nil {
					s.printStats()
				}
			}
		}
	}()

	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	for {
		sess, err := newSession(cfg, retryCfg)
		if err != nil {
			log.Fatalf("Failed to create camera session: %v", err)
		}
		current.Store(sess)

		sessCtx, stop := context.WithCancel(ctx)
		type result struct {
			finished bool
			err      error
		}
		done := make(chan result, 1)
		go func() {
			finished, err := sess.run(sessCtx)
			done <- result{finished, err}
		}()

		select {
		case <-sigChan:
			fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
			stop()
			<-done
			printFinal(sess)
			return

		case next := <-reloads:
			slog.Info("uvc-capture: configuration changed, restarting camera",
				"old", fmt.Sprintf("%s %dx%d@%d", cfg.Camera.Format, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS),
				"new", fmt.Sprintf("%s %dx%d@%d", next.Camera.Format, next.Camera.Width, next.Camera.Height, next.Camera.FPS),
			)
			stop()
			<-done
			cfg = next

		case r := <-done:
			stop()
			if r.err != nil {
				printFinal(sess)
				log.Fatalf("Camera session failed: %v", r.err)
			}
			if r.finished {
				printFinal(sess)
				slog.Info("uvc-capture: capture completed successfully")
				return
			}
		}
	}
}

func printBanner(cfg *config.Config, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║          UVC Capture - Orion 2.0 Camera Module           ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	if configPath != "" {
		fmt.Printf("  Config File:   %s (watched)\n", configPath)
	}
	fmt.Printf("  Backend:       %s\n", cfg.Camera.Backend)
	fmt.Printf("  Device:        %s\n", cfg.Camera.Device)
	fmt.Printf("  Stream:        %s %dx%d@%d\n", cfg.Camera.Format, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS)
	fmt.Printf("  Output:        %s (%s poll)\n", cfg.Camera.OutputFormat, cfg.Camera.PollMode)
	if cfg.Output.Directory != "" {
		fmt.Printf("  Output Dir:    %s (%s)\n", cfg.Output.Directory, cfg.Output.ImageFormat)
	} else {
		fmt.Printf("  Output Dir:    (none - frames not saved)\n")
	}
	if cfg.Output.MaxFrames > 0 {
		fmt.Printf("  Max Frames:    %d\n", cfg.Output.MaxFrames)
	} else {
		fmt.Printf("  Max Frames:    unlimited\n")
	}
	if cfg.MQTT.Broker != "" {
		fmt.Printf("  MQTT:          %s -> %s\n", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}
	fmt.Printf("\n")
}

func printFinal(s *session) {
	st := s.cam.Stats()
	uptime := time.Duration(0)
	if !s.started.IsZero() {
		uptime = time.Since(s.started)
	}

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Second))
	fmt.Printf("  Frames Captured:    %d frames\n", st.FramesCaptured)
	fmt.Printf("  Frames Polled:      %d frames\n", st.FramesPolled)
	fmt.Printf("  Frames Dropped:     %d frames\n", st.FramesDropped)
	if s.saver != nil {
		fmt.Printf("  Frames Saved:       %d frames\n", s.saver.saved.Load())
		fmt.Printf("  Save Failures:      %d frames\n", s.saver.failed.Load())
	}
	fmt.Printf("  Bytes Read:         %.2f MB\n", float64(st.BytesCaptured)/1024/1024)
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
