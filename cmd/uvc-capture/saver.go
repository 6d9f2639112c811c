package main

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/image/draw"

	uvccapture "github.com/e7canasta/orion-care-sensor/modules/uvc-capture"
	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/config"
)

// frameSaver writes converted frames to disk as PNG or JPEG
type frameSaver struct {
	dir        string
	format     string
	quality    int
	scaleWidth int

	saved  atomic.Uint64
	failed atomic.Uint64
}

func newFrameSaver(o config.OutputConfig) (*frameSaver, error) {
	if err := os.MkdirAll(o.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &frameSaver{
		dir:        o.Directory,
		format:     o.ImageFormat,
		quality:    o.JPEGQuality,
		scaleWidth: o.ScaleWidth,
	}, nil
}

// Save encodes an RGB or BGR frame and returns the written path.
func (s *frameSaver) Save(frame *uvccapture.Frame) (string, error) {
	path, err := s.save(frame)
	if err != nil {
		s.failed.Add(1)
		return "", err
	}
	s.saved.Add(1)
	return path, nil
}

func (s *frameSaver) save(frame *uvccapture.Frame) (string, error) {
	img, err := frame.Image()
	if err != nil {
		return "", err
	}
	img = downscale(img, s.scaleWidth)

	filename := fmt.Sprintf("frame_%06d_%s.%s", frame.Seq, frame.CaptureTime.Format("20060102_150405.000"), s.format)
	path := filepath.Join(s.dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch s.format {
	case "png":
		if err := png.Encode(file, img); err != nil {
			return "", fmt.Errorf("failed to encode PNG: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(file, img, &jpeg.Options{Quality: s.quality}); err != nil {
			return "", fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported format: %s", s.format)
	}

	return path, nil
}

// downscale resizes img to width pixels keeping the aspect ratio.
// Images already narrower than width, or width <= 0, are returned as is.
func downscale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || width >= b.Dx() {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
