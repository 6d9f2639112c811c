package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/uvc-capture/internal/config"
)

const baseYAML = `
camera:
  backend: synthetic
  device: bars
  fps: 30
`

func TestWatchConfigReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uvc.yaml")
	if err := os.WriteFile(path, []byte(baseYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *config.Config, 1)
	override := func(c *config.Config) { c.Camera.Height = 240 }
	if err := watchConfig(ctx, path, override, reloads); err != nil {
		t.Fatalf("watchConfig() error = %v", err)
	}

	// Invalid file: rejected, nothing delivered
	if err := os.WriteFile(path, []byte("camera:\n  fps: 0\n  backend: synthetic\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloads:
		t.Fatalf("invalid config delivered: %+v", cfg.Camera)
	case <-time.After(3 * reloadDebounce):
	}

	updated := baseYAML + "  width: 320\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloads:
		if cfg.Camera.Width != 320 {
			t.Errorf("width = %d, want 320", cfg.Camera.Width)
		}
		if cfg.Camera.Height != 240 {
			t.Errorf("override not applied: height = %d", cfg.Camera.Height)
		}
		t.Logf("✅ reloaded %s %dx%d", cfg.Camera.Backend, cfg.Camera.Width, cfg.Camera.Height)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after valid write")
	}
}

func TestWatchConfigIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uvc.yaml")
	if err := os.WriteFile(path, []byte(baseYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *config.Config, 1)
	if err := watchConfig(ctx, path, nil, reloads); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(baseYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloads:
		t.Fatal("reload triggered by an unrelated file")
	case <-time.After(3 * reloadDebounce):
	}
}

func TestWatchConfigMissingDir(t *testing.T) {
	err := watchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "uvc.yaml"), nil, make(chan *config.Config))
	if err == nil {
		t.Fatal("expected error watching a missing directory")
	}
}
