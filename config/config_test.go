// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/hwc"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Generation() != hwc.HWC11 {
		t.Errorf("Generation() = %v, want hwc1.1", cfg.Generation())
	}
	if cfg.SurfaceFormat() != buffer.FormatABGR8888 {
		t.Errorf("SurfaceFormat() = %v", cfg.SurfaceFormat())
	}
	if got, want := cfg.VsyncInterval(), time.Second/60; got != want {
		t.Errorf("VsyncInterval() = %v, want %v", got, want)
	}
}

func TestBlankGenerationSelectsDefault(t *testing.T) {
	for _, blank := range []string{"", "  "} {
		cfg := Default()
		cfg.HWC.Generation = blank
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with generation %q = %v", blank, err)
		}
		if cfg.Generation() != hwc.HWC11 {
			t.Errorf("Generation() with %q = %v, want hwc1.1", blank, cfg.Generation())
		}
	}

	cfg := Default()
	cfg.HWC.Generation = "hwc2.0"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an unknown generation")
	}
}

func TestNameFor(t *testing.T) {
	tests := []struct{ program, want string }{
		{"/usr/bin/displayd", "displayd"},
		{"displayd", "displayd"},
		{"./bin/displayd.exe", "displayd"},
	}
	for _, tt := range tests {
		if got := NameFor(tt.program); got != tt.want {
			t.Errorf("NameFor(%q) = %q, want %q", tt.program, got, tt.want)
		}
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("/usr/bin/displayd-test", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Display != Default().Display {
		t.Errorf("Display = %+v, want defaults", cfg.Display)
	}
}

func TestLoadFileNamedAfterProgram(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "displayd.yaml", `
display:
  width: 800
  height: 600
  refresh_rate: 30
hwc:
  generation: "1.0"
bundle:
  buffers: 3
  format: rgba_8888
logging:
  level: debug
`)

	cfg, err := Load("/opt/display/displayd", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DisplaySize() != (buffer.Size{Width: 800, Height: 600}) {
		t.Errorf("DisplaySize() = %v", cfg.DisplaySize())
	}
	if cfg.VsyncInterval() != time.Second/30 {
		t.Errorf("VsyncInterval() = %v", cfg.VsyncInterval())
	}
	if cfg.Generation() != hwc.HWC10 {
		t.Errorf("Generation() = %v, want hwc1.0", cfg.Generation())
	}
	if cfg.Bundle.Buffers != 3 || cfg.SurfaceFormat() != buffer.FormatRGBA8888 {
		t.Errorf("Bundle = %+v", cfg.Bundle)
	}
	if lvl, _ := cfg.LogLevel(); lvl != slog.LevelDebug {
		t.Errorf("LogLevel() = %v", lvl)
	}
	if cfg.HWC.Backend != "auto" {
		t.Errorf("HWC.Backend = %q, want default", cfg.HWC.Backend)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISPLAY_HWC_BACKEND", "virtual")
	t.Setenv("DISPLAY_DISPLAY_WIDTH", "320")

	cfg, err := Load("displayd", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HWC.Backend != "virtual" {
		t.Errorf("HWC.Backend = %q, want virtual", cfg.HWC.Backend)
	}
	if cfg.Display.Width != 320 {
		t.Errorf("Display.Width = %d, want 320", cfg.Display.Width)
	}
}

func TestLoadExplicitFileMissing(t *testing.T) {
	if _, err := Load("displayd", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load with a missing explicit file succeeded")
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", `
display:
  width: -1
bundle:
  buffers: 5
  format: yuv
logging:
  level: loud
`)
	_, err := Load("displayd", path)
	if err == nil {
		t.Fatal("Load accepted an invalid file")
	}
	for _, want := range []string{"display size", "bundle.buffers", "yuv", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoadFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISPLAY_HWC_BACKEND", "from-env")

	flags := pflag.NewFlagSet("displayd", pflag.ContinueOnError)
	flags.String("backend", "auto", "")
	flags.Int("width", 1280, "")
	flags.Int("height", 720, "")
	if err := flags.Parse([]string{"--backend=virtual", "--width=800"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := LoadFlags("displayd", "", flags)
	if err != nil {
		t.Fatalf("LoadFlags: %v", err)
	}
	if cfg.HWC.Backend != "virtual" {
		t.Errorf("HWC.Backend = %q, want the flag value", cfg.HWC.Backend)
	}
	if cfg.Display.Width != 800 {
		t.Errorf("Display.Width = %d, want 800", cfg.Display.Width)
	}
	if cfg.Display.Height != 720 {
		t.Errorf("Display.Height = %d, want default 720", cfg.Display.Height)
	}
}
