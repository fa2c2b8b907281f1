// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the display server configuration from built-in
// defaults, a file, the environment and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/hwc"
)

// EnvPrefix prefixes every environment override, e.g. DISPLAY_HWC_BACKEND.
const EnvPrefix = "DISPLAY"

// Config is the complete server configuration.
type Config struct {
	Display DisplayConfig `mapstructure:"display"`
	HWC     HWCConfig     `mapstructure:"hwc"`
	Bundle  BundleConfig  `mapstructure:"bundle"`
	Shell   ShellConfig   `mapstructure:"shell"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
}

// DisplayConfig describes the primary display.
type DisplayConfig struct {
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	RefreshRate int    `mapstructure:"refresh_rate"`
	Usage       string `mapstructure:"usage"`
}

// HWCConfig selects the hardware composer.
type HWCConfig struct {
	Backend    string `mapstructure:"backend"`
	Generation string `mapstructure:"generation"`
}

// BundleConfig sets swapchain defaults for new surfaces.
type BundleConfig struct {
	Buffers int    `mapstructure:"buffers"`
	Format  string `mapstructure:"format"`
}

// ShellConfig configures the session layer.
type ShellConfig struct {
	// InputChannels gives every surface a socket-pair input channel.
	InputChannels bool `mapstructure:"input_channels"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// EnvHacks is a colon separated list of NAME=VALUE pairs set in the
	// process environment before the server starts.
	EnvHacks string `mapstructure:"env_hacks"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Width:       1280,
			Height:      720,
			RefreshRate: 60,
			Usage:       "software",
		},
		HWC: HWCConfig{
			Backend:    "auto",
			Generation: hwc.HWC11.String(),
		},
		Bundle: BundleConfig{
			Buffers: 2,
			Format:  buffer.FormatABGR8888.String(),
		},
		Shell: ShellConfig{
			InputChannels: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("display.width", cfg.Display.Width)
	v.SetDefault("display.height", cfg.Display.Height)
	v.SetDefault("display.refresh_rate", cfg.Display.RefreshRate)
	v.SetDefault("display.usage", cfg.Display.Usage)

	v.SetDefault("hwc.backend", cfg.HWC.Backend)
	v.SetDefault("hwc.generation", cfg.HWC.Generation)

	v.SetDefault("bundle.buffers", cfg.Bundle.Buffers)
	v.SetDefault("bundle.format", cfg.Bundle.Format)

	v.SetDefault("shell.input_channels", cfg.Shell.InputChannels)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("server.env_hacks", cfg.Server.EnvHacks)
}

// NameFor derives the configuration file base name from a program path:
// "/usr/bin/displayd" gives "displayd".
func NameFor(program string) string {
	base := filepath.Base(program)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads the configuration. If file is empty, a file named after
// program (any extension viper understands) is searched for in the
// working directory and in /etc/<name>; its absence is not an error.
func Load(program, file string) (*Config, error) {
	return load(viper.New(), program, file)
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"width":        "display.width",
	"height":       "display.height",
	"refresh-rate": "display.refresh_rate",
	"usage":        "display.usage",
	"backend":      "hwc.backend",
	"generation":   "hwc.generation",
	"buffers":      "bundle.buffers",
	"format":       "bundle.format",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"env-hacks":    "server.env_hacks",
}

// LoadFlags is Load with command-line overrides. Flags named in FlagKeys
// that are present in flags and were set by the user take precedence over
// the environment.
func LoadFlags(program, file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return load(v, program, file)
}

func load(v *viper.Viper, program, file string) (*Config, error) {
	cfg := Default()
	setDefaults(v, cfg)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		name := NameFor(program)
		v.SetConfigName(name)
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("/etc", name))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if !c.DisplaySize().Valid() {
		errs = append(errs, fmt.Errorf("display size %dx%d is not positive", c.Display.Width, c.Display.Height))
	}
	if c.Display.RefreshRate <= 0 || c.Display.RefreshRate > 1000 {
		errs = append(errs, fmt.Errorf("display.refresh_rate must be between 1 and 1000, got %d", c.Display.RefreshRate))
	}
	if _, err := buffer.ParseUsage(c.Display.Usage); err != nil {
		errs = append(errs, err)
	}
	if _, err := hwc.ParseGeneration(c.generationName()); err != nil {
		errs = append(errs, err)
	}
	if c.Bundle.Buffers < 2 || c.Bundle.Buffers > 3 {
		errs = append(errs, fmt.Errorf("bundle.buffers must be 2 or 3, got %d", c.Bundle.Buffers))
	}
	if _, err := buffer.ParsePixelFormat(c.Bundle.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Logging.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", f))
	}
	return errors.Join(errs...)
}

// DisplaySize returns the display size.
func (c *Config) DisplaySize() buffer.Size {
	return buffer.Size{Width: c.Display.Width, Height: c.Display.Height}
}

// VsyncInterval returns the frame period of the display.
func (c *Config) VsyncInterval() time.Duration {
	if c.Display.RefreshRate <= 0 {
		return hwc.DefaultVsyncInterval
	}
	return time.Second / time.Duration(c.Display.RefreshRate)
}

// FramebufferUsage returns the parsed display usage.
func (c *Config) FramebufferUsage() buffer.Usage {
	u, err := buffer.ParseUsage(c.Display.Usage)
	if err != nil {
		return buffer.UsageSoftware
	}
	return u
}

// Generation returns the parsed composer generation. A blank setting
// selects hwc1.1.
func (c *Config) Generation() hwc.Generation {
	g, err := hwc.ParseGeneration(c.generationName())
	if err != nil {
		return hwc.HWC11
	}
	return g
}

func (c *Config) generationName() string {
	if strings.TrimSpace(c.HWC.Generation) == "" {
		return hwc.HWC11.String()
	}
	return c.HWC.Generation
}

// SurfaceFormat returns the parsed default surface format.
func (c *Config) SurfaceFormat() buffer.PixelFormat {
	f, err := buffer.ParsePixelFormat(c.Bundle.Format)
	if err != nil {
		return buffer.FormatABGR8888
	}
	return f
}

// LogLevel parses logging.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}
