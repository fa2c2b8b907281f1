// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package buffer

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// PixelFormat describes the memory layout of one pixel.
//
// Names follow the packed 32-bit convention used by display hardware:
// ABGR8888 stores R, G, B, A bytes in memory order on little-endian hosts.
type PixelFormat uint32

const (
	// FormatInvalid is the zero value and is never allocatable.
	FormatInvalid PixelFormat = iota

	// FormatABGR8888 is 32-bit with alpha, memory order R, G, B, A.
	FormatABGR8888

	// FormatXBGR8888 is FormatABGR8888 with the alpha byte ignored.
	FormatXBGR8888

	// FormatARGB8888 is 32-bit with alpha, memory order B, G, R, A.
	FormatARGB8888

	// FormatXRGB8888 is FormatARGB8888 with the alpha byte ignored.
	FormatXRGB8888

	// FormatRGBA8888 is the legacy client name for a 32-bit RGBA buffer.
	FormatRGBA8888

	// FormatRGB888 is packed 24-bit without alpha. It has no GPU texture
	// equivalent and can only be allocated for software usage.
	FormatRGB888
)

var formatNames = map[PixelFormat]string{
	FormatInvalid:  "invalid",
	FormatABGR8888: "abgr_8888",
	FormatXBGR8888: "xbgr_8888",
	FormatARGB8888: "argb_8888",
	FormatXRGB8888: "xrgb_8888",
	FormatRGBA8888: "rgba_8888",
	FormatRGB888:   "rgb_888",
}

// String returns the canonical lower-case name, e.g. "abgr_8888".
func (f PixelFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", uint32(f))
}

// Valid reports whether f is a known, allocatable format.
func (f PixelFormat) Valid() bool {
	return f != FormatInvalid && f.BytesPerPixel() > 0
}

// BytesPerPixel returns the storage size of one pixel, or 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatABGR8888, FormatXBGR8888, FormatARGB8888, FormatXRGB8888, FormatRGBA8888:
		return 4
	case FormatRGB888:
		return 3
	default:
		return 0
	}
}

// TextureFormat maps f to the GPU texture format with the same memory layout.
// Returns gputypes.TextureFormatUndefined when no GPU equivalent exists.
func (f PixelFormat) TextureFormat() gputypes.TextureFormat {
	switch f {
	case FormatABGR8888, FormatXBGR8888, FormatRGBA8888:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatARGB8888, FormatXRGB8888:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// ParsePixelFormat parses a format name. Both "abgr_8888" and "abgr-8888"
// spellings are accepted, case-insensitively.
func ParsePixelFormat(s string) (PixelFormat, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for f, name := range formatNames {
		if f != FormatInvalid && name == key {
			return f, nil
		}
	}
	return FormatInvalid, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Usage is the acceleration hint supplied at surface creation.
type Usage uint32

const (
	// UsageSoftware buffers are written by the CPU through a shared mapping.
	UsageSoftware Usage = iota

	// UsageHardware buffers are additionally backed by a GPU texture.
	UsageHardware
)

// String returns "software" or "hardware".
func (u Usage) String() string {
	switch u {
	case UsageSoftware:
		return "software"
	case UsageHardware:
		return "hardware"
	default:
		return fmt.Sprintf("Usage(%d)", uint32(u))
	}
}

// ParseUsage parses "software" or "hardware" (also "accelerated").
func ParseUsage(s string) (Usage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "software", "sw", "":
		return UsageSoftware, nil
	case "hardware", "hw", "accelerated":
		return UsageHardware, nil
	default:
		return UsageSoftware, fmt.Errorf("%w: %q", ErrUnsupportedUsage, s)
	}
}

// Size is a buffer size in pixels.
type Size struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// String returns "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
