// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package buffer

import (
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// Handle is an opaque platform buffer handle.
//
// A Handle is owned by the Allocator that created or imported it and is
// released only through that allocator. Handles are shared by pointer and
// never copied.
type Handle struct {
	id     int32
	size   Size
	format PixelFormat
	usage  Usage
	stride int
	offset int
	length int

	owner Allocator

	mu       sync.RWMutex
	fd       int
	mem      []byte
	texture  hal.Texture
	released bool
}

// ID returns the buffer id. An imported handle keeps the exporter's id so
// both sides can name the same buffer.
func (h *Handle) ID() int32 { return h.id }

// Size returns the buffer size in pixels.
func (h *Handle) Size() Size { return h.size }

// Format returns the pixel format.
func (h *Handle) Format() PixelFormat { return h.format }

// Usage returns the usage the handle was allocated with. Imported handles
// are CPU mappings and report UsageSoftware.
func (h *Handle) Usage() Usage { return h.usage }

// Stride returns the number of bytes per row.
func (h *Handle) Stride() int { return h.stride }

// Pixels returns the mapped pixel memory, stride*height bytes long.
// Returns nil after release.
func (h *Handle) Pixels() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return nil
	}
	return h.mem[h.offset : h.offset+h.length]
}

// Texture returns the GPU texture backing a hardware-usage buffer,
// or nil for software buffers.
func (h *Handle) Texture() hal.Texture {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.texture
}

// Released reports whether the handle was released.
func (h *Handle) Released() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.released
}
