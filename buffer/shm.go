// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package buffer

import (
	"github.com/gogpu/display"
)

// ShmAllocator allocates CPU-mapped shared-memory buffers.
//
// Hardware usage is accepted for formats that have a GPU equivalent (the
// compositor may upload them), and rejected for the others. For buffers
// that need a real GPU texture use HALAllocator.
//
// ShmAllocator is safe for concurrent use.
type ShmAllocator struct {
	backing shmBacking
}

// NewShmAllocator creates a shared-memory allocator.
func NewShmAllocator() *ShmAllocator {
	return &ShmAllocator{}
}

// Allocate creates a new shared-memory buffer.
func (a *ShmAllocator) Allocate(size Size, format PixelFormat, usage Usage) (*Handle, error) {
	if usage == UsageHardware && format.Valid() && !hasTexture(format) {
		return nil, &AllocationError{Size: size, Format: format, Usage: usage, Err: ErrUnsupportedUsage}
	}
	h, err := a.backing.allocate(a, size, format, usage)
	if err != nil {
		return nil, err
	}
	display.Logger().Debug("buffer: allocated",
		"id", h.id, "size", size.String(), "format", format.String(), "usage", usage.String())
	return h, nil
}

// Export snapshots h into a transport package.
func (a *ShmAllocator) Export(h *Handle) (*TransportPackage, error) {
	return a.backing.export(a, h)
}

// Import maps a buffer received from another process.
func (a *ShmAllocator) Import(pkg *TransportPackage, size Size, format PixelFormat) (*Handle, error) {
	return a.backing.importPackage(a, pkg, size, format)
}

// Release unmaps h and closes its descriptor.
func (a *ShmAllocator) Release(h *Handle) error {
	return a.backing.release(a, h)
}

// Ensure ShmAllocator implements Allocator.
var _ Allocator = (*ShmAllocator)(nil)
