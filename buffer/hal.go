// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package buffer

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/display"
)

// HALAllocator allocates shared-memory buffers and, for hardware usage,
// a GPU texture of the same size and format on a wgpu HAL device.
//
// The allocator RECEIVES its device from the host, it does not create one.
// Destroying the device is the host's job, after every handle is released.
//
// HALAllocator is safe for concurrent use.
type HALAllocator struct {
	device  hal.Device
	backing shmBacking
}

// NewHALAllocator creates an allocator using the given HAL device.
func NewHALAllocator(device hal.Device) (*HALAllocator, error) {
	if device == nil {
		return nil, errors.New("buffer: HAL device cannot be nil")
	}
	return &HALAllocator{device: device}, nil
}

// NewHALAllocatorFromProvider creates an allocator from a host device
// provider. The provider must also expose HalDevice() returning a hal.Device.
func NewHALAllocatorFromProvider(provider gpucontext.DeviceProvider) (*HALAllocator, error) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("buffer: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("buffer: provider HalDevice is not hal.Device")
	}
	return NewHALAllocator(device)
}

func hasTexture(format PixelFormat) bool {
	return format.TextureFormat() != gputypes.TextureFormatUndefined
}

// Allocate creates a buffer. Hardware usage also creates a GPU texture and
// fails with ErrUnsupportedUsage for formats without a texture equivalent.
func (a *HALAllocator) Allocate(size Size, format PixelFormat, usage Usage) (*Handle, error) {
	if usage == UsageHardware && format.Valid() && !hasTexture(format) {
		return nil, &AllocationError{Size: size, Format: format, Usage: usage, Err: ErrUnsupportedUsage}
	}

	h, err := a.backing.allocate(a, size, format, usage)
	if err != nil {
		return nil, err
	}
	if usage != UsageHardware {
		return h, nil
	}

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label: fmt.Sprintf("display-buffer-%d", h.id),
		Size: hal.Extent3D{
			Width:              uint32(size.Width),  //nolint:gosec // G115: size validated positive
			Height:             uint32(size.Height), //nolint:gosec // G115: size validated positive
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format.TextureFormat(),
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		_ = a.backing.release(a, h)
		return nil, &AllocationError{Size: size, Format: format, Usage: usage, Err: fmt.Errorf("create texture: %w", err)}
	}

	h.mu.Lock()
	h.texture = tex
	h.mu.Unlock()

	display.Logger().Debug("buffer: allocated hardware buffer",
		"id", h.id, "size", size.String(), "format", format.String())
	return h, nil
}

// Export snapshots h into a transport package. Only the shared-memory
// side crosses the process boundary.
func (a *HALAllocator) Export(h *Handle) (*TransportPackage, error) {
	return a.backing.export(a, h)
}

// Import maps a buffer received from another process.
func (a *HALAllocator) Import(pkg *TransportPackage, size Size, format PixelFormat) (*Handle, error) {
	return a.backing.importPackage(a, pkg, size, format)
}

// Release destroys the GPU texture, if any, then the shared memory.
func (a *HALAllocator) Release(h *Handle) error {
	if h == nil {
		return nil
	}
	if h.owner != Allocator(a) {
		return ErrForeignHandle
	}

	h.mu.Lock()
	tex, released := h.texture, h.released
	h.texture = nil
	h.mu.Unlock()
	if released {
		return ErrReleased
	}

	if tex != nil {
		a.device.DestroyTexture(tex)
	}
	return a.backing.release(a, h)
}

// Ensure HALAllocator implements Allocator.
var _ Allocator = (*HALAllocator)(nil)
