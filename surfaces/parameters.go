// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surfaces

import (
	"errors"
	"fmt"

	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/bundle"
)

// ErrInvalidParameters is wrapped by Parameters.Validate failures.
var ErrInvalidParameters = errors.New("surfaces: invalid creation parameters")

// DefaultBuffers is the buffer count used when Parameters.Buffers is zero.
const DefaultBuffers = 2

// Parameters describe a surface to create. Size and Format are the
// out-of-band agreement under which clients import the surface buffers.
type Parameters struct {
	Name    string
	Size    buffer.Size
	Format  buffer.PixelFormat
	Usage   buffer.Usage
	Buffers int // buffers in rotation, 0 selects DefaultBuffers

	// Input is the optional input channel. Its presence makes the surface
	// input-capable.
	Input InputChannel
}

// DefaultParameters returns a valid 640x480 software ABGR surface.
func DefaultParameters() Parameters {
	return Parameters{
		Name:   "surface",
		Size:   buffer.Size{Width: 640, Height: 480},
		Format: buffer.FormatABGR8888,
		Usage:  buffer.UsageSoftware,
	}
}

// WithName returns a copy of p named name.
func (p Parameters) WithName(name string) Parameters {
	p.Name = name
	return p
}

// WithSize returns a copy of p with the given size.
func (p Parameters) WithSize(width, height int) Parameters {
	p.Size = buffer.Size{Width: width, Height: height}
	return p
}

// WithFormat returns a copy of p with the given pixel format.
func (p Parameters) WithFormat(format buffer.PixelFormat) Parameters {
	p.Format = format
	return p
}

// WithUsage returns a copy of p with the given buffer usage.
func (p Parameters) WithUsage(usage buffer.Usage) Parameters {
	p.Usage = usage
	return p
}

// WithBuffers returns a copy of p with n swapchain buffers. Zero selects
// DefaultBuffers.
func (p Parameters) WithBuffers(n int) Parameters {
	p.Buffers = n
	return p
}

// WithInput returns a copy of p carrying the input channel.
func (p Parameters) WithInput(ch InputChannel) Parameters {
	p.Input = ch
	return p
}

// Validate checks the parameters without allocating anything.
func (p Parameters) Validate() error {
	switch {
	case !p.Size.Valid():
		return fmt.Errorf("%w: size %s", ErrInvalidParameters, p.Size)
	case !p.Format.Valid():
		return fmt.Errorf("%w: pixel format %v", ErrInvalidParameters, p.Format)
	case p.Usage != buffer.UsageSoftware && p.Usage != buffer.UsageHardware:
		return fmt.Errorf("%w: usage %v", ErrInvalidParameters, p.Usage)
	case p.Buffers != 0 && (p.Buffers < bundle.MinBuffers || p.Buffers > bundle.MaxBuffers):
		return fmt.Errorf("%w: %d buffers", ErrInvalidParameters, p.Buffers)
	}
	return nil
}

func (p Parameters) bufferCount() int {
	if p.Buffers == 0 {
		return DefaultBuffers
	}
	return p.Buffers
}
