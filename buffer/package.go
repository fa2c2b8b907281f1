// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package buffer

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// Transport layout for shared-memory buffers: one descriptor followed by
// these integers, in this order.
const packageFDCount = 1

const (
	intBufferID = iota
	intStride
	intOffset
	intLength
	packageIntCount
)

// TransportPackage carries everything needed to reconstruct a buffer handle
// in another process: an ordered list of descriptors and an ordered list of
// integers. It carries no format tag; sender and receiver agree on size and
// pixel format out of band.
//
// The contents never change after construction. The descriptors are owned
// by the package until it is imported (ownership moves to the imported
// handle) or closed.
type TransportPackage struct {
	fds  []int
	ints []int32

	mu       sync.Mutex
	consumed bool
}

// NewTransportPackage builds a package from received descriptors and
// integers. Both slices are copied. The package takes ownership of fds.
func NewTransportPackage(fds []int, ints []int32) *TransportPackage {
	return &TransportPackage{
		fds:  append([]int(nil), fds...),
		ints: append([]int32(nil), ints...),
	}
}

// Descriptors returns a copy of the descriptor list.
func (p *TransportPackage) Descriptors() []int {
	return append([]int(nil), p.fds...)
}

// Integers returns a copy of the integer list.
func (p *TransportPackage) Integers() []int32 {
	return append([]int32(nil), p.ints...)
}

// BufferID returns the sender's buffer id, or -1 if the package does not
// carry one.
func (p *TransportPackage) BufferID() int32 {
	if len(p.ints) != packageIntCount {
		return -1
	}
	return p.ints[intBufferID]
}

// Consumed reports whether the package was imported or closed.
func (p *TransportPackage) Consumed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consumed
}

// Close closes the descriptors of a package that was never imported.
// Close after import is a no-op.
func (p *TransportPackage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil
	}
	p.consumed = true

	var errs []error
	for _, fd := range p.fds {
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// take hands the descriptors to the caller exactly once.
func (p *TransportPackage) take() ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil, ErrPackageConsumed
	}
	p.consumed = true
	return append([]int(nil), p.fds...), nil
}

// layout decodes and validates the package against the out-of-band geometry.
func (p *TransportPackage) layout(size Size, format PixelFormat) (packageLayout, error) {
	malformed := func(reason string) error {
		return &MalformedPackageError{Reason: reason, Descriptors: len(p.fds), Integers: len(p.ints)}
	}

	if len(p.fds) != packageFDCount {
		return packageLayout{}, malformed("descriptor count mismatch")
	}
	if len(p.ints) != packageIntCount {
		return packageLayout{}, malformed("integer count mismatch")
	}

	l := packageLayout{
		id:     p.ints[intBufferID],
		stride: int(p.ints[intStride]),
		offset: int(p.ints[intOffset]),
		length: int(p.ints[intLength]),
	}
	switch {
	case l.offset < 0:
		return packageLayout{}, malformed("negative offset")
	case l.stride < size.Width*format.BytesPerPixel():
		return packageLayout{}, malformed("stride shorter than a row")
	case l.length < l.stride*size.Height:
		return packageLayout{}, malformed("length shorter than the image")
	}
	return l, nil
}

type packageLayout struct {
	id     int32
	stride int
	offset int
	length int
}
