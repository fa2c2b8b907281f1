// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package buffer provides hardware display buffers and the transport package
// that hands them to another process.
//
// # Allocation
//
// An Allocator turns (size, pixel format, usage) into an opaque *Handle and
// is the only place a handle may be released:
//
//	alloc := buffer.NewShmAllocator()
//	h, err := alloc.Allocate(buffer.Size{Width: 300, Height: 200},
//	    buffer.FormatABGR8888, buffer.UsageSoftware)
//	if err != nil {
//	    return err // *buffer.AllocationError
//	}
//	defer alloc.Release(h)
//
// ShmAllocator backs buffers with sealed memfd shared memory. HALAllocator
// additionally creates a GPU texture through a wgpu HAL device for
// hardware-usage buffers.
//
// # Transport
//
// Export produces a *TransportPackage: an ordered list of descriptors and
// an ordered list of integers. The receiver calls Import with the size and
// format agreed at surface creation; the package carries no format tag.
//
//	pkg, _ := alloc.Export(h)          // h stays valid
//	remote, err := peer.Import(pkg, size, format)
//
// A package is consumed exactly once. After import the receiving handle owns
// the descriptors and closes them on release.
package buffer
