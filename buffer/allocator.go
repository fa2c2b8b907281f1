// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package buffer

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Allocator turns (size, format, usage) into buffer handles and moves them
// across a process boundary.
//
// Allocator is the sole owner of the allocation lifecycle: every handle it
// returns must be released with Release on the same allocator.
type Allocator interface {
	// Allocate creates a new buffer. It fails with *AllocationError when the
	// platform rejects the request and never substitutes another format.
	Allocate(size Size, format PixelFormat, usage Usage) (*Handle, error)

	// Export snapshots h into a transport package. The handle is neither
	// mutated nor invalidated; the package owns its own descriptors.
	Export(h *Handle) (*TransportPackage, error)

	// Import reconstructs a local handle from a package received from
	// another process. Size and format are agreed out of band. On success
	// the handle owns the package descriptors.
	Import(pkg *TransportPackage, size Size, format PixelFormat) (*Handle, error)

	// Release frees h. Only the allocator that produced h may release it.
	Release(h *Handle) error
}

// nextBufferID numbers buffers process-wide so exported ids never collide.
var nextBufferID atomic.Int32

// shmBacking implements the shared-memory part common to every allocator.
// Buffers live in anonymous files so that a descriptor is all another
// process needs to map the same pixels.
type shmBacking struct{}

// rowStride returns the byte stride for a row, rounded to 4 bytes.
func rowStride(width int, format PixelFormat) int {
	return (width*format.BytesPerPixel() + 3) &^ 3
}

func (shmBacking) allocate(owner Allocator, size Size, format PixelFormat, usage Usage) (*Handle, error) {
	fail := func(err error) (*Handle, error) {
		return nil, &AllocationError{Size: size, Format: format, Usage: usage, Err: err}
	}

	if !size.Valid() {
		return fail(ErrInvalidSize)
	}
	if !format.Valid() {
		return fail(ErrUnsupportedFormat)
	}
	if usage != UsageSoftware && usage != UsageHardware {
		return fail(ErrUnsupportedUsage)
	}

	stride := rowStride(size.Width, format)
	length := stride * size.Height
	id := nextBufferID.Add(1)

	fd, err := createAnonymousFile(fmt.Sprintf("display-buffer-%d", id), length)
	if err != nil {
		return fail(err)
	}

	mem, err := unix.Mmap(fd, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return fail(fmt.Errorf("mmap: %w", err))
	}

	return &Handle{
		id:     id,
		size:   size,
		format: format,
		usage:  usage,
		stride: stride,
		length: length,
		owner:  owner,
		fd:     fd,
		mem:    mem,
	}, nil
}

func (shmBacking) export(owner Allocator, h *Handle) (*TransportPackage, error) {
	if h == nil {
		return nil, errors.New("buffer: export of nil handle")
	}
	if h.owner != owner {
		return nil, ErrForeignHandle
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return nil, ErrReleased
	}

	dup, err := unix.FcntlInt(uintptr(h.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("buffer: dup descriptor: %w", err)
	}

	ints := make([]int32, packageIntCount)
	ints[intBufferID] = h.id
	ints[intStride] = int32(h.stride) //nolint:gosec // G115: stride bounded by allocation size
	ints[intOffset] = int32(h.offset) //nolint:gosec // G115: offset bounded by allocation size
	ints[intLength] = int32(h.length) //nolint:gosec // G115: length bounded by allocation size

	return &TransportPackage{fds: []int{dup}, ints: ints}, nil
}

func (shmBacking) importPackage(owner Allocator, pkg *TransportPackage, size Size, format PixelFormat) (*Handle, error) {
	if pkg == nil {
		return nil, errors.New("buffer: import of nil package")
	}
	if !size.Valid() {
		return nil, ErrInvalidSize
	}
	if !format.Valid() {
		return nil, ErrUnsupportedFormat
	}

	l, err := pkg.layout(size, format)
	if err != nil {
		return nil, err
	}

	var st unix.Stat_t
	if err := unix.Fstat(pkg.fds[0], &st); err != nil {
		return nil, &MalformedPackageError{Reason: "descriptor not valid: " + err.Error(), Descriptors: 1, Integers: packageIntCount}
	}
	if st.Size < int64(l.offset+l.length) {
		return nil, &MalformedPackageError{Reason: "descriptor smaller than described buffer", Descriptors: 1, Integers: packageIntCount}
	}

	fds, err := pkg.take()
	if err != nil {
		return nil, err
	}
	fd := fds[0]

	mem, err := unix.Mmap(fd, 0, l.offset+l.length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("buffer: map imported buffer: %w", err)
	}

	return &Handle{
		id:     l.id,
		size:   size,
		format: format,
		usage:  UsageSoftware,
		stride: l.stride,
		offset: l.offset,
		length: l.length,
		owner:  owner,
		fd:     fd,
		mem:    mem,
	}, nil
}

// release unmaps and closes h. The caller has already destroyed any GPU
// resources attached to it.
func (shmBacking) release(owner Allocator, h *Handle) error {
	if h == nil {
		return nil
	}
	if h.owner != owner {
		return ErrForeignHandle
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrReleased
	}
	h.released = true

	var errs []error
	if err := unix.Munmap(h.mem); err != nil {
		errs = append(errs, fmt.Errorf("munmap: %w", err))
	}
	if err := unix.Close(h.fd); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	h.mem = nil
	h.fd = -1
	h.texture = nil
	return errors.Join(errs...)
}
