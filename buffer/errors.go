// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package buffer

import (
	"errors"
	"fmt"
)

// Errors.
var (
	// ErrInvalidSize is returned when a width or height is not positive.
	ErrInvalidSize = errors.New("buffer: invalid size")

	// ErrUnsupportedFormat is returned for unknown pixel formats.
	ErrUnsupportedFormat = errors.New("buffer: unsupported pixel format")

	// ErrUnsupportedUsage is returned when a format cannot be allocated with
	// the requested usage, e.g. hardware usage for a format without a GPU
	// texture equivalent.
	ErrUnsupportedUsage = errors.New("buffer: unsupported usage for format")

	// ErrForeignHandle is returned when a handle is passed to an allocator
	// that did not create it.
	ErrForeignHandle = errors.New("buffer: handle not owned by this allocator")

	// ErrReleased is returned when a released handle is used.
	ErrReleased = errors.New("buffer: handle already released")

	// ErrPackageConsumed is returned when a transport package is imported
	// a second time or after Close.
	ErrPackageConsumed = errors.New("buffer: transport package already consumed")
)

// AllocationError reports that the platform allocator rejected a request.
// It is never retried automatically.
type AllocationError struct {
	Size   Size
	Format PixelFormat
	Usage  Usage
	Err    error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("buffer: allocate %s %s (%s): %v", e.Size, e.Format, e.Usage, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// MalformedPackageError reports a transport package that does not describe
// exactly one buffer of the expected geometry. It is a protocol violation.
type MalformedPackageError struct {
	Reason      string
	Descriptors int
	Integers    int
}

func (e *MalformedPackageError) Error() string {
	return fmt.Sprintf("buffer: malformed transport package (%d fds, %d ints): %s",
		e.Descriptors, e.Integers, e.Reason)
}
