// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gogpu/display/buffer"
)

// Display identifies a physical display on the composer.
type Display int32

// Displays known to the composer contract.
const (
	DisplayPrimary  Display = 0
	DisplayExternal Display = 1
)

// Event identifies a hardware event that can be switched on or off.
type Event int32

// EventVsync is the vertical-sync event.
const EventVsync Event = 0

// Status is the integer result of a composer call. Zero is success and a
// negative value is a negated errno.
type Status int32

// StatusOK is the success status.
const StatusOK Status = 0

// StatusFromErrno returns the negative status for errno.
func StatusFromErrno(errno unix.Errno) Status {
	return Status(-int32(errno)) //nolint:gosec // G115: errno values are small
}

// Failed reports whether s is an error status.
func (s Status) Failed() bool { return s < 0 }

// Err converts a failing status to a unix.Errno and returns nil otherwise.
func (s Status) Err() error {
	if !s.Failed() {
		return nil
	}
	return unix.Errno(-s)
}

func (s Status) String() string {
	if !s.Failed() {
		return fmt.Sprintf("status(%d)", int32(s))
	}
	return fmt.Sprintf("status(%d: %s)", int32(s), unix.Errno(-s).Error())
}

// Composer is the hardware composer contract. Implementations are driver
// bindings or the in-process VirtualComposer.
//
// RegisterProcs must be the first call made on a composer. Passing nil
// removes the hooks; after that the composer must not invoke any hook.
type Composer interface {
	RegisterProcs(procs *Procs)
	EventControl(display Display, event Event, enabled bool) Status
	Blank(display Display, blank bool) Status
	Prepare(display Display, list *LayerList) Status
	Set(display Display, list *LayerList) Status
}

// CompositionType says how a layer reaches the screen.
type CompositionType int

// Composition types.
const (
	// CompositionFramebuffer layers are composited into the framebuffer target.
	CompositionFramebuffer CompositionType = iota
	// CompositionOverlay layers are scanned out directly by the hardware.
	CompositionOverlay
	// CompositionFramebufferTarget marks the framebuffer target itself.
	CompositionFramebufferTarget
)

func (c CompositionType) String() string {
	switch c {
	case CompositionFramebuffer:
		return "framebuffer"
	case CompositionOverlay:
		return "overlay"
	case CompositionFramebufferTarget:
		return "framebuffer-target"
	default:
		return fmt.Sprintf("composition(%d)", int(c))
	}
}

// Layer is one entry of a LayerList.
type Layer struct {
	Z           int
	Buffer      *buffer.Handle
	Composition CompositionType
	Skip        bool
}

// LayerList is the per-frame list handed to Prepare and Set. The
// framebuffer target, when present, is the last entry.
type LayerList struct {
	Layers []Layer
}

// Len returns the number of layers.
func (l *LayerList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Layers)
}

// FramebufferTarget returns the framebuffer-target layer, if any.
func (l *LayerList) FramebufferTarget() (Layer, bool) {
	if l.Len() == 0 {
		return Layer{}, false
	}
	last := l.Layers[len(l.Layers)-1]
	return last, last.Composition == CompositionFramebufferTarget
}
