// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/display/buffer"
)

// Device is a hardware composer device for one display.
//
// All implementations share one vsync state machine. They differ only in
// how a new front buffer reaches the screen.
type Device interface {
	// WaitForVsync blocks until a vsync has been delivered since the
	// previous return. It returns immediately if one is already pending.
	// One waiter at a time is supported.
	WaitForVsync() error

	// WaitForVsyncContext is WaitForVsync with cancellation.
	WaitForVsyncContext(ctx context.Context) error

	// NotifyVsync records a vsync and wakes the waiter. With no waiter
	// the notification is latched for the next wait.
	NotifyVsync()

	// SetNextFrontbuffer presents buf as the framebuffer target.
	SetNextFrontbuffer(buf *buffer.Handle) error

	// DisplayFormat returns the pixel format of the display framebuffers.
	DisplayFormat() buffer.PixelFormat

	// FramebuffersAvailable returns how many framebuffers the display
	// rotates through.
	FramebuffersAvailable() int

	// Generation reports the composer generation this device drives.
	Generation() Generation

	// Close disables vsync, deregisters the hooks and blanks the display.
	// Close is idempotent.
	Close() error
}

// Generation is the hardware composer API generation.
type Generation int

// Supported generations.
const (
	HWC10 Generation = iota + 1
	HWC11
)

func (g Generation) String() string {
	switch g {
	case HWC10:
		return "hwc1.0"
	case HWC11:
		return "hwc1.1"
	default:
		return fmt.Sprintf("Generation(%d)", int(g))
	}
}

// ParseGeneration parses "1.0", "hwc1.0", "10" and their 1.1 equivalents.
func ParseGeneration(s string) (Generation, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "hwc")
	switch v {
	case "1.0", "10":
		return HWC10, nil
	case "1.1", "11":
		return HWC11, nil
	}
	return 0, fmt.Errorf("hwc: unknown generation %q", s)
}

// Defaults reported by every device.
const (
	DefaultDisplayFormat = buffer.FormatABGR8888
	DefaultFramebuffers  = 2
)

var (
	// ErrClosed is returned by waits on a closed device.
	ErrClosed = errors.New("hwc: device closed")

	// ErrNilComposer is returned when a device is built without a composer.
	ErrNilComposer = errors.New("hwc: composer cannot be nil")

	// ErrNilBuffer is returned by SetNextFrontbuffer(nil).
	ErrNilBuffer = errors.New("hwc: frontbuffer cannot be nil")
)

// InitError reports a failed device construction. The device has been
// fully unwound: hooks deregistered and vsync left disabled.
type InitError struct {
	Step   string // "event-control" or "unblank"
	Status Status
}

func (e *InitError) Error() string {
	return fmt.Sprintf("hwc: init failed at %s: %v", e.Step, e.Status)
}

// Unwrap returns the errno carried by the failing status.
func (e *InitError) Unwrap() error {
	return e.Status.Err()
}

// PresentError reports a failed frame submission.
type PresentError struct {
	Op     string // "prepare", "set" or "post"
	Status Status
	Err    error
}

func (e *PresentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hwc: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("hwc: %s: %v", e.Op, e.Status)
}

func (e *PresentError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Status.Err()
}

// Option configures a device.
type Option func(*options)

type options struct {
	onInvalidate func()
	onHotplug    func(display Display, connected bool)
}

// WithInvalidateHandler is called when the composer asks for a redraw.
func WithInvalidateHandler(fn func()) Option {
	return func(o *options) {
		o.onInvalidate = fn
	}
}

// WithHotplugHandler is called when a display is connected or removed.
func WithHotplugHandler(fn func(display Display, connected bool)) Option {
	return func(o *options) {
		o.onHotplug = fn
	}
}

func defaultOptions() options {
	return options{}
}

// NewDevice builds the device for gen on top of c. HWC 1.0 flips through
// the composer itself, which must then also implement FBDevice.
func NewDevice(gen Generation, c Composer, organizer *LayerOrganizer, opts ...Option) (Device, error) {
	switch gen {
	case HWC10:
		fb, ok := c.(FBDevice)
		if !ok {
			return nil, fmt.Errorf("hwc: %T has no framebuffer device for %v", c, gen)
		}
		d, err := NewHWC10Device(c, organizer, fb, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	case HWC11:
		d, err := NewHWC11Device(c, organizer, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("hwc: unsupported generation %v", gen)
	}
}
