// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"errors"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
)

// FBDevice is the legacy framebuffer device used by HWC 1.0 to flip the
// framebuffer target onto the screen.
type FBDevice interface {
	Post(buf *buffer.Handle) error
}

// HWC10Device drives a 1.0 composer. The composer only handles vsync and
// blanking; frames are flipped through the framebuffer device.
type HWC10Device struct {
	*commonDevice
	organizer *LayerOrganizer
	fb        FBDevice
}

// NewHWC10Device brings up a 1.0 composer. See newCommonDevice for the
// bring-up order and failure behavior.
func NewHWC10Device(c Composer, organizer *LayerOrganizer, fb FBDevice, opts ...Option) (*HWC10Device, error) {
	if organizer == nil {
		return nil, errors.New("hwc: organizer cannot be nil")
	}
	if fb == nil {
		return nil, errors.New("hwc: framebuffer device cannot be nil")
	}
	common, err := newCommonDevice(c, opts)
	if err != nil {
		return nil, err
	}
	return &HWC10Device{commonDevice: common, organizer: organizer, fb: fb}, nil
}

// Generation returns HWC10.
func (d *HWC10Device) Generation() Generation { return HWC10 }

// SetNextFrontbuffer makes buf the framebuffer target and posts it.
func (d *HWC10Device) SetNextFrontbuffer(buf *buffer.Handle) error {
	if buf == nil {
		return ErrNilBuffer
	}
	if d.isClosed() {
		return ErrClosed
	}
	d.organizer.SetFBTarget(buf)
	if err := d.fb.Post(buf); err != nil {
		return &PresentError{Op: "post", Err: err}
	}
	display.Logger().Debug("hwc10: posted frontbuffer", "id", buf.ID())
	return nil
}

var _ Device = (*HWC10Device)(nil)
