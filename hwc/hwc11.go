// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"errors"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
)

// HWC11Device drives a 1.1 composer. Each frame is submitted as a layer
// list: the organizer's client layers followed by the framebuffer target,
// passed through Prepare and then Set.
type HWC11Device struct {
	*commonDevice
	organizer *LayerOrganizer
}

// NewHWC11Device brings up a 1.1 composer. See newCommonDevice for the
// bring-up order and failure behavior.
func NewHWC11Device(c Composer, organizer *LayerOrganizer, opts ...Option) (*HWC11Device, error) {
	if organizer == nil {
		return nil, errors.New("hwc: organizer cannot be nil")
	}
	common, err := newCommonDevice(c, opts)
	if err != nil {
		return nil, err
	}
	return &HWC11Device{commonDevice: common, organizer: organizer}, nil
}

// Generation returns HWC11.
func (d *HWC11Device) Generation() Generation { return HWC11 }

// SetNextFrontbuffer makes buf the framebuffer target and submits the
// current layer list.
func (d *HWC11Device) SetNextFrontbuffer(buf *buffer.Handle) error {
	if buf == nil {
		return ErrNilBuffer
	}
	if d.isClosed() {
		return ErrClosed
	}
	d.organizer.SetFBTarget(buf)
	list := d.organizer.LayerList()

	if st := d.composer.Prepare(DisplayPrimary, list); st.Failed() {
		return &PresentError{Op: "prepare", Status: st}
	}
	if st := d.composer.Set(DisplayPrimary, list); st.Failed() {
		return &PresentError{Op: "set", Status: st}
	}
	display.Logger().Debug("hwc11: submitted layer list", "layers", list.Len(), "fb", buf.ID())
	return nil
}

var _ Device = (*HWC11Device)(nil)
