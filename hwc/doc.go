// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hwc drives the hardware composer: the display block that
// composites layers and presents frames on vsync.
//
// A Device is built on top of a Composer. Construction registers the
// invalidate, vsync and hotplug hooks first, then enables the vsync event,
// then unblanks the display. If any step fails the sequence is unwound and
// an *InitError is returned:
//
//	org := hwc.NewLayerOrganizer()
//	dev, err := hwc.NewHWC11Device(composer, org)
//	if err != nil {
//	    return err // errors.Is(err, unix.EINVAL) for a rejected vsync enable
//	}
//	defer dev.Close()
//
//	for {
//	    if err := dev.WaitForVsync(); err != nil {
//	        return err
//	    }
//	    // post layers, then
//	    dev.SetNextFrontbuffer(fb)
//	}
//
// Two generations are supported. HWC10Device flips the framebuffer target
// through an FBDevice; HWC11Device submits the organizer's layer list with
// Prepare and Set. Both share one vsync state machine.
//
// Composer backends are looked up by name in a registry. The "virtual"
// backend is always present and ticks vsync from a timer.
package hwc
