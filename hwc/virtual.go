// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"slices"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
)

// DefaultVsyncInterval is the virtual composer's refresh period (60 Hz).
const DefaultVsyncInterval = time.Second / 60

// VirtualComposer is an in-process composer with no hardware behind it.
// While vsync is enabled a ticker goroutine fires the vsync hook. Frames
// submitted through Set, or through Post when used as the HWC 1.0
// framebuffer device, are recorded and can be inspected.
//
// Only DisplayPrimary exists. VirtualComposer is safe for concurrent use.
type VirtualComposer struct {
	interval time.Duration

	mu       sync.Mutex
	procs    *Procs
	blanked  bool
	vsyncOn  bool
	stop     chan struct{}
	done     chan struct{}
	frames   uint64
	lastList *LayerList
	lastPost *buffer.Handle
}

// NewVirtualComposer creates a blanked composer that ticks every interval.
// A non-positive interval selects DefaultVsyncInterval.
func NewVirtualComposer(interval time.Duration) *VirtualComposer {
	if interval <= 0 {
		interval = DefaultVsyncInterval
	}
	return &VirtualComposer{interval: interval, blanked: true}
}

// RegisterProcs installs or, with nil, removes the hook table.
func (v *VirtualComposer) RegisterProcs(procs *Procs) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.procs = procs
}

// EventControl starts or stops the vsync ticker.
func (v *VirtualComposer) EventControl(disp Display, event Event, enabled bool) Status {
	if disp != DisplayPrimary || event != EventVsync {
		return StatusFromErrno(unix.EINVAL)
	}

	v.mu.Lock()
	if enabled == v.vsyncOn {
		v.mu.Unlock()
		return StatusOK
	}
	v.vsyncOn = enabled
	if enabled {
		v.stop = make(chan struct{})
		v.done = make(chan struct{})
		go v.tick(v.stop, v.done)
		v.mu.Unlock()
		return StatusOK
	}
	stop, done := v.stop, v.done
	v.mu.Unlock()

	close(stop)
	<-done
	return StatusOK
}

func (v *VirtualComposer) tick(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	t := time.NewTicker(v.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			v.mu.Lock()
			p := v.procs
			v.mu.Unlock()
			if p != nil {
				p.Vsync(p, DisplayPrimary, now.UnixNano())
			}
		}
	}
}

// Blank turns the virtual display off or on.
func (v *VirtualComposer) Blank(disp Display, blank bool) Status {
	if disp != DisplayPrimary {
		return StatusFromErrno(unix.EINVAL)
	}
	v.mu.Lock()
	v.blanked = blank
	v.mu.Unlock()
	return StatusOK
}

// Prepare accepts every layer for framebuffer composition.
func (v *VirtualComposer) Prepare(disp Display, list *LayerList) Status {
	if disp != DisplayPrimary || list == nil {
		return StatusFromErrno(unix.EINVAL)
	}
	for i := range list.Layers {
		if list.Layers[i].Composition != CompositionFramebufferTarget {
			list.Layers[i].Composition = CompositionFramebuffer
		}
	}
	return StatusOK
}

// Set presents list. A blanked display rejects frames with EBUSY.
func (v *VirtualComposer) Set(disp Display, list *LayerList) Status {
	if disp != DisplayPrimary || list == nil {
		return StatusFromErrno(unix.EINVAL)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.blanked {
		return StatusFromErrno(unix.EBUSY)
	}
	v.lastList = &LayerList{Layers: slices.Clone(list.Layers)}
	if fb, ok := list.FramebufferTarget(); ok {
		v.lastPost = fb.Buffer
	}
	v.frames++
	return StatusOK
}

// Post flips buf onto the virtual display. It lets VirtualComposer serve
// as the FBDevice of an HWC10Device.
func (v *VirtualComposer) Post(buf *buffer.Handle) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.blanked {
		return unix.EBUSY
	}
	v.lastPost = buf
	v.frames++
	return nil
}

// Invalidate fires the invalidate hook, as a driver would on a refresh
// request.
func (v *VirtualComposer) Invalidate() {
	if p := v.currentProcs(); p != nil {
		p.Invalidate(p)
	}
}

// Hotplug fires the hotplug hook.
func (v *VirtualComposer) Hotplug(disp Display, connected bool) {
	if p := v.currentProcs(); p != nil {
		p.Hotplug(p, disp, connected)
	}
}

func (v *VirtualComposer) currentProcs() *Procs {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.procs
}

// Frames returns the number of frames presented.
func (v *VirtualComposer) Frames() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// LastFrontbuffer returns the most recently presented framebuffer target.
func (v *VirtualComposer) LastFrontbuffer() *buffer.Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastPost
}

// LastLayerList returns a copy of the most recent list passed to Set.
func (v *VirtualComposer) LastLayerList() *LayerList {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lastList == nil {
		return nil
	}
	return &LayerList{Layers: slices.Clone(v.lastList.Layers)}
}

// Blanked reports whether the display is off.
func (v *VirtualComposer) Blanked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.blanked
}

// VsyncEnabled reports whether the vsync ticker is running.
func (v *VirtualComposer) VsyncEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vsyncOn
}

// Close stops the ticker if it is still running.
func (v *VirtualComposer) Close() error {
	_ = v.EventControl(DisplayPrimary, EventVsync, false)
	display.Logger().Debug("hwc: virtual composer closed", "frames", v.Frames())
	return nil
}

var (
	_ Composer = (*VirtualComposer)(nil)
	_ FBDevice = (*VirtualComposer)(nil)
)
