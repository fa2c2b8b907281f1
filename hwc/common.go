// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
)

// commonDevice is the vsync state machine shared by every generation.
//
//	new → procs registered → vsync enabled → unblanked
//	                                 ↑↓ notify / wait (pending flag)
//	close → vsync disabled → procs deregistered → blanked
//
// Generations embed *commonDevice and add only their presentation path.
type commonDevice struct {
	composer Composer
	opts     options
	procs    *Procs

	mu      sync.Mutex
	cond    *sync.Cond
	pending bool
	closed  bool

	closeOnce sync.Once
	closeErr  error

	vsyncs    atomic.Uint64
	lastVsync atomic.Int64
}

// newCommonDevice runs the bring-up sequence. Hook registration is always
// the first call on the composer. On any failure the sequence is unwound
// and an *InitError is returned; no device escapes.
func newCommonDevice(c Composer, opts []Option) (*commonDevice, error) {
	if c == nil {
		return nil, ErrNilComposer
	}

	d := &commonDevice{composer: c, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&d.opts)
	}
	d.cond = sync.NewCond(&d.mu)

	d.procs = newProcs(d)
	c.RegisterProcs(d.procs)

	if st := c.EventControl(DisplayPrimary, EventVsync, true); st.Failed() {
		d.deregister()
		return nil, &InitError{Step: "event-control", Status: st}
	}

	if st := c.Blank(DisplayPrimary, false); st.Failed() {
		_ = c.EventControl(DisplayPrimary, EventVsync, false)
		d.deregister()
		return nil, &InitError{Step: "unblank", Status: st}
	}

	display.Logger().Info("hwc: device initialized")
	return d, nil
}

func (d *commonDevice) deregister() {
	d.composer.RegisterProcs(nil)
	releaseProcs(d.procs)
}

// WaitForVsync blocks until a vsync is pending, then consumes it.
func (d *commonDevice) WaitForVsync() error {
	return d.WaitForVsyncContext(context.Background())
}

// WaitForVsyncContext is WaitForVsync with cancellation.
func (d *commonDevice) WaitForVsyncContext(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
	})
	defer stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	for !d.pending && !d.closed && ctx.Err() == nil {
		d.cond.Wait()
	}
	switch {
	case d.pending:
		d.pending = false
		return nil
	case d.closed:
		return ErrClosed
	default:
		return ctx.Err()
	}
}

// NotifyVsync latches a vsync and wakes the waiter, if any.
func (d *commonDevice) NotifyVsync() {
	d.mu.Lock()
	d.pending = true
	d.cond.Signal()
	d.mu.Unlock()
}

// VsyncCount returns the number of vsync hooks delivered to the device.
func (d *commonDevice) VsyncCount() uint64 { return d.vsyncs.Load() }

// LastVsync returns the timestamp of the most recent vsync hook.
func (d *commonDevice) LastVsync() int64 { return d.lastVsync.Load() }

// DisplayFormat returns the framebuffer pixel format.
func (d *commonDevice) DisplayFormat() buffer.PixelFormat { return DefaultDisplayFormat }

// FramebuffersAvailable returns the number of display framebuffers.
func (d *commonDevice) FramebuffersAvailable() int { return DefaultFramebuffers }

// Close tears the device down in the reverse order of bring-up. Vsync is
// disabled and the hooks are removed before any other state changes.
func (d *commonDevice) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if st := d.composer.EventControl(DisplayPrimary, EventVsync, false); st.Failed() {
			errs = append(errs, &PresentError{Op: "disable vsync", Status: st})
		}
		d.deregister()

		d.mu.Lock()
		d.closed = true
		d.cond.Broadcast()
		d.mu.Unlock()

		if st := d.composer.Blank(DisplayPrimary, true); st.Failed() {
			errs = append(errs, &PresentError{Op: "blank", Status: st})
		}
		d.closeErr = errors.Join(errs...)
		display.Logger().Info("hwc: device closed")
	})
	return d.closeErr
}

func (d *commonDevice) onVsync(disp Display, timestamp int64) {
	if disp != DisplayPrimary {
		return
	}
	d.vsyncs.Add(1)
	d.lastVsync.Store(timestamp)
	d.NotifyVsync()
}

func (d *commonDevice) onInvalidate() {
	display.Logger().Debug("hwc: invalidate")
	if d.opts.onInvalidate != nil {
		d.opts.onInvalidate()
	}
}

func (d *commonDevice) onHotplug(disp Display, connected bool) {
	display.Logger().Info("hwc: hotplug", "display", int32(disp), "connected", connected)
	if d.opts.onHotplug != nil {
		d.opts.onHotplug(disp, connected)
	}
}

func (d *commonDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
