// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compositor runs the vsync-driven presentation loop.
//
// Each frame the compositor waits for vsync, posts the presentation buffer
// of every visible surface as a layer, flips the display to the next
// framebuffer and then permits every surface to swap. Clients blocked in
// AdvanceClientBuffer are released once per frame.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/hwc"
	"github.com/gogpu/display/surfaces"
)

var (
	// ErrRunning is returned by Run or Start while the loop is running.
	ErrRunning = errors.New("compositor: already running")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("compositor: closed")
)

// Source supplies the surfaces to composite, bottom to top.
type Source interface {
	Surfaces() []*surfaces.Surface
}

// Option configures a Compositor.
type Option func(*options)

type options struct {
	usage     buffer.Usage
	frameHook func(frame uint64)
}

func defaultOptions() options {
	return options{usage: buffer.UsageSoftware}
}

// WithFramebufferUsage sets the usage of the display framebuffers.
func WithFramebufferUsage(u buffer.Usage) Option {
	return func(o *options) {
		o.usage = u
	}
}

// WithFrameHook calls fn after every presented frame, on the compositor
// goroutine.
func WithFrameHook(fn func(frame uint64)) Option {
	return func(o *options) {
		o.frameHook = fn
	}
}

// Compositor drives one display device.
type Compositor struct {
	device    hwc.Device
	organizer *hwc.LayerOrganizer
	source    Source
	alloc     buffer.Allocator
	opts      options

	framebuffers []*buffer.Handle
	next         int
	frames       atomic.Uint64

	mu      sync.Mutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New creates a compositor and allocates the display framebuffers: as
// many as the device rotates through, in the device's display format.
func New(device hwc.Device, organizer *hwc.LayerOrganizer, source Source,
	alloc buffer.Allocator, size buffer.Size, opts ...Option) (*Compositor, error) {
	if device == nil || organizer == nil || source == nil || alloc == nil {
		return nil, errors.New("compositor: device, organizer, source and allocator are required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Compositor{device: device, organizer: organizer, source: source, alloc: alloc, opts: o}
	n := device.FramebuffersAvailable()
	for range n {
		fb, err := alloc.Allocate(size, device.DisplayFormat(), o.usage)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("compositor: framebuffer: %w", err), c.releaseFramebuffers())
		}
		c.framebuffers = append(c.framebuffers, fb)
	}
	if len(c.framebuffers) == 0 {
		return nil, fmt.Errorf("compositor: device offers %d framebuffers", n)
	}
	return c, nil
}

// Frames returns the number of frames presented.
func (c *Compositor) Frames() uint64 { return c.frames.Load() }

// Framebuffers returns the display framebuffers in flip order.
func (c *Compositor) Framebuffers() []*buffer.Handle {
	return append([]*buffer.Handle(nil), c.framebuffers...)
}

// Frame composes and presents one frame. It blocks until the next vsync.
// Frame must only be called from one goroutine at a time.
func (c *Compositor) Frame(ctx context.Context) error {
	if err := c.device.WaitForVsyncContext(ctx); err != nil {
		return err
	}

	surfs := c.source.Surfaces()
	posted := make([]*surfaces.Surface, 0, len(surfs))
	for _, s := range surfs {
		if s == nil || !s.Visible() {
			continue
		}
		buf := s.CompositorBuffer()
		if buf == nil {
			continue
		}
		c.organizer.Post(buf)
		posted = append(posted, s)
	}

	fb := c.framebuffers[c.next]
	c.next = (c.next + 1) % len(c.framebuffers)
	err := c.device.SetNextFrontbuffer(fb)
	c.organizer.Reset()

	// Every surface, posted or hidden, may move on to its next buffer
	// even when the present failed.
	for _, s := range surfs {
		if s != nil && !s.Destroyed() {
			s.Bundle().PermitSwap()
		}
	}
	if err != nil {
		return err
	}

	frame := c.frames.Add(1)
	display.Logger().Debug("compositor: frame", "frame", frame, "layers", len(posted), "fb", fb.ID())
	if c.opts.frameHook != nil {
		c.opts.frameHook(frame)
	}
	return nil
}

// Run presents frames until ctx is done or Stop is called. It returns nil
// on cancellation and the device error otherwise. A failed present is
// logged and the loop continues.
func (c *Compositor) Run(ctx context.Context) error {
	ctx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	return c.run(ctx)
}

// begin marks the loop running and derives its context.
func (c *Compositor) begin(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.running {
		return nil, ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.runErr = nil
	return ctx, nil
}

func (c *Compositor) run(ctx context.Context) error {
	display.Logger().Info("compositor: started", "framebuffers", len(c.framebuffers),
		"format", c.device.DisplayFormat().String(), "generation", c.device.Generation().String())

	err := c.loop(ctx)

	c.mu.Lock()
	c.cancel()
	c.running = false
	c.cancel = nil
	c.runErr = err
	close(c.done)
	c.mu.Unlock()

	display.Logger().Info("compositor: stopped", "frames", c.Frames(), "err", err)
	return err
}

func (c *Compositor) loop(ctx context.Context) error {
	for {
		err := c.Frame(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, hwc.ErrClosed):
			return err
		default:
			var perr *hwc.PresentError
			if !errors.As(err, &perr) {
				return err
			}
			display.Logger().Warn("compositor: present failed", "err", err)
		}
	}
}

// Start runs the loop on a new goroutine.
func (c *Compositor) Start(ctx context.Context) error {
	ctx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	go func() { _ = c.run(ctx) }()
	return nil
}

// Stop ends a running loop and waits for it to return. It reports the
// loop's error.
func (c *Compositor) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Close stops the loop and releases the framebuffers. The loop's own error
// is reported by Run or Stop, not by Close. The device and the surfaces are
// not closed.
func (c *Compositor) Close() error {
	_ = c.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.releaseFramebuffers()
}

func (c *Compositor) releaseFramebuffers() error {
	var errs []error
	for _, fb := range c.framebuffers {
		if err := c.alloc.Release(fb); err != nil {
			errs = append(errs, err)
		}
	}
	c.framebuffers = nil
	return errors.Join(errs...)
}
