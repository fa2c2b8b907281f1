// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shell

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/surfaces"
)

var (
	// ErrSurfaceGone is returned by state accessors once the underlying
	// surface has been destroyed.
	ErrSurfaceGone = surfaces.ErrSurfaceDestroyed

	// ErrNoInputChannel is returned by ClientInputFD on a proxy built
	// without an input channel. It means the surface never supported
	// input, not that it died.
	ErrNoInputChannel = errors.New("shell: surface has no input channel")
)

// Proxy is the session's handle to a builder-owned surface. It never owns
// the surface: every call resolves its reference afresh.
//
// State accessors (Size, PixelFormat, ClientBuffer, ClientPackage) fail
// with ErrSurfaceGone once the surface is destroyed. Lifecycle operations
// (Hide, Show, Destroy, Shutdown, AdvanceClientBuffer) never fail and
// become no-ops. SupportsInput and ClientInputFD depend only on the input
// channel given at construction.
type Proxy struct {
	builder surfaces.Builder
	ref     surfaces.Ref
	input   InputChannel

	destroyRequested atomic.Bool
}

// NewProxy asks builder for a surface described by p and returns a proxy
// for it. input may be nil.
func NewProxy(builder surfaces.Builder, p surfaces.Parameters, input InputChannel) (*Proxy, error) {
	if builder == nil {
		return nil, errors.New("shell: builder cannot be nil")
	}
	p.Input = input
	ref, err := builder.CreateSurface(p)
	if err != nil {
		return nil, err
	}
	return &Proxy{builder: builder, ref: ref, input: input}, nil
}

// Ref returns the surface reference the proxy resolves.
func (p *Proxy) Ref() surfaces.Ref { return p.ref }

func (p *Proxy) resolve() (*surfaces.Surface, bool) {
	return p.builder.Resolve(p.ref)
}

// Size returns the surface size.
func (p *Proxy) Size() (buffer.Size, error) {
	s, ok := p.resolve()
	if !ok {
		return buffer.Size{}, ErrSurfaceGone
	}
	return s.Size()
}

// PixelFormat returns the surface pixel format.
func (p *Proxy) PixelFormat() (buffer.PixelFormat, error) {
	s, ok := p.resolve()
	if !ok {
		return buffer.FormatInvalid, ErrSurfaceGone
	}
	return s.PixelFormat()
}

// ClientBuffer returns the buffer the client renders into next.
func (p *Proxy) ClientBuffer() (*buffer.Handle, error) {
	s, ok := p.resolve()
	if !ok {
		return nil, ErrSurfaceGone
	}
	return s.ClientBuffer()
}

// ClientPackage exports the client buffer for the client process.
func (p *Proxy) ClientPackage() (*buffer.TransportPackage, error) {
	s, ok := p.resolve()
	if !ok {
		return nil, ErrSurfaceGone
	}
	return s.ClientPackage()
}

// Hide removes the surface from composition.
func (p *Proxy) Hide() {
	if s, ok := p.resolve(); ok {
		_ = s.Hide()
	}
}

// Show returns the surface to composition.
func (p *Proxy) Show() {
	if s, ok := p.resolve(); ok {
		_ = s.Show()
	}
}

// Destroy asks the builder to destroy the surface. Only the first call on
// a live surface reaches the builder.
func (p *Proxy) Destroy() {
	if _, ok := p.resolve(); !ok {
		return
	}
	if p.destroyRequested.CompareAndSwap(false, true) {
		p.builder.DestroySurface(p.ref)
	}
}

// Shutdown releases a client blocked in AdvanceClientBuffer and stops
// further advances.
func (p *Proxy) Shutdown() {
	if s, ok := p.resolve(); ok {
		_ = s.Shutdown()
	}
}

// AdvanceClientBuffer finishes the current client buffer and waits for the
// compositor to hand out the next one. It returns early, silently, if the
// surface is destroyed or shut down.
func (p *Proxy) AdvanceClientBuffer() {
	_ = p.AdvanceClientBufferContext(context.Background())
}

// AdvanceClientBufferContext is AdvanceClientBuffer with cancellation. The
// only error it returns is ctx.Err().
func (p *Proxy) AdvanceClientBufferContext(ctx context.Context) error {
	s, ok := p.resolve()
	if !ok {
		return nil
	}
	err := s.AdvanceClientBuffer(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		display.Logger().Debug("shell: advance on a dead surface", "ref", p.ref.String(), "err", err)
	}
	return nil
}

// SupportsInput reports whether the proxy was built with an input channel.
func (p *Proxy) SupportsInput() bool {
	return p.input != nil
}

// ClientInputFD returns the client end of the input channel.
func (p *Proxy) ClientInputFD() (int, error) {
	if p.input == nil {
		return -1, ErrNoInputChannel
	}
	return p.input.ClientFD(), nil
}
