// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shell

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/surfaces"
)

// countingBuilder records DestroySurface calls on top of a real arena.
type countingBuilder struct {
	*surfaces.Arena
	destroys atomic.Int32
}

func (b *countingBuilder) DestroySurface(r surfaces.Ref) {
	b.destroys.Add(1)
	b.Arena.DestroySurface(r)
}

func newBuilder(t *testing.T) *countingBuilder {
	t.Helper()
	a := surfaces.NewArena(buffer.NewShmAllocator())
	t.Cleanup(func() { _ = a.Close() })
	return &countingBuilder{Arena: a}
}

type stubInput struct{ client, server int }

func (s stubInput) ClientFD() int { return s.client }
func (s stubInput) ServerFD() int { return s.server }

func params() surfaces.Parameters {
	return surfaces.DefaultParameters().WithName("proxy").WithSize(48, 32)
}

func newProxy(t *testing.T, b surfaces.Builder, input InputChannel) *Proxy {
	t.Helper()
	p, err := NewProxy(b, params(), input)
	if err != nil {
		t.Fatalf("NewProxy: %v", err)
	}
	return p
}

func TestProxyForwardsState(t *testing.T) {
	b := newBuilder(t)
	p := newProxy(t, b, nil)

	size, err := p.Size()
	if err != nil || size != (buffer.Size{Width: 48, Height: 32}) {
		t.Errorf("Size() = %v, %v", size, err)
	}
	format, err := p.PixelFormat()
	if err != nil || format != buffer.FormatABGR8888 {
		t.Errorf("PixelFormat() = %v, %v", format, err)
	}
	h, err := p.ClientBuffer()
	if err != nil || h == nil {
		t.Fatalf("ClientBuffer() = %v, %v", h, err)
	}
	pkg, err := p.ClientPackage()
	if err != nil {
		t.Fatalf("ClientPackage() = %v", err)
	}
	if pkg.BufferID() != h.ID() {
		t.Errorf("package id = %d, want %d", pkg.BufferID(), h.ID())
	}
	_ = pkg.Close()
}

func TestProxyStateAccessorsFailAfterDestroy(t *testing.T) {
	b := newBuilder(t)
	p := newProxy(t, b, nil)
	b.Arena.DestroySurface(p.Ref())

	if _, err := p.Size(); !errors.Is(err, ErrSurfaceGone) {
		t.Errorf("Size() err = %v, want ErrSurfaceGone", err)
	}
	if _, err := p.PixelFormat(); !errors.Is(err, ErrSurfaceGone) {
		t.Errorf("PixelFormat() err = %v, want ErrSurfaceGone", err)
	}
	if _, err := p.ClientBuffer(); !errors.Is(err, ErrSurfaceGone) {
		t.Errorf("ClientBuffer() err = %v, want ErrSurfaceGone", err)
	}
	if _, err := p.ClientPackage(); !errors.Is(err, ErrSurfaceGone) {
		t.Errorf("ClientPackage() err = %v, want ErrSurfaceGone", err)
	}
}

func TestProxyLifecycleIsSilentAfterDestroy(t *testing.T) {
	b := newBuilder(t)
	p := newProxy(t, b, nil)
	b.Arena.DestroySurface(p.Ref())

	p.Hide()
	p.Show()
	p.Shutdown()
	p.Destroy()
	p.AdvanceClientBuffer()
	if err := p.AdvanceClientBufferContext(context.Background()); err != nil {
		t.Errorf("AdvanceClientBufferContext() = %v, want nil", err)
	}
	if n := b.destroys.Load(); n != 0 {
		t.Errorf("builder saw %d destroys after the surface was gone", n)
	}
}

func TestProxyDestroyReachesBuilderOnce(t *testing.T) {
	b := newBuilder(t)
	p := newProxy(t, b, nil)

	p.Destroy()
	p.Destroy()
	if n := b.destroys.Load(); n != 1 {
		t.Errorf("DestroySurface called %d times, want 1", n)
	}
	if _, ok := b.Resolve(p.Ref()); ok {
		t.Error("surface still resolves after Destroy")
	}
}

func TestProxyHideShow(t *testing.T) {
	b := newBuilder(t)
	p := newProxy(t, b, nil)
	s, _ := b.Resolve(p.Ref())

	p.Hide()
	if s.Visible() {
		t.Error("surface visible after Hide")
	}
	p.Show()
	if !s.Visible() {
		t.Error("surface hidden after Show")
	}
}

func TestProxyInput(t *testing.T) {
	const fd = 17

	b := newBuilder(t)
	with := newProxy(t, b, stubInput{client: fd, server: 18})
	if !with.SupportsInput() {
		t.Error("SupportsInput() = false with an input channel")
	}
	got, err := with.ClientInputFD()
	if err != nil || got != fd {
		t.Errorf("ClientInputFD() = %d, %v, want %d", got, err, fd)
	}

	without := newProxy(t, b, nil)
	if without.SupportsInput() {
		t.Error("SupportsInput() = true without an input channel")
	}
	if _, err := without.ClientInputFD(); !errors.Is(err, ErrNoInputChannel) {
		t.Errorf("ClientInputFD() err = %v, want ErrNoInputChannel", err)
	}

	// Input support is fixed at construction and survives the surface.
	with.Destroy()
	if !with.SupportsInput() {
		t.Error("SupportsInput() changed after Destroy")
	}
	if got, _ := with.ClientInputFD(); got != fd {
		t.Errorf("ClientInputFD() after Destroy = %d, want %d", got, fd)
	}
}

func TestProxyAdvanceReleasedByDestroy(t *testing.T) {
	b := newBuilder(t)
	p := newProxy(t, b, nil)

	done := make(chan struct{})
	go func() {
		p.AdvanceClientBuffer()
		close(done)
	}()

	s, _ := b.Resolve(p.Ref())
	_ = s.Bundle().WaitForClientRequest()
	p.Destroy()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AdvanceClientBuffer still blocked after Destroy")
	}
}

func TestProxyAdvanceContext(t *testing.T) {
	b := newBuilder(t)
	p := newProxy(t, b, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.AdvanceClientBufferContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AdvanceClientBufferContext() = %v, want DeadlineExceeded", err)
	}
}

func TestNewProxyErrors(t *testing.T) {
	if _, err := NewProxy(nil, params(), nil); err == nil {
		t.Error("NewProxy(nil builder) succeeded")
	}
	b := newBuilder(t)
	if _, err := NewProxy(b, params().WithSize(0, 0), nil); !errors.Is(err, surfaces.ErrInvalidParameters) {
		t.Errorf("NewProxy(bad params) err = %v, want ErrInvalidParameters", err)
	}
}
