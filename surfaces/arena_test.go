// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surfaces

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/display/buffer"
)

func newArena(t *testing.T) *Arena {
	t.Helper()
	a := NewArena(buffer.NewShmAllocator())
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func small() Parameters {
	return DefaultParameters().WithSize(32, 16)
}

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Parameters
		ok   bool
	}{
		{"default", DefaultParameters(), true},
		{"three buffers", Parameters{Size: buffer.Size{Width: 1, Height: 1}, Format: buffer.FormatRGBA8888, Buffers: 3}, true},
		{"zero size", DefaultParameters().WithSize(0, 10), false},
		{"no format", DefaultParameters().WithFormat(buffer.FormatInvalid), false},
		{"bad usage", DefaultParameters().WithUsage(buffer.Usage(9)), false},
		{"one buffer", Parameters{Size: buffer.Size{Width: 1, Height: 1}, Format: buffer.FormatRGBA8888, Buffers: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidParameters) {
				t.Errorf("Validate() = %v, want ErrInvalidParameters", err)
			}
		})
	}
}

func TestParametersBuildersCopy(t *testing.T) {
	base := DefaultParameters()
	named := base.WithName("clock")
	if base.Name == named.Name {
		t.Error("WithName must not modify the receiver")
	}
}

func TestArenaCreateResolve(t *testing.T) {
	a := newArena(t)
	ref, err := a.CreateSurface(small().WithName("one"))
	if err != nil {
		t.Fatal(err)
	}

	s, ok := a.Resolve(ref)
	if !ok {
		t.Fatal("fresh ref should resolve")
	}
	if s.Name() != "one" {
		t.Errorf("Name() = %q", s.Name())
	}
	size, err := s.Size()
	if err != nil || size != (buffer.Size{Width: 32, Height: 16}) {
		t.Errorf("Size() = %v, %v", size, err)
	}
	if s.Bundle().Count() != DefaultBuffers {
		t.Errorf("bundle count = %d, want %d", s.Bundle().Count(), DefaultBuffers)
	}
	if !s.Visible() {
		t.Error("new surfaces are visible")
	}
}

func TestArenaRejectsInvalidParameters(t *testing.T) {
	a := newArena(t)
	if _, err := a.CreateSurface(DefaultParameters().WithSize(-1, 1)); !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("CreateSurface() = %v, want ErrInvalidParameters", err)
	}
	if a.Len() != 0 {
		t.Error("failed creation must not add a surface")
	}
}

func TestArenaStaleRefAfterSlotReuse(t *testing.T) {
	a := newArena(t)
	old, err := a.CreateSurface(small())
	if err != nil {
		t.Fatal(err)
	}
	oldSurface, _ := a.Resolve(old)
	a.DestroySurface(old)

	fresh, err := a.CreateSurface(small())
	if err != nil {
		t.Fatal(err)
	}
	if fresh.slot != old.slot {
		t.Fatalf("slot not reused: %v vs %v", fresh, old)
	}
	if _, ok := a.Resolve(old); ok {
		t.Error("stale ref must not resolve to the new surface")
	}
	if _, ok := a.Resolve(fresh); !ok {
		t.Error("fresh ref should resolve")
	}

	// Destroying through the stale ref leaves the new surface alone.
	a.DestroySurface(old)
	if _, ok := a.Resolve(fresh); !ok {
		t.Error("stale DestroySurface destroyed the wrong surface")
	}
	if !oldSurface.Destroyed() {
		t.Error("old surface should report destroyed")
	}
}

func TestArenaZeroRef(t *testing.T) {
	a := newArena(t)
	if _, ok := a.Resolve(Ref{}); ok {
		t.Error("zero Ref should never resolve")
	}
	a.DestroySurface(Ref{})
}

func TestSurfaceAfterDestroy(t *testing.T) {
	a := newArena(t)
	ref, err := a.CreateSurface(small())
	if err != nil {
		t.Fatal(err)
	}
	s, _ := a.Resolve(ref)
	a.DestroySurface(ref)

	if _, err := s.Size(); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("Size() = %v", err)
	}
	if _, err := s.PixelFormat(); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("PixelFormat() = %v", err)
	}
	if _, err := s.ClientBuffer(); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("ClientBuffer() = %v", err)
	}
	if _, err := s.ClientPackage(); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("ClientPackage() = %v", err)
	}
	if err := s.Hide(); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("Hide() = %v", err)
	}
	if s.CompositorBuffer() != nil || s.Visible() {
		t.Error("destroyed surface must not be presented")
	}
	if s.Name() == "" {
		t.Error("Name() stays available after destroy")
	}
}

func TestDestroyReleasesBlockedAdvance(t *testing.T) {
	a := newArena(t)
	ref, err := a.CreateSurface(small())
	if err != nil {
		t.Fatal(err)
	}
	s, _ := a.Resolve(ref)

	done := make(chan error, 1)
	go func() { done <- s.AdvanceClientBuffer(context.Background()) }()
	if err := s.Bundle().WaitForClientRequest(); err != nil {
		t.Fatal(err)
	}

	a.DestroySurface(ref)
	select {
	case err := <-done:
		if !errors.Is(err, ErrSurfaceDestroyed) {
			t.Errorf("AdvanceClientBuffer() = %v, want ErrSurfaceDestroyed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("destroy did not release the blocked advance")
	}
}

func TestArenaStackingOrder(t *testing.T) {
	a := newArena(t)
	var refs []Ref
	for _, name := range []string{"bottom", "middle", "top"} {
		r, err := a.CreateSurface(small().WithName(name))
		if err != nil {
			t.Fatal(err)
		}
		refs = append(refs, r)
	}

	names := func() []string {
		var out []string
		for _, s := range a.Surfaces() {
			out = append(out, s.Name())
		}
		return out
	}

	if got := names(); len(got) != 3 || got[0] != "bottom" || got[2] != "top" {
		t.Errorf("Surfaces() = %v", got)
	}
	if err := a.Raise(refs[0]); err != nil {
		t.Fatal(err)
	}
	if got := names(); got[2] != "bottom" {
		t.Errorf("after Raise: %v", got)
	}

	a.DestroySurface(refs[1])
	if got := names(); len(got) != 2 {
		t.Errorf("after destroy: %v", got)
	}
	if err := a.Raise(refs[1]); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("Raise(destroyed) = %v", err)
	}
}

func TestArenaClose(t *testing.T) {
	a := NewArena(buffer.NewShmAllocator())
	ref, err := a.CreateSurface(small())
	if err != nil {
		t.Fatal(err)
	}
	s, _ := a.Resolve(ref)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if !s.Destroyed() || a.Len() != 0 {
		t.Error("Close should destroy every surface")
	}
}
