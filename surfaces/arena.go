// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surfaces

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/bundle"
)

// Ref is a non-owning reference to a surface in an Arena. A Ref outlives
// the surface it names: once the surface is destroyed the Ref stops
// resolving, even if its slot is reused. The zero Ref never resolves.
type Ref struct {
	slot uint32
	gen  uint32
}

// Valid reports whether r was issued by an arena. It says nothing about
// whether the surface is still alive.
func (r Ref) Valid() bool { return r.gen != 0 }

func (r Ref) String() string {
	return fmt.Sprintf("surface#%d.%d", r.slot, r.gen)
}

// Builder creates and destroys surfaces on behalf of the shell.
type Builder interface {
	CreateSurface(p Parameters) (Ref, error)
	DestroySurface(r Ref)
	Resolve(r Ref) (*Surface, bool)
}

type slot struct {
	gen     uint32
	surface *Surface
}

// Arena owns every surface of a display. It hands out generation-checked
// Refs and keeps surfaces in stacking order for the compositor.
//
// Arena is safe for concurrent use.
type Arena struct {
	alloc buffer.Allocator

	mu    sync.RWMutex
	slots []slot
	free  []uint32
	order []Ref // bottom to top
}

// NewArena creates an arena that allocates surface buffers from alloc.
func NewArena(alloc buffer.Allocator) *Arena {
	return &Arena{alloc: alloc}
}

// CreateSurface allocates a surface and places it on top of the stack.
func (a *Arena) CreateSurface(p Parameters) (Ref, error) {
	if err := p.Validate(); err != nil {
		return Ref{}, err
	}

	b, err := bundle.New(a.alloc, p.Size, p.Format, p.Usage, p.bufferCount())
	if err != nil {
		return Ref{}, fmt.Errorf("surfaces: create %q: %w", p.Name, err)
	}
	s := newSurface(p, b)

	a.mu.Lock()
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots)) //nolint:gosec // G115: slot count bounded by memory
		a.slots = append(a.slots, slot{})
	}
	sl := &a.slots[idx]
	sl.gen++
	if sl.gen == 0 {
		sl.gen = 1
	}
	sl.surface = s
	ref := Ref{slot: idx, gen: sl.gen}
	a.order = append(a.order, ref)
	a.mu.Unlock()

	display.Logger().Debug("surfaces: created", "ref", ref.String(), "name", p.Name,
		"size", p.Size.String(), "format", p.Format.String())
	return ref, nil
}

// DestroySurface destroys the surface r names. A stale or zero Ref is a
// no-op.
func (a *Arena) DestroySurface(r Ref) {
	a.mu.Lock()
	s := a.take(r)
	a.mu.Unlock()
	if s == nil {
		return
	}

	if err := s.destroy(); err != nil {
		display.Logger().Warn("surfaces: release failed", "ref", r.String(), "err", err)
	}
	display.Logger().Debug("surfaces: destroyed", "ref", r.String(), "name", s.name)
}

// take unlinks r and returns its surface. Called with a.mu held.
func (a *Arena) take(r Ref) *Surface {
	if !r.Valid() || int(r.slot) >= len(a.slots) {
		return nil
	}
	sl := &a.slots[r.slot]
	if sl.gen != r.gen || sl.surface == nil {
		return nil
	}
	s := sl.surface
	sl.surface = nil
	a.free = append(a.free, r.slot)
	a.order = slices.DeleteFunc(a.order, func(o Ref) bool { return o == r })
	return s
}

// Resolve returns the live surface r names.
func (a *Arena) Resolve(r Ref) (*Surface, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !r.Valid() || int(r.slot) >= len(a.slots) {
		return nil, false
	}
	sl := a.slots[r.slot]
	if sl.gen != r.gen || sl.surface == nil {
		return nil, false
	}
	return sl.surface, true
}

// Surfaces returns the live surfaces bottom to top.
func (a *Arena) Surfaces() []*Surface {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Surface, 0, len(a.order))
	for _, r := range a.order {
		out = append(out, a.slots[r.slot].surface)
	}
	return out
}

// Raise moves r to the top of the stack.
func (a *Arena) Raise(r Ref) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := slices.Index(a.order, r)
	if i < 0 {
		return ErrSurfaceDestroyed
	}
	a.order = append(slices.Delete(a.order, i, i+1), r)
	return nil
}

// Len returns the number of live surfaces.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.order)
}

// Close destroys every remaining surface.
func (a *Arena) Close() error {
	a.mu.Lock()
	live := make([]*Surface, 0, len(a.order))
	for _, r := range slices.Clone(a.order) {
		live = append(live, a.take(r))
	}
	a.mu.Unlock()

	var errs []error
	for _, s := range live {
		if err := s.destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Builder = (*Arena)(nil)
