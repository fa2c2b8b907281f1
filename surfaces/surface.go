// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surfaces

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/bundle"
)

// ErrSurfaceDestroyed is returned by state accessors of a destroyed surface.
var ErrSurfaceDestroyed = errors.New("surfaces: surface no longer exists")

// Surface is a server-owned renderable surface: a named buffer bundle
// with visibility and an optional input channel.
//
// Surfaces are created and destroyed only by their Arena. Every method
// checks liveness and acts under the surface lock, so a concurrent
// destroy is observed either entirely before or entirely after a call.
type Surface struct {
	name   string
	size   buffer.Size
	format buffer.PixelFormat
	bundle *bundle.Bundle
	input  InputChannel

	mu        sync.RWMutex
	visible   bool
	destroyed bool
}

func newSurface(p Parameters, b *bundle.Bundle) *Surface {
	return &Surface{
		name:    p.Name,
		size:    p.Size,
		format:  p.Format,
		bundle:  b,
		input:   p.Input,
		visible: true,
	}
}

// Name returns the surface name. It is valid after destruction.
func (s *Surface) Name() string { return s.name }

// Input returns the input channel, or nil.
func (s *Surface) Input() InputChannel { return s.input }

// Size returns the surface size.
func (s *Surface) Size() (buffer.Size, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return buffer.Size{}, ErrSurfaceDestroyed
	}
	return s.size, nil
}

// PixelFormat returns the surface pixel format.
func (s *Surface) PixelFormat() (buffer.PixelFormat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return buffer.FormatInvalid, ErrSurfaceDestroyed
	}
	return s.format, nil
}

// ClientBuffer returns the buffer the client may currently render into.
func (s *Surface) ClientBuffer() (*buffer.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil, ErrSurfaceDestroyed
	}
	return s.bundle.ClientBuffer()
}

// ClientPackage exports the client buffer for another process.
func (s *Surface) ClientPackage() (*buffer.TransportPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil, ErrSurfaceDestroyed
	}
	return s.bundle.ClientPackage()
}

// AdvanceClientBuffer hands the finished client buffer to the compositor
// and waits for the next one. It does not hold the surface lock while
// blocked; destroying the surface releases the wait with
// ErrSurfaceDestroyed.
func (s *Surface) AdvanceClientBuffer(ctx context.Context) error {
	s.mu.RLock()
	destroyed := s.destroyed
	s.mu.RUnlock()
	if destroyed {
		return ErrSurfaceDestroyed
	}

	err := s.bundle.AdvanceClientBufferContext(ctx)
	if errors.Is(err, bundle.ErrClosed) && s.Destroyed() {
		return ErrSurfaceDestroyed
	}
	return err
}

// Shutdown completes any blocked client advance and refuses new ones.
// The surface stays alive until the arena destroys it.
func (s *Surface) Shutdown() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.bundle.Shutdown()
	return nil
}

// CompositorBuffer returns the buffer to present, or nil if the surface
// is destroyed.
func (s *Surface) CompositorBuffer() *buffer.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil
	}
	return s.bundle.CompositorAcquire()
}

// Bundle returns the surface swapchain.
func (s *Surface) Bundle() *bundle.Bundle { return s.bundle }

// Hide excludes the surface from composition.
func (s *Surface) Hide() error { return s.setVisible(false) }

// Show includes the surface in composition.
func (s *Surface) Show() error { return s.setVisible(true) }

func (s *Surface) setVisible(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.visible = v
	return nil
}

// Visible reports whether the surface takes part in composition.
// A destroyed surface is never visible.
func (s *Surface) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible && !s.destroyed
}

// Destroyed reports whether the arena destroyed the surface.
func (s *Surface) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// destroy marks the surface dead and releases its buffers. Blocked client
// advances return ErrSurfaceDestroyed.
func (s *Surface) destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.visible = false
	s.mu.Unlock()

	return s.bundle.Close()
}
