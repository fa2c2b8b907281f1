// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// BackendOptions configures a composer backend.
type BackendOptions struct {
	// VsyncInterval is the refresh period of software backends.
	// Zero selects DefaultVsyncInterval.
	VsyncInterval time.Duration
}

// BackendFactory opens a composer.
type BackendFactory func(opts BackendOptions) (Composer, error)

// Backend is a composer implementation known to a Registry.
type Backend struct {
	Name string

	// Priority orders automatic selection, highest first. Driver-backed
	// composers use 100 and the virtual composer 10.
	Priority int

	Factory BackendFactory

	// Probe reports whether the hardware behind the backend is present.
	Probe func() bool
}

func (b Backend) available() bool { return b.Probe == nil || b.Probe() }

// byPriority orders backends by descending priority, then by name.
func byPriority(a, b Backend) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// Registry holds composer backends in selection order. Driver bindings
// add themselves from init:
//
//	func init() {
//	    hwc.Register("drm", 100, openDRM, drmPresent)
//	}
//
// The zero Registry is empty and ready to use.
type Registry struct {
	mu       sync.RWMutex
	backends []Backend
}

// Register adds a backend. A nil probe means always present. An existing
// backend of the same name is replaced.
func (r *Registry) Register(name string, priority int, factory BackendFactory, probe func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = slices.DeleteFunc(r.backends, func(b Backend) bool { return b.Name == name })
	b := Backend{Name: name, Priority: priority, Factory: factory, Probe: probe}
	i, _ := slices.BinarySearchFunc(r.backends, b, byPriority)
	r.backends = slices.Insert(r.backends, i, b)
}

// Unregister removes the named backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = slices.DeleteFunc(r.backends, func(b Backend) bool { return b.Name == name })
}

// Lookup returns the named backend.
func (r *Registry) Lookup(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.backends, func(b Backend) bool { return b.Name == name })
	if i < 0 {
		return Backend{}, false
	}
	return r.backends[i], true
}

// Names returns backend names in selection order. With present set only
// backends whose probe succeeds are listed.
func (r *Registry) Names(present bool) []string {
	var names []string
	for _, b := range r.snapshot() {
		if !present || b.available() {
			names = append(names, b.Name)
		}
	}
	return names
}

// Open opens the named backend.
func (r *Registry) Open(name string, opts BackendOptions) (Composer, error) {
	b, ok := r.Lookup(name)
	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !b.available() {
		return nil, &BackendUnavailableError{Name: name}
	}
	return b.Factory(opts)
}

// OpenBest opens the first present backend that succeeds, in selection
// order. If all fail the errors are joined.
func (r *Registry) OpenBest(opts BackendOptions) (Composer, error) {
	var (
		errs  []error
		tried int
	)
	for _, b := range r.snapshot() {
		if !b.available() {
			continue
		}
		tried++
		c, err := b.Factory(opts)
		if err == nil {
			return c, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
	}
	if tried == 0 {
		return nil, ErrNoBackendAvailable
	}
	return nil, errors.Join(errs...)
}

func (r *Registry) snapshot() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.backends)
}

var backends Registry

// Register adds a backend to the process registry.
func Register(name string, priority int, factory BackendFactory, probe func() bool) {
	backends.Register(name, priority, factory, probe)
}

// Backends lists every registered backend in selection order.
func Backends() []string { return backends.Names(false) }

// AvailableBackends lists the backends present on this system.
func AvailableBackends() []string { return backends.Names(true) }

// Open opens a backend from the process registry. The empty name and
// "auto" select the best present backend.
func Open(name string, opts BackendOptions) (Composer, error) {
	if name == "" || name == "auto" {
		return backends.OpenBest(opts)
	}
	return backends.Open(name, opts)
}

// ErrNoBackendAvailable is returned by OpenBest when no backend is present.
var ErrNoBackendAvailable = errors.New("hwc: no backend available")

// BackendNotFoundError reports an unregistered backend name.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return fmt.Sprintf("hwc: backend %q not registered", e.Name)
}

// BackendUnavailableError reports a registered backend whose hardware is
// missing.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("hwc: backend %q not present", e.Name)
}

func init() {
	Register("virtual", 10, func(opts BackendOptions) (Composer, error) {
		return NewVirtualComposer(opts.VsyncInterval), nil
	}, nil)
}
