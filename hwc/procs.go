// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"sync"
	"sync/atomic"
)

// Procs is the hook table handed to Composer.RegisterProcs. Every hook is
// non-nil. A composer invokes a hook with the same *Procs it was given,
// from whatever goroutine drives the display hardware.
//
// The table carries an opaque cookie instead of a device pointer. The hooks
// are package-level trampolines that resolve the cookie back to the device
// that registered it, so a hook that fires after the device deregistered
// is dropped rather than delivered to freed state.
type Procs struct {
	Invalidate func(p *Procs)
	Vsync      func(p *Procs, display Display, timestamp int64)
	Hotplug    func(p *Procs, display Display, connected bool)

	cookie uint64
}

// procTarget receives the hooks after cookie resolution.
type procTarget interface {
	onInvalidate()
	onVsync(display Display, timestamp int64)
	onHotplug(display Display, connected bool)
}

var (
	nextCookie atomic.Uint64
	procTable  sync.Map // uint64 -> procTarget
)

// newProcs registers t and returns a hook table bound to it.
func newProcs(t procTarget) *Procs {
	cookie := nextCookie.Add(1)
	procTable.Store(cookie, t)
	return &Procs{
		Invalidate: invalidateHook,
		Vsync:      vsyncHook,
		Hotplug:    hotplugHook,
		cookie:     cookie,
	}
}

// releaseProcs unbinds p. Hooks fired through p afterwards are ignored.
func releaseProcs(p *Procs) {
	if p != nil {
		procTable.Delete(p.cookie)
	}
}

func resolve(p *Procs) procTarget {
	if p == nil {
		return nil
	}
	t, ok := procTable.Load(p.cookie)
	if !ok {
		return nil
	}
	return t.(procTarget)
}

func invalidateHook(p *Procs) {
	if t := resolve(p); t != nil {
		t.onInvalidate()
	}
}

func vsyncHook(p *Procs, display Display, timestamp int64) {
	if t := resolve(p); t != nil {
		t.onVsync(display, timestamp)
	}
}

func hotplugHook(p *Procs, display Display, connected bool) {
	if t := resolve(p); t != nil {
		t.onHotplug(display, connected)
	}
}
