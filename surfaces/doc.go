// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surfaces owns the server-side surfaces of a display.
//
// An Arena is the surface builder: it creates each surface together with
// its buffer bundle and destroys both. Everyone else holds a Ref, an opaque
// slot index plus generation. Resolving a Ref after its surface was
// destroyed fails, even when the slot has since been reused:
//
//	ref, err := arena.CreateSurface(surfaces.DefaultParameters().WithName("clock"))
//	...
//	arena.DestroySurface(ref)
//	_, ok := arena.Resolve(ref) // ok == false
//
// The compositor reads Arena.Surfaces for the current stacking order.
package surfaces
