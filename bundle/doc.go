// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bundle implements the per-surface swapchain shared by a client
// renderer and the compositor.
//
// The handoff is a two-phase handshake with one independent signal per
// phase:
//
//	client                          compositor
//	------                          ----------
//	h, _ := b.ClientBuffer()
//	render(h)
//	b.AdvanceClientBuffer() ──────► b.WaitForClientRequest() returns
//	   (blocked)                    front := b.CompositorAcquire()
//	   (returns) ◄───────────────── b.PermitSwap()
//	h, _ = b.ClientBuffer()         // a different buffer
//
// The client never writes the buffer the compositor presents, and never
// gets more than one buffer ahead of the compositor.
package bundle
