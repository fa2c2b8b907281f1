// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shell is the session boundary of the display server.
//
// A SessionManager opens one Session per connected application and
// creates surfaces for it through a surfaces.Builder. Sessions never hold
// surfaces directly: each surface is reached through a Proxy, which
// re-resolves its reference on every call.
//
// A Proxy splits its methods in two. Methods that report state fail with
// ErrSurfaceGone once the surface is destroyed:
//
//	size, err := proxy.Size()
//	if errors.Is(err, shell.ErrSurfaceGone) {
//		// the surface was destroyed underneath the session
//	}
//
// Methods that change lifecycle (Hide, Show, Destroy, Shutdown and
// AdvanceClientBuffer) quietly do nothing instead, so a client tearing
// down never trips over a surface the server already removed.
package shell
