// Package display is the core of a display server: it owns hardware display
// buffers, hands them between client processes and the compositor, and
// drives the hardware composer that presents frames on vsync.
//
// # Overview
//
// The core is split into leaf-first packages:
//
//   - buffer: pixel formats, buffer handles, allocators and the transport
//     package used to hand a buffer to another process
//   - bundle: the per-surface swapchain and its two-phase client/compositor
//     handoff protocol
//   - hwc: the hardware composer device, its vsync state machine, the layer
//     organizer and the software (virtual) composer
//   - surfaces: server-owned surfaces and the builder arena that owns them
//   - shell: surface proxies, sessions and the shell boundary
//   - ipc: the descriptor side channel for transport packages
//   - client: the client end of buffer handoff and its buffer cache
//   - compositor: the vsync-driven composition loop
//   - config: layered configuration (flags, environment, file, defaults)
//   - server: wiring of all of the above into a runnable display server
//
// # Data Flow
//
//	client ──create surface──▶ shell ──▶ surfaces.Arena (Surface + Bundle)
//	   │                                      │
//	   │◀──── TransportPackage (ipc) ─────────┤ ClientPackage
//	   │                                      │
//	   └──── AdvanceClientBuffer ──▶ Bundle ◀─┤ CompositorAcquire / PermitSwap
//	                                          │
//	                   hwc.Device ◀── compositor (WaitForVsync, SetNextFrontbuffer)
//
// # Logging
//
// display is silent by default. Use [SetLogger] to route diagnostics from all
// sub-packages to a [log/slog] logger.
//
// # Platform
//
// Buffers are backed by memfd shared memory and descriptors are passed with
// SCM_RIGHTS, so the buffer, ipc and shell packages require Linux.
package display

// Version is the release of the display core.
const Version = "0.1.0-alpha.1"
