// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bundle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
)

// Buffer counts accepted by New.
const (
	MinBuffers = 2
	MaxBuffers = 3
)

var (
	// ErrBufferCount is returned by New for a count outside [MinBuffers, MaxBuffers].
	ErrBufferCount = errors.New("bundle: buffer count out of range")

	// ErrClosed is returned by operations on a closed bundle, including
	// callers that were blocked when Close ran.
	ErrClosed = errors.New("bundle: closed")
)

// Bundle is the rotating set of buffers behind one surface.
//
// At any time exactly one buffer is writable by the client and exactly one
// other buffer is the compositor's presentation target. A client advance is
// a two-phase handshake: the client publishes a request (observable through
// WaitForClientRequest), then blocks until the compositor calls PermitSwap.
// A permission granted while a request is pending performs that request's
// swap at once. A permission granted with no request pending is held only
// until the compositor next acquires its target, so a buffer handed to the
// compositor is never made writable by a permission older than the
// acquisition.
//
// Bundle is safe for concurrent use by one client goroutine and one
// compositor goroutine.
type Bundle struct {
	alloc  buffer.Allocator
	size   buffer.Size
	format buffer.PixelFormat
	usage  buffer.Usage

	mu        sync.Mutex
	requested *sync.Cond // signalled when the client asks for the next buffer
	permitted *sync.Cond // signalled when the compositor allows the swap

	buffers  []*buffer.Handle
	writable int
	target   int

	pendingRequest bool
	permit         bool
	grants         uint64 // permissions that serviced a pending request
	swaps          uint64
	shutdown       bool
	closed         bool
}

// New allocates count buffers of the given geometry. Buffer 0 starts as the
// client's writable buffer and buffer 1 as the presentation target.
func New(alloc buffer.Allocator, size buffer.Size, format buffer.PixelFormat, usage buffer.Usage, count int) (*Bundle, error) {
	if alloc == nil {
		return nil, errors.New("bundle: allocator cannot be nil")
	}
	if count < MinBuffers || count > MaxBuffers {
		return nil, fmt.Errorf("%w: %d", ErrBufferCount, count)
	}

	b := &Bundle{
		alloc:    alloc,
		size:     size,
		format:   format,
		usage:    usage,
		buffers:  make([]*buffer.Handle, 0, count),
		writable: 0,
		target:   1,
	}
	b.requested = sync.NewCond(&b.mu)
	b.permitted = sync.NewCond(&b.mu)

	for i := 0; i < count; i++ {
		h, err := alloc.Allocate(size, format, usage)
		if err != nil {
			_ = b.releaseAll()
			return nil, err
		}
		b.buffers = append(b.buffers, h)
	}

	display.Logger().Debug("bundle: created",
		"size", size.String(), "format", format.String(), "buffers", count)
	return b, nil
}

// Size returns the buffer size shared by every buffer in the bundle.
func (b *Bundle) Size() buffer.Size { return b.size }

// PixelFormat returns the pixel format shared by every buffer in the bundle.
func (b *Bundle) PixelFormat() buffer.PixelFormat { return b.format }

// Count returns the number of buffers in rotation.
func (b *Bundle) Count() int { return len(b.buffers) }

// Swaps returns the number of completed swaps.
func (b *Bundle) Swaps() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swaps
}

// ClientBuffer returns the buffer the client may currently write into.
func (b *Bundle) ClientBuffer() (*buffer.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.buffers[b.writable], nil
}

// ClientPackage exports the writable buffer for transport to the client
// process.
func (b *Bundle) ClientPackage() (*buffer.TransportPackage, error) {
	h, err := b.ClientBuffer()
	if err != nil {
		return nil, err
	}
	return b.alloc.Export(h)
}

// CompositorAcquire returns the current presentation target. It never
// blocks. Before the first swap it returns the initial target buffer; after
// Close it returns nil. Acquiring withdraws a permission that no client
// advance has used yet.
func (b *Bundle) CompositorAcquire() *buffer.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.permit = false
	return b.buffers[b.target]
}

// AdvanceClientBuffer marks the writable buffer as finished and blocks until
// the compositor permits the swap. On return the finished buffer is the
// presentation target and a different buffer is writable.
//
// There is no timeout; use AdvanceClientBufferContext for a bounded wait.
func (b *Bundle) AdvanceClientBuffer() error {
	return b.AdvanceClientBufferContext(context.Background())
}

// AdvanceClientBufferContext is AdvanceClientBuffer with cancellation.
// If ctx ends first the request is withdrawn, no swap happens and ctx.Err()
// is returned.
func (b *Bundle) AdvanceClientBufferContext(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.permitted.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.shutdown {
		return ErrClosed
	}

	if b.permit {
		b.permit = false
		b.swap()
		return nil
	}

	b.pendingRequest = true
	b.requested.Broadcast()

	ticket := b.grants
	for b.grants == ticket && !b.closed && !b.shutdown && ctx.Err() == nil {
		b.permitted.Wait()
	}
	if b.grants != ticket {
		// PermitSwap already swapped on our behalf.
		return nil
	}
	b.pendingRequest = false

	if b.closed || b.shutdown {
		return ErrClosed
	}
	return ctx.Err()
}

// swap promotes the writable buffer to presentation target and hands the
// client a buffer the compositor no longer presents. A spare buffer is
// preferred over the previous target. Called with b.mu held.
func (b *Bundle) swap() {
	finished, previous := b.writable, b.target
	next := previous
	for i := range b.buffers {
		if i != finished && i != previous {
			next = i
			break
		}
	}
	b.target = finished
	b.writable = next
	b.swaps++

	display.Logger().Debug("bundle: swapped",
		"target", b.buffers[b.target].ID(), "writable", b.buffers[b.writable].ID())
}

// WaitForClientRequest blocks until the client has an advance outstanding.
// It returns immediately if one is already pending.
func (b *Bundle) WaitForClientRequest() error {
	return b.WaitForClientRequestContext(context.Background())
}

// WaitForClientRequestContext is WaitForClientRequest with cancellation.
func (b *Bundle) WaitForClientRequestContext(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.requested.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.pendingRequest && !b.closed && ctx.Err() == nil {
		b.requested.Wait()
	}
	switch {
	case b.pendingRequest:
		return nil
	case b.closed:
		return ErrClosed
	default:
		return ctx.Err()
	}
}

// ClientRequestPending reports whether a client advance is waiting for
// permission.
func (b *Bundle) ClientRequestPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingRequest
}

// PermitSwap lets one client advance proceed. A pending advance is swapped
// immediately. Otherwise the permission is held for the next advance until
// CompositorAcquire withdraws it; repeated calls do not accumulate, so the
// client never gets more than one buffer ahead.
func (b *Bundle) PermitSwap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.shutdown {
		return
	}
	if b.pendingRequest {
		b.pendingRequest = false
		b.swap()
		b.grants++
		b.permitted.Broadcast()
		return
	}
	b.permit = true
}

// Shutdown makes blocked and future client advances return ErrClosed.
// Buffers stay allocated and the compositor may keep presenting the last
// target until Close.
func (b *Bundle) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = true
	b.permitted.Broadcast()
}

// Close releases every buffer and wakes blocked callers with ErrClosed.
// Close is idempotent.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.requested.Broadcast()
	b.permitted.Broadcast()
	return b.releaseAll()
}

func (b *Bundle) releaseAll() error {
	var errs []error
	for _, h := range b.buffers {
		if err := b.alloc.Release(h); err != nil {
			display.Logger().Warn("bundle: release failed", "id", h.ID(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
