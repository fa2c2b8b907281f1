// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package client

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/bundle"
)

// DefaultCacheSize holds every buffer of the largest swapchain.
const DefaultCacheSize = bundle.MaxBuffers

// ErrCacheClosed is returned by Acquire after Close.
var ErrCacheClosed = errors.New("client: buffer cache closed")

// BufferCache maps each server buffer once. Packages for a buffer id the
// cache already holds are closed unread and the existing mapping is
// returned. When the cache is full the least recently used mapping is
// released.
//
// BufferCache is safe for concurrent use.
type BufferCache struct {
	alloc    buffer.Allocator
	capacity int

	mu      sync.Mutex
	entries map[int32]*cacheEntry
	lru     lruList
	closed  bool

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheEntry struct {
	handle *buffer.Handle
	size   buffer.Size
	format buffer.PixelFormat
	node   *lruNode
}

// CacheStats reports cache activity.
type CacheStats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewBufferCache creates a cache importing through alloc. A capacity <= 0
// selects DefaultCacheSize.
func NewBufferCache(alloc buffer.Allocator, capacity int) *BufferCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &BufferCache{alloc: alloc, capacity: capacity, entries: make(map[int32]*cacheEntry)}
}

// Acquire returns the mapping for the buffer pkg describes, importing it
// on first sight. The cache consumes pkg either way. A cached buffer whose
// geometry no longer matches is released and imported afresh.
func (c *BufferCache) Acquire(pkg *buffer.TransportPackage, size buffer.Size, format buffer.PixelFormat) (*buffer.Handle, error) {
	if pkg == nil {
		return nil, errors.New("client: nil package")
	}
	id := pkg.BufferID()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = pkg.Close()
		return nil, ErrCacheClosed
	}

	if e, ok := c.entries[id]; ok && id >= 0 {
		if e.size == size && e.format == format {
			c.lru.MoveToFront(e.node)
			c.hits.Add(1)
			if err := pkg.Close(); err != nil {
				display.Logger().Warn("client: closing cached package", "id", id, "err", err)
			}
			return e.handle, nil
		}
		c.drop(id, e)
	}

	c.misses.Add(1)
	h, err := c.alloc.Import(pkg, size, format)
	if err != nil {
		_ = pkg.Close()
		return nil, fmt.Errorf("client: import buffer %d: %w", id, err)
	}
	if id < 0 {
		return h, nil
	}

	for c.lru.Len() >= c.capacity {
		oldest, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.release(oldest, c.entries[oldest])
		c.evictions.Add(1)
	}
	c.entries[id] = &cacheEntry{handle: h, size: size, format: format, node: c.lru.PushFront(id)}
	return h, nil
}

// Forget releases the mapping of buffer id, if cached.
func (c *BufferCache) Forget(id int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if ok {
		c.drop(id, e)
	}
	return ok
}

// Len returns the number of cached buffers.
func (c *BufferCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *BufferCache) Stats() CacheStats {
	return CacheStats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close releases every cached mapping.
func (c *BufferCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for id, e := range c.entries {
		if err := c.alloc.Release(e.handle); err != nil {
			errs = append(errs, fmt.Errorf("buffer %d: %w", id, err))
		}
	}
	c.entries = nil
	c.lru = lruList{}
	return errors.Join(errs...)
}

// drop unlinks and releases a cached entry. Called with c.mu held.
func (c *BufferCache) drop(id int32, e *cacheEntry) {
	c.lru.Remove(e.node)
	c.release(id, e)
}

// release forgets and unmaps an entry already unlinked from the list.
// Called with c.mu held.
func (c *BufferCache) release(id int32, e *cacheEntry) {
	delete(c.entries, id)
	if err := c.alloc.Release(e.handle); err != nil {
		display.Logger().Warn("client: releasing cached buffer", "id", id, "err", err)
	}
}
