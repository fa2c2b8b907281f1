// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package client is the client side of buffer handoff: it receives
// transport packages from the server and keeps one mapping per buffer.
package client

import (
	"errors"
	"net"

	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/ipc"
)

// Conn receives buffers for one surface over a Unix socket.
type Conn struct {
	conn   *net.UnixConn
	cache  *BufferCache
	size   buffer.Size
	format buffer.PixelFormat
}

// NewConn wraps conn. Buffers are mapped through alloc and expected to
// have the given geometry, which travels out of band.
func NewConn(conn *net.UnixConn, alloc buffer.Allocator, size buffer.Size, format buffer.PixelFormat) *Conn {
	return &Conn{
		conn:   conn,
		cache:  NewBufferCache(alloc, DefaultCacheSize),
		size:   size,
		format: format,
	}
}

// NextBuffer receives the next client buffer and returns its mapping.
// The handle stays valid until the cache evicts it or the Conn is closed.
func (c *Conn) NextBuffer() (*buffer.Handle, error) {
	pkg, err := ipc.ReceivePackage(c.conn)
	if err != nil {
		return nil, err
	}
	return c.cache.Acquire(pkg, c.size, c.format)
}

// Cache returns the buffer cache.
func (c *Conn) Cache() *BufferCache { return c.cache }

// Close releases the mapped buffers and closes the socket.
func (c *Conn) Close() error {
	return errors.Join(c.cache.Close(), c.conn.Close())
}
