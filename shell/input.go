// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shell

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gogpu/display/surfaces"
)

// InputChannel is the server/client descriptor pair that carries input
// events for one surface.
type InputChannel = surfaces.InputChannel

// SocketInputChannel is an InputChannel over a connected pair of
// SOCK_SEQPACKET sockets. Each event is one datagram.
type SocketInputChannel struct {
	mu     sync.Mutex
	server int
	client int
	closed bool
}

// NewSocketInputChannel creates a connected socket pair.
func NewSocketInputChannel() (*SocketInputChannel, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("shell: input socketpair: %w", err)
	}
	return &SocketInputChannel{server: fds[0], client: fds[1]}, nil
}

// ServerFD returns the server end.
func (c *SocketInputChannel) ServerFD() int { return c.server }

// ClientFD returns the end handed to the client process.
func (c *SocketInputChannel) ClientFD() int { return c.client }

// Close closes both ends. Close is idempotent.
func (c *SocketInputChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return errors.Join(unix.Close(c.server), unix.Close(c.client))
}

var _ InputChannel = (*SocketInputChannel)(nil)
