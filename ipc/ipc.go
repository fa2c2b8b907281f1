// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ipc moves buffer transport packages between processes over a
// Unix domain socket.
//
// A package travels as one message. Its descriptors ride in an
// SCM_RIGHTS control message and its integers in a little-endian frame:
//
//	uint32 count | int32 ints[count]
//
// The receiver owns the descriptors it gets and hands them to
// buffer.Allocator.Import through the returned package.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
)

const (
	// MaxDescriptors bounds the descriptors accepted in one message.
	MaxDescriptors = 8

	// MaxIntegers bounds the integers accepted in one message.
	MaxIntegers = 64

	headerLen = 4
)

var (
	// ErrTruncated is returned when the kernel dropped part of a message
	// or its control data.
	ErrTruncated = errors.New("ipc: message truncated")

	// ErrFrame is returned for a frame whose header disagrees with its body.
	ErrFrame = errors.New("ipc: malformed frame")
)

func encode(ints []int32) []byte {
	b := make([]byte, headerLen+4*len(ints))
	binary.LittleEndian.PutUint32(b, uint32(len(ints)))
	for i, v := range ints {
		binary.LittleEndian.PutUint32(b[headerLen+4*i:], uint32(v))
	}
	return b
}

func decode(b []byte) ([]int32, error) {
	if len(b) < headerLen {
		return nil, fmt.Errorf("%w: %d byte header", ErrFrame, len(b))
	}
	n := binary.LittleEndian.Uint32(b)
	if n > MaxIntegers || len(b) != headerLen+4*int(n) {
		return nil, fmt.Errorf("%w: %d integers in %d bytes", ErrFrame, n, len(b))
	}
	ints := make([]int32, n)
	for i := range ints {
		ints[i] = int32(binary.LittleEndian.Uint32(b[headerLen+4*i:]))
	}
	return ints, nil
}

// SendPackage writes pkg to conn. On success the package's own
// descriptors are closed; the peer now holds duplicates.
func SendPackage(conn *net.UnixConn, pkg *buffer.TransportPackage) error {
	if pkg.Consumed() {
		return buffer.ErrPackageConsumed
	}
	fds := pkg.Descriptors()
	if len(fds) > MaxDescriptors {
		return fmt.Errorf("ipc: %d descriptors exceeds %d", len(fds), MaxDescriptors)
	}

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	msg := encode(pkg.Integers())
	n, oobn, err := conn.WriteMsgUnix(msg, oob, nil)
	if err != nil {
		return fmt.Errorf("ipc: send: %w", err)
	}
	if n != len(msg) || oobn != len(oob) {
		return fmt.Errorf("ipc: short send %d/%d bytes", n, len(msg))
	}

	if err := pkg.Close(); err != nil {
		display.Logger().Warn("ipc: closing sent descriptors", "err", err)
	}
	return nil
}

// ReceivePackage reads one package from conn. The caller owns the result
// and must Import or Close it.
func ReceivePackage(conn *net.UnixConn) (*buffer.TransportPackage, error) {
	msg := make([]byte, headerLen+4*MaxIntegers)
	oob := make([]byte, unix.CmsgSpace(4*MaxDescriptors))

	n, oobn, flags, _, err := conn.ReadMsgUnix(msg, oob)
	if err != nil {
		return nil, fmt.Errorf("ipc: receive: %w", err)
	}
	if n == 0 && oobn == 0 {
		return nil, io.EOF
	}

	fds, ferr := parseRights(oob[:oobn])
	if ferr != nil || flags&(unix.MSG_TRUNC|unix.MSG_CTRUNC) != 0 {
		closeAll(fds)
		if ferr != nil {
			return nil, ferr
		}
		return nil, ErrTruncated
	}

	ints, err := decode(msg[:n])
	if err != nil {
		closeAll(fds)
		return nil, err
	}
	return buffer.NewTransportPackage(fds, ints), nil
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("ipc: control message: %w", err)
	}
	var fds []int
	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&m)
		if err != nil {
			closeAll(fds)
			return nil, fmt.Errorf("ipc: rights: %w", err)
		}
		fds = append(fds, got...)
	}
	return fds, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
