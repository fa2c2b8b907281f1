// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build unix && !linux

package buffer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// createAnonymousFile returns an unlinked temporary file of size bytes.
func createAnonymousFile(name string, size int) (int, error) {
	f, err := os.CreateTemp("", name+"-*")
	if err != nil {
		return -1, fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()
	_ = os.Remove(f.Name())

	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return -1, fmt.Errorf("dup: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("ftruncate: %w", err)
	}
	return fd, nil
}
