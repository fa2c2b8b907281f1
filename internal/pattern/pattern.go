// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pattern writes and verifies known pixel patterns in 32-bit
// buffers. The demo client renders them and integration tests read them
// back on the other side of a buffer handoff.
package pattern

import (
	"encoding/binary"
	"fmt"
)

// Solid is the 32-bit value written by the solid pattern.
const Solid uint32 = 0x12345689

// Quadrant colours of the second pattern, as 32-bit little-endian values.
const (
	QuadTopLeft     uint32 = 0xFFFF0000
	QuadTopRight    uint32 = 0xFFFFFF00
	QuadBottomLeft  uint32 = 0xFFFFFFFF
	QuadBottomRight uint32 = 0xFF0000FF
)

// Surface is the subset of a mapped buffer the patterns need.
type Surface interface {
	Pixels() []byte
	Stride() int
}

// FillSolid writes Solid into every pixel of a width x height region.
func FillSolid(s Surface, width, height int) {
	fill(s, width, height, func(int, int) uint32 { return Solid })
}

// CheckSolid verifies every pixel holds Solid.
func CheckSolid(s Surface, width, height int) error {
	return check(s, width, height, func(int, int) uint32 { return Solid })
}

// FillQuadrants writes a four-colour square pattern.
func FillQuadrants(s Surface, width, height int) {
	fill(s, width, height, quadrant(width, height))
}

// CheckQuadrants verifies the four-colour square pattern.
func CheckQuadrants(s Surface, width, height int) error {
	return check(s, width, height, quadrant(width, height))
}

func quadrant(width, height int) func(x, y int) uint32 {
	return func(x, y int) uint32 {
		top, left := y < height/2, x < width/2
		switch {
		case top && left:
			return QuadTopLeft
		case top:
			return QuadTopRight
		case left:
			return QuadBottomLeft
		default:
			return QuadBottomRight
		}
	}
}

func fill(s Surface, width, height int, value func(x, y int) uint32) {
	pix, stride := s.Pixels(), s.Stride()
	for y := 0; y < height; y++ {
		row := pix[y*stride:]
		for x := 0; x < width; x++ {
			binary.LittleEndian.PutUint32(row[x*4:], value(x, y))
		}
	}
}

func check(s Surface, width, height int, want func(x, y int) uint32) error {
	pix, stride := s.Pixels(), s.Stride()
	if len(pix) < stride*height {
		return fmt.Errorf("pattern: buffer holds %d bytes, need %d", len(pix), stride*height)
	}
	for y := 0; y < height; y++ {
		row := pix[y*stride:]
		for x := 0; x < width; x++ {
			got := binary.LittleEndian.Uint32(row[x*4:])
			if w := want(x, y); got != w {
				return fmt.Errorf("pattern: pixel (%d,%d) = %#08x, want %#08x", x, y, got, w)
			}
		}
	}
	return nil
}
