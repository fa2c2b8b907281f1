// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package client

import (
	"errors"
	"testing"

	"github.com/gogpu/display/buffer"
)

var (
	testSize   = buffer.Size{Width: 16, Height: 8}
	testFormat = buffer.FormatABGR8888
)

type fixture struct {
	server *buffer.ShmAllocator
	bufs   []*buffer.Handle
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	f := &fixture{server: buffer.NewShmAllocator()}
	for range n {
		h, err := f.server.Allocate(testSize, testFormat, buffer.UsageSoftware)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		f.bufs = append(f.bufs, h)
	}
	t.Cleanup(func() {
		for _, h := range f.bufs {
			_ = f.server.Release(h)
		}
	})
	return f
}

func (f *fixture) pkg(t *testing.T, i int) *buffer.TransportPackage {
	t.Helper()
	p, err := f.server.Export(f.bufs[i])
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	return p
}

func TestCacheReusesMapping(t *testing.T) {
	f := newFixture(t, 1)
	c := NewBufferCache(buffer.NewShmAllocator(), 0)
	defer c.Close()

	h1, err := c.Acquire(f.pkg(t, 0), testSize, testFormat)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	second := f.pkg(t, 0)
	h2, err := c.Acquire(second, testSize, testFormat)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h1 != h2 {
		t.Error("second Acquire of the same buffer returned a new mapping")
	}
	if !second.Consumed() {
		t.Error("package of a cached buffer was not consumed")
	}
	if h1.ID() != f.bufs[0].ID() {
		t.Errorf("ID() = %d, want %d", h1.ID(), f.bufs[0].ID())
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Len != 1 || st.Capacity != DefaultCacheSize {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestCacheSharesMemory(t *testing.T) {
	f := newFixture(t, 1)
	c := NewBufferCache(buffer.NewShmAllocator(), 0)
	defer c.Close()

	h, err := c.Acquire(f.pkg(t, 0), testSize, testFormat)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h.Pixels()[0] = 0x5a
	if got := f.bufs[0].Pixels()[0]; got != 0x5a {
		t.Errorf("server sees %#x, want 0x5a", got)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	f := newFixture(t, 3)
	c := NewBufferCache(buffer.NewShmAllocator(), 2)
	defer c.Close()

	var got []*buffer.Handle
	for i := range 3 {
		h, err := c.Acquire(f.pkg(t, i), testSize, testFormat)
		if err != nil {
			t.Fatalf("Acquire(%d): %v", i, err)
		}
		got = append(got, h)
	}

	if !got[0].Released() {
		t.Error("least recently used mapping was not released")
	}
	if got[1].Released() || got[2].Released() {
		t.Error("recent mappings were released")
	}
	if st := c.Stats(); st.Len != 2 || st.Evictions != 1 {
		t.Errorf("Stats() = %+v, want Len 2, Evictions 1", st)
	}
}

func TestCacheRemapsOnGeometryChange(t *testing.T) {
	f := newFixture(t, 1)
	c := NewBufferCache(buffer.NewShmAllocator(), 0)
	defer c.Close()

	h1, err := c.Acquire(f.pkg(t, 0), testSize, testFormat)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	small := buffer.Size{Width: 8, Height: 8}
	h2, err := c.Acquire(f.pkg(t, 0), small, testFormat)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h1 == h2 || !h1.Released() {
		t.Error("stale mapping kept after geometry change")
	}
	if h2.Size() != small {
		t.Errorf("Size() = %v, want %v", h2.Size(), small)
	}
}

func TestCacheForget(t *testing.T) {
	f := newFixture(t, 1)
	c := NewBufferCache(buffer.NewShmAllocator(), 0)
	defer c.Close()

	h, err := c.Acquire(f.pkg(t, 0), testSize, testFormat)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !c.Forget(h.ID()) {
		t.Fatal("Forget() = false for a cached buffer")
	}
	if !h.Released() || c.Len() != 0 {
		t.Error("forgotten mapping still held")
	}
	if c.Forget(h.ID()) {
		t.Error("second Forget() = true")
	}
}

func TestCacheImportFailure(t *testing.T) {
	c := NewBufferCache(buffer.NewShmAllocator(), 0)
	defer c.Close()

	pkg := buffer.NewTransportPackage(nil, []int32{1, 2})
	if _, err := c.Acquire(pkg, testSize, testFormat); err == nil {
		t.Fatal("Acquire of a malformed package succeeded")
	}
	if !pkg.Consumed() {
		t.Error("failed package was not consumed")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCacheClose(t *testing.T) {
	f := newFixture(t, 2)
	c := NewBufferCache(buffer.NewShmAllocator(), 0)

	var got []*buffer.Handle
	for i := range 2 {
		h, err := c.Acquire(f.pkg(t, i), testSize, testFormat)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		got = append(got, h)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	for i, h := range got {
		if !h.Released() {
			t.Errorf("mapping %d not released by Close", i)
		}
	}

	pkg := f.pkg(t, 0)
	if _, err := c.Acquire(pkg, testSize, testFormat); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Acquire after Close: %v, want ErrCacheClosed", err)
	}
	if !pkg.Consumed() {
		t.Error("package not consumed after Close")
	}
}
