// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"slices"
	"testing"

	"github.com/gogpu/display/buffer"
)

func TestLayerOrganizerPostOrder(t *testing.T) {
	o := NewLayerOrganizer()
	a, b, c := &buffer.Handle{}, &buffer.Handle{}, &buffer.Handle{}

	if z := o.Post(a); z != 0 {
		t.Errorf("first Post z = %d, want 0", z)
	}
	if err := o.PostAt(10, c); err != nil {
		t.Fatal(err)
	}
	if z := o.Post(b); z != 11 {
		t.Errorf("Post after PostAt(10) z = %d, want 11", z)
	}

	if got := o.Layers(); !slices.Equal(got, []int{0, 10, 11}) {
		t.Errorf("Layers() = %v", got)
	}
	if o.Buffer(10) != c || o.Buffer(5) != nil {
		t.Error("Buffer lookup mismatch")
	}
	if err := o.PostAt(10, a); err == nil {
		t.Error("PostAt on an occupied z should fail")
	}
}

func TestLayerOrganizerLayersIsCopy(t *testing.T) {
	o := NewLayerOrganizer()
	o.Post(&buffer.Handle{})
	o.Post(&buffer.Handle{})

	got := o.Layers()
	got[0] = 99
	if o.Layers()[0] != 0 {
		t.Error("Layers() must return a copy")
	}
}

func TestLayerOrganizerRemove(t *testing.T) {
	o := NewLayerOrganizer()
	o.Post(&buffer.Handle{})
	z := o.Post(&buffer.Handle{})

	if err := o.Remove(z); err != nil {
		t.Fatal(err)
	}
	if err := o.Remove(z); err == nil {
		t.Error("second Remove should fail")
	}
	if got := o.Layers(); !slices.Equal(got, []int{0}) {
		t.Errorf("Layers() = %v, want [0]", got)
	}
}

func TestLayerOrganizerLayerList(t *testing.T) {
	o := NewLayerOrganizer()
	client, hidden, fb := &buffer.Handle{}, &buffer.Handle{}, &buffer.Handle{}

	if o.LayerList().Len() != 0 {
		t.Error("empty organizer should produce an empty list")
	}
	if _, ok := o.LayerList().FramebufferTarget(); ok {
		t.Error("no framebuffer target expected")
	}

	o.Post(client)
	zHidden := o.Post(hidden)
	o.SetLayerVisible(zHidden, false)
	o.SetFBTarget(fb)

	list := o.LayerList()
	if list.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", list.Len())
	}
	if list.Layers[0].Buffer != client || list.Layers[0].Skip {
		t.Error("first layer should be the visible client")
	}
	if !list.Layers[1].Skip {
		t.Error("hidden layer should be skipped")
	}
	target, ok := list.FramebufferTarget()
	if !ok || target.Buffer != fb || target.Composition != CompositionFramebufferTarget {
		t.Errorf("framebuffer target = %+v, %t", target, ok)
	}
}

func TestLayerOrganizerReset(t *testing.T) {
	o := NewLayerOrganizer()
	fb := &buffer.Handle{}
	o.Post(&buffer.Handle{})
	o.SetFBTarget(fb)

	o.Reset()
	if len(o.Layers()) != 0 {
		t.Error("Reset should drop client layers")
	}
	if o.FBTarget() != fb {
		t.Error("Reset should keep the framebuffer target")
	}
	if z := o.Post(&buffer.Handle{}); z != 0 {
		t.Errorf("Post after Reset z = %d, want 0", z)
	}
}
