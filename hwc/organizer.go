// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hwc

import (
	"fmt"
	"slices"

	"github.com/gogpu/display/buffer"
)

// layerEntry is a client layer waiting for the next frame.
type layerEntry struct {
	buf     *buffer.Handle
	visible bool
}

// LayerOrganizer holds the z-ordered client layers and the framebuffer
// target for the next frame.
//
// LayerOrganizer is not safe for concurrent use. The compositor goroutine
// is its only mutator.
type LayerOrganizer struct {
	layers   map[int]*layerEntry
	zOrder   []int // cached ascending z list, nil when stale
	nextZ    int
	fbTarget *buffer.Handle
}

// NewLayerOrganizer creates an empty organizer.
func NewLayerOrganizer() *LayerOrganizer {
	return &LayerOrganizer{
		layers: make(map[int]*layerEntry),
	}
}

// SetFBTarget replaces the framebuffer target.
func (o *LayerOrganizer) SetFBTarget(buf *buffer.Handle) {
	o.fbTarget = buf
}

// FBTarget returns the current framebuffer target, or nil.
func (o *LayerOrganizer) FBTarget() *buffer.Handle {
	return o.fbTarget
}

// Post adds buf as a client layer above every existing layer and returns
// its z-order.
func (o *LayerOrganizer) Post(buf *buffer.Handle) int {
	z := o.nextZ
	o.layers[z] = &layerEntry{buf: buf, visible: true}
	o.nextZ++
	o.zOrder = nil
	return z
}

// PostAt adds buf as a client layer at z. Returns an error if z is taken.
func (o *LayerOrganizer) PostAt(z int, buf *buffer.Handle) error {
	if _, exists := o.layers[z]; exists {
		return fmt.Errorf("hwc: layer with z=%d already exists", z)
	}
	o.layers[z] = &layerEntry{buf: buf, visible: true}
	if z >= o.nextZ {
		o.nextZ = z + 1
	}
	o.zOrder = nil
	return nil
}

// Remove drops the layer at z.
func (o *LayerOrganizer) Remove(z int) error {
	if _, exists := o.layers[z]; !exists {
		return fmt.Errorf("hwc: layer with z=%d does not exist", z)
	}
	delete(o.layers, z)
	o.zOrder = nil
	return nil
}

// SetLayerVisible hides or shows a layer without removing it. Hidden
// layers are submitted with Skip set.
func (o *LayerOrganizer) SetLayerVisible(z int, visible bool) {
	if l, exists := o.layers[z]; exists {
		l.visible = visible
	}
}

// Layers returns the client layer z-orders in ascending order.
func (o *LayerOrganizer) Layers() []int {
	if o.zOrder == nil {
		o.zOrder = make([]int, 0, len(o.layers))
		for z := range o.layers {
			o.zOrder = append(o.zOrder, z)
		}
		slices.Sort(o.zOrder)
	}
	return slices.Clone(o.zOrder)
}

// Buffer returns the buffer posted at z, or nil.
func (o *LayerOrganizer) Buffer(z int) *buffer.Handle {
	if l, exists := o.layers[z]; exists {
		return l.buf
	}
	return nil
}

// LayerList builds the list for the composer: client layers bottom to top,
// then the framebuffer target if one is set.
func (o *LayerOrganizer) LayerList() *LayerList {
	order := o.Layers()
	list := &LayerList{Layers: make([]Layer, 0, len(order)+1)}
	for _, z := range order {
		l := o.layers[z]
		list.Layers = append(list.Layers, Layer{
			Z:           z,
			Buffer:      l.buf,
			Composition: CompositionFramebuffer,
			Skip:        !l.visible,
		})
	}
	if o.fbTarget != nil {
		list.Layers = append(list.Layers, Layer{
			Z:           o.nextZ,
			Buffer:      o.fbTarget,
			Composition: CompositionFramebufferTarget,
		})
	}
	return list
}

// Reset drops every client layer. The framebuffer target is kept.
func (o *LayerOrganizer) Reset() {
	clear(o.layers)
	o.zOrder = nil
	o.nextZ = 0
}
