// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package circular

import (
	"github.com/grailbio/base/bitset"
	"github.com/grailbio/base/log"
)

// MinWindowCapacity is the smallest number of positions a Window tracks.
// Requested capacities below this are raised to it.
const MinWindowCapacity = 16

// EvictFunc receives the final depth and payload of a position as it leaves
// a Window.  It is only called for positions which saw at least one depth
// registration or payload creation.
type EvictFunc func(pos, depth int, payload interface{})

// WindowOpts configures a Window.
type WindowOpts struct {
	// Capacity is the number of consecutive positions tracked at once.  It is
	// rounded up to a power of 2, and to at least MinWindowCapacity.
	Capacity int
	// RecentreOffset is how far behind a newly touched position the window
	// start is placed when the window is first anchored, or after a touch far
	// enough ahead to drain the whole window.  Zero means Capacity/2.
	RecentreOffset int
}

// DefaultWindowOpts is the default configuration.
var DefaultWindowOpts = WindowOpts{
	Capacity: 1024,
}

type windowSlot struct {
	depth int
	// depthLimit is 0 when unset.
	depthLimit int
	payload    interface{}
}

// Window accumulates a per-position depth, an optional depth limit, and an
// arbitrary payload over a sliding range of 1-based genomic positions.
//
// The covered range is [minPosition, minPosition + capacity).  Touching a
// position at or beyond the end of that range advances minPosition, evicting
// every occupied slot that falls behind it, in increasing position order.
// Touches behind minPosition are ignored with a warning.
//
// A Window is not safe for concurrent use; callers shard by chromosome (or
// region) and use one Window per shard.
type Window struct {
	slots []windowSlot
	// occupied[] has one bit per slot, set iff the slot has nonzero depth, a
	// depth limit, or a payload.
	occupied       []uintptr
	mask           int
	minPosition    int // 0 until the first touch
	recentreOffset int
	evict          EvictFunc
	nIgnored       int
}

// NewWindow returns an empty Window.  evict may be nil.
func NewWindow(opts WindowOpts, evict EvictFunc) *Window {
	capacity := opts.Capacity
	if capacity < MinWindowCapacity {
		capacity = MinWindowCapacity
	}
	capacity = RoundUpExp2(capacity)
	recentreOffset := opts.RecentreOffset
	if recentreOffset == 0 {
		recentreOffset = capacity / 2
	}
	if recentreOffset < 0 || recentreOffset >= capacity {
		log.Panicf("circular.NewWindow: recentre offset %d outside [0, %d)", recentreOffset, capacity)
	}
	return &Window{
		slots:          make([]windowSlot, capacity),
		occupied:       make([]uintptr, (capacity+bitset.BitsPerWord-1)/bitset.BitsPerWord),
		mask:           capacity - 1,
		recentreOffset: recentreOffset,
		evict:          evict,
	}
}

// Capacity returns the number of positions tracked at once.
func (w *Window) Capacity() int {
	return len(w.slots)
}

// MinPosition returns the first position currently covered by the window, or
// 0 if nothing has been touched yet.
func (w *Window) MinPosition() int {
	return w.minPosition
}

// NumIgnored returns the number of touches dropped because they were behind
// the window.
func (w *Window) NumIgnored() int {
	return w.nIgnored
}

func (w *Window) recentre(pos int) int {
	start := pos - w.recentreOffset
	if start < 1 {
		start = 1
	}
	return start
}

// flush evicts the first n positions of the window, advancing minPosition by
// n.
func (w *Window) flush(n int) {
	for i := 0; i < n; i++ {
		pos := w.minPosition + i
		idx := pos & w.mask
		if !bitset.Test(w.occupied, idx) {
			continue
		}
		slot := &w.slots[idx]
		if w.evict != nil && (slot.depth > 0 || slot.payload != nil) {
			w.evict(pos, slot.depth, slot.payload)
		}
		*slot = windowSlot{}
		bitset.Clear(w.occupied, idx)
	}
	w.minPosition += n
}

// checkFlush makes pos addressable, evicting positions as necessary.  It
// returns false if pos is behind the window.
func (w *Window) checkFlush(pos int) bool {
	if w.minPosition == 0 {
		w.minPosition = w.recentre(pos)
	}
	if pos < w.minPosition {
		w.nIgnored++
		log.Printf("circular.Window: warning: position %d is behind window start %d, ignoring", pos, w.minPosition)
		return false
	}
	capacity := len(w.slots)
	flushCount := pos - (w.minPosition + capacity) + 1
	if flushCount <= 0 {
		return true
	}
	if flushCount >= capacity {
		// pos is far enough ahead that nothing currently held survives.
		w.flush(capacity)
		w.minPosition = w.recentre(pos)
		return true
	}
	w.flush(flushCount)
	return true
}

func (w *Window) contains(pos int) bool {
	return w.minPosition != 0 && pos >= w.minPosition && pos < w.minPosition+len(w.slots)
}

// RegisterDepth increments the depth at pos.
func (w *Window) RegisterDepth(pos int) {
	if !w.checkFlush(pos) {
		return
	}
	idx := pos & w.mask
	w.slots[idx].depth++
	bitset.Set(w.occupied, idx)
}

// RegisterDepthLimit sets the depth limit at pos.  A limit <= 0 clears it.
func (w *Window) RegisterDepthLimit(pos, limit int) {
	if !w.checkFlush(pos) {
		return
	}
	if limit < 0 {
		limit = 0
	}
	idx := pos & w.mask
	w.slots[idx].depthLimit = limit
	bitset.Set(w.occupied, idx)
}

// Depth returns the depth registered at pos.  known is false if pos is not
// inside the window.
func (w *Window) Depth(pos int) (depth int, known bool) {
	if !w.contains(pos) {
		return 0, false
	}
	return w.slots[pos&w.mask].depth, true
}

// ExceedsDepthLimit reports whether the depth at pos has reached its limit.
// known is false if pos is outside the window or has no limit.
func (w *Window) ExceedsDepthLimit(pos int) (exceeded, known bool) {
	if !w.contains(pos) {
		return false, false
	}
	slot := &w.slots[pos&w.mask]
	if slot.depthLimit == 0 {
		return false, false
	}
	return slot.depth >= slot.depthLimit, true
}

// GetOrCreatePayload returns the payload at pos, calling create to
// initialize it if necessary.  ok is false if pos is behind the window.
func (w *Window) GetOrCreatePayload(pos int, create func() interface{}) (payload interface{}, ok bool) {
	if !w.checkFlush(pos) {
		return nil, false
	}
	idx := pos & w.mask
	slot := &w.slots[idx]
	if slot.payload == nil {
		slot.payload = create()
		bitset.Set(w.occupied, idx)
	}
	return slot.payload, true
}

// Payload returns the payload at pos without creating one.
func (w *Window) Payload(pos int) (interface{}, bool) {
	if !w.contains(pos) {
		return nil, false
	}
	p := w.slots[pos&w.mask].payload
	return p, p != nil
}

// EvictAll evicts every position still held by the window.  The window
// remains usable for positions beyond the ones it held.
func (w *Window) EvictAll() {
	if w.minPosition == 0 {
		return
	}
	w.flush(len(w.slots))
}
