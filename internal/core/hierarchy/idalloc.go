package hierarchy

import (
	"encoding/binary"

	"github.com/edirooss/selva-engine/internal/core/nodeid"
)

// IDAllocator generates NodeId suffixes for `modify` calls whose caller
// supplied only a 2-byte type prefix. Behavior mirrors the source's PID
// allocator: a monotonic counter over the 8-byte suffix space that wraps
// and skips any suffix already present in the hierarchy's index, rather
// than handing out a colliding ID.
type IDAllocator struct {
	next uint64
	h    *Hierarchy
	tag  [nodeid.TagSize]byte
}

// NewIDAllocator returns an allocator that checks collisions against h and
// stamps every generated ID with tag as its 2-byte type prefix.
func NewIDAllocator(h *Hierarchy, tag [nodeid.TagSize]byte) *IDAllocator {
	return &IDAllocator{h: h, tag: tag, next: 1}
}

// Alloc returns the next unused NodeId in this allocator's tag space.
// Panics if the entire 64-bit suffix space is already occupied — as
// unreachable in practice as the source's 32768-PID space running out,
// scaled to a 64-bit counter.
func (a *IDAllocator) Alloc() nodeid.ID {
	start := a.next
	first := true

	for first || a.next != start {
		first = false

		suffix := a.next
		a.next++
		if a.next == 0 {
			a.next = 1 // skip the reserved all-zero suffix on wrap
		}

		id := a.build(suffix)
		if !a.h.NodeExists(id) {
			return id
		}
	}
	panic("hierarchy: IDAllocator exhausted: 64-bit suffix space fully allocated")
}

func (a *IDAllocator) build(suffix uint64) nodeid.ID {
	var id nodeid.ID
	copy(id[:nodeid.TagSize], a.tag[:])
	binary.BigEndian.PutUint64(id[nodeid.TagSize:], suffix)
	return id
}
