// Package hierarchy implements the directed acyclic hierarchy of nodes:
// upsert/union/diff edge operations, orphan-head tracking, cycle
// prevention, and transaction-stamped traversal. It knows nothing about
// typed objects or subscriptions; Subscriptions attaches to it purely
// through the metadata hook registry (see hooks.go).
package hierarchy

import (
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
	"github.com/edirooss/selva-engine/internal/core/svector"
)

// Hierarchy is the DAG of nodes keyed by NodeId, plus the set of
// currently-orphan (parentless) heads and the monotonic visit-stamp
// counter used by Traverse.
//
// Not safe for concurrent use: every public method assumes it runs on a
// single command-dispatch thread, per the engine's concurrency model.
type Hierarchy struct {
	index map[nodeid.ID]*Node
	heads *svector.SVector[nodeid.ID]
	trx   uint64
	hooks []MetadataHook
}

// New returns an empty Hierarchy with no metadata hooks. Constructor/
// destructor pairs invoked on every node's creation and deletion are added
// with RegisterMetadataHook before first use; the Subscriptions package's
// hook is registered that way to keep marker bookkeeping wired to the node
// lifecycle.
func New() *Hierarchy {
	return &Hierarchy{
		index: make(map[nodeid.ID]*Node),
		heads: svector.New(0, nodeid.Compare),
	}
}

// RegisterMetadataHook adds hook to the registry. Must be called before any
// node is created; hooks registered afterward will not have been run for
// already-existing nodes.
func (h *Hierarchy) RegisterMetadataHook(hook MetadataHook) {
	h.hooks = append(h.hooks, hook)
}

// NodeExists reports whether id is present in the index.
func (h *Hierarchy) NodeExists(id nodeid.ID) bool {
	_, ok := h.index[id]
	return ok
}

// GetMetadata returns the node's metadata slots, in hook-registration
// order, and whether the node exists.
func (h *Hierarchy) GetMetadata(id nodeid.ID) ([]any, bool) {
	n, ok := h.index[id]
	if !ok {
		return nil, false
	}
	return n.Metadata, true
}

// GetHeads returns the current set of parentless nodes.
func (h *Hierarchy) GetHeads() []nodeid.ID {
	return h.heads.Slice()
}

// GetDepth returns the minimum number of parent-hops from id to some head
// (0 if id is itself a head). Returns ENOENT if id is unknown.
func (h *Hierarchy) GetDepth(id nodeid.ID) (int, error) {
	n, ok := h.index[id]
	if !ok {
		return 0, selvaerr.New(selvaerr.ENoEnt)
	}
	if n.IsHead() {
		return 0, nil
	}

	depth := 0
	frontier := []nodeid.ID{id}
	h.beginTrx()
	h.stamp(id)

	for len(frontier) > 0 {
		depth++
		var next []nodeid.ID
		for _, cur := range frontier {
			cn := h.index[cur]
			var found bool
			cn.Parents.ForEach(func(p nodeid.ID) bool {
				pn := h.index[p]
				if pn.IsHead() {
					found = true
					return false
				}
				if !h.isStamped(p) {
					h.stamp(p)
					next = append(next, p)
				}
				return true
			})
			if found {
				return depth, nil
			}
		}
		frontier = next
	}
	// Unreachable under well-formed invariants (every chain terminates at
	// a head), but guards against a malformed graph rather than looping.
	return depth, nil
}

func (h *Hierarchy) getOrCreate(id nodeid.ID) (*Node, bool) {
	if n, ok := h.index[id]; ok {
		return n, false
	}
	n := newNode(id, h.hooks)
	h.index[id] = n
	h.heads.Insert(id) // new node starts parentless
	return n, true
}

func (h *Hierarchy) updateHeadStatus(id nodeid.ID) {
	n, ok := h.index[id]
	if !ok {
		return
	}
	if n.IsHead() {
		h.heads.Insert(id)
	} else {
		h.heads.Remove(id)
	}
}

// wouldCycle reports whether adding edge parent -> child would introduce a
// cycle: true iff child is already parent, or child is already an ancestor
// of parent (a path child -> ... -> parent already exists via children
// edges, so closing parent -> child would form a loop).
func (h *Hierarchy) wouldCycle(parent, child nodeid.ID) bool {
	if parent == child {
		return true
	}
	ancestors, _ := h.FindAncestors(parent)
	for _, a := range ancestors {
		if a == child {
			return true
		}
	}
	return false
}

// addEdge wires parent -> child, auto-creating either endpoint if absent,
// rejecting a would-be cycle. It does not roll back partial creation; the
// caller decides whether to undo a node it itself just created.
func (h *Hierarchy) addEdge(parent, child nodeid.ID) error {
	if pn, ok := h.index[parent]; ok {
		if _, has := pn.Children.Find(child); has {
			return nil // already wired; idempotent
		}
	}
	if h.wouldCycle(parent, child) {
		return selvaerr.New(selvaerr.EInval)
	}

	pn, _ := h.getOrCreate(parent)
	cn, _ := h.getOrCreate(child)
	pn.Children.Insert(child)
	cn.Parents.Insert(parent)
	h.updateHeadStatus(child)
	return nil
}

func (h *Hierarchy) removeEdge(parent, child nodeid.ID) {
	pn, ok := h.index[parent]
	if ok {
		pn.Children.Remove(child)
	}
	cn, ok := h.index[child]
	if ok {
		cn.Parents.Remove(parent)
		h.updateHeadStatus(child)
	}
}

// SetParents upserts id and replaces its entire parent edge set with
// parents, auto-creating any referenced node. Rejects a cycle with EINVAL,
// leaving prior edges for id intact.
func (h *Hierarchy) SetParents(id nodeid.ID, parents []nodeid.ID) error {
	n, _ := h.getOrCreate(id)
	old := n.Parents.Slice()

	want := make(map[nodeid.ID]struct{}, len(parents))
	for _, p := range parents {
		want[p] = struct{}{}
	}
	have := make(map[nodeid.ID]struct{}, len(old))
	for _, p := range old {
		have[p] = struct{}{}
	}

	for _, p := range parents {
		if _, already := have[p]; already {
			continue
		}
		if err := h.addEdge(p, id); err != nil {
			return err
		}
	}
	for _, p := range old {
		if _, keep := want[p]; !keep {
			h.removeEdge(p, id)
		}
	}
	return nil
}

// SetChildren upserts id and replaces its entire child edge set with
// children, symmetric to SetParents.
func (h *Hierarchy) SetChildren(id nodeid.ID, children []nodeid.ID) error {
	n, _ := h.getOrCreate(id)
	old := n.Children.Slice()

	want := make(map[nodeid.ID]struct{}, len(children))
	for _, c := range children {
		want[c] = struct{}{}
	}
	have := make(map[nodeid.ID]struct{}, len(old))
	for _, c := range old {
		have[c] = struct{}{}
	}

	for _, c := range children {
		if _, already := have[c]; already {
			continue
		}
		if err := h.addEdge(id, c); err != nil {
			return err
		}
	}
	for _, c := range old {
		if _, keep := want[c]; !keep {
			h.removeEdge(id, c)
		}
	}
	return nil
}

// SetHierarchy upserts id and replaces both its parent and child edge
// sets. If id did not previously exist and edge wiring fails partway, the
// freshly created node is destroyed before returning the error.
func (h *Hierarchy) SetHierarchy(id nodeid.ID, parents, children []nodeid.ID) error {
	_, created := h.getOrCreate(id)

	if err := h.SetParents(id, parents); err != nil {
		if created {
			h.forceDestroy(id)
		}
		return err
	}
	if err := h.SetChildren(id, children); err != nil {
		if created {
			h.forceDestroy(id)
		}
		return err
	}
	return nil
}

// AddHierarchy upserts id and unions parents/children into its existing
// edge sets.
func (h *Hierarchy) AddHierarchy(id nodeid.ID, parents, children []nodeid.ID) error {
	h.getOrCreate(id)
	for _, p := range parents {
		if err := h.addEdge(p, id); err != nil {
			return err
		}
	}
	for _, c := range children {
		if err := h.addEdge(id, c); err != nil {
			return err
		}
	}
	return nil
}

// DelHierarchy removes exactly the listed edges, if present; absent edges
// are a no-op.
func (h *Hierarchy) DelHierarchy(id nodeid.ID, parents, children []nodeid.ID) error {
	for _, p := range parents {
		h.removeEdge(p, id)
	}
	for _, c := range children {
		h.removeEdge(id, c)
	}
	return nil
}

// DelParents removes all of id's parent edges.
func (h *Hierarchy) DelParents(id nodeid.ID) error {
	n, ok := h.index[id]
	if !ok {
		return selvaerr.New(selvaerr.ENoEnt)
	}
	for _, p := range n.Parents.Slice() {
		h.removeEdge(p, id)
	}
	return nil
}

// DelChildren removes all of id's child edges.
func (h *Hierarchy) DelChildren(id nodeid.ID) error {
	n, ok := h.index[id]
	if !ok {
		return selvaerr.New(selvaerr.ENoEnt)
	}
	for _, c := range n.Children.Slice() {
		h.removeEdge(id, c)
	}
	return nil
}

// DelNode destroys id: runs destructor hooks (clearing attached markers),
// unwires every edge, then removes it from the index and heads.
func (h *Hierarchy) DelNode(id nodeid.ID) error {
	n, ok := h.index[id]
	if !ok {
		return selvaerr.New(selvaerr.ENoEnt)
	}
	h.runDestructors(id, n)

	for _, p := range n.Parents.Slice() {
		h.removeEdge(p, id)
	}
	for _, c := range n.Children.Slice() {
		h.removeEdge(id, c)
	}

	delete(h.index, id)
	h.heads.Remove(id)
	return nil
}

// forceDestroy removes id unconditionally, used only to undo a node this
// same call created moments ago (SetHierarchy's partial-failure rollback).
func (h *Hierarchy) forceDestroy(id nodeid.ID) {
	_ = h.DelNode(id)
}

func (h *Hierarchy) runDestructors(id nodeid.ID, n *Node) {
	for i, hook := range h.hooks {
		if hook.Destruct == nil {
			continue
		}
		var meta any
		if i < len(n.Metadata) {
			meta = n.Metadata[i]
		}
		hook.Destruct(id, meta)
	}
}

func (h *Hierarchy) beginTrx() {
	h.trx++
}

func (h *Hierarchy) stamp(id nodeid.ID) {
	if n, ok := h.index[id]; ok {
		n.stamp = h.trx
	}
}

func (h *Hierarchy) isStamped(id nodeid.ID) bool {
	n, ok := h.index[id]
	return ok && n.stamp == h.trx
}
