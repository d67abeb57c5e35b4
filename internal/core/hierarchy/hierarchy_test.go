package hierarchy

import (
	"testing"

	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
)

func id(b byte) nodeid.ID {
	return nodeid.FromBytes([]byte{b})
}

func TestAddHierarchyWiresSymmetricEdges(t *testing.T) {
	t.Parallel()

	h := New()
	parent, child := id(1), id(2)

	if err := h.AddHierarchy(child, []nodeid.ID{parent}, nil); err != nil {
		t.Fatalf("AddHierarchy: %v", err)
	}

	meta, ok := h.GetMetadata(parent)
	if !ok {
		t.Fatalf("parent not auto-created")
	}
	_ = meta

	heads := h.GetHeads()
	if len(heads) != 1 || heads[0] != parent {
		t.Fatalf("expected parent to be the sole head, got %v", heads)
	}

	desc, err := h.FindDescendants(parent)
	if err != nil || len(desc) != 1 || desc[0] != child {
		t.Fatalf("FindDescendants(parent) = %v, %v", desc, err)
	}
}

func TestAddHierarchyRejectsCycle(t *testing.T) {
	t.Parallel()

	h := New()
	a, b, c := id(1), id(2), id(3)

	if err := h.SetHierarchy(a, nil, []nodeid.ID{b}); err != nil {
		t.Fatalf("seed a->b: %v", err)
	}
	if err := h.AddHierarchy(b, nil, []nodeid.ID{c}); err != nil {
		t.Fatalf("seed b->c: %v", err)
	}

	err := h.AddHierarchy(c, nil, []nodeid.ID{a})
	if err == nil {
		t.Fatalf("expected cycle rejection, got nil")
	}
	if selvaerr.CodeOf(err) != selvaerr.EInval {
		t.Fatalf("expected EINVAL, got %v", err)
	}
}

func TestAddHierarchySelfEdgeRejected(t *testing.T) {
	t.Parallel()

	h := New()
	a := id(1)
	err := h.AddHierarchy(a, nil, []nodeid.ID{a})
	if err == nil || selvaerr.CodeOf(err) != selvaerr.EInval {
		t.Fatalf("expected EINVAL for self-edge, got %v", err)
	}
}

func TestSetParentsReplacesEdgeSet(t *testing.T) {
	t.Parallel()

	h := New()
	child, p1, p2, p3 := id(1), id(2), id(3), id(4)

	if err := h.SetParents(child, []nodeid.ID{p1, p2}); err != nil {
		t.Fatalf("SetParents initial: %v", err)
	}
	if err := h.SetParents(child, []nodeid.ID{p2, p3}); err != nil {
		t.Fatalf("SetParents replace: %v", err)
	}

	anc, err := h.FindAncestors(child)
	if err != nil {
		t.Fatalf("FindAncestors: %v", err)
	}
	got := map[nodeid.ID]bool{}
	for _, a := range anc {
		got[a] = true
	}
	if len(got) != 2 || !got[p2] || !got[p3] {
		t.Fatalf("ancestors = %v, want {p2, p3}", anc)
	}
	// p1 lost its only edge and becomes both a head and childless: still
	// present in the index as an orphan node.
	if !h.NodeExists(p1) {
		t.Fatalf("p1 should still exist as an orphan")
	}
}

func TestDelHierarchyRemovesOnlyListedEdges(t *testing.T) {
	t.Parallel()

	h := New()
	parent, c1, c2 := id(1), id(2), id(3)
	if err := h.SetChildren(parent, []nodeid.ID{c1, c2}); err != nil {
		t.Fatalf("SetChildren: %v", err)
	}

	if err := h.DelHierarchy(parent, nil, []nodeid.ID{c1}); err != nil {
		t.Fatalf("DelHierarchy: %v", err)
	}

	desc, err := h.FindDescendants(parent)
	if err != nil || len(desc) != 1 || desc[0] != c2 {
		t.Fatalf("FindDescendants(parent) = %v, %v, want [c2]", desc, err)
	}
}

func TestDelParentsAndDelChildrenClearAllEdges(t *testing.T) {
	t.Parallel()

	h := New()
	mid, p1, p2, c1 := id(1), id(2), id(3), id(4)
	if err := h.SetHierarchy(mid, []nodeid.ID{p1, p2}, []nodeid.ID{c1}); err != nil {
		t.Fatalf("SetHierarchy: %v", err)
	}

	if err := h.DelParents(mid); err != nil {
		t.Fatalf("DelParents: %v", err)
	}
	anc, _ := h.FindAncestors(mid)
	if len(anc) != 0 {
		t.Fatalf("expected no ancestors after DelParents, got %v", anc)
	}

	if err := h.DelChildren(mid); err != nil {
		t.Fatalf("DelChildren: %v", err)
	}
	desc, _ := h.FindDescendants(mid)
	if len(desc) != 0 {
		t.Fatalf("expected no descendants after DelChildren, got %v", desc)
	}
}

func TestDelParentsUnknownNodeReturnsENoEnt(t *testing.T) {
	t.Parallel()

	h := New()
	err := h.DelParents(id(99))
	if err == nil || selvaerr.CodeOf(err) != selvaerr.ENoEnt {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestDelNodeUnwiresEdgesAndRunsDestructor(t *testing.T) {
	t.Parallel()

	h := New()

	var constructed, destructed []nodeid.ID
	h.RegisterMetadataHook(MetadataHook{
		Construct: func(id nodeid.ID) any {
			constructed = append(constructed, id)
			return "meta-" + id.String()
		},
		Destruct: func(id nodeid.ID, meta any) {
			destructed = append(destructed, id)
		},
	})

	parent, child := id(1), id(2)
	if err := h.SetHierarchy(parent, nil, []nodeid.ID{child}); err != nil {
		t.Fatalf("SetHierarchy: %v", err)
	}
	if len(constructed) != 2 {
		t.Fatalf("expected both nodes constructed, got %v", constructed)
	}

	if err := h.DelNode(parent); err != nil {
		t.Fatalf("DelNode: %v", err)
	}
	if len(destructed) != 1 || destructed[0] != parent {
		t.Fatalf("expected destructor to fire for parent, got %v", destructed)
	}
	if h.NodeExists(parent) {
		t.Fatalf("parent should no longer exist")
	}
	anc, _ := h.FindAncestors(child)
	if len(anc) != 0 {
		t.Fatalf("child should have lost its parent edge, ancestors = %v", anc)
	}
}

func TestGetDepth(t *testing.T) {
	t.Parallel()

	h := New()
	head, mid, leaf := id(1), id(2), id(3)
	if err := h.SetHierarchy(head, nil, []nodeid.ID{mid}); err != nil {
		t.Fatalf("seed head->mid: %v", err)
	}
	if err := h.AddHierarchy(mid, nil, []nodeid.ID{leaf}); err != nil {
		t.Fatalf("seed mid->leaf: %v", err)
	}

	d, err := h.GetDepth(head)
	if err != nil || d != 0 {
		t.Fatalf("GetDepth(head) = %d, %v, want 0", d, err)
	}
	d, err = h.GetDepth(leaf)
	if err != nil || d != 2 {
		t.Fatalf("GetDepth(leaf) = %d, %v, want 2", d, err)
	}
}

func TestGetDepthUnknownNode(t *testing.T) {
	t.Parallel()

	h := New()
	_, err := h.GetDepth(id(42))
	if err == nil || selvaerr.CodeOf(err) != selvaerr.ENoEnt {
		t.Fatalf("expected ENOENT, got %v", err)
	}
}

func TestSetHierarchyRollsBackOnPartialFailure(t *testing.T) {
	t.Parallel()

	h := New()
	// Seed an existing chain a -> b so that wiring new node n as a child
	// of b, then as a parent of a, would close a cycle on the children
	// pass.
	a, b, n := id(1), id(2), id(3)
	if err := h.SetHierarchy(a, nil, []nodeid.ID{b}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := h.SetHierarchy(n, []nodeid.ID{b}, []nodeid.ID{a})
	if err == nil {
		t.Fatalf("expected cycle rejection")
	}
	if h.NodeExists(n) {
		t.Fatalf("n should have been rolled back after partial failure")
	}
}
