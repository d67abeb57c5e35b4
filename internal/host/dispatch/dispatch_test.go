package dispatch

import (
	"testing"

	"github.com/edirooss/selva-engine/internal/core/engine"
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/object"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
	"github.com/edirooss/selva-engine/internal/core/subid"
)

func newDispatcher() *Dispatcher {
	return New(engine.New(nil))
}

func TestObjectSetGetDelRoundTrip(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	key := nodeid.FromBytes([]byte{1})

	if n, err := d.ObjectSet(key, "name", 's', "widget"); err != nil || n != 1 {
		t.Fatalf("ObjectSet(string) = %d, %v", n, err)
	}
	if got, err := d.ObjectGet(key, "name"); err != nil || got != "widget" {
		t.Fatalf("ObjectGet(name) = %v, %v", got, err)
	}
	if d.ObjectExists(key, "name") != 1 {
		t.Fatalf("ObjectExists(name) = 0, want 1")
	}
	if d.ObjectType(key, "name") != object.KindString.String() {
		t.Fatalf("ObjectType(name) = %q", d.ObjectType(key, "name"))
	}

	n, err := d.ObjectDel(key, "name")
	if err != nil || n != 1 {
		t.Fatalf("ObjectDel(name) = %d, %v", n, err)
	}
	if d.ObjectExists(key, "name") != 0 {
		t.Fatalf("ObjectExists(name) after Del = 1, want 0")
	}
}

func TestObjectDelOnAbsentObjectIsANoop(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	key := nodeid.FromBytes([]byte{99})

	n, err := d.ObjectDel(key, "whatever")
	if err != nil || n != 0 {
		t.Fatalf("ObjectDel on absent object = %d, %v, want 0, nil", n, err)
	}
}

func TestObjectSetTypeSDedupesAcrossValArgs(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	key := nodeid.FromBytes([]byte{1})

	n, err := d.ObjectSet(key, "tags", 'S', "a", "b", "a")
	if err != nil {
		t.Fatalf("ObjectSet(set): %v", err)
	}
	if n != 2 {
		t.Fatalf("ObjectSet(set) stored = %d, want 2 (duplicate VAL not re-counted)", n)
	}
}

func TestObjectSetRejectsMultipleValsForScalarTypes(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	key := nodeid.FromBytes([]byte{1})

	for _, typ := range []byte{'f', 'i', 's'} {
		if _, err := d.ObjectSet(key, "x", typ, "1", "2"); err == nil || selvaerr.CodeOf(err) != selvaerr.EInval {
			t.Fatalf("ObjectSet(type=%c) with 2 vals: err = %v, want EINVAL", typ, err)
		}
	}
}

func TestObjectSetUnknownTypeReturnsEIntType(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	key := nodeid.FromBytes([]byte{1})

	if _, err := d.ObjectSet(key, "x", 'z', "v"); err == nil || selvaerr.CodeOf(err) != selvaerr.EIntType {
		t.Fatalf("ObjectSet unknown type: err = %v, want EINTYPE", err)
	}
}

func TestObjectGetReturnsFirstResolvingPath(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	key := nodeid.FromBytes([]byte{1})

	if _, err := d.ObjectSet(key, "b", 's', "second"); err != nil {
		t.Fatalf("ObjectSet(b): %v", err)
	}

	got, err := d.ObjectGet(key, "a", "b", "c")
	if err != nil {
		t.Fatalf("ObjectGet: %v", err)
	}
	if got != "second" {
		t.Fatalf("ObjectGet(a, b, c) = %v, want %q (first resolving path)", got, "second")
	}
}

func TestObjectLenWholeObjectAndScopedPath(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	key := nodeid.FromBytes([]byte{1})

	if _, err := d.ObjectSet(key, "name", 's', "widget"); err != nil {
		t.Fatalf("ObjectSet: %v", err)
	}

	n, err := d.ObjectLen(key, "")
	if err != nil || n != 1 {
		t.Fatalf("ObjectLen(whole) = %d, %v, want 1", n, err)
	}
	n, err = d.ObjectLen(key, "name")
	if err != nil || n != len("widget") {
		t.Fatalf("ObjectLen(name) = %d, %v, want %d", n, err, len("widget"))
	}
}

func TestSubscriptionsAddRefreshListDebugDel(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	origin := nodeid.FromBytes([]byte{1})
	if err := d.Engine.SetHierarchy(origin, nil, nil); err != nil {
		t.Fatalf("SetHierarchy: %v", err)
	}

	sub := subid.ID{1}
	n, err := d.SubscriptionsAdd(sub, "node", origin, nil, "")
	if err != nil || n != 1 {
		t.Fatalf("SubscriptionsAdd = %d, %v", n, err)
	}

	if ids := d.SubscriptionsList(); len(ids) != 1 || ids[0] != sub.Hex() {
		t.Fatalf("SubscriptionsList = %v, want [%s]", ids, sub.Hex())
	}

	debug, err := d.SubscriptionsDebug(sub)
	if err != nil || len(debug) != 1 {
		t.Fatalf("SubscriptionsDebug = %v, %v, want one marker line", debug, err)
	}

	n, err = d.SubscriptionsRefresh(sub)
	if err != nil || n != 1 {
		t.Fatalf("SubscriptionsRefresh = %d, %v", n, err)
	}

	if d.SubscriptionsDel(sub) != 1 {
		t.Fatalf("SubscriptionsDel reported not found")
	}
	if d.SubscriptionsDel(sub) != 0 {
		t.Fatalf("SubscriptionsDel twice should report not found the second time")
	}
}

func TestSubscriptionsAddRejectsUnknownDirection(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	origin := nodeid.FromBytes([]byte{1})
	if _, err := d.SubscriptionsAdd(subid.ID{1}, "sideways", origin, nil, ""); err == nil || selvaerr.CodeOf(err) != selvaerr.EInval {
		t.Fatalf("SubscriptionsAdd with unknown direction: err = %v, want EINVAL", err)
	}
}

func TestModifyAllocatesSuffixForBareTag(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	var bareTag nodeid.ID
	bareTag[0], bareTag[1] = 0xaa, 0xbb

	target, err := d.Modify(bareTag, []FieldOp{{Type: FieldValue, Field: "name", Str: "widget"}})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if target == bareTag {
		t.Fatalf("Modify did not allocate a suffix for a bare-tag ID")
	}
	if target.Tag() != bareTag.Tag() {
		t.Fatalf("allocated ID tag = %x, want %x", target.Tag(), bareTag.Tag())
	}

	got, ok := d.Engine.GetField(target, "name")
	if !ok || got != "widget" {
		t.Fatalf("GetField(name) = %q, %v, want widget, true", got, ok)
	}
}

func TestModifyUsesFullIDAsIs(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	full := nodeid.FromBytes([]byte{0xaa, 0xbb, 1, 2, 3, 4, 5, 6, 7, 8})

	target, err := d.Modify(full, []FieldOp{{Type: FieldValue, Field: "name", Str: "widget"}})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if target != full {
		t.Fatalf("Modify(full id) = %s, want %s unchanged", target, full)
	}
}

func TestModifyIncrementUsesDefaultWhenAbsentThenIncrements(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	id := nodeid.FromBytes([]byte{0xaa, 0xbb, 1, 2, 3, 4, 5, 6, 7, 8})

	// The increment is always applied, even on first creation: absent ->
	// Default + Increment, not just Default.
	spec := &IncrementSpec{Default: 10, Increment: 5}
	target, err := d.Modify(id, []FieldOp{{Type: FieldOpIncrement, Field: "count", Increment: spec}})
	if err != nil {
		t.Fatalf("Modify(increment, first): %v", err)
	}
	v, err := d.Engine.Object(target).GetLong("count")
	if err != nil || v != 15 {
		t.Fatalf("count after first increment = %v, %v, want 15 (10 + 5)", v, err)
	}

	if _, err := d.Modify(id, []FieldOp{{Type: FieldOpIncrement, Field: "count", Increment: spec}}); err != nil {
		t.Fatalf("Modify(increment, second): %v", err)
	}
	v, err = d.Engine.Object(target).GetLong("count")
	if err != nil || v != 20 {
		t.Fatalf("count after second increment = %v, %v, want 20 (15 + 5)", v, err)
	}
}

func TestModifySetOpAddsAndDeletesMembers(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	id := nodeid.FromBytes([]byte{0xaa, 0xbb, 1, 2, 3, 4, 5, 6, 7, 8})

	spec := &SetSpec{Value: []string{"a", "b"}}
	target, err := d.Modify(id, []FieldOp{{Type: FieldOpSet, Field: "tags", Set: spec}})
	if err != nil {
		t.Fatalf("Modify(set, seed): %v", err)
	}

	spec2 := &SetSpec{Add: []string{"c"}, Delete: []string{"a"}}
	if _, err := d.Modify(id, []FieldOp{{Type: FieldOpSet, Field: "tags", Set: spec2}}); err != nil {
		t.Fatalf("Modify(set, add/delete): %v", err)
	}

	members, err := d.Engine.Object(target).GetSet("tags")
	if err != nil {
		t.Fatalf("GetSet: %v", err)
	}
	want := map[string]bool{"b": true, "c": true}
	if len(members) != len(want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
	for _, m := range members {
		if !want[m] {
			t.Fatalf("unexpected member %q in %v", m, members)
		}
	}
}

func TestModifySetOpValueReplacesExistingMembers(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	id := nodeid.FromBytes([]byte{0xaa, 0xbb, 1, 2, 3, 4, 5, 6, 7, 8})

	if _, err := d.Modify(id, []FieldOp{{Type: FieldOpSet, Field: "tags", Set: &SetSpec{Value: []string{"a", "b"}}}}); err != nil {
		t.Fatalf("Modify(set, seed): %v", err)
	}

	target, err := d.Modify(id, []FieldOp{{Type: FieldOpSet, Field: "tags", Set: &SetSpec{Value: []string{"c"}}}})
	if err != nil {
		t.Fatalf("Modify(set, replace): %v", err)
	}

	members, err := d.Engine.Object(target).GetSet("tags")
	if err != nil {
		t.Fatalf("GetSet: %v", err)
	}
	if len(members) != 1 || members[0] != "c" {
		t.Fatalf("members = %v, want [c] (Value replaces, not unions onto, the prior set)", members)
	}
}

func TestModifySetOpReferenceFieldRoutesThroughHierarchy(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	node := nodeid.FromBytes([]byte{0xaa, 0xbb, 1, 2, 3, 4, 5, 6, 7, 8})
	parentA := nodeid.FromBytes([]byte{2})
	parentB := nodeid.FromBytes([]byte{3})
	childC := nodeid.FromBytes([]byte{4})

	if err := d.Engine.SetHierarchy(node, nil, nil); err != nil {
		t.Fatalf("seed node: %v", err)
	}
	if err := d.Engine.SetHierarchy(parentA, nil, nil); err != nil {
		t.Fatalf("seed parentA: %v", err)
	}
	if err := d.Engine.SetHierarchy(parentB, nil, nil); err != nil {
		t.Fatalf("seed parentB: %v", err)
	}
	if err := d.Engine.SetHierarchy(childC, nil, nil); err != nil {
		t.Fatalf("seed childC: %v", err)
	}

	spec := &SetSpec{Value: []string{parentA.String(), parentB.String()}, IsReference: true}
	if _, err := d.Modify(node, []FieldOp{{Type: FieldOpSet, Field: "parents", Set: spec}}); err != nil {
		t.Fatalf("Modify(set, parents): %v", err)
	}
	if got, err := d.Engine.Hierarchy.GetDepth(node); err != nil || got != 1 {
		t.Fatalf("GetDepth(node) = %d, %v, want 1 (one level below a parent)", got, err)
	}

	spec2 := &SetSpec{Add: []string{childC.String()}, IsReference: true}
	if _, err := d.Modify(node, []FieldOp{{Type: FieldOpSet, Field: "children", Set: spec2}}); err != nil {
		t.Fatalf("Modify(set, children): %v", err)
	}
	if !d.Engine.Hierarchy.NodeExists(childC) {
		t.Fatalf("childC not wired in by a reference-field add")
	}

	// The reference-field set never touches the typed object.
	if d.Engine.Object(node).Exists("parents") {
		t.Fatalf("reference-field set leaked into the typed object store")
	}
}

func TestModifyIndexedValueSetsMeta(t *testing.T) {
	t.Parallel()

	d := newDispatcher()
	id := nodeid.FromBytes([]byte{1})

	target, err := d.Modify(id, []FieldOp{{Type: FieldIndexedValue, Field: "name", Str: "widget"}})
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	meta, ok := d.Engine.Object(target).GetMeta("name")
	if !ok || meta != "indexed" {
		t.Fatalf("GetMeta(name) = %v, %v, want \"indexed\", true", meta, ok)
	}
}
