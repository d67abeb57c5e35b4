package subs

import (
	"sync"
	"testing"

	"github.com/edirooss/selva-engine/internal/core/hierarchy"
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/subid"
)

func nid(b byte) nodeid.ID { return nodeid.FromBytes([]byte{b}) }

func sid(b byte) subid.ID {
	var id subid.ID
	id[0] = b
	return id
}

// collectingPublisher records every fired event for assertion, guarded by
// a mutex since RefreshAll/Attach may be called from test goroutines in
// future extensions even though today's tests are single-threaded.
type collectingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *collectingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *collectingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func (p *collectingPublisher) flagsFor(node nodeid.ID) []Flag {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Flag
	for _, e := range p.events {
		if e.Node == node {
			out = append(out, e.Flag)
		}
	}
	return out
}

func TestAddAttachesAndFiresCreatedForInitialCoverage(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	pub := &collectingPublisher{}
	s := New(h, pub)

	root, child := nid(1), nid(2)
	if err := h.SetHierarchy(root, nil, []nodeid.ID{child}); err != nil {
		t.Fatalf("seed hierarchy: %v", err)
	}

	m, err := s.Add(sid(1), root, hierarchy.DirBFSDescendants, nil, "", nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if m == nil {
		t.Fatalf("Add returned nil marker")
	}

	rootFlags := pub.flagsFor(root)
	childFlags := pub.flagsFor(child)
	if len(rootFlags) != 1 || rootFlags[0] != FlagCreated {
		t.Fatalf("root flags = %v, want [FlagCreated]", rootFlags)
	}
	if len(childFlags) != 1 || childFlags[0] != FlagCreated {
		t.Fatalf("child flags = %v, want [FlagCreated]", childFlags)
	}
}

func TestRefreshAllFiresCreatedForNewlyReachableNode(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	pub := &collectingPublisher{}
	s := New(h, pub)

	root, descendant := nid(1), nid(2)
	if err := h.SetHierarchy(root, nil, []nodeid.ID{descendant}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.Add(sid(1), root, hierarchy.DirBFSDescendants, nil, "", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pub.reset()

	// Add a new child under the already-covered descendant; RefreshAll
	// must pick it up without any bespoke per-edge bookkeeping.
	grandchild := nid(3)
	if err := h.AddHierarchy(descendant, nil, []nodeid.ID{grandchild}); err != nil {
		t.Fatalf("extend hierarchy: %v", err)
	}
	s.RefreshAll()

	flags := pub.flagsFor(grandchild)
	if len(flags) != 1 || flags[0] != FlagCreated {
		t.Fatalf("grandchild flags after RefreshAll = %v, want [FlagCreated]", flags)
	}
}

func TestRefreshAllFiresDeletedForNodeLeavingCoverage(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	pub := &collectingPublisher{}
	s := New(h, pub)

	root, child := nid(1), nid(2)
	if err := h.SetHierarchy(root, nil, []nodeid.ID{child}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Add(sid(1), root, hierarchy.DirBFSDescendants, nil, "", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pub.reset()

	if err := h.DelHierarchy(root, nil, []nodeid.ID{child}); err != nil {
		t.Fatalf("DelHierarchy: %v", err)
	}
	s.RefreshAll()

	flags := pub.flagsFor(child)
	if len(flags) != 1 || flags[0] != FlagDeleted {
		t.Fatalf("child flags after edge removal = %v, want [FlagDeleted]", flags)
	}
}

func TestClearDetachesWithoutFiringDeleted(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	pub := &collectingPublisher{}
	s := New(h, pub)

	root := nid(1)
	if err := h.SetHierarchy(root, nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Add(sid(1), root, hierarchy.DirNode, nil, "", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pub.reset()

	if !s.Del(sid(1)) {
		t.Fatalf("Del reported subscription not found")
	}
	flags := pub.flagsFor(root)
	if len(flags) != 0 {
		t.Fatalf("teardown fired events %v, want none", flags)
	}
}

func TestDeletingNodeFiresDeletedAndClearsItsMarkers(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	pub := &collectingPublisher{}
	s := New(h, pub)

	node := nid(1)
	if err := h.SetHierarchy(node, nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Add(sid(1), node, hierarchy.DirNode, nil, "", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pub.reset()

	if err := h.DelNode(node); err != nil {
		t.Fatalf("DelNode: %v", err)
	}

	flags := pub.flagsFor(node)
	if len(flags) != 1 || flags[0] != FlagDeleted {
		t.Fatalf("flags after DelNode = %v, want [FlagDeleted]", flags)
	}
}

func TestFieldFilterGatesFireFieldChange(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	pub := &collectingPublisher{}
	s := New(h, pub)

	node := nid(1)
	if err := h.SetHierarchy(node, nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Add(sid(1), node, hierarchy.DirNode, []string{"name"}, "", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	pub.reset()

	s.FireFieldChange(node, "other")
	if flags := pub.flagsFor(node); len(flags) != 0 {
		t.Fatalf("expected no fire for a non-matching field, got %v", flags)
	}

	s.FireFieldChange(node, "name")
	if flags := pub.flagsFor(node); len(flags) != 1 || flags[0] != FlagFields {
		t.Fatalf("expected one FlagFields fire for a matching field, got %v", flags)
	}
}

func TestRpnPredicateGatesFiring(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	pub := &collectingPublisher{}
	s := New(h, pub)

	match, noMatch := nid(1), nid(2)
	if err := h.SetHierarchy(match, nil, nil); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	if err := h.SetHierarchy(noMatch, nil, nil); err != nil {
		t.Fatalf("seed noMatch: %v", err)
	}

	// $0 b "<tag> c: predicate true only for nodes whose type tag matches
	// match's tag (the literal string token carries no closing quote; its
	// payload runs to the next whitespace-delimited field).
	filter := `$0 b "` + string([]byte{1, 0}) + ` c`
	if _, err := s.Add(sid(1), match, hierarchy.DirNode, nil, filter, nil); err != nil {
		t.Fatalf("Add(match): %v", err)
	}
	if _, err := s.Add(sid(2), noMatch, hierarchy.DirNode, nil, filter, nil); err != nil {
		t.Fatalf("Add(noMatch): %v", err)
	}

	if flags := pub.flagsFor(match); len(flags) != 1 || flags[0] != FlagCreated {
		t.Fatalf("match flags = %v, want [FlagCreated]", flags)
	}
	if flags := pub.flagsFor(noMatch); len(flags) != 0 {
		t.Fatalf("noMatch flags = %v, want none (predicate should suppress the fire)", flags)
	}
}

func TestGetAndListReflectRegisteredSubscriptions(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	s := New(h, nil)

	root := nid(1)
	if err := h.SetHierarchy(root, nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Add(sid(1), root, hierarchy.DirNode, nil, "", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, ok := s.Get(sid(1)); !ok {
		t.Fatalf("Get(sid(1)) not found after Add")
	}
	if _, ok := s.Get(sid(2)); ok {
		t.Fatalf("Get(sid(2)) unexpectedly found")
	}

	ids := s.List()
	if len(ids) != 1 || ids[0] != sid(1) {
		t.Fatalf("List() = %v, want [sid(1)]", ids)
	}
}

func TestDelUnknownSubscriptionReturnsFalse(t *testing.T) {
	t.Parallel()

	h := hierarchy.New()
	s := New(h, nil)
	if s.Del(sid(99)) {
		t.Fatalf("Del on unknown subscription reported success")
	}
}
