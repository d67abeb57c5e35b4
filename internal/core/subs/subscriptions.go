// Package subs implements subscription markers attached to hierarchy
// nodes: registration, traversal-based attach/detach, and change-driven
// event firing gated by field filters and RPN predicates.
//
// Subscriptions attaches to a Hierarchy purely through the hierarchy's
// metadata hook registry (see hierarchy.MetadataHook); the hierarchy
// package never imports this one.
package subs

import (
	"github.com/edirooss/selva-engine/internal/core/hierarchy"
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/rpn"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
	"github.com/edirooss/selva-engine/internal/core/subid"
)

// markerSet is the per-node metadata slot: the markers currently attached
// to this node because some marker's traversal reaches it.
type markerSet struct {
	markers map[*Marker]struct{}
}

// Subscriptions indexes subscriptions by ID and wires itself into h's
// metadata hook registry. Construct it before any node is created on h —
// hooks only run for nodes created after registration.
type Subscriptions struct {
	h       *hierarchy.Hierarchy
	index   map[subid.ID]*Subscription
	publish Publisher
}

// New registers the marker-set metadata hook on h and returns the manager.
// publish may be nil, in which case fired events are silently discarded
// (useful for tests that only assert attachment invariants).
func New(h *hierarchy.Hierarchy, publish Publisher) *Subscriptions {
	if publish == nil {
		publish = discardPublisher{}
	}
	s := &Subscriptions{
		h:       h,
		index:   make(map[subid.ID]*Subscription),
		publish: publish,
	}
	h.RegisterMetadataHook(hierarchy.MetadataHook{
		Construct: func(nodeid.ID) any {
			return &markerSet{markers: make(map[*Marker]struct{})}
		},
		Destruct: func(id nodeid.ID, meta any) {
			s.clearAllMarkers(id, meta.(*markerSet))
		},
	})
	return s
}

// getOrCreate returns the subscription for id, creating an empty one if
// absent.
func (s *Subscriptions) getOrCreate(id subid.ID) *Subscription {
	if sub, ok := s.index[id]; ok {
		return sub
	}
	sub := &Subscription{ID: id}
	s.index[id] = sub
	return sub
}

// Add creates a marker from the given spec, appends it to subscription id
// (creating the subscription if absent), and attaches it to the
// hierarchy. Matches the source's "add a second marker" behavior for a
// repeated (subscription, origin, direction) tuple: no dedup check.
func (s *Subscriptions) Add(id subid.ID, origin nodeid.ID, dir hierarchy.Direction, fields []string, filterExpr string, fieldReader rpn.FieldReader) (*Marker, error) {
	m, err := NewMarker(origin, dir, fields, filterExpr, fieldReader)
	if err != nil {
		return nil, err
	}

	sub := s.getOrCreate(id)
	m.Owner = sub
	sub.Markers = append(sub.Markers, m)
	sub.MarkerFlagsUnion |= m.Flags

	s.Attach(m)
	return m, nil
}

// Attach walks m's traversal from its origin and inserts a reference to m
// into every visited node's marker set. Re-attaching an already-attached
// marker is equivalent to Refresh: nodes newly reachable fire FlagCreated,
// nodes no longer reachable fire FlagDeleted and are detached.
func (s *Subscriptions) Attach(m *Marker) {
	current := s.reachable(m)

	if m.attachedNodes == nil {
		m.attachedNodes = make(map[nodeid.ID]struct{})
	}

	for id := range current {
		if _, had := m.attachedNodes[id]; had {
			continue
		}
		if ms := s.markerSetAt(id); ms != nil {
			ms.markers[m] = struct{}{}
		}
	}
	for id := range m.attachedNodes {
		if _, still := current[id]; still {
			continue
		}
		if ms := s.markerSetAt(id); ms != nil {
			delete(ms.markers, m)
		}
	}

	newly := make([]nodeid.ID, 0)
	left := make([]nodeid.ID, 0)
	for id := range current {
		if _, had := m.attachedNodes[id]; !had {
			newly = append(newly, id)
		}
	}
	for id := range m.attachedNodes {
		if _, still := current[id]; !still {
			left = append(left, id)
		}
	}

	m.attachedNodes = current
	m.attached = true

	for _, id := range newly {
		s.fireOne(m, id, FlagCreated, "")
	}
	for _, id := range left {
		s.fireOne(m, id, FlagDeleted, "")
	}
}

// Clear fully detaches m: removes its reference from every node it
// currently covers, without firing FlagDeleted (this is teardown, not a
// node leaving a still-live marker's region).
func (s *Subscriptions) Clear(m *Marker) {
	if !m.attached {
		return
	}
	for id := range m.attachedNodes {
		if ms := s.markerSetAt(id); ms != nil {
			delete(ms.markers, m)
		}
	}
	m.attachedNodes = nil
	m.attached = false
}

// Refresh re-derives every marker of subscription id's attachment from the
// current hierarchy shape, firing Created/Deleted events for nodes that
// entered or left each marker's coverage.
func (s *Subscriptions) Refresh(id subid.ID) error {
	sub, ok := s.index[id]
	if !ok {
		return selvaerr.New(selvaerr.ENoEnt)
	}
	for _, m := range sub.Markers {
		s.Attach(m)
	}
	return nil
}

// RefreshAll re-derives attachment for every marker of every subscription.
// Called after any hierarchy-structural mutation so markers pick up newly
// (or no longer) reachable nodes, per the engine's "attach via traversal"
// contract — this trades the source's incremental edge-walk update for a
// full re-derive, simpler and still correct at the core's target scale.
func (s *Subscriptions) RefreshAll() {
	for _, sub := range s.index {
		for _, m := range sub.Markers {
			s.Attach(m)
		}
	}
}

func (s *Subscriptions) markerSetAt(id nodeid.ID) *markerSet {
	meta, ok := s.h.GetMetadata(id)
	if !ok || len(meta) == 0 {
		return nil
	}
	ms, _ := meta[0].(*markerSet)
	return ms
}

// reachable returns the current set of nodes m's traversal covers.
func (s *Subscriptions) reachable(m *Marker) map[nodeid.ID]struct{} {
	out := make(map[nodeid.ID]struct{})
	if !s.h.NodeExists(m.Origin) {
		return out
	}
	if m.Dir == hierarchy.DirNode {
		out[m.Origin] = struct{}{}
		return out
	}
	_ = s.h.Traverse(m.Origin, m.Dir, func(id nodeid.ID) bool {
		out[id] = struct{}{}
		return true
	})
	return out
}

// List returns every registered subscription ID.
func (s *Subscriptions) List() []subid.ID {
	out := make([]subid.ID, 0, len(s.index))
	for id := range s.index {
		out = append(out, id)
	}
	return out
}

// Get returns the subscription for id, if present.
func (s *Subscriptions) Get(id subid.ID) (*Subscription, bool) {
	sub, ok := s.index[id]
	return sub, ok
}

// Del destroys every marker of subscription id, then removes it from the
// index. Returns false if id was not registered.
func (s *Subscriptions) Del(id subid.ID) bool {
	sub, ok := s.index[id]
	if !ok {
		return false
	}
	for _, m := range sub.Markers {
		s.Clear(m)
	}
	delete(s.index, id)
	return true
}

// clearAllMarkers is the hierarchy destructor hook: it fires FlagDeleted
// for the node being removed, then snapshots the node's marker set (to
// avoid mutating it while iterating) and fully clears each marker via its
// own traversal, not just this one node — matching "invoke its own clear
// from the deleted node."
func (s *Subscriptions) clearAllMarkers(id nodeid.ID, ms *markerSet) {
	s.fire(id, FlagDeleted, "")

	snapshot := make([]*Marker, 0, len(ms.markers))
	for m := range ms.markers {
		snapshot = append(snapshot, m)
	}
	for _, m := range snapshot {
		s.Clear(m)
	}
}

// FireFieldChange notifies markers attached to node that field changed.
func (s *Subscriptions) FireFieldChange(node nodeid.ID, field string) {
	s.fire(node, FlagFields, field)
}

// FireCreated notifies markers attached to node that it came into
// existence within their traversal region.
func (s *Subscriptions) FireCreated(node nodeid.ID) {
	s.fire(node, FlagCreated, "")
}

// FireDeleted notifies markers attached to node that it left their
// traversal region.
func (s *Subscriptions) FireDeleted(node nodeid.ID) {
	s.fire(node, FlagDeleted, "")
}

// fireOne evaluates and publishes a single marker's event for node,
// independent of whatever else is in that node's marker set — used by
// Attach when a reachability diff identifies exactly which marker just
// gained or lost coverage of node.
func (s *Subscriptions) fireOne(m *Marker, node nodeid.ID, reason Flag, field string) {
	if m.Flags&reason == 0 {
		return
	}
	if reason == FlagFields && !m.matchesField(field) {
		return
	}
	if !m.evalPredicate(node) {
		return
	}
	s.publish.Publish(Event{
		SubscriptionID: m.Owner.ID.Hex(),
		Node:           node,
		Flag:           reason,
		Field:          field,
	})
}

func (s *Subscriptions) fire(node nodeid.ID, reason Flag, field string) {
	meta, ok := s.h.GetMetadata(node)
	if !ok || len(meta) == 0 {
		return
	}
	ms, ok := meta[0].(*markerSet)
	if !ok {
		return
	}

	for m := range ms.markers {
		if m.Flags&reason == 0 {
			continue
		}
		if reason == FlagFields && !m.matchesField(field) {
			continue
		}
		if !m.evalPredicate(node) {
			continue
		}
		s.publish.Publish(Event{
			SubscriptionID: m.Owner.ID.Hex(),
			Node:           node,
			Flag:           reason,
			Field:          field,
		})
	}
}
