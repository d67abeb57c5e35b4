// Package engine wires the three core components — Hierarchy, per-node
// Typed Objects, and Subscriptions — into the single unit a host key
// addresses: the triad that must interact for a hierarchy mutation to
// locate affected markers and for a marker's predicate to read object
// fields.
package engine

import (
	"strconv"

	"github.com/edirooss/selva-engine/internal/core/hierarchy"
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/object"
	"github.com/edirooss/selva-engine/internal/core/subs"
)

// Engine is the per-key triad: Hierarchy for structure, one Typed Object
// per node for attributes, Subscriptions for reactive markers over both.
type Engine struct {
	Hierarchy *hierarchy.Hierarchy
	Subs      *subs.Subscriptions

	objects    map[nodeid.ID]*object.Object
	allocators map[[nodeid.TagSize]byte]*hierarchy.IDAllocator
}

// New returns an empty Engine. publish receives every marker-fire event;
// pass nil to discard them (e.g. in tests that only assert attachment).
func New(publish subs.Publisher) *Engine {
	h := hierarchy.New()
	e := &Engine{
		Hierarchy:  h,
		objects:    make(map[nodeid.ID]*object.Object),
		allocators: make(map[[nodeid.TagSize]byte]*hierarchy.IDAllocator),
	}
	e.Subs = subs.New(h, publish)
	return e
}

// AllocID returns a fresh, currently-unused NodeId stamped with tag,
// lazily creating the per-tag allocator on first use. Backs modify's
// "auto-generated ID when the caller supplies only a type prefix" case.
func (e *Engine) AllocID(tag [nodeid.TagSize]byte) nodeid.ID {
	a, ok := e.allocators[tag]
	if !ok {
		a = hierarchy.NewIDAllocator(e.Hierarchy, tag)
		e.allocators[tag] = a
	}
	return a.Alloc()
}

// Object returns the typed object for id, creating an empty one on first
// reference — the same auto-vivification the hierarchy applies to nodes
// referenced by set/add calls.
func (e *Engine) Object(id nodeid.ID) *object.Object {
	obj, ok := e.objects[id]
	if !ok {
		obj = object.New()
		e.objects[id] = obj
	}
	return obj
}

// HasObject reports whether id has a typed object without creating one.
func (e *Engine) HasObject(id nodeid.ID) bool {
	_, ok := e.objects[id]
	return ok
}

// ReplaceObject installs obj as id's typed object wholesale, used by
// snapshot restore to overwrite whatever (if anything) is in memory.
func (e *Engine) ReplaceObject(id nodeid.ID, obj *object.Object) {
	e.objects[id] = obj
}

// ObjectNodes returns every node ID that currently has an in-memory typed
// object, for snapshot save-all.
func (e *Engine) ObjectNodes() []nodeid.ID {
	out := make([]nodeid.ID, 0, len(e.objects))
	for id := range e.objects {
		out = append(out, id)
	}
	return out
}

// DeleteObject discards the typed object for id, if any. Called when a
// hierarchy node is deleted, so a later reference to the same ID (post
// garbage-collection wrap) does not see stale attributes.
func (e *Engine) DeleteObject(id nodeid.ID) {
	delete(e.objects, id)
}

// GetField implements rpn.FieldReader: it reads the named attribute off
// node's typed object and renders it as the string RPN built-ins operate
// on. A missing node, missing object, or missing key all report !ok,
// which the evaluator turns into the canonical empty operand.
func (e *Engine) GetField(node nodeid.ID, name string) (string, bool) {
	obj, ok := e.objects[node]
	if !ok {
		return "", false
	}
	if !obj.Exists(name) {
		return "", false
	}
	switch obj.GetType(name) {
	case object.KindString:
		s, err := obj.GetStr(name)
		return s, err == nil
	case object.KindLong:
		l, err := obj.GetLong(name)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(l, 10), true
	case object.KindDouble:
		d, err := obj.GetDouble(name)
		if err != nil {
			return "", false
		}
		return strconv.FormatFloat(d, 'g', -1, 64), true
	default:
		return "", false
	}
}
