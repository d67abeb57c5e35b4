package engine

import (
	"github.com/edirooss/selva-engine/internal/core/nodeid"
)

// The hierarchy package never calls into subs — it has no import of it at
// all, only the generic MetadataHook slot. Every structural mutation below
// is instead followed, explicitly, by a Subs.RefreshAll so markers re-derive
// their coverage and fire Created/Deleted for nodes that entered or left it.
// This keeps the Hierarchy/Object/Subscriptions wiring in plain Go call
// order rather than a hidden callback threaded through mutation internals.

// SetHierarchy replaces node's full parent and child edge sets.
func (e *Engine) SetHierarchy(node nodeid.ID, parents, children []nodeid.ID) error {
	if err := e.Hierarchy.SetHierarchy(node, parents, children); err != nil {
		return err
	}
	e.Subs.RefreshAll()
	return nil
}

// SetParents replaces node's parent edge set.
func (e *Engine) SetParents(node nodeid.ID, parents []nodeid.ID) error {
	if err := e.Hierarchy.SetParents(node, parents); err != nil {
		return err
	}
	e.Subs.RefreshAll()
	return nil
}

// SetChildren replaces node's child edge set.
func (e *Engine) SetChildren(node nodeid.ID, children []nodeid.ID) error {
	if err := e.Hierarchy.SetChildren(node, children); err != nil {
		return err
	}
	e.Subs.RefreshAll()
	return nil
}

// AddHierarchy unions parents and children into node's existing edge sets.
func (e *Engine) AddHierarchy(node nodeid.ID, parents, children []nodeid.ID) error {
	if err := e.Hierarchy.AddHierarchy(node, parents, children); err != nil {
		return err
	}
	e.Subs.RefreshAll()
	return nil
}

// DelHierarchy removes exactly the listed parent/child edges from node.
func (e *Engine) DelHierarchy(node nodeid.ID, parents, children []nodeid.ID) error {
	if err := e.Hierarchy.DelHierarchy(node, parents, children); err != nil {
		return err
	}
	e.Subs.RefreshAll()
	return nil
}

// DelParents removes all of node's parent edges.
func (e *Engine) DelParents(node nodeid.ID) error {
	if err := e.Hierarchy.DelParents(node); err != nil {
		return err
	}
	e.Subs.RefreshAll()
	return nil
}

// DelChildren removes all of node's child edges.
func (e *Engine) DelChildren(node nodeid.ID) error {
	if err := e.Hierarchy.DelChildren(node); err != nil {
		return err
	}
	e.Subs.RefreshAll()
	return nil
}

// DelNode removes node from the hierarchy and discards its typed object.
// Hierarchy's own destructor hook fires FlagDeleted and tears down markers
// rooted in or passing through node before the edges are unwired; RefreshAll
// afterward catches any other marker whose coverage shrank as a side effect.
func (e *Engine) DelNode(node nodeid.ID) error {
	if err := e.Hierarchy.DelNode(node); err != nil {
		return err
	}
	e.DeleteObject(node)
	e.Subs.RefreshAll()
	return nil
}

// NotifyFieldChanged tells Subscriptions that path on node's typed object
// was written. Callers invoke this after the actual object.Object mutation
// (object.Set*/Del does not call back into Subs itself).
func (e *Engine) NotifyFieldChanged(node nodeid.ID, path string) {
	e.Subs.FireFieldChange(node, path)
}
