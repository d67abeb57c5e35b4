package subs

import (
	"fmt"
	"strings"

	"github.com/edirooss/selva-engine/internal/core/hierarchy"
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/rpn"
	"github.com/edirooss/selva-engine/internal/core/subid"
)

// Flag distinguishes the reason a marker fired: a node came into
// existence within its traversal region, left it, or a field on an
// already-covered node changed. The original's single generic "changed"
// flag is split into this trio so each published Event reports exactly
// what tripped a marker.
type Flag uint32

const (
	FlagCreated Flag = 1 << iota
	FlagDeleted
	FlagFields
)

// allFlags is the interest set every marker is created with: clients
// narrow what actually fires via the field filter, not via flag
// selection — there is no flags operand on subscriptions.add.
const allFlags = FlagCreated | FlagDeleted | FlagFields

// Marker is one subscription's attachment description: an origin node, a
// traversal direction, an optional compiled predicate (with its own
// reusable evaluation context), and an optional field-name filter.
type Marker struct {
	Origin nodeid.ID
	Dir    hierarchy.Direction
	Fields []string // empty means "any field"
	Flags  Flag

	filterExpr *rpn.Program
	filterCtx  *rpn.Context

	Owner *Subscription

	attached      bool // whether Attach has wired this marker into the hierarchy
	attachedNodes map[nodeid.ID]struct{}
}

// NewMarker compiles filterExpr (if non-empty) and returns an unattached
// Marker. Call Subscriptions.Attach to wire it into the hierarchy.
func NewMarker(origin nodeid.ID, dir hierarchy.Direction, fields []string, filterExpr string, fieldReader rpn.FieldReader) (*Marker, error) {
	m := &Marker{
		Origin: origin,
		Dir:    dir,
		Fields: fields,
		Flags:  allFlags,
	}
	if filterExpr != "" {
		prog, err := rpn.Compile(filterExpr)
		if err != nil {
			return nil, err
		}
		m.filterExpr = prog
		m.filterCtx = rpn.NewContext(1, fieldReader)
	}
	return m, nil
}

// matchesField reports whether a field-change event for name should be
// considered for this marker at all (before predicate evaluation).
func (m *Marker) matchesField(name string) bool {
	if len(m.Fields) == 0 {
		return true
	}
	for _, f := range m.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// evalPredicate runs the marker's compiled filter (if any) with register 0
// bound to node. No filter means "always match."
func (m *Marker) evalPredicate(node nodeid.ID) bool {
	if m.filterExpr == nil {
		return true
	}
	m.filterCtx.Registers[0] = rpn.RawOperand(append([]byte(nil), node[:]...))
	ok, err := m.filterCtx.Bool(m.filterExpr)
	if err != nil {
		return false
	}
	return ok
}

// DebugString renders a printable summary of the marker for
// subscriptions.debug: origin, direction, field filter, and flags.
func (m *Marker) DebugString() string {
	fields := "*"
	if len(m.Fields) > 0 {
		fields = strings.Join(m.Fields, ",")
	}
	hasFilter := m.filterExpr != nil
	return fmt.Sprintf("origin=%s dir=%d fields=%s filter=%t flags=%#x",
		m.Origin, m.Dir, fields, hasFilter, uint32(m.Flags))
}

// Subscription groups the markers registered under one external
// subscription ID, plus the OR of their flags for a cheap
// "is this subscription interested in X at all" test.
type Subscription struct {
	ID               subid.ID
	MarkerFlagsUnion Flag
	Markers          []*Marker
}
