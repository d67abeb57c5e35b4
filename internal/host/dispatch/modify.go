package dispatch

import (
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/object"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
)

// FieldValueType is the `modify` command's per-field TYPE tag.
type FieldValueType byte

const (
	FieldValue          FieldValueType = 0
	FieldIndexedValue   FieldValueType = 1
	FieldDefault        FieldValueType = 2
	FieldDefaultIndexed FieldValueType = 3
	FieldOpIncrement    FieldValueType = 4
	FieldOpSet          FieldValueType = 5
)

// IncrementSpec is the decoded payload of a FieldOpIncrement field: the
// base value used when the field is absent, the amount added on top of the
// current value (or of Default when absent), and
// whether the result should additionally be marked indexed.
type IncrementSpec struct {
	Default   int64 `json:"default"`
	Increment int64 `json:"increment"`
	Index     bool  `json:"index"`
}

// SetSpec is the decoded payload of a FieldOpSet field: members to add,
// members to delete, and (for a from-scratch set) members to install as
// the starting value. Value, when non-empty, replaces the field's
// current members outright; Add/Delete are only applied when Value is
// empty. IsReference marks a hierarchy reference field (parents/
// children): its members are NodeId hex strings applied against the
// hierarchy DAG instead of the typed-object set store.
type SetSpec struct {
	Add         []string `json:"add"`
	Delete      []string `json:"delete"`
	Value       []string `json:"value"`
	IsReference bool     `json:"is_reference"`
}

// FieldOp is one `(TYPE FIELD VALUE)` triple of a modify command.
type FieldOp struct {
	Type  FieldValueType `json:"type"`
	Field string         `json:"field"`

	Str       string         `json:"str,omitempty"`       // FieldValue/FieldIndexedValue/FieldDefault/FieldDefaultIndexed
	Increment *IncrementSpec `json:"increment,omitempty"` // FieldOpIncrement
	Set       *SetSpec       `json:"set,omitempty"`       // FieldOpSet
}

// Modify implements `modify ID (TYPE FIELD VALUE)…`. If id carries only a
// 2-byte type tag (the remaining bytes are zero), a fresh suffix is
// allocated and the generated ID is returned; otherwise id is used as-is
// and the node is upserted (auto-created if new).
func (d *Dispatcher) Modify(id nodeid.ID, ops []FieldOp) (nodeid.ID, error) {
	target := id
	if isBareTag(id) {
		var tag [nodeid.TagSize]byte
		copy(tag[:], id[:nodeid.TagSize])
		target = d.Engine.AllocID(tag)
	}

	obj := d.Engine.Object(target)

	for _, op := range ops {
		if err := d.applyFieldOp(target, obj, op); err != nil {
			return target, err
		}
		d.Engine.NotifyFieldChanged(target, op.Field)
	}
	return target, nil
}

func isBareTag(id nodeid.ID) bool {
	for _, b := range id[nodeid.TagSize:] {
		if b != 0 {
			return false
		}
	}
	return true
}

func (d *Dispatcher) applyFieldOp(target nodeid.ID, obj *object.Object, op FieldOp) error {
	switch op.Type {
	case FieldValue, FieldIndexedValue, FieldDefault, FieldDefaultIndexed:
		if err := obj.SetStr(op.Field, op.Str); err != nil {
			return err
		}
		if op.Type == FieldIndexedValue || op.Type == FieldDefaultIndexed {
			_ = obj.SetMeta(op.Field, "indexed")
		}
		return nil

	case FieldOpIncrement:
		if op.Increment == nil {
			return selvaerr.New(selvaerr.EInval)
		}
		cur, err := obj.GetLong(op.Field)
		if err != nil {
			if selvaerr.CodeOf(err) != selvaerr.ENoEnt {
				return err
			}
			cur = op.Increment.Default
		}
		cur += op.Increment.Increment
		if err := obj.SetLong(op.Field, cur); err != nil {
			return err
		}
		if op.Increment.Index {
			_ = obj.SetMeta(op.Field, "indexed")
		}
		return nil

	case FieldOpSet:
		if op.Set == nil {
			return selvaerr.New(selvaerr.EInval)
		}
		if op.Set.IsReference {
			return d.applyHierarchySet(target, op.Field, op.Set)
		}
		if len(op.Set.Value) > 0 {
			if err := obj.Del(op.Field); err != nil && selvaerr.CodeOf(err) != selvaerr.ENoEnt {
				return err
			}
			for _, v := range op.Set.Value {
				if err := obj.AddSet(op.Field, v); err != nil && selvaerr.CodeOf(err) != selvaerr.EExist {
					return err
				}
			}
			return nil
		}
		for _, v := range op.Set.Add {
			if err := obj.AddSet(op.Field, v); err != nil && selvaerr.CodeOf(err) != selvaerr.EExist {
				return err
			}
		}
		for _, v := range op.Set.Delete {
			if err := obj.RemSet(op.Field, v); err != nil && selvaerr.CodeOf(err) != selvaerr.ENoEnt {
				return err
			}
		}
		return nil

	default:
		return selvaerr.New(selvaerr.EIntType)
	}
}

// applyHierarchySet routes a reference-field FieldOpSet through the
// hierarchy DAG instead of the typed-object set store. Only "parents"
// and "children" carry hierarchy semantics; field names are classified
// the same way the original does — anything starting with 'p' is
// parents, everything else is children.
func (d *Dispatcher) applyHierarchySet(target nodeid.ID, field string, spec *SetSpec) error {
	isParents := len(field) > 0 && field[0] == 'p'

	toIDs := func(hexIDs []string) ([]nodeid.ID, error) {
		ids := make([]nodeid.ID, len(hexIDs))
		for i, s := range hexIDs {
			id, err := nodeid.ParseHex(s)
			if err != nil {
				return nil, selvaerr.New(selvaerr.EInval)
			}
			ids[i] = id
		}
		return ids, nil
	}

	if len(spec.Value) > 0 {
		ids, err := toIDs(spec.Value)
		if err != nil {
			return err
		}
		if isParents {
			return d.Engine.SetParents(target, ids)
		}
		return d.Engine.SetChildren(target, ids)
	}

	if len(spec.Add) > 0 {
		ids, err := toIDs(spec.Add)
		if err != nil {
			return err
		}
		if isParents {
			if err := d.Engine.AddHierarchy(target, ids, nil); err != nil {
				return err
			}
		} else {
			if err := d.Engine.AddHierarchy(target, nil, ids); err != nil {
				return err
			}
		}
	}

	if len(spec.Delete) > 0 {
		ids, err := toIDs(spec.Delete)
		if err != nil {
			return err
		}
		if isParents {
			return d.Engine.DelHierarchy(target, ids, nil)
		}
		return d.Engine.DelHierarchy(target, nil, ids)
	}

	return nil
}
