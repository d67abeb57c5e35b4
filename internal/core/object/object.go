// Package object implements the typed attribute object: a nested, ordered
// mapping from dotted-path keys to one of seven value kinds, with a
// sibling metadata map and RDB-style snapshot I/O.
package object

import (
	"strings"

	"github.com/edirooss/selva-engine/internal/core/selvaerr"
	"github.com/edirooss/selva-engine/internal/core/svector"
	"github.com/edirooss/selva-engine/internal/env"
)

// value is the tagged storage cell for one key. Only the field matching
// kind is meaningful; switching kind always clears the others first.
type value struct {
	kind    Kind
	subtype Kind // meaningful only when kind == KindArray

	d   float64
	l   int64
	s   string
	obj *Object
	set []string      // ordered, unique
	arr []arrayElem
}

type arrayElem struct {
	d float64
	l int64
	s string
}

// Object is a nested ordered key→typed-value store. The zero value is not
// ready for use; call New.
type Object struct {
	keys   *svector.SVector[string] // ordered by name
	values map[string]*value
	meta   map[string]any // supplemental, non-persisted per-key metadata
}

// New returns an empty Object.
func New() *Object {
	return &Object{
		keys:   svector.New[string](0, strings.Compare),
		values: make(map[string]*value),
	}
}

// Len implements the whole-object case of the `len` operation: the number
// of immediate keys.
func (o *Object) Len() int { return o.keys.Len() }

// resolve splits path on '.' and walks intermediate segments, each of
// which must already be an object. With create=true, a missing or
// non-object intermediate is replaced by a freshly created empty object
// (destroying whatever was there). It returns the innermost Object and the
// final segment name.
func resolve(root *Object, path string, create bool) (*Object, string, error) {
	if len(path) > env.KeyNameMaxLen {
		return nil, "", selvaerr.New(selvaerr.ENameToLong)
	}
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if len(seg) == 0 || len(seg) > env.KeyNameMaxLen {
			return nil, "", selvaerr.New(selvaerr.ENameToLong)
		}
	}

	cur := root
	for _, seg := range segs[:len(segs)-1] {
		v, ok := cur.values[seg]
		if !ok || v.kind != KindObject {
			if !create {
				return nil, "", selvaerr.New(selvaerr.ENoEnt)
			}
			child := New()
			cur.setValue(seg, &value{kind: KindObject, obj: child})
			cur = child
			continue
		}
		cur = v.obj
	}
	return cur, segs[len(segs)-1], nil
}

// setValue installs v under name, evicting whatever was previously there
// and maintaining the ordered key index. Enforces the per-object size cap
// on new keys.
func (o *Object) setValue(name string, v *value) error {
	if _, exists := o.values[name]; !exists {
		if o.keys.Len() >= env.ObjectMaxKeys {
			return selvaerr.New(selvaerr.EOBig)
		}
		o.keys.Insert(name)
	}
	o.values[name] = v
	return nil
}

// Del destroys the key named by path. Returns ENOENT if the path does not
// resolve to an existing key.
func (o *Object) Del(path string) error {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return err
	}
	if _, ok := parent.values[name]; !ok {
		return selvaerr.New(selvaerr.ENoEnt)
	}
	delete(parent.values, name)
	delete(parent.meta, name)
	parent.keys.Remove(name)
	return nil
}

// Exists reports whether path resolves to a present key.
func (o *Object) Exists(path string) bool {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return false
	}
	_, ok := parent.values[name]
	return ok
}

// GetType returns the Kind stored at path, or KindNull if absent.
func (o *Object) GetType(path string) Kind {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return KindNull
	}
	v, ok := parent.values[name]
	if !ok {
		return KindNull
	}
	return v.kind
}

// GetDouble returns the double at path. If the stored value is KindLong it
// is coerced (best-effort numeric promotion, per the source's
// GetDoubleStr fallthrough); any other non-numeric kind is EINTYPE.
func (o *Object) GetDouble(path string) (float64, error) {
	v, err := o.get(path)
	if err != nil {
		return 0, err
	}
	switch v.kind {
	case KindDouble:
		return v.d, nil
	case KindLong:
		return float64(v.l), nil
	default:
		return 0, selvaerr.New(selvaerr.EIntType)
	}
}

// GetLong returns the long at path, coercing from KindDouble (truncating)
// the same way GetDouble coerces from KindLong.
func (o *Object) GetLong(path string) (int64, error) {
	v, err := o.get(path)
	if err != nil {
		return 0, err
	}
	switch v.kind {
	case KindLong:
		return v.l, nil
	case KindDouble:
		return int64(v.d), nil
	default:
		return 0, selvaerr.New(selvaerr.EIntType)
	}
}

// GetStr returns the string at path.
func (o *Object) GetStr(path string) (string, error) {
	v, err := o.get(path)
	if err != nil {
		return "", err
	}
	if v.kind != KindString {
		return "", selvaerr.New(selvaerr.EIntType)
	}
	return v.s, nil
}

// GetObject returns the nested Object stored at path.
func (o *Object) GetObject(path string) (*Object, error) {
	v, err := o.get(path)
	if err != nil {
		return nil, err
	}
	if v.kind != KindObject {
		return nil, selvaerr.New(selvaerr.EIntType)
	}
	return v.obj, nil
}

// GetSet returns a defensive copy of the set members stored at path.
func (o *Object) GetSet(path string) ([]string, error) {
	v, err := o.get(path)
	if err != nil {
		return nil, err
	}
	if v.kind != KindSet {
		return nil, selvaerr.New(selvaerr.EIntType)
	}
	out := make([]string, len(v.set))
	copy(out, v.set)
	return out, nil
}

func (o *Object) get(path string) (*value, error) {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return nil, err
	}
	v, ok := parent.values[name]
	if !ok {
		return nil, selvaerr.New(selvaerr.ENoEnt)
	}
	return v, nil
}

// SetDouble creates intermediate objects as needed and stores v at path,
// overwriting any prior type.
func (o *Object) SetDouble(path string, v float64) error {
	parent, name, err := resolve(o, path, true)
	if err != nil {
		return err
	}
	return parent.setValue(name, &value{kind: KindDouble, d: v})
}

// SetLong creates intermediate objects as needed and stores v at path,
// overwriting any prior type.
func (o *Object) SetLong(path string, v int64) error {
	parent, name, err := resolve(o, path, true)
	if err != nil {
		return err
	}
	return parent.setValue(name, &value{kind: KindLong, l: v})
}

// SetStr creates intermediate objects as needed and stores v at path,
// overwriting any prior type.
func (o *Object) SetStr(path string, v string) error {
	parent, name, err := resolve(o, path, true)
	if err != nil {
		return err
	}
	return parent.setValue(name, &value{kind: KindString, s: v})
}

// AddSet inserts v into the set at path, creating the set if absent.
// Returns EEXIST if v is already a member, EINTYPE if the existing value
// at path is not a set.
func (o *Object) AddSet(path string, v string) error {
	parent, name, err := resolve(o, path, true)
	if err != nil {
		return err
	}
	cur, ok := parent.values[name]
	if !ok {
		if err := parent.setValue(name, &value{kind: KindSet}); err != nil {
			return err
		}
		cur = parent.values[name]
	} else if cur.kind != KindSet {
		return selvaerr.New(selvaerr.EIntType)
	}
	for _, existing := range cur.set {
		if existing == v {
			return selvaerr.New(selvaerr.EExist)
		}
	}
	cur.set = append(cur.set, v)
	return nil
}

// RemSet removes v from the set at path. Returns EINVAL if path is not a
// set, ENOENT if v is not a member.
func (o *Object) RemSet(path string, v string) error {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return err
	}
	cur, ok := parent.values[name]
	if !ok {
		return selvaerr.New(selvaerr.ENoEnt)
	}
	if cur.kind != KindSet {
		return selvaerr.New(selvaerr.EInval)
	}
	for i, existing := range cur.set {
		if existing == v {
			cur.set = append(cur.set[:i], cur.set[i+1:]...)
			return nil
		}
	}
	return selvaerr.New(selvaerr.ENoEnt)
}

// AddArray appends v (of kind subtype) to the array at path. Creates the
// array if absent or if its existing subtype mismatches — a subtype change
// destroys the prior array first, matching the "switching type destroys
// the previous payload" invariant.
func (o *Object) AddArray(path string, subtype Kind, elem arrayElem) error {
	if subtype != KindDouble && subtype != KindLong && subtype != KindString {
		return selvaerr.New(selvaerr.EIntType)
	}
	parent, name, err := resolve(o, path, true)
	if err != nil {
		return err
	}
	cur, ok := parent.values[name]
	if !ok || cur.kind != KindArray || cur.subtype != subtype {
		if err := parent.setValue(name, &value{kind: KindArray, subtype: subtype}); err != nil {
			return err
		}
		cur = parent.values[name]
	}
	cur.arr = append(cur.arr, elem)
	return nil
}

// LenOf implements the path-scoped case of the `len` operation: string
// returns byte length, set/array return element count, a scalar returns 1,
// null (including absent) returns 0.
func (o *Object) LenOf(path string) (int, error) {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return 0, err
	}
	v, ok := parent.values[name]
	if !ok {
		return 0, nil
	}
	switch v.kind {
	case KindNull:
		return 0, nil
	case KindString:
		return len(v.s), nil
	case KindSet:
		return len(v.set), nil
	case KindArray:
		return len(v.arr), nil
	case KindDouble, KindLong:
		return 1, nil
	case KindObject:
		return v.obj.Len(), nil
	default:
		return 0, selvaerr.New(selvaerr.EIntType)
	}
}

// SetMeta attaches arbitrary non-persisted metadata to an existing key.
// SetMeta does not create the key; it returns ENOENT if path is absent.
func (o *Object) SetMeta(path string, meta any) error {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return err
	}
	if _, ok := parent.values[name]; !ok {
		return selvaerr.New(selvaerr.ENoEnt)
	}
	if parent.meta == nil {
		parent.meta = make(map[string]any)
	}
	parent.meta[name] = meta
	return nil
}

// GetMeta returns metadata previously attached with SetMeta, if any.
func (o *Object) GetMeta(path string) (any, bool) {
	parent, name, err := resolve(o, path, false)
	if err != nil {
		return nil, false
	}
	v, ok := parent.meta[name]
	return v, ok
}

// Keys returns the immediate keys of o in name order.
func (o *Object) Keys() []string {
	return o.keys.Slice()
}
