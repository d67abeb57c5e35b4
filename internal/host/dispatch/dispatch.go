// Package dispatch implements the host command surface — object.*,
// subscriptions.*, and modify — as plain Go functions over a single
// *engine.Engine, keeping command parsing and reply serialization out of
// the core. cmd/selvad's gin handlers are thin adapters translating HTTP
// requests into calls here and results into JSON.
package dispatch

import (
	"strconv"
	"strings"

	"github.com/edirooss/selva-engine/internal/core/engine"
	"github.com/edirooss/selva-engine/internal/core/hierarchy"
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/object"
	"github.com/edirooss/selva-engine/internal/core/selvaerr"
	"github.com/edirooss/selva-engine/internal/core/subid"
)

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, selvaerr.New(selvaerr.ENan)
	}
	return f, nil
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, selvaerr.New(selvaerr.ENan)
	}
	return n, nil
}

// Dispatcher binds the command surface to one Engine.
type Dispatcher struct {
	Engine *engine.Engine
}

func New(e *engine.Engine) *Dispatcher {
	return &Dispatcher{Engine: e}
}

// --- object.* ---

// ObjectDel implements `object.del KEY PATH`.
func (d *Dispatcher) ObjectDel(key nodeid.ID, path string) (int, error) {
	if !d.Engine.HasObject(key) {
		return 0, nil
	}
	if err := d.Engine.Object(key).Del(path); err != nil {
		if selvaerr.CodeOf(err) == selvaerr.ENoEnt {
			return 0, nil
		}
		return 0, err
	}
	d.Engine.NotifyFieldChanged(key, path)
	return 1, nil
}

// ObjectExists implements `object.exists KEY PATH`.
func (d *Dispatcher) ObjectExists(key nodeid.ID, path string) int {
	if !d.Engine.HasObject(key) {
		return 0
	}
	if d.Engine.Object(key).Exists(path) {
		return 1
	}
	return 0
}

// ObjectGet implements `object.get KEY [PATH …]`: the value of the first
// path that resolves, or nil if none do (or the object doesn't exist).
func (d *Dispatcher) ObjectGet(key nodeid.ID, paths ...string) (any, error) {
	if !d.Engine.HasObject(key) {
		return nil, nil
	}
	obj := d.Engine.Object(key)
	for _, p := range paths {
		if !obj.Exists(p) {
			continue
		}
		return renderValue(obj, p)
	}
	return nil, nil
}

func renderValue(obj *object.Object, path string) (any, error) {
	switch obj.GetType(path) {
	case object.KindDouble:
		return obj.GetDouble(path)
	case object.KindLong:
		return obj.GetLong(path)
	case object.KindString:
		return obj.GetStr(path)
	case object.KindObject:
		sub, err := obj.GetObject(path)
		if err != nil {
			return nil, err
		}
		child := map[string]any{}
		for _, k := range sub.Keys() {
			v, err := renderValue(sub, k)
			if err != nil {
				return nil, err
			}
			child[k] = v
		}
		return child, nil
	case object.KindSet:
		return obj.GetSet(path)
	default:
		return nil, nil
	}
}

// ObjectSet implements `object.set KEY PATH TYPE VAL [VAL …]`, returning
// the number of values stored. TYPE is one of f (double), i (long),
// s (string), S (set — each VAL is a distinct member; duplicates across
// VAL args are not re-counted, matching the Open Question decision in
// DESIGN.md).
func (d *Dispatcher) ObjectSet(key nodeid.ID, path string, typ byte, vals ...string) (int, error) {
	obj := d.Engine.Object(key)

	var stored int
	switch typ {
	case 'f':
		if len(vals) != 1 {
			return 0, selvaerr.New(selvaerr.EInval)
		}
		f, err := parseFloat(vals[0])
		if err != nil {
			return 0, err
		}
		if err := obj.SetDouble(path, f); err != nil {
			return 0, err
		}
		stored = 1
	case 'i':
		if len(vals) != 1 {
			return 0, selvaerr.New(selvaerr.EInval)
		}
		n, err := parseInt(vals[0])
		if err != nil {
			return 0, err
		}
		if err := obj.SetLong(path, n); err != nil {
			return 0, err
		}
		stored = 1
	case 's':
		if len(vals) != 1 {
			return 0, selvaerr.New(selvaerr.EInval)
		}
		if err := obj.SetStr(path, vals[0]); err != nil {
			return 0, err
		}
		stored = 1
	case 'S':
		for _, v := range vals {
			if err := obj.AddSet(path, v); err != nil {
				if selvaerr.CodeOf(err) == selvaerr.EExist {
					continue // duplicate VAL: not a new insertion
				}
				return stored, err
			}
			stored++
		}
	default:
		return 0, selvaerr.New(selvaerr.EIntType)
	}

	d.Engine.NotifyFieldChanged(key, path)
	return stored, nil
}

// ObjectType implements `object.type KEY PATH`.
func (d *Dispatcher) ObjectType(key nodeid.ID, path string) string {
	if !d.Engine.HasObject(key) {
		return object.KindNull.String()
	}
	return d.Engine.Object(key).GetType(path).String()
}

// ObjectLen implements `object.len KEY [PATH]`.
func (d *Dispatcher) ObjectLen(key nodeid.ID, path string) (int, error) {
	if !d.Engine.HasObject(key) {
		return 0, nil
	}
	obj := d.Engine.Object(key)
	if path == "" {
		return obj.Len(), nil
	}
	return obj.LenOf(path)
}

// --- subscriptions.* ---

var directionNames = map[string]hierarchy.Direction{
	"node":        hierarchy.DirNode,
	"ancestors":   hierarchy.DirBFSAncestors,
	"descendants": hierarchy.DirBFSDescendants,
}

// SubscriptionsAdd implements `subscriptions.add KEY SUB_ID
// (node|ancestors|descendants) NODE_ID [fields …] [filterExpr]`.
func (d *Dispatcher) SubscriptionsAdd(sub subid.ID, dirName string, origin nodeid.ID, fields []string, filterExpr string) (int, error) {
	dir, ok := directionNames[strings.ToLower(dirName)]
	if !ok {
		return 0, selvaerr.New(selvaerr.EInval)
	}
	_, err := d.Engine.Subs.Add(sub, origin, dir, fields, filterExpr, d.Engine)
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// SubscriptionsRefresh implements `subscriptions.refresh KEY SUB_ID`.
func (d *Dispatcher) SubscriptionsRefresh(sub subid.ID) (int, error) {
	if err := d.Engine.Subs.Refresh(sub); err != nil {
		return 0, err
	}
	return 1, nil
}

// SubscriptionsList implements `subscriptions.list KEY`.
func (d *Dispatcher) SubscriptionsList() []string {
	ids := d.Engine.Subs.List()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

// SubscriptionsDebug implements `subscriptions.debug KEY SUB_ID`: a
// printable dump per marker (origin, direction, field filter, flags).
func (d *Dispatcher) SubscriptionsDebug(sub subid.ID) ([]string, error) {
	s, ok := d.Engine.Subs.Get(sub)
	if !ok {
		return nil, selvaerr.New(selvaerr.ENoEnt)
	}
	out := make([]string, 0, len(s.Markers))
	for _, m := range s.Markers {
		out = append(out, m.DebugString())
	}
	return out, nil
}

// SubscriptionsDel implements `subscriptions.del KEY SUB_ID`.
func (d *Dispatcher) SubscriptionsDel(sub subid.ID) int {
	if d.Engine.Subs.Del(sub) {
		return 1
	}
	return 0
}
