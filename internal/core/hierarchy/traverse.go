package hierarchy

import "github.com/edirooss/selva-engine/internal/core/nodeid"

// Direction names one of the traversal orders Traverse and the
// FindAncestors/FindDescendants conveniences support.
type Direction int

const (
	DirNode Direction = iota
	DirBFSAncestors
	DirBFSDescendants
	DirDFSAncestors
	DirDFSDescendants
	DirDFSFull
)

// Option configures a traversal's cost bound.
type Option func(*traverseOpts)

type traverseOpts struct {
	maxNodes int // 0 means unlimited
}

// WithMaxNodes bounds the number of nodes a traversal will visit before
// stopping early, letting callers bound cost per the engine's "callers
// bound cost by bounding node counts" concurrency contract.
func WithMaxNodes(n int) Option {
	return func(o *traverseOpts) {
		o.maxNodes = n
	}
}

// Traverse visits nodes reachable from id in the given direction, calling
// cb for each (including id itself for every direction except when id is
// unknown). cb returns true to continue, false to stop early. Each node is
// visited at most once per call, via the hierarchy's transaction stamp —
// no clearing pass is needed between traversals.
func (h *Hierarchy) Traverse(id nodeid.ID, dir Direction, cb func(nodeid.ID) bool, opts ...Option) error {
	o := traverseOpts{}
	for _, opt := range opts {
		opt(&o)
	}

	if _, ok := h.index[id]; !ok {
		return nil
	}

	h.beginTrx()
	h.stamp(id)
	visited := 1

	switch dir {
	case DirNode:
		cb(id)
		return nil
	case DirBFSAncestors:
		h.bfs(id, o, &visited, cb, func(n *Node) []nodeid.ID { return n.Parents.Slice() })
	case DirBFSDescendants:
		h.bfs(id, o, &visited, cb, func(n *Node) []nodeid.ID { return n.Children.Slice() })
	case DirDFSAncestors:
		h.dfs(id, o, &visited, cb, func(n *Node) []nodeid.ID { return n.Parents.Slice() })
	case DirDFSDescendants:
		h.dfs(id, o, &visited, cb, func(n *Node) []nodeid.ID { return n.Children.Slice() })
	case DirDFSFull:
		h.dfsFull(id, o, &visited, cb)
	}
	return nil
}

func (h *Hierarchy) bfs(start nodeid.ID, o traverseOpts, visited *int, cb func(nodeid.ID) bool, neighbors func(*Node) []nodeid.ID) {
	if !cb(start) {
		return
	}
	frontier := []nodeid.ID{start}
	for len(frontier) > 0 {
		var next []nodeid.ID
		for _, cur := range frontier {
			n, ok := h.index[cur]
			if !ok {
				continue
			}
			for _, nb := range neighbors(n) {
				if h.isStamped(nb) {
					continue
				}
				if o.maxNodes > 0 && *visited >= o.maxNodes {
					return
				}
				h.stamp(nb)
				*visited++
				if !cb(nb) {
					return
				}
				next = append(next, nb)
			}
		}
		frontier = next
	}
}

// dfs walks via an explicit stack (the source avoids recursion the same
// way, to bound native stack depth on deep hierarchies).
func (h *Hierarchy) dfs(start nodeid.ID, o traverseOpts, visited *int, cb func(nodeid.ID) bool, neighbors func(*Node) []nodeid.ID) {
	if !cb(start) {
		return
	}
	stack := []nodeid.ID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, ok := h.index[cur]
		if !ok {
			continue
		}
		for _, nb := range neighbors(n) {
			if h.isStamped(nb) {
				continue
			}
			if o.maxNodes > 0 && *visited >= o.maxNodes {
				return
			}
			h.stamp(nb)
			*visited++
			if !cb(nb) {
				return
			}
			stack = append(stack, nb)
		}
	}
}

// dfsFull visits both ancestors and descendants of start.
func (h *Hierarchy) dfsFull(start nodeid.ID, o traverseOpts, visited *int, cb func(nodeid.ID) bool) {
	if !cb(start) {
		return
	}
	stack := []nodeid.ID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, ok := h.index[cur]
		if !ok {
			continue
		}
		all := append(append([]nodeid.ID(nil), n.Parents.Slice()...), n.Children.Slice()...)
		for _, nb := range all {
			if h.isStamped(nb) {
				continue
			}
			if o.maxNodes > 0 && *visited >= o.maxNodes {
				return
			}
			h.stamp(nb)
			*visited++
			if !cb(nb) {
				return
			}
			stack = append(stack, nb)
		}
	}
}

// FindAncestors returns every node reachable from id by walking parent
// edges (order unspecified), excluding id itself.
func (h *Hierarchy) FindAncestors(id nodeid.ID, opts ...Option) ([]nodeid.ID, error) {
	var out []nodeid.ID
	err := h.Traverse(id, DirDFSAncestors, func(n nodeid.ID) bool {
		if n != id {
			out = append(out, n)
		}
		return true
	}, opts...)
	return out, err
}

// FindDescendants returns every node reachable from id by walking child
// edges (order unspecified), excluding id itself.
func (h *Hierarchy) FindDescendants(id nodeid.ID, opts ...Option) ([]nodeid.ID, error) {
	var out []nodeid.ID
	err := h.Traverse(id, DirDFSDescendants, func(n nodeid.ID) bool {
		if n != id {
			out = append(out, n)
		}
		return true
	}, opts...)
	return out, err
}
