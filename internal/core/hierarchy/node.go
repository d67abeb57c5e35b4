package hierarchy

import (
	"github.com/edirooss/selva-engine/internal/core/nodeid"
	"github.com/edirooss/selva-engine/internal/core/svector"
)

// Node is one vertex of the hierarchy DAG. Edges are symmetric: if a node
// is in Children, this node is in that child's Parents, and vice versa.
// Metadata holds one slot per hook registered with the owning Hierarchy at
// construction time (see Hierarchy.RegisterMetadataHook); Subscriptions
// uses its slot to track attached markers without hierarchy importing the
// subs package.
type Node struct {
	ID       nodeid.ID
	Parents  *svector.SVector[nodeid.ID]
	Children *svector.SVector[nodeid.ID]
	Metadata []any

	stamp uint64
}

func newNode(id nodeid.ID, hooks []MetadataHook) *Node {
	n := &Node{
		ID:       id,
		Parents:  svector.New(0, nodeid.Compare),
		Children: svector.New(0, nodeid.Compare),
	}
	n.Metadata = make([]any, len(hooks))
	for i, h := range hooks {
		if h.Construct != nil {
			n.Metadata[i] = h.Construct(id)
		}
	}
	return n
}

// IsHead reports whether n currently has no parents.
func (n *Node) IsHead() bool { return n.Parents.Len() == 0 }
