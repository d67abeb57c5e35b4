package hierarchy

import "github.com/edirooss/selva-engine/internal/core/nodeid"

// MetadataHook is the portable equivalent of the source's link-section
// enumeration of node-metadata constructors/destructors: an explicit
// registration list owned by the Hierarchy at construction time.
// Subscriptions registers its init/deinit pair here so hierarchy never
// needs to import the subs package.
type MetadataHook struct {
	// Construct is called once per node, the moment it is first created
	// (by set/add_hierarchy referencing a previously-unknown ID). Its
	// return value is stored in Node.Metadata at this hook's index.
	Construct func(id nodeid.ID) any

	// Destruct is called once per node, the moment DelNode starts tearing
	// it down — before its edges are unwired and before it is forgotten.
	// For Subscriptions, this is where every marker still attached to the
	// node gets cleared, while the node's edges are still intact to walk.
	Destruct func(id nodeid.ID, meta any)
}
