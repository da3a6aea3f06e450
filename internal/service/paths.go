// Package service implements the storage domain operations on top of
// the store abstraction: location tree management, the sample custody
// state machine (assign, move, dispose) and the derived read views.
package service

import (
	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

// maxChainDepth bounds ancestor walks as a cycle guard; the hierarchy
// itself is only six levels deep.
const maxChainDepth = 16

// resolvePath walks the ancestor chain of a location and builds the
// hierarchical path for it, optionally terminated by a position
// coordinate.  Missing intermediate levels simply do not contribute a
// segment.
func resolvePath(tx store.Tx, locationID uint64, coordinate string) (hierarchy.Path, error) {
	nodes := make([]*model.LocationNode, 0, maxChainDepth)
	id := &locationID
	for steps := 0; id != nil; steps++ {
		if steps >= maxChainDepth {
			return nil, errors.Errorf("location %d: ancestor chain too deep", locationID)
		}
		n, err := tx.LocationByID(*id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		id = n.ParentID
	}
	// The walk collected leaf first; emit segments room first.
	segments := make([]hierarchy.Segment, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		segments = append(segments, hierarchy.Segment{Type: nodes[i].Type, Name: nodes[i].Name})
	}
	return hierarchy.Build(segments, coordinate), nil
}

// assignmentPath resolves the path for an assignment, including its
// coordinate when present.
func assignmentPath(tx store.Tx, a *model.Assignment) (hierarchy.Path, error) {
	return resolvePath(tx, a.LocationID, a.PositionCoordinate)
}

// subtreeIDs returns the ids of the node and every descendant,
// breadth-first.  Inactive descendants are included; callers that care
// filter afterwards.
func subtreeIDs(tx store.Tx, rootID uint64) ([]uint64, error) {
	ids := []uint64{rootID}
	for i := 0; i < len(ids); i++ {
		children, err := tx.ChildLocations(ids[i])
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// shelfAncestor walks upward from a node until it finds the enclosing
// shelf.  Returns nil when the chain holds no shelf.
func shelfAncestor(tx store.Tx, n *model.LocationNode) (*model.LocationNode, error) {
	cur := n
	for steps := 0; cur != nil; steps++ {
		if steps >= maxChainDepth {
			return nil, errors.Errorf("location %d: ancestor chain too deep", n.ID)
		}
		if cur.Type == hierarchy.TypeShelf {
			return cur, nil
		}
		if cur.ParentID == nil {
			return nil, nil
		}
		parent, err := tx.LocationByID(*cur.ParentID)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	return nil, nil
}
