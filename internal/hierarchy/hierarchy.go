// Package hierarchy models the fixed-depth storage location chain
// (room → device → shelf → rack → box → position) and builds the
// hierarchical display paths used across the API.
package hierarchy

import "strings"

// LocationType identifies one level of the storage hierarchy.  The
// hierarchy has a fixed depth: every node's parent must be exactly one
// level above it.
type LocationType string

// The six levels of the hierarchy, ordered from coarsest to finest.
const (
	TypeRoom     LocationType = "room"
	TypeDevice   LocationType = "device"
	TypeShelf    LocationType = "shelf"
	TypeRack     LocationType = "rack"
	TypeBox      LocationType = "box"
	TypePosition LocationType = "position"
)

// chain lists the hierarchy levels in order.  Index position doubles as
// the depth of the level, with the room at depth 0.
var chain = []LocationType{TypeRoom, TypeDevice, TypeShelf, TypeRack, TypeBox, TypePosition}

// assignable lists the levels that may receive a sample item directly.
// Rooms are containers only; positions are addressed through the
// position coordinate of a box or rack assignment.
var assignable = map[LocationType]bool{
	TypeDevice: true,
	TypeShelf:  true,
	TypeRack:   true,
	TypeBox:    true,
}

// Parse converts a raw string such as "rack" into a LocationType.  The
// comparison is case-insensitive.  The boolean result is false when the
// value names no known level.
func Parse(s string) (LocationType, bool) {
	t := LocationType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range chain {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Valid reports whether t names a known hierarchy level.
func (t LocationType) Valid() bool {
	_, ok := Parse(string(t))
	return ok
}

// Depth returns the zero-based depth of the level, with room at 0 and
// position at 5.  Unknown types return -1.
func (t LocationType) Depth() int {
	for i, known := range chain {
		if t == known {
			return i
		}
	}
	return -1
}

// Parent returns the level directly above t.  The second result is
// false for rooms (which have no parent) and for unknown types.
func (t LocationType) Parent() (LocationType, bool) {
	d := t.Depth()
	if d <= 0 {
		return "", false
	}
	return chain[d-1], true
}

// Assignable reports whether a sample item may be assigned directly to
// a node of this level.
func (t LocationType) Assignable() bool {
	return assignable[t]
}

// ValidParent reports whether parent is the correct level for a child
// of type t.  A room must have no parent; every other level must sit
// exactly one level below its parent.
func ValidParent(child LocationType, parent LocationType, hasParent bool) bool {
	if child == TypeRoom {
		return !hasParent
	}
	want, ok := child.Parent()
	if !ok {
		return false
	}
	return hasParent && parent == want
}

// Types returns the hierarchy levels from room to position.  The
// returned slice must not be modified.
func Types() []LocationType { return chain }
