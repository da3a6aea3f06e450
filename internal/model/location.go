package model

import (
	"time"

	"github.com/openlims/sample-storage/internal/hierarchy"
)

// LocationNode represents one node of the physical storage hierarchy
// as stored in the `storage_locations` table.  All six levels (room,
// device, shelf, rack, box, position) share this one shape; the Type
// field tags the level and the parent chain is validated against the
// fixed hierarchy ordering.
//
// Fields:
//
//	ID        – primary key identifier.
//	Type      – hierarchy level of this node.
//	Code      – short identifier printed on labels (e.g. "FRZ-01").
//	Name      – human readable display name used in hierarchical paths.
//	ParentID  – parent node; nil only for rooms.
//	Capacity  – optional slot capacity; meaningful for shelves and boxes.
//	Active    – inactive nodes are excluded from new assignments and,
//	            by default, from listings.
//	CreatedAt – creation timestamp.
//	UpdatedAt – timestamp of last update.
type LocationNode struct {
	ID        uint64                 // storage_locations.id
	Type      hierarchy.LocationType // storage_locations.location_type
	Code      string                 // storage_locations.code
	Name      string                 // storage_locations.name
	ParentID  *uint64                // storage_locations.parent_id (nullable)
	Capacity  *uint32                // storage_locations.capacity (nullable)
	Active    bool                   // storage_locations.is_active
	CreatedAt time.Time              // storage_locations.created_at
	UpdatedAt time.Time              // storage_locations.updated_at
}
