package store

import (
	"context"
	"time"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/model"
)

// LocationFilter narrows a location listing.  The zero value lists all
// active nodes of every type.
type LocationFilter struct {
	Type            hierarchy.LocationType // restrict to one hierarchy level; empty for all
	ParentID        *uint64                // restrict to direct children of this node
	IncludeInactive bool                   // include decommissioned nodes
	Search          string                 // case-insensitive substring on name or code
}

// SampleItemFilter narrows a sample item listing.
type SampleItemFilter struct {
	Status string // restrict to one lifecycle status; empty for all
	Search string // case-insensitive substring on accession number
}

// Store is the entry point to persistent state.  Within runs fn inside
// a single atomic unit: every mutation fn performs commits together or
// not at all, and concurrent Within calls contending for the same slot
// serialize so that exactly one wins.  View runs fn with the same
// snapshot guarantees but must not mutate.
type Store interface {
	Within(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
}

// Tx exposes the per-entity operations available inside an atomic
// unit.  Implementations return the package sentinel errors for
// not-found and uniqueness failures so engines can branch on them.
type Tx interface {
	// Locations.
	InsertLocation(n *model.LocationNode) error
	UpdateLocation(n *model.LocationNode) error
	DeleteLocation(id uint64) error
	LocationByID(id uint64) (*model.LocationNode, error)
	ChildLocations(parentID uint64) ([]*model.LocationNode, error)
	ListLocations(f LocationFilter) ([]*model.LocationNode, error)

	// Sample items.
	InsertSampleItem(it *model.SampleItem) error
	SampleItemByID(id uint64) (*model.SampleItem, error)
	SampleItemByAccession(accession string) (*model.SampleItem, error)
	ListSampleItems(f SampleItemFilter) ([]*model.SampleItem, error)
	UpdateSampleItemStatus(id uint64, status string) error

	// Assignments.  ActiveAssignmentForItem and ActiveAssignmentAtSlot
	// return (nil, nil) when no active row exists.  Inside Within,
	// ActiveAssignmentAtSlot locks the slot for the rest of the atomic
	// unit; InsertAssignment still returns ErrOccupied if the slot was
	// claimed concurrently, as the final arbiter.
	ActiveAssignmentForItem(sampleItemID uint64) (*model.Assignment, error)
	ActiveAssignmentAtSlot(locationID uint64, coordinate string) (*model.Assignment, error)
	ActiveAssignments() ([]*model.Assignment, error)
	CountActiveAssignmentsAt(locationIDs []uint64) (int, error)
	InsertAssignment(a *model.Assignment) error
	EndAssignment(id uint64, at time.Time) error
	UpdateAssignmentMetadata(id uint64, coordinate, notes string) error

	// Movement audit trail (append-only).
	InsertMovement(m *model.Movement) error
	MovementsForItem(sampleItemID uint64) ([]*model.Movement, error)

	// Disposals (immutable).
	InsertDisposal(d *model.Disposal) error
	DisposalForItem(sampleItemID uint64) (*model.Disposal, error)

	// Aggregates for the metrics endpoint, computed from committed
	// state within the same atomic unit as any preceding write.
	CountSampleItemsByStatus() (map[string]int, error)
	CountActiveLocationsByType() (map[hierarchy.LocationType]int, error)
}
