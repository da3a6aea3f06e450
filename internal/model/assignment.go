package model

import "time"

// Assignment records the placement of a sample item into a storage
// slot.  At most one assignment per sample item is active at a time,
// and at most one active assignment may occupy a given
// (location, position coordinate) pair.  Ended assignments are kept as
// history and never deleted.
//
// Fields:
//
//	ID                 – primary key identifier.
//	SampleItemID       – the stored sample item.
//	LocationID         – the storage location node holding the item.
//	PositionCoordinate – finest-grained slot within the location
//	                     (e.g. "A5"); empty when the assignment is at
//	                     location granularity.
//	Notes              – free-form remarks captured at assignment time.
//	AssignedDate       – when the item was placed.
//	Active             – true while this is the item's current slot.
//	EndedDate          – when the assignment was superseded or the item
//	                     disposed; nil while active.
type Assignment struct {
	ID                 uint64     // sample_storage_assignments.id
	SampleItemID       uint64     // sample_storage_assignments.sample_item_id
	LocationID         uint64     // sample_storage_assignments.location_id
	PositionCoordinate string     // sample_storage_assignments.position_coordinate
	Notes              string     // sample_storage_assignments.notes
	AssignedDate       time.Time  // sample_storage_assignments.assigned_date
	Active             bool       // sample_storage_assignments.active (NULL once ended)
	EndedDate          *time.Time // sample_storage_assignments.ended_date (nullable)
}
