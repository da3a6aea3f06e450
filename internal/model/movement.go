package model

import "time"

// Movement is an append-only audit row describing one relocation of a
// sample item.  The initial assignment is recorded with a nil origin;
// a disposal is recorded with a nil destination.  Rows are immutable
// once written.
//
// Fields:
//
//	ID             – primary key identifier.
//	SampleItemID   – the sample item that moved.
//	FromLocationID – origin location; nil for the initial assignment.
//	FromCoordinate – origin slot coordinate; nil when none.
//	ToLocationID   – destination location; nil for disposals.
//	ToCoordinate   – destination slot coordinate; nil when none.
//	Reason         – caller-supplied reason for the relocation.
//	MovedDate      – when the relocation was committed.
type Movement struct {
	ID             uint64    // sample_storage_movements.id
	SampleItemID   uint64    // sample_storage_movements.sample_item_id
	FromLocationID *uint64   // sample_storage_movements.from_location_id (nullable)
	FromCoordinate *string   // sample_storage_movements.from_coordinate (nullable)
	ToLocationID   *uint64   // sample_storage_movements.to_location_id (nullable)
	ToCoordinate   *string   // sample_storage_movements.to_coordinate (nullable)
	Reason         string    // sample_storage_movements.reason
	MovedDate      time.Time // sample_storage_movements.moved_date
}
