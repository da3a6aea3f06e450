package model

import "time"

// Sample item lifecycle states.  A sample item starts unassigned,
// becomes assigned when placed into storage, stays assigned across
// moves, and ends disposed.  Disposed is terminal: no assignment or
// movement is permitted afterwards.
const (
	StatusUnassigned = "unassigned"
	StatusAssigned   = "assigned"
	StatusDisposed   = "disposed"
)

// SampleItem is a physical specimen unit tracked independently of the
// logical order ("sample") that produced it; one order may own several
// sample items.  Rows live in the `sample_items` table.
//
// Fields:
//
//	ID              – primary key identifier.
//	AccessionNumber – external sample/accession identifier printed on
//	                  the tube label.  Unique.
//	SpecimenType    – kind of specimen (serum, plasma, ...).
//	Status          – unassigned, assigned or disposed.
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – timestamp of last update.
type SampleItem struct {
	ID              uint64    // sample_items.id
	AccessionNumber string    // sample_items.accession_number
	SpecimenType    string    // sample_items.specimen_type
	Status          string    // sample_items.status
	CreatedAt       time.Time // sample_items.created_at
	UpdatedAt       time.Time // sample_items.updated_at
}
