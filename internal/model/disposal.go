package model

import "time"

// Disposal is the immutable record of a sample item's terminal
// retirement from storage.  Writing a disposal row is the sole trigger
// for the sample item's status becoming disposed; a sample item can
// have at most one disposal row, ever.
//
// Fields:
//
//	ID           – primary key identifier.
//	SampleItemID – the disposed sample item.
//	Reason       – member of the configured disposal reason set.
//	Method       – member of the configured disposal method set.
//	Notes        – optional free-form remarks.
//	DisposedBy   – identifier of the user who disposed the item.
//	DisposedDate – when the disposal was committed.
type Disposal struct {
	ID           uint64    // sample_disposals.id
	SampleItemID uint64    // sample_disposals.sample_item_id
	Reason       string    // sample_disposals.reason
	Method       string    // sample_disposals.method
	Notes        string    // sample_disposals.notes
	DisposedBy   string    // sample_disposals.disposed_by
	DisposedDate time.Time // sample_disposals.disposed_date
}
