// Package queue defines the custody audit events exchanged over the
// message broker and the background consumer that records them.
package queue

// Event kinds published to the storage.audit queue.
const (
	KindAssigned = "assigned"
	KindMoved    = "moved"
	KindDisposed = "disposed"
)

// StorageAuditEvent is published after every custody change.  It carries
// enough information for downstream consumers to build an audit trail
// without querying the primary database.  FromPath is empty for an
// initial assignment and ToPath is empty for a disposal.
type StorageAuditEvent struct {
	EventID         string `json:"event_id"`
	Kind            string `json:"kind"`
	SampleItemID    uint64 `json:"sample_item_id"`
	AccessionNumber string `json:"accession_number"`
	FromPath        string `json:"from_path,omitempty"`
	ToPath          string `json:"to_path,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Actor           string `json:"actor,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}
