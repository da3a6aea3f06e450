// Package store defines the persistence contract shared by the MySQL
// and in-memory implementations, together with the sentinel errors
// that higher layers translate into HTTP responses.  Sentinels let
// handlers distinguish a benign concurrency loss (an occupied slot, a
// repeat disposal) from a structural failure.
package store

import "errors"

// ErrLocationNotFound is returned when a location lookup fails.
var ErrLocationNotFound = errors.New("location not found")

// ErrSampleItemNotFound is returned when a sample item cannot be
// resolved by id or accession number.
var ErrSampleItemNotFound = errors.New("sample item not found")

// ErrAssignmentNotFound is returned when a sample item has no active
// assignment and one is required (move, metadata update).
var ErrAssignmentNotFound = errors.New("no active assignment for sample item")

// ErrOccupied signals that the target (location, coordinate) slot
// already has an active occupant.  It is an expected outcome of
// concurrent assign/move requests, not a fault.
var ErrOccupied = errors.New("position already occupied")

// ErrAlreadyAssigned is returned when assigning a sample item that
// already has an active assignment; the caller must move it instead.
var ErrAlreadyAssigned = errors.New("sample item is already assigned")

// ErrAlreadyDisposed is returned for any mutation against a disposed
// sample item.  Repeat disposals are a benign race: the message is
// stable so callers can match on "already disposed".
var ErrAlreadyDisposed = errors.New("sample item is already disposed")

// ErrConflict is returned when a location cannot be deleted because
// active descendants or active assignments exist beneath it.  Handlers
// translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrValidation marks structurally invalid input (unknown hierarchy
// type, bad enum member, malformed coordinate).  It is always rejected
// before any mutation is attempted.
var ErrValidation = errors.New("validation failed")
