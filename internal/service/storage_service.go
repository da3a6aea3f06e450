package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openlims/sample-storage/internal/config"
	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/metrics"
	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/queue"
	"github.com/openlims/sample-storage/internal/store"
)

// Movement reasons written by the engine itself.
const (
	reasonInitialAssign = "Initial storage assignment"
	reasonDisposal      = "Disposed"
)

// StorageService implements the sample custody state machine.  Every
// mutating operation runs as one atomic store unit: audit rows, the
// assignment change and the status transition commit together or not
// at all.  Audit events go to the broker after commit and never fail
// the request.
type StorageService struct {
	store    store.Store
	disposal config.DisposalPolicy

	// Audit publishes a custody event after commit.  Overridable in
	// tests; nil disables publishing.
	Audit func(ctx context.Context, ev queue.StorageAuditEvent) error
}

// NewStorageService constructs a StorageService publishing audit events
// to RabbitMQ.
func NewStorageService(st store.Store, disposal config.DisposalPolicy) *StorageService {
	if st == nil {
		panic("nil store passed to NewStorageService")
	}
	return &StorageService{store: st, disposal: disposal, Audit: queue.PublishAudit}
}

// RegisterSampleItemInput carries the fields for registering a specimen
// unit.
type RegisterSampleItemInput struct {
	AccessionNumber string `json:"accessionNumber" validate:"required,max=64"`
	SpecimenType    string `json:"specimenType" validate:"omitempty,max=64"`
}

// AssignInput is the request for placing a sample item into storage.
// SampleItemRef accepts the internal id or the accession number.
type AssignInput struct {
	SampleItemRef      string `json:"sampleItemId" validate:"required"`
	LocationID         uint64 `json:"locationId" validate:"required"`
	LocationType       string `json:"locationType" validate:"required"`
	PositionCoordinate string `json:"positionCoordinate" validate:"omitempty,max=32"`
	Notes              string `json:"notes" validate:"omitempty,max=512"`
}

// AssignResult is returned by Assign and by assignment metadata
// updates.
type AssignResult struct {
	AssignmentID         uint64
	HierarchicalPath     string
	Segments             hierarchy.Path
	AssignedDate         time.Time
	ShelfCapacityWarning string
}

// MoveInput is the request for relocating an assigned sample item.
type MoveInput struct {
	SampleItemRef      string `json:"sampleItemId" validate:"required"`
	LocationID         uint64 `json:"locationId" validate:"required"`
	LocationType       string `json:"locationType" validate:"required"`
	PositionCoordinate string `json:"positionCoordinate" validate:"omitempty,max=32"`
	Reason             string `json:"reason" validate:"omitempty,max=255"`
}

// MoveResult carries the movement audit id and both resolved paths.
type MoveResult struct {
	MovementID       uint64
	PreviousLocation string
	NewLocation      string
	MovedDate        time.Time
}

// DisposeInput is the request for terminally retiring a sample item.
type DisposeInput struct {
	SampleItemRef string `json:"sampleItemId" validate:"required"`
	Reason        string `json:"reason" validate:"required"`
	Method        string `json:"method" validate:"required"`
	Notes         string `json:"notes" validate:"omitempty,max=512"`
	DisposedBy    string `json:"disposedBy" validate:"omitempty,max=255"`
}

// DisposeResult confirms a disposal and reports where the item was
// stored before.
type DisposeResult struct {
	DisposalID       uint64
	PreviousLocation string
	DisposedDate     time.Time
}

// UpdateAssignmentInput carries the PATCHable assignment fields.  Nil
// pointers leave the current value unchanged.
type UpdateAssignmentInput struct {
	PositionCoordinate *string `json:"positionCoordinate" validate:"omitempty,max=32"`
	Notes              *string `json:"notes" validate:"omitempty,max=512"`
}

// RegisterSampleItem creates an unassigned sample item.
func (s *StorageService) RegisterSampleItem(ctx context.Context, in RegisterSampleItemInput) (*model.SampleItem, error) {
	item := &model.SampleItem{
		AccessionNumber: strings.TrimSpace(in.AccessionNumber),
		SpecimenType:    strings.TrimSpace(in.SpecimenType),
		Status:          model.StatusUnassigned,
	}
	if item.AccessionNumber == "" {
		return nil, errors.Wrap(store.ErrValidation, "accession number is required")
	}
	err := s.store.Within(ctx, func(tx store.Tx) error {
		return tx.InsertSampleItem(item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// resolveItem finds a sample item by internal id or accession number.
func resolveItem(tx store.Tx, ref string) (*model.SampleItem, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.Wrap(store.ErrValidation, "sample item reference is required")
	}
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		item, err := tx.SampleItemByID(id)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, store.ErrSampleItemNotFound) {
			return nil, err
		}
		// Fall through: a purely numeric accession number is legal.
	}
	return tx.SampleItemByAccession(ref)
}

// Assign places an unassigned sample item into a slot.  The occupancy
// check and the reservation are one atomic unit; under concurrent
// requests for the same slot exactly one caller wins and the rest get
// ErrOccupied.
func (s *StorageService) Assign(ctx context.Context, in AssignInput) (*AssignResult, error) {
	typ, ok := hierarchy.Parse(in.LocationType)
	if !ok || !typ.Assignable() {
		metrics.Failure("assign")
		return nil, errors.Wrapf(store.ErrValidation, "location type %q cannot hold sample items", in.LocationType)
	}

	var (
		res   AssignResult
		event queue.StorageAuditEvent
	)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		item, err := resolveItem(tx, in.SampleItemRef)
		if err != nil {
			return err
		}
		if item.Status == model.StatusDisposed {
			return store.ErrAlreadyDisposed
		}
		if existing, err := tx.ActiveAssignmentForItem(item.ID); err != nil {
			return err
		} else if existing != nil {
			return store.ErrAlreadyAssigned
		}

		loc, err := tx.LocationByID(in.LocationID)
		if err != nil {
			return err
		}
		if !loc.Active {
			return errors.Wrap(store.ErrValidation, "location is inactive")
		}
		if loc.Type != typ {
			return errors.Wrapf(store.ErrValidation, "location %d is a %s, not a %s", loc.ID, loc.Type, typ)
		}

		coord := effectiveCoordinate(loc, in.PositionCoordinate)
		if coord != "" {
			occupant, err := tx.ActiveAssignmentAtSlot(loc.ID, coord)
			if err != nil {
				return err
			}
			if occupant != nil {
				return store.ErrOccupied
			}
		}

		a := &model.Assignment{
			SampleItemID:       item.ID,
			LocationID:         loc.ID,
			PositionCoordinate: coord,
			Notes:              strings.TrimSpace(in.Notes),
			AssignedDate:       time.Now().UTC(),
			Active:             true,
		}
		if err := tx.InsertAssignment(a); err != nil {
			return err
		}
		if err := tx.UpdateSampleItemStatus(item.ID, model.StatusAssigned); err != nil {
			return err
		}
		if err := tx.InsertMovement(&model.Movement{
			SampleItemID: item.ID,
			ToLocationID: &loc.ID,
			ToCoordinate: optString(coord),
			Reason:       reasonInitialAssign,
			MovedDate:    a.AssignedDate,
		}); err != nil {
			return err
		}

		path, err := assignmentPath(tx, a)
		if err != nil {
			return err
		}
		warning, err := shelfCapacityWarning(tx, loc)
		if err != nil {
			return err
		}

		res = AssignResult{
			AssignmentID:         a.ID,
			HierarchicalPath:     path.Display(),
			Segments:             path,
			AssignedDate:         a.AssignedDate,
			ShelfCapacityWarning: warning,
		}
		event = queue.StorageAuditEvent{
			EventID:         uuid.NewString(),
			Kind:            queue.KindAssigned,
			SampleItemID:    item.ID,
			AccessionNumber: item.AccessionNumber,
			ToPath:          res.HierarchicalPath,
			OccurredAt:      a.AssignedDate.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		metrics.Failure("assign")
		return nil, err
	}
	metrics.Success("assign")
	metrics.StoredItems.Inc()
	s.publish(ctx, event)
	return &res, nil
}

// Move relocates an assigned sample item.  The prior assignment is
// ended and the new one created in the same atomic unit; on any
// failure the prior assignment is untouched.  Moving an item to its
// own current slot is allowed.
func (s *StorageService) Move(ctx context.Context, in MoveInput) (*MoveResult, error) {
	typ, ok := hierarchy.Parse(in.LocationType)
	if !ok || !typ.Assignable() {
		metrics.Failure("move")
		return nil, errors.Wrapf(store.ErrValidation, "location type %q cannot hold sample items", in.LocationType)
	}

	var (
		res   MoveResult
		event queue.StorageAuditEvent
	)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		item, err := resolveItem(tx, in.SampleItemRef)
		if err != nil {
			return err
		}
		if item.Status == model.StatusDisposed {
			return store.ErrAlreadyDisposed
		}
		current, err := tx.ActiveAssignmentForItem(item.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.Wrap(store.ErrAssignmentNotFound, "sample item is not currently assigned")
		}

		dest, err := tx.LocationByID(in.LocationID)
		if err != nil {
			return err
		}
		if !dest.Active {
			return errors.Wrap(store.ErrValidation, "destination location is inactive")
		}
		if dest.Type != typ {
			return errors.Wrapf(store.ErrValidation, "location %d is a %s, not a %s", dest.ID, dest.Type, typ)
		}

		coord := effectiveCoordinate(dest, in.PositionCoordinate)
		sameSlot := dest.ID == current.LocationID && coord == current.PositionCoordinate
		if coord != "" && !sameSlot {
			occupant, err := tx.ActiveAssignmentAtSlot(dest.ID, coord)
			if err != nil {
				return err
			}
			if occupant != nil && occupant.ID != current.ID {
				return store.ErrOccupied
			}
		}

		prevPath, err := assignmentPath(tx, current)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.EndAssignment(current.ID, now); err != nil {
			return err
		}
		next := &model.Assignment{
			SampleItemID:       item.ID,
			LocationID:         dest.ID,
			PositionCoordinate: coord,
			Notes:              current.Notes,
			AssignedDate:       now,
			Active:             true,
		}
		if err := tx.InsertAssignment(next); err != nil {
			return err
		}
		m := &model.Movement{
			SampleItemID:   item.ID,
			FromLocationID: &current.LocationID,
			FromCoordinate: optString(current.PositionCoordinate),
			ToLocationID:   &dest.ID,
			ToCoordinate:   optString(coord),
			Reason:         strings.TrimSpace(in.Reason),
			MovedDate:      now,
		}
		if err := tx.InsertMovement(m); err != nil {
			return err
		}

		newPath, err := assignmentPath(tx, next)
		if err != nil {
			return err
		}
		res = MoveResult{
			MovementID:       m.ID,
			PreviousLocation: prevPath.Display(),
			NewLocation:      newPath.Display(),
			MovedDate:        now,
		}
		event = queue.StorageAuditEvent{
			EventID:         uuid.NewString(),
			Kind:            queue.KindMoved,
			SampleItemID:    item.ID,
			AccessionNumber: item.AccessionNumber,
			FromPath:        res.PreviousLocation,
			ToPath:          res.NewLocation,
			Reason:          m.Reason,
			OccurredAt:      now.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		metrics.Failure("move")
		return nil, err
	}
	metrics.Success("move")
	s.publish(ctx, event)
	return &res, nil
}

// Dispose terminally retires a sample item.  The disposal row, the end
// of the active assignment, the status flip and the closing movement
// row commit together.  A repeat disposal fails and writes nothing.
func (s *StorageService) Dispose(ctx context.Context, in DisposeInput) (*DisposeResult, error) {
	if !s.disposal.ValidReason(in.Reason) {
		metrics.Failure("dispose")
		return nil, errors.Wrapf(store.ErrValidation, "unknown disposal reason %q", in.Reason)
	}
	if !s.disposal.ValidMethod(in.Method) {
		metrics.Failure("dispose")
		return nil, errors.Wrapf(store.ErrValidation, "unknown disposal method %q", in.Method)
	}

	var (
		res         DisposeResult
		event       queue.StorageAuditEvent
		wasAssigned bool
	)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		item, err := resolveItem(tx, in.SampleItemRef)
		if err != nil {
			return err
		}
		if item.Status == model.StatusDisposed {
			return store.ErrAlreadyDisposed
		}
		if prior, err := tx.DisposalForItem(item.ID); err != nil {
			return err
		} else if prior != nil {
			return store.ErrAlreadyDisposed
		}

		now := time.Now().UTC()
		var prevPath hierarchy.Path
		current, err := tx.ActiveAssignmentForItem(item.ID)
		if err != nil {
			return err
		}
		if current != nil {
			wasAssigned = true
			prevPath, err = assignmentPath(tx, current)
			if err != nil {
				return err
			}
			if err := tx.EndAssignment(current.ID, now); err != nil {
				return err
			}
			if err := tx.InsertMovement(&model.Movement{
				SampleItemID:   item.ID,
				FromLocationID: &current.LocationID,
				FromCoordinate: optString(current.PositionCoordinate),
				Reason:         fmt.Sprintf("%s: %s", reasonDisposal, in.Reason),
				MovedDate:      now,
			}); err != nil {
				return err
			}
		}

		d := &model.Disposal{
			SampleItemID: item.ID,
			Reason:       in.Reason,
			Method:       in.Method,
			Notes:        strings.TrimSpace(in.Notes),
			DisposedBy:   strings.TrimSpace(in.DisposedBy),
			DisposedDate: now,
		}
		if err := tx.InsertDisposal(d); err != nil {
			return err
		}
		if err := tx.UpdateSampleItemStatus(item.ID, model.StatusDisposed); err != nil {
			return err
		}

		res = DisposeResult{
			DisposalID:       d.ID,
			PreviousLocation: prevPath.Display(),
			DisposedDate:     now,
		}
		event = queue.StorageAuditEvent{
			EventID:         uuid.NewString(),
			Kind:            queue.KindDisposed,
			SampleItemID:    item.ID,
			AccessionNumber: item.AccessionNumber,
			FromPath:        res.PreviousLocation,
			Reason:          in.Reason,
			OccurredAt:      now.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		metrics.Failure("dispose")
		return nil, err
	}
	metrics.Success("dispose")
	metrics.DisposedItems.Inc()
	if wasAssigned {
		metrics.StoredItems.Dec()
	}
	s.publish(ctx, event)
	return &res, nil
}

// UpdateAssignment edits the coordinate or notes of an item's active
// assignment in place.  A coordinate change is subject to the same slot
// exclusivity as an assign.
func (s *StorageService) UpdateAssignment(ctx context.Context, itemRef string, in UpdateAssignmentInput) (*AssignResult, error) {
	var res AssignResult
	err := s.store.Within(ctx, func(tx store.Tx) error {
		item, err := resolveItem(tx, itemRef)
		if err != nil {
			return err
		}
		if item.Status == model.StatusDisposed {
			return store.ErrAlreadyDisposed
		}
		current, err := tx.ActiveAssignmentForItem(item.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.Wrap(store.ErrAssignmentNotFound, "sample item is not currently assigned")
		}

		loc, err := tx.LocationByID(current.LocationID)
		if err != nil {
			return err
		}
		coord := current.PositionCoordinate
		if in.PositionCoordinate != nil {
			// Clearing the coordinate of a box assignment falls back to
			// the box code, same as on assign; the slot never goes
			// coordinate-less and loses its exclusivity.
			coord = effectiveCoordinate(loc, *in.PositionCoordinate)
		}
		notes := current.Notes
		if in.Notes != nil {
			notes = strings.TrimSpace(*in.Notes)
		}
		if err := tx.UpdateAssignmentMetadata(current.ID, coord, notes); err != nil {
			return err
		}

		path, err := resolvePath(tx, current.LocationID, coord)
		if err != nil {
			return err
		}
		res = AssignResult{
			AssignmentID:     current.ID,
			HierarchicalPath: path.Display(),
			Segments:         path,
			AssignedDate:     current.AssignedDate,
		}
		return nil
	})
	if err != nil {
		metrics.Failure("update_assignment")
		return nil, err
	}
	metrics.Success("update_assignment")
	return &res, nil
}

// effectiveCoordinate resolves the physical slot address.  A box
// assignment with no explicit coordinate occupies the box itself, so
// the box code serves as the coordinate.
func effectiveCoordinate(loc *model.LocationNode, coordinate string) string {
	c := strings.TrimSpace(coordinate)
	if c == "" && loc.Type == hierarchy.TypeBox {
		return loc.Code
	}
	return c
}

// shelfCapacityWarning reports when the enclosing shelf has reached its
// configured capacity.  Assignments still succeed; the warning is
// advisory.
func shelfCapacityWarning(tx store.Tx, loc *model.LocationNode) (string, error) {
	shelf, err := shelfAncestor(tx, loc)
	if err != nil || shelf == nil || shelf.Capacity == nil {
		return "", err
	}
	ids, err := subtreeIDs(tx, shelf.ID)
	if err != nil {
		return "", err
	}
	count, err := tx.CountActiveAssignmentsAt(ids)
	if err != nil {
		return "", err
	}
	if uint32(count) >= *shelf.Capacity {
		return fmt.Sprintf("shelf %s holds %d of %d items", shelf.Name, count, *shelf.Capacity), nil
	}
	return "", nil
}

// publish sends an audit event to the broker, logging and swallowing
// failures so custody operations never depend on broker availability.
func (s *StorageService) publish(ctx context.Context, ev queue.StorageAuditEvent) {
	if s.Audit == nil || ev.EventID == "" {
		return
	}
	if err := s.Audit(ctx, ev); err != nil {
		logrus.WithError(err).WithField("event_id", ev.EventID).Debug("audit publish failed")
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
