package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

// SampleItemView is the listing shape for sample items: identity,
// lifecycle status and the resolved current location, empty when the
// item is not in storage.
type SampleItemView struct {
	ID              uint64
	AccessionNumber string
	SpecimenType    string
	Status          string
	Location        string
	Segments        hierarchy.Path
}

// ItemLocationView is the detail shape for one sample item, including
// its active assignment when present.
type ItemLocationView struct {
	Item               *model.SampleItem
	AssignmentID       uint64
	LocationID         uint64
	PositionCoordinate string
	HierarchicalPath   string
	Segments           hierarchy.Path
	AssignedDate       time.Time
}

// MovementView is one audit-trail entry with both endpoints resolved
// to display paths.  From is empty for the initial assignment; To is
// empty for the disposal entry.
type MovementView struct {
	ID        uint64
	From      string
	To        string
	Reason    string
	MovedDate time.Time
}

// ListSampleItemsInput narrows a sample item listing.  LocationID
// scopes to items stored anywhere inside that subtree.
type ListSampleItemsInput struct {
	Status     string
	Search     string
	LocationID *uint64
}

// MetricsSnapshot is the domain metrics payload, always computed from
// committed state at call time.
type MetricsSnapshot struct {
	Stored           int
	Disposed         int
	Unassigned       int
	TotalSampleItems int
	Locations        LocationCounts
}

// LocationCounts breaks down active locations by hierarchy level.
type LocationCounts struct {
	Rooms   int
	Devices int
	Shelves int
	Racks   int
	Boxes   int
}

// ListSampleItems returns sample item views matching the filter,
// ordered by id, each with its current location path resolved.
func (s *StorageService) ListSampleItems(ctx context.Context, in ListSampleItemsInput) ([]SampleItemView, error) {
	views := []SampleItemView{}
	err := s.store.View(ctx, func(tx store.Tx) error {
		items, err := tx.ListSampleItems(store.SampleItemFilter{Status: in.Status, Search: in.Search})
		if err != nil {
			return err
		}
		var inSubtree map[uint64]bool
		if in.LocationID != nil {
			ids, err := subtreeIDs(tx, *in.LocationID)
			if err != nil {
				return err
			}
			inSubtree = make(map[uint64]bool, len(ids))
			for _, id := range ids {
				inSubtree[id] = true
			}
		}
		for _, item := range items {
			v, a, err := itemView(tx, item)
			if err != nil {
				return err
			}
			if inSubtree != nil && (a == nil || !inSubtree[a.LocationID]) {
				continue
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// SearchSampleItems matches the internal id, an accession number
// prefix, or any segment of the item's current hierarchical path,
// all case-insensitive.
func (s *StorageService) SearchSampleItems(ctx context.Context, query string) ([]SampleItemView, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []SampleItemView{}, nil
	}
	views := []SampleItemView{}
	err := s.store.View(ctx, func(tx store.Tx) error {
		items, err := tx.ListSampleItems(store.SampleItemFilter{})
		if err != nil {
			return err
		}
		for _, item := range items {
			v, _, err := itemView(tx, item)
			if err != nil {
				return err
			}
			if matchesQuery(v, q) {
				views = append(views, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func matchesQuery(v SampleItemView, q string) bool {
	if strconv.FormatUint(v.ID, 10) == q {
		return true
	}
	if strings.HasPrefix(strings.ToLower(v.AccessionNumber), q) {
		return true
	}
	for _, seg := range v.Segments {
		if strings.Contains(strings.ToLower(seg.Name), q) {
			return true
		}
	}
	return false
}

// ItemLocation returns one sample item with its active assignment
// resolved.  Items without an active assignment return a view with no
// path.
func (s *StorageService) ItemLocation(ctx context.Context, ref string) (*ItemLocationView, error) {
	var view ItemLocationView
	err := s.store.View(ctx, func(tx store.Tx) error {
		item, err := resolveItem(tx, ref)
		if err != nil {
			return err
		}
		view.Item = item
		a, err := tx.ActiveAssignmentForItem(item.ID)
		if err != nil || a == nil {
			return err
		}
		path, err := assignmentPath(tx, a)
		if err != nil {
			return err
		}
		view.AssignmentID = a.ID
		view.LocationID = a.LocationID
		view.PositionCoordinate = a.PositionCoordinate
		view.HierarchicalPath = path.Display()
		view.Segments = path
		view.AssignedDate = a.AssignedDate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Movements returns the item's audit trail, newest first.
func (s *StorageService) Movements(ctx context.Context, ref string) ([]MovementView, error) {
	views := []MovementView{}
	err := s.store.View(ctx, func(tx store.Tx) error {
		item, err := resolveItem(tx, ref)
		if err != nil {
			return err
		}
		moves, err := tx.MovementsForItem(item.ID)
		if err != nil {
			return err
		}
		for _, m := range moves {
			v := MovementView{ID: m.ID, Reason: m.Reason, MovedDate: m.MovedDate}
			if m.FromLocationID != nil {
				p, err := resolvePath(tx, *m.FromLocationID, deref(m.FromCoordinate))
				if err != nil {
					return err
				}
				v.From = p.Display()
			}
			if m.ToLocationID != nil {
				p, err := resolvePath(tx, *m.ToLocationID, deref(m.ToCoordinate))
				if err != nil {
					return err
				}
				v.To = p.Display()
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Metrics computes the live custody counts from committed state.
func (s *StorageService) Metrics(ctx context.Context) (*MetricsSnapshot, error) {
	var snap MetricsSnapshot
	err := s.store.View(ctx, func(tx store.Tx) error {
		byStatus, err := tx.CountSampleItemsByStatus()
		if err != nil {
			return err
		}
		snap.Stored = byStatus[model.StatusAssigned]
		snap.Disposed = byStatus[model.StatusDisposed]
		snap.Unassigned = byStatus[model.StatusUnassigned]
		snap.TotalSampleItems = snap.Stored + snap.Disposed + snap.Unassigned

		byType, err := tx.CountActiveLocationsByType()
		if err != nil {
			return err
		}
		snap.Locations = LocationCounts{
			Rooms:   byType[hierarchy.TypeRoom],
			Devices: byType[hierarchy.TypeDevice],
			Shelves: byType[hierarchy.TypeShelf],
			Racks:   byType[hierarchy.TypeRack],
			Boxes:   byType[hierarchy.TypeBox],
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// itemView builds the listing view for one item, returning the active
// assignment alongside for callers that filter on location.
func itemView(tx store.Tx, item *model.SampleItem) (SampleItemView, *model.Assignment, error) {
	v := SampleItemView{
		ID:              item.ID,
		AccessionNumber: item.AccessionNumber,
		SpecimenType:    item.SpecimenType,
		Status:          item.Status,
	}
	a, err := tx.ActiveAssignmentForItem(item.ID)
	if err != nil || a == nil {
		return v, nil, err
	}
	path, err := assignmentPath(tx, a)
	if err != nil {
		return v, nil, err
	}
	v.Location = path.Display()
	v.Segments = path
	return v, a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
