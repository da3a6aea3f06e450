package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

// LocationService manages the storage location tree: creation, edits,
// guarded deletion and the filtered listings backing the location
// endpoints.
type LocationService struct {
	store store.Store
}

// NewLocationService constructs a LocationService.  The store must be
// non-nil.
func NewLocationService(st store.Store) *LocationService {
	if st == nil {
		panic("nil store passed to NewLocationService")
	}
	return &LocationService{store: st}
}

// CreateLocationInput carries the fields accepted when creating a node.
type CreateLocationInput struct {
	Type     string  `json:"type" validate:"required"`
	Code     string  `json:"code" validate:"required,max=64"`
	Name     string  `json:"name" validate:"required,max=255"`
	ParentID *uint64 `json:"parentId"`
	Capacity *uint32 `json:"capacity"`
}

// UpdateLocationInput carries the editable fields of a node.  Nil
// pointers leave the current value unchanged.
type UpdateLocationInput struct {
	Code     *string `json:"code" validate:"omitempty,max=64"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Capacity *uint32 `json:"capacity"`
	Active   *bool   `json:"active"`
}

// ListLocationsInput narrows a listing.  AncestorID scopes the result
// to the subtree under that node, e.g. devices under one room.
type ListLocationsInput struct {
	Type            hierarchy.LocationType
	ParentID        *uint64
	AncestorID      *uint64
	IncludeInactive bool
	Search          string
}

// Create validates the hierarchy chain and inserts a new node.  The
// parent must exist, be active, and sit exactly one level above the
// new node's type.
func (s *LocationService) Create(ctx context.Context, in CreateLocationInput) (*model.LocationNode, error) {
	typ, ok := hierarchy.Parse(in.Type)
	if !ok {
		return nil, errors.Wrapf(store.ErrValidation, "unknown location type %q", in.Type)
	}
	node := &model.LocationNode{
		Type:     typ,
		Code:     strings.TrimSpace(in.Code),
		Name:     strings.TrimSpace(in.Name),
		ParentID: in.ParentID,
		Capacity: in.Capacity,
		Active:   true,
	}
	if node.Code == "" || node.Name == "" {
		return nil, errors.Wrap(store.ErrValidation, "code and name are required")
	}
	err := s.store.Within(ctx, func(tx store.Tx) error {
		var parentType hierarchy.LocationType
		if in.ParentID != nil {
			parent, err := tx.LocationByID(*in.ParentID)
			if err != nil {
				return err
			}
			if !parent.Active {
				return errors.Wrap(store.ErrValidation, "parent location is inactive")
			}
			parentType = parent.Type
		}
		if !hierarchy.ValidParent(typ, parentType, in.ParentID != nil) {
			return errors.Wrapf(store.ErrValidation, "a %s cannot be placed under a %s", typ, parentName(parentType, in.ParentID != nil))
		}
		return tx.InsertLocation(node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func parentName(t hierarchy.LocationType, hasParent bool) string {
	if !hasParent {
		return "root"
	}
	return string(t)
}

// Update applies the given edits to an existing node.  Deactivating a
// node does not end assignments beneath it; existing custody stays
// intact while new assignments are refused.
func (s *LocationService) Update(ctx context.Context, id uint64, in UpdateLocationInput) (*model.LocationNode, error) {
	var node *model.LocationNode
	err := s.store.Within(ctx, func(tx store.Tx) error {
		cur, err := tx.LocationByID(id)
		if err != nil {
			return err
		}
		if in.Code != nil {
			if strings.TrimSpace(*in.Code) == "" {
				return errors.Wrap(store.ErrValidation, "code cannot be empty")
			}
			cur.Code = strings.TrimSpace(*in.Code)
		}
		if in.Name != nil {
			if strings.TrimSpace(*in.Name) == "" {
				return errors.Wrap(store.ErrValidation, "name cannot be empty")
			}
			cur.Name = strings.TrimSpace(*in.Name)
		}
		if in.Capacity != nil {
			cur.Capacity = in.Capacity
		}
		if in.Active != nil {
			cur.Active = *in.Active
		}
		if err := tx.UpdateLocation(cur); err != nil {
			return err
		}
		node = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Delete removes a node.  It fails with ErrConflict when the subtree
// still holds active child nodes or active assignments, mirroring the
// CanDelete dry-run.
func (s *LocationService) Delete(ctx context.Context, id uint64) error {
	return s.store.Within(ctx, func(tx store.Tx) error {
		if _, err := tx.LocationByID(id); err != nil {
			return err
		}
		blocked, reason, err := deleteBlocked(tx, id)
		if err != nil {
			return err
		}
		if blocked {
			return errors.Wrap(store.ErrConflict, reason)
		}
		return tx.DeleteLocation(id)
	})
}

// CanDelete reports whether a node could be deleted right now, and if
// not, why.  It never mutates anything.
func (s *LocationService) CanDelete(ctx context.Context, id uint64) (bool, string, error) {
	var (
		blocked bool
		reason  string
	)
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.LocationByID(id); err != nil {
			return err
		}
		var err error
		blocked, reason, err = deleteBlocked(tx, id)
		return err
	})
	if err != nil {
		return false, "", err
	}
	return !blocked, reason, nil
}

// deleteBlocked checks the subtree under id for active children and
// active assignments.
func deleteBlocked(tx store.Tx, id uint64) (bool, string, error) {
	ids, err := subtreeIDs(tx, id)
	if err != nil {
		return false, "", err
	}
	for _, childID := range ids[1:] {
		child, err := tx.LocationByID(childID)
		if err != nil {
			return false, "", err
		}
		if child.Active {
			return true, "location has active child locations", nil
		}
	}
	count, err := tx.CountActiveAssignmentsAt(ids)
	if err != nil {
		return false, "", err
	}
	if count > 0 {
		return true, "location has active sample assignments", nil
	}
	return false, "", nil
}

// List returns nodes matching the filter, ordered by id.  When an
// ancestor id is given, only nodes inside that subtree are returned.
func (s *LocationService) List(ctx context.Context, in ListLocationsInput) ([]*model.LocationNode, error) {
	var out []*model.LocationNode
	err := s.store.View(ctx, func(tx store.Tx) error {
		nodes, err := tx.ListLocations(store.LocationFilter{
			Type:            in.Type,
			ParentID:        in.ParentID,
			IncludeInactive: in.IncludeInactive,
			Search:          in.Search,
		})
		if err != nil {
			return err
		}
		if in.AncestorID == nil {
			out = nodes
			return nil
		}
		ids, err := subtreeIDs(tx, *in.AncestorID)
		if err != nil {
			return err
		}
		inSubtree := make(map[uint64]bool, len(ids))
		for _, id := range ids {
			inSubtree[id] = true
		}
		out = out[:0]
		for _, n := range nodes {
			if inSubtree[n.ID] {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.LocationNode{}
	}
	return out, nil
}

// Search matches active nodes by case-insensitive substring on name or
// code, optionally restricted to one hierarchy level.
func (s *LocationService) Search(ctx context.Context, query string, typ hierarchy.LocationType) ([]*model.LocationNode, error) {
	return s.List(ctx, ListLocationsInput{Type: typ, Search: strings.TrimSpace(query)})
}

// Get returns one node by id.
func (s *LocationService) Get(ctx context.Context, id uint64) (*model.LocationNode, error) {
	var node *model.LocationNode
	err := s.store.View(ctx, func(tx store.Tx) error {
		n, err := tx.LocationByID(id)
		if err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}
