package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/service"
	"github.com/openlims/sample-storage/internal/store"
)

func TestCreateLocationValidatesChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A rack cannot sit directly under a device.
	_, err := f.locations.Create(ctx, service.CreateLocationInput{
		Type: "rack", Code: "RK-9", Name: "Orphan Rack", ParentID: &f.device.ID,
	})
	require.ErrorIs(t, err, store.ErrValidation)

	// A room cannot have a parent.
	_, err = f.locations.Create(ctx, service.CreateLocationInput{
		Type: "room", Code: "LAB-2", Name: "Annex", ParentID: &f.room.ID,
	})
	require.ErrorIs(t, err, store.ErrValidation)

	// A device needs a parent.
	_, err = f.locations.Create(ctx, service.CreateLocationInput{
		Type: "device", Code: "FRZ-02", Name: "Freezer Unit 2",
	})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = f.locations.Create(ctx, service.CreateLocationInput{
		Type: "fridge", Code: "X", Name: "X", ParentID: &f.room.ID,
	})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = f.locations.Create(ctx, service.CreateLocationInput{
		Type: "rack", Code: "RK-9", Name: "Ghost Rack", ParentID: ptr(uint64(9999)),
	})
	require.ErrorIs(t, err, store.ErrLocationNotFound)
}

func TestCreateUnderInactiveParentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := false
	_, err := f.locations.Update(ctx, f.shelfB.ID, service.UpdateLocationInput{Active: &inactive})
	require.NoError(t, err)

	_, err = f.locations.Create(ctx, service.CreateLocationInput{
		Type: "rack", Code: "RK-9", Name: "Rack R9", ParentID: &f.shelfB.ID,
	})
	require.ErrorIs(t, err, store.ErrValidation)
}

func TestDeleteLocationConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Active children block deletion of the shelf.
	err := f.locations.Delete(ctx, f.shelfA.ID)
	require.ErrorIs(t, err, store.ErrConflict)

	ok, reason, err := f.locations.CanDelete(ctx, f.shelfA.ID)
	require.NoError(t, err)
	require.False(t, ok)
	require.NotEmpty(t, reason)

	// An active assignment blocks deletion even with no child nodes.
	f.registerItem(t, "SI-1")
	f.assign(t, "SI-1", f.rackR2, "B1")
	err = f.locations.Delete(ctx, f.rackR2.ID)
	require.ErrorIs(t, err, store.ErrConflict)

	// An empty leaf deletes cleanly.
	ok, _, err = f.locations.CanDelete(ctx, f.rackR1.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.locations.Delete(ctx, f.rackR1.ID))

	_, err = f.locations.Get(ctx, f.rackR1.ID)
	require.ErrorIs(t, err, store.ErrLocationNotFound)
}

func TestDeleteConflictClearsAfterDisposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registerItem(t, "SI-1")
	f.assign(t, "SI-1", f.rackR1, "A5")
	require.ErrorIs(t, f.locations.Delete(ctx, f.rackR1.ID), store.ErrConflict)

	_, err := f.storage.Dispose(ctx, service.DisposeInput{
		SampleItemRef: "SI-1",
		Reason:        "Expired",
		Method:        "Incineration",
	})
	require.NoError(t, err)

	// Ended assignments stay as history but no longer block deletion.
	require.NoError(t, f.locations.Delete(ctx, f.rackR1.ID))
}

func TestListLocationsScopedToAncestor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second freezer with its own shelf, outside the first subtree.
	dev2, err := f.locations.Create(ctx, service.CreateLocationInput{
		Type: "device", Code: "FRZ-02", Name: "Freezer Unit 2", ParentID: &f.room.ID,
	})
	require.NoError(t, err)
	_, err = f.locations.Create(ctx, service.CreateLocationInput{
		Type: "shelf", Code: "SH-C", Name: "Shelf-C", ParentID: &dev2.ID,
	})
	require.NoError(t, err)

	all, err := f.locations.List(ctx, service.ListLocationsInput{Type: hierarchy.TypeShelf})
	require.NoError(t, err)
	require.Len(t, all, 3)

	scoped, err := f.locations.List(ctx, service.ListLocationsInput{
		Type:       hierarchy.TypeShelf,
		AncestorID: &dev2.ID,
	})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "Shelf-C", scoped[0].Name)

	racks, err := f.locations.List(ctx, service.ListLocationsInput{
		Type:       hierarchy.TypeRack,
		AncestorID: &f.shelfA.ID,
	})
	require.NoError(t, err)
	require.Len(t, racks, 2)

	allRacks, err := f.locations.List(ctx, service.ListLocationsInput{
		Type:       hierarchy.TypeRack,
		AncestorID: &f.room.ID,
	})
	require.NoError(t, err)
	require.Len(t, allRacks, 3)
}

func TestListLocationsExcludesInactiveByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := false
	_, err := f.locations.Update(ctx, f.rackR2.ID, service.UpdateLocationInput{Active: &inactive})
	require.NoError(t, err)

	visible, err := f.locations.List(ctx, service.ListLocationsInput{Type: hierarchy.TypeRack})
	require.NoError(t, err)
	require.Len(t, visible, 2)

	all, err := f.locations.List(ctx, service.ListLocationsInput{Type: hierarchy.TypeRack, IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestSearchLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byName, err := f.locations.Search(ctx, "shelf-a", "")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, f.shelfA.ID, byName[0].ID)

	byCode, err := f.locations.Search(ctx, "frz", hierarchy.TypeDevice)
	require.NoError(t, err)
	require.Len(t, byCode, 1)

	none, err := f.locations.Search(ctx, "centrifuge", "")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAssignToInactiveLocationRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := false
	_, err := f.locations.Update(ctx, f.rackR1.ID, service.UpdateLocationInput{Active: &inactive})
	require.NoError(t, err)

	f.registerItem(t, "SI-1")
	_, err = f.storage.Assign(ctx, service.AssignInput{
		SampleItemRef:      "SI-1",
		LocationID:         f.rackR1.ID,
		LocationType:       "rack",
		PositionCoordinate: "A5",
	})
	require.ErrorIs(t, err, store.ErrValidation)
}

func ptr[T any](v T) *T { return &v }
