package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
	"github.com/openlims/sample-storage/internal/store/memory"
)

func TestWithinRollsBackOnError(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.Within(ctx, func(tx store.Tx) error {
		return tx.InsertSampleItem(&model.SampleItem{AccessionNumber: "SI-1"})
	}))

	boom := errors.New("boom")
	err := st.Within(ctx, func(tx store.Tx) error {
		if err := tx.InsertSampleItem(&model.SampleItem{AccessionNumber: "SI-2"}); err != nil {
			return err
		}
		if err := tx.UpdateSampleItemStatus(1, model.StatusAssigned); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the insert nor the status change survived.
	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		items, err := tx.ListSampleItems(store.SampleItemFilter{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, model.StatusUnassigned, items[0].Status)
		return nil
	}))
}

func TestSlotUniquenessEnforcedAtInsert(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.Within(ctx, func(tx store.Tx) error {
		for _, acc := range []string{"SI-1", "SI-2"} {
			if err := tx.InsertSampleItem(&model.SampleItem{AccessionNumber: acc}); err != nil {
				return err
			}
		}
		return tx.InsertAssignment(&model.Assignment{SampleItemID: 1, LocationID: 10, PositionCoordinate: "A5"})
	}))

	err := st.Within(ctx, func(tx store.Tx) error {
		return tx.InsertAssignment(&model.Assignment{SampleItemID: 2, LocationID: 10, PositionCoordinate: "A5"})
	})
	require.ErrorIs(t, err, store.ErrOccupied)

	err = st.Within(ctx, func(tx store.Tx) error {
		return tx.InsertAssignment(&model.Assignment{SampleItemID: 1, LocationID: 11, PositionCoordinate: "B1"})
	})
	require.ErrorIs(t, err, store.ErrAlreadyAssigned)

	// Ending the assignment frees both the slot and the item.
	require.NoError(t, st.Within(ctx, func(tx store.Tx) error {
		if err := tx.EndAssignment(1, time.Now()); err != nil {
			return err
		}
		return tx.InsertAssignment(&model.Assignment{SampleItemID: 2, LocationID: 10, PositionCoordinate: "A5"})
	}))
}

func TestCoordinateMatchIsCaseInsensitive(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.Within(ctx, func(tx store.Tx) error {
		if err := tx.InsertSampleItem(&model.SampleItem{AccessionNumber: "SI-1"}); err != nil {
			return err
		}
		return tx.InsertAssignment(&model.Assignment{SampleItemID: 1, LocationID: 10, PositionCoordinate: "a5"})
	}))

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		occupant, err := tx.ActiveAssignmentAtSlot(10, "A5")
		require.NoError(t, err)
		require.NotNil(t, occupant)
		return nil
	}))
}
