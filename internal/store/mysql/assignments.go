package mysql

import (
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

const assignmentColumns = `id, sample_item_id, location_id, position_coordinate, notes, assigned_date, active, ended_date`

func scanAssignment(row interface{ Scan(...interface{}) error }) (*model.Assignment, error) {
	var a model.Assignment
	var coordinate, notes sql.NullString
	var active sql.NullBool
	var ended sql.NullTime
	if err := row.Scan(&a.ID, &a.SampleItemID, &a.LocationID, &coordinate, &notes, &a.AssignedDate, &active, &ended); err != nil {
		return nil, err
	}
	a.PositionCoordinate = coordinate.String
	a.Notes = notes.String
	a.Active = active.Valid && active.Bool
	if ended.Valid {
		e := ended.Time
		a.EndedDate = &e
	}
	return &a, nil
}

func (t *tx) ActiveAssignmentForItem(sampleItemID uint64) (*model.Assignment, error) {
	const q = `SELECT ` + assignmentColumns + `
	           FROM sample_storage_assignments
	           WHERE sample_item_id = ? AND active = 1
	           FOR UPDATE`
	a, err := scanAssignment(t.tx.QueryRowContext(t.ctx, q, sampleItemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query active assignment for item")
	}
	return a, nil
}

// ActiveAssignmentAtSlot locks the occupancy row for the slot, if any,
// for the remainder of the transaction.  A concurrent transaction
// checking the same slot blocks here until this one commits or rolls
// back, which is what makes check-and-reserve a single atomic unit.
func (t *tx) ActiveAssignmentAtSlot(locationID uint64, coordinate string) (*model.Assignment, error) {
	if strings.TrimSpace(coordinate) == "" {
		return nil, nil
	}
	const q = `SELECT ` + assignmentColumns + `
	           FROM sample_storage_assignments
	           WHERE location_id = ? AND LOWER(position_coordinate) = LOWER(?) AND active = 1
	           FOR UPDATE`
	a, err := scanAssignment(t.tx.QueryRowContext(t.ctx, q, locationID, coordinate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query slot occupant")
	}
	return a, nil
}

func (t *tx) ActiveAssignments() ([]*model.Assignment, error) {
	const q = `SELECT ` + assignmentColumns + ` FROM sample_storage_assignments WHERE active = 1 ORDER BY id`
	rows, err := t.tx.QueryContext(t.ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "list active assignments")
	}
	defer rows.Close()
	var out []*model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *tx) CountActiveAssignmentsAt(locationIDs []uint64) (int, error) {
	if len(locationIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, 0, len(locationIDs))
	args := make([]interface{}, 0, len(locationIDs))
	for _, id := range locationIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := `SELECT COUNT(*) FROM sample_storage_assignments
	          WHERE active = 1 AND location_id IN (` + strings.Join(placeholders, ",") + `)`
	var n int
	if err := t.tx.QueryRowContext(t.ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count assignments at locations")
	}
	return n, nil
}

func (t *tx) InsertAssignment(a *model.Assignment) error {
	if a.AssignedDate.IsZero() {
		a.AssignedDate = time.Now().UTC()
	}
	const q = `INSERT INTO sample_storage_assignments
	           (sample_item_id, location_id, position_coordinate, notes, assigned_date, active)
	           VALUES (?, ?, ?, ?, ?, 1)`
	res, err := t.tx.ExecContext(t.ctx, q,
		a.SampleItemID, a.LocationID, nullString(a.PositionCoordinate), nullString(a.Notes), a.AssignedDate.UTC())
	if err != nil {
		// The unique keys over live rows are the last line of defense
		// against a concurrent claim of the same slot or item.
		if dupKey(err, keySlotActive) {
			return store.ErrOccupied
		}
		if dupKey(err, keyItemActive) {
			return store.ErrAlreadyAssigned
		}
		return errors.Wrap(err, "insert assignment")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "assignment insert id")
	}
	a.ID = uint64(id)
	a.Active = true
	return nil
}

func (t *tx) EndAssignment(id uint64, at time.Time) error {
	// active is set to NULL rather than 0 so the unique keys only see
	// live rows; the ended row stays behind as history.
	const q = `UPDATE sample_storage_assignments
	           SET active = NULL, ended_date = ?
	           WHERE id = ? AND active = 1`
	res, err := t.tx.ExecContext(t.ctx, q, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "end assignment")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrAssignmentNotFound
	}
	return nil
}

func (t *tx) UpdateAssignmentMetadata(id uint64, coordinate, notes string) error {
	const sel = `SELECT id FROM sample_storage_assignments WHERE id = ? AND active = 1 FOR UPDATE`
	var got uint64
	if err := t.tx.QueryRowContext(t.ctx, sel, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrAssignmentNotFound
		}
		return errors.Wrap(err, "lock assignment")
	}
	const q = `UPDATE sample_storage_assignments SET position_coordinate = ?, notes = ? WHERE id = ?`
	if _, err := t.tx.ExecContext(t.ctx, q, nullString(coordinate), nullString(notes), id); err != nil {
		if dupKey(err, keySlotActive) {
			return store.ErrOccupied
		}
		return errors.Wrap(err, "update assignment metadata")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}
