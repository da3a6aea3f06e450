package mysql

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/model"
)

const movementColumns = `id, sample_item_id, from_location_id, from_coordinate, to_location_id, to_coordinate, reason, moved_date`

func scanMovement(row interface{ Scan(...interface{}) error }) (*model.Movement, error) {
	var m model.Movement
	var fromLoc, toLoc sql.NullInt64
	var fromCoord, toCoord, reason sql.NullString
	if err := row.Scan(&m.ID, &m.SampleItemID, &fromLoc, &fromCoord, &toLoc, &toCoord, &reason, &m.MovedDate); err != nil {
		return nil, err
	}
	if fromLoc.Valid {
		v := uint64(fromLoc.Int64)
		m.FromLocationID = &v
	}
	if fromCoord.Valid {
		v := fromCoord.String
		m.FromCoordinate = &v
	}
	if toLoc.Valid {
		v := uint64(toLoc.Int64)
		m.ToLocationID = &v
	}
	if toCoord.Valid {
		v := toCoord.String
		m.ToCoordinate = &v
	}
	m.Reason = reason.String
	return &m, nil
}

func (t *tx) InsertMovement(m *model.Movement) error {
	if m.MovedDate.IsZero() {
		m.MovedDate = time.Now().UTC()
	}
	const q = `INSERT INTO sample_storage_movements
	           (sample_item_id, from_location_id, from_coordinate, to_location_id, to_coordinate, reason, moved_date)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(t.ctx, q,
		m.SampleItemID, m.FromLocationID, m.FromCoordinate, m.ToLocationID, m.ToCoordinate,
		nullString(m.Reason), m.MovedDate.UTC())
	if err != nil {
		return errors.Wrap(err, "insert movement")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "movement insert id")
	}
	m.ID = uint64(id)
	return nil
}

func (t *tx) MovementsForItem(sampleItemID uint64) ([]*model.Movement, error) {
	const q = `SELECT ` + movementColumns + `
	           FROM sample_storage_movements
	           WHERE sample_item_id = ?
	           ORDER BY moved_date DESC, id DESC`
	rows, err := t.tx.QueryContext(t.ctx, q, sampleItemID)
	if err != nil {
		return nil, errors.Wrap(err, "query movements")
	}
	defer rows.Close()
	var out []*model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan movement")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
