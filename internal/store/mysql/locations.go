package mysql

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/hierarchy"
	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

const locationColumns = `id, location_type, code, name, parent_id, capacity, is_active, created_at, updated_at`

func scanLocation(row interface{ Scan(...interface{}) error }) (*model.LocationNode, error) {
	var n model.LocationNode
	var locType string
	var parentID sql.NullInt64
	var capacity sql.NullInt32
	if err := row.Scan(&n.ID, &locType, &n.Code, &n.Name, &parentID, &capacity, &n.Active, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Type = hierarchy.LocationType(locType)
	if parentID.Valid {
		p := uint64(parentID.Int64)
		n.ParentID = &p
	}
	if capacity.Valid {
		c := uint32(capacity.Int32)
		n.Capacity = &c
	}
	return &n, nil
}

func (t *tx) InsertLocation(n *model.LocationNode) error {
	const q = `INSERT INTO storage_locations (location_type, code, name, parent_id, capacity, is_active)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(t.ctx, q, string(n.Type), n.Code, n.Name, n.ParentID, n.Capacity, n.Active)
	if err != nil {
		return errors.Wrap(err, "insert location")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "location insert id")
	}
	n.ID = uint64(id)
	// Read the row back so timestamps reflect the database defaults.
	const sel = `SELECT ` + locationColumns + ` FROM storage_locations WHERE id = ?`
	got, err := scanLocation(t.tx.QueryRowContext(t.ctx, sel, n.ID))
	if err != nil {
		return errors.Wrap(err, "reload location")
	}
	*n = *got
	return nil
}

func (t *tx) UpdateLocation(n *model.LocationNode) error {
	const q = `UPDATE storage_locations
	           SET code = ?, name = ?, parent_id = ?, capacity = ?, is_active = ?
	           WHERE id = ?`
	res, err := t.tx.ExecContext(t.ctx, q, n.Code, n.Name, n.ParentID, n.Capacity, n.Active, n.ID)
	if err != nil {
		return errors.Wrap(err, "update location")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// MySQL also reports zero when the row exists but nothing
		// changed, so confirm existence before deciding not-found.
		if _, err := t.LocationByID(n.ID); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DeleteLocation(id uint64) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM storage_locations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete location")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return store.ErrLocationNotFound
	}
	return nil
}

func (t *tx) LocationByID(id uint64) (*model.LocationNode, error) {
	const q = `SELECT ` + locationColumns + ` FROM storage_locations WHERE id = ?`
	n, err := scanLocation(t.tx.QueryRowContext(t.ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLocationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query location")
	}
	return n, nil
}

func (t *tx) ChildLocations(parentID uint64) ([]*model.LocationNode, error) {
	const q = `SELECT ` + locationColumns + ` FROM storage_locations WHERE parent_id = ? ORDER BY id`
	rows, err := t.tx.QueryContext(t.ctx, q, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "query child locations")
	}
	defer rows.Close()
	return collectLocations(rows)
}

func (t *tx) ListLocations(f store.LocationFilter) ([]*model.LocationNode, error) {
	query := `SELECT ` + locationColumns + ` FROM storage_locations`
	var conds []string
	var args []interface{}
	if f.Type != "" {
		conds = append(conds, "location_type = ?")
		args = append(args, string(f.Type))
	}
	if !f.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if f.ParentID != nil {
		conds = append(conds, "parent_id = ?")
		args = append(args, *f.ParentID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)")
		like := "%" + strings.ToLower(s) + "%"
		args = append(args, like, like)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list locations")
	}
	defer rows.Close()
	return collectLocations(rows)
}

func (t *tx) CountActiveLocationsByType() (map[hierarchy.LocationType]int, error) {
	const q = `SELECT location_type, COUNT(*) FROM storage_locations WHERE is_active = TRUE GROUP BY location_type`
	rows, err := t.tx.QueryContext(t.ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "count locations")
	}
	defer rows.Close()
	counts := make(map[hierarchy.LocationType]int)
	for rows.Next() {
		var locType string
		var n int
		if err := rows.Scan(&locType, &n); err != nil {
			return nil, errors.Wrap(err, "scan location count")
		}
		counts[hierarchy.LocationType(locType)] = n
	}
	return counts, rows.Err()
}

func collectLocations(rows *sql.Rows) ([]*model.LocationNode, error) {
	var out []*model.LocationNode
	for rows.Next() {
		n, err := scanLocation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan location")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
