package mysql

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

const sampleItemColumns = `id, accession_number, specimen_type, status, created_at, updated_at`

func scanSampleItem(row interface{ Scan(...interface{}) error }) (*model.SampleItem, error) {
	var it model.SampleItem
	if err := row.Scan(&it.ID, &it.AccessionNumber, &it.SpecimenType, &it.Status, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

func (t *tx) InsertSampleItem(it *model.SampleItem) error {
	if it.Status == "" {
		it.Status = model.StatusUnassigned
	}
	const q = `INSERT INTO sample_items (accession_number, specimen_type, status) VALUES (?, ?, ?)`
	res, err := t.tx.ExecContext(t.ctx, q, it.AccessionNumber, it.SpecimenType, it.Status)
	if err != nil {
		return errors.Wrap(err, "insert sample item")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "sample item insert id")
	}
	it.ID = uint64(id)
	const sel = `SELECT ` + sampleItemColumns + ` FROM sample_items WHERE id = ?`
	got, err := scanSampleItem(t.tx.QueryRowContext(t.ctx, sel, it.ID))
	if err != nil {
		return errors.Wrap(err, "reload sample item")
	}
	*it = *got
	return nil
}

func (t *tx) SampleItemByID(id uint64) (*model.SampleItem, error) {
	const q = `SELECT ` + sampleItemColumns + ` FROM sample_items WHERE id = ?`
	it, err := scanSampleItem(t.tx.QueryRowContext(t.ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSampleItemNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query sample item")
	}
	return it, nil
}

func (t *tx) SampleItemByAccession(accession string) (*model.SampleItem, error) {
	const q = `SELECT ` + sampleItemColumns + ` FROM sample_items WHERE LOWER(accession_number) = LOWER(?)`
	it, err := scanSampleItem(t.tx.QueryRowContext(t.ctx, q, accession))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSampleItemNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query sample item by accession")
	}
	return it, nil
}

func (t *tx) ListSampleItems(f store.SampleItemFilter) ([]*model.SampleItem, error) {
	query := `SELECT ` + sampleItemColumns + ` FROM sample_items`
	var conds []string
	var args []interface{}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "LOWER(accession_number) LIKE ?")
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list sample items")
	}
	defer rows.Close()
	var out []*model.SampleItem
	for rows.Next() {
		it, err := scanSampleItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan sample item")
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (t *tx) UpdateSampleItemStatus(id uint64, status string) error {
	const q = `UPDATE sample_items SET status = ? WHERE id = ?`
	res, err := t.tx.ExecContext(t.ctx, q, status, id)
	if err != nil {
		return errors.Wrap(err, "update sample item status")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, err := t.SampleItemByID(id); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) CountSampleItemsByStatus() (map[string]int, error) {
	const q = `SELECT status, COUNT(*) FROM sample_items GROUP BY status`
	rows, err := t.tx.QueryContext(t.ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "count sample items")
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan status count")
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
