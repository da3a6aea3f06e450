package mysql

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/model"
	"github.com/openlims/sample-storage/internal/store"
)

const disposalColumns = `id, sample_item_id, reason, method, notes, disposed_by, disposed_date`

// keyDisposalItem is the unique key over sample_item_id: a sample item
// can be disposed at most once, ever.
const keyDisposalItem = "uq_disposal_item"

func scanDisposal(row interface{ Scan(...interface{}) error }) (*model.Disposal, error) {
	var d model.Disposal
	var notes, disposedBy sql.NullString
	if err := row.Scan(&d.ID, &d.SampleItemID, &d.Reason, &d.Method, &notes, &disposedBy, &d.DisposedDate); err != nil {
		return nil, err
	}
	d.Notes = notes.String
	d.DisposedBy = disposedBy.String
	return &d, nil
}

func (t *tx) InsertDisposal(d *model.Disposal) error {
	if d.DisposedDate.IsZero() {
		d.DisposedDate = time.Now().UTC()
	}
	const q = `INSERT INTO sample_disposals
	           (sample_item_id, reason, method, notes, disposed_by, disposed_date)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(t.ctx, q,
		d.SampleItemID, d.Reason, d.Method, nullString(d.Notes), nullString(d.DisposedBy), d.DisposedDate.UTC())
	if err != nil {
		if dupKey(err, keyDisposalItem) {
			return store.ErrAlreadyDisposed
		}
		return errors.Wrap(err, "insert disposal")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "disposal insert id")
	}
	d.ID = uint64(id)
	return nil
}

func (t *tx) DisposalForItem(sampleItemID uint64) (*model.Disposal, error) {
	const q = `SELECT ` + disposalColumns + ` FROM sample_disposals WHERE sample_item_id = ?`
	d, err := scanDisposal(t.tx.QueryRowContext(t.ctx, q, sampleItemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query disposal")
	}
	return d, nil
}
