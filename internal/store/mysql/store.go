// Package mysql implements the store contract on MySQL using
// database/sql.  Slot exclusivity rests on two layers: inside a
// transaction, ActiveAssignmentAtSlot locks the contended slot with
// SELECT ... FOR UPDATE, and a unique key over live
// (location_id, position_coordinate) rows is the final arbiter when
// two transactions race past the check.  Ended assignments set the
// active column to NULL (never 0) so the unique key only constrains
// live rows.
package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/openlims/sample-storage/internal/store"
)

// Duplicate-key error number reported by MySQL on unique violations.
const erDupEntry = 1062

// Names of the unique keys over live assignment rows; used to map a
// duplicate-key failure to the right sentinel.
const (
	keySlotActive = "uq_assignment_slot_active"
	keyItemActive = "uq_assignment_item_active"
)

// Store wraps a MySQL connection pool.
type Store struct {
	db *sql.DB
}

// New returns a Store bound to the given pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Within runs fn inside a single transaction.  The transaction is
// rolled back unless fn returns nil and the commit succeeds, so audit
// rows and status transitions always land together or not at all.
func (s *Store) Within(ctx context.Context, fn func(store.Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = dbtx.Rollback()
		}
	}()
	if err := fn(&tx{ctx: ctx, tx: dbtx}); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}

// View runs fn in a read-only transaction for a consistent snapshot.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return errors.Wrap(err, "begin read transaction")
	}
	defer func() { _ = dbtx.Rollback() }()
	return fn(&tx{ctx: ctx, tx: dbtx})
}

// tx implements store.Tx over one *sql.Tx.  Methods live in the
// per-entity files of this package.
type tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// dupKey reports whether err is a MySQL duplicate-entry error on the
// named unique key.
func dupKey(err error, key string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != erDupEntry {
		return false
	}
	return key == "" || strings.Contains(me.Message, key)
}
