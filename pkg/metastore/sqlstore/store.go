package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	mysqlerr "github.com/go-sql-driver/mysql"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ddrive-io/ddrive/pkg/errtypes"
)

// Store implements metastore.Store over database/sql.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Close implements metastore.Store.
func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error, including a panic (re-raised after rollback).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return translateErr(err)
	}
	return tx.Commit()
}

// translateErr maps a MySQL 1062 / SQLite "UNIQUE constraint failed" driver
// error into the typed errtypes.UniqueViolation the namespace manager and
// chunk engine match on explicitly — the "exception-as-control-flow"
// mapping the design notes call for.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
		return errtypes.UniqueViolation{Index: indexFromMessage(me.Message)}
	}
	if se, ok := err.(sqlite3.Error); ok && se.Code == sqlite3.ErrConstraint &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return errtypes.UniqueViolation{Index: indexFromMessage(se.Error())}
	}
	return err
}

func indexFromMessage(msg string) string {
	// best-effort: both drivers embed the offending index/constraint name
	// in their error text; exact extraction isn't load-bearing for
	// correctness, only for log readability.
	if i := strings.LastIndexByte(msg, ' '); i >= 0 && i+1 < len(msg) {
		return msg[i+1:]
	}
	return msg
}

func isNoRows(err error) bool { return err == sql.ErrNoRows }
