// Package sqlstore implements metastore.Store over database/sql, with the
// driver selected by DSN scheme: "mysql://" dials go-sql-driver/mysql,
// "sqlite://" (or a bare file path, for test fixtures) dials
// mattn/go-sqlite3. Grounded on reva's dual MySQL/SQLite share managers
// (pkg/share/manager/sql, pkg/share/manager/owncloudsql) — the concrete
// SQL here is written fresh for this schema, but the dual-driver dispatch
// and DSN-scheme selection is the shape reva uses throughout its manager
// packages.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ddrive-io/ddrive/pkg/log"
)

var logger = log.New("metastore/sqlstore")

// Driver names the dialect a Store was opened with; DDL and a handful of
// queries (the partial unique index, ON CONFLICT / INSERT IGNORE) differ
// between the two.
type Driver string

const (
	DriverMySQL  Driver = "mysql"
	DriverSQLite Driver = "sqlite3"
)

// Open dials dsn, inferring the driver from its scheme, and returns a ready
// *Store. Callers must call Store.Migrate once before first use.
func Open(dsn string) (*Store, error) {
	driver, conn := parseDSN(dsn)

	db, err := sql.Open(string(driver), conn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one connection only: SQLite serializes writers anyway, and a
		// pool would reopen the file and lose the in-memory fixture used
		// by tests ("file::memory:?cache=shared" depends on a single
		// shared connection to stay alive).
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, driver: driver}, nil
}

func parseDSN(dsn string) (Driver, string) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return DriverMySQL, strings.TrimPrefix(dsn, "mysql://")
	case strings.HasPrefix(dsn, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite://")
	default:
		return DriverSQLite, dsn
	}
}
