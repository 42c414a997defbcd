package bunstore

import (
	"database/sql"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
)

// sqliteDriverName is the driver Open uses for SQLite. Every connection gets
// the fold function registered.
const sqliteDriverName = "sqlite3_crud"

// sqliteFold lowercases text with full unicode rules. SQLite's built in
// LOWER only folds ASCII.
const sqliteFold = "crud_fold"

var sqliteDriver = &sqlite3.SQLiteDriver{
	ConnectHook: func(conn *sqlite3.SQLiteConn) error {
		return conn.RegisterFunc(sqliteFold, foldCase, true)
	},
}

func init() {
	sql.Register(sqliteDriverName, sqliteDriver)
}

// foldCase takes any SQLite value so NULL and numeric columns pass through
// unchanged.
func foldCase(v any) any {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		return strings.ToLower(string(s))
	}
	return v
}

func driverName(driver string) string {
	if driver == DriverSQLite {
		return sqliteDriverName
	}
	return driver
}

// lowerFunc names the SQL function used for case insensitive search on db.
// Only connections opened through Open have the fold function.
func lowerFunc(db *bun.DB) string {
	if db.DB.Driver() == sqliteDriver {
		return sqliteFold
	}
	return "LOWER"
}
