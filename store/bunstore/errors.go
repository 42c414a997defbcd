package bunstore

import (
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// pgUniqueViolation is the postgres SQLSTATE for a unique constraint failure.
const pgUniqueViolation = "23505"

// IsDuplicateKey reports whether err is a unique or primary key violation
// raised by one of the supported drivers.
func IsDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsDriverError reports whether err originated in a database driver.
func IsDriverError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return true
	}
	var liteErr sqlite3.Error
	return errors.As(err, &liteErr)
}
