package utils

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Returns a boolean indicating if the error is a unique constraint failure
// reported by sqlite.
func IsUniqueConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
