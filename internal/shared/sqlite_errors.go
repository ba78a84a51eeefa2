// Package shared holds small helpers used by more than one package.
package shared

import "strings"

// IsSQLiteBusyError reports whether err carries a SQLITE_BUSY code,
// meaning another connection holds the write lock. The driver surfaces
// the code only in the message text, so match on that.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError reports whether err is SQLite's "database is
// locked" failure, the other shape its lock contention takes.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError reports whether err is lock contention in either
// form. Callers retry these with backoff rather than failing the request.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}
