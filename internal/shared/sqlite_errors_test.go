package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestSQLiteErrorClassification(t *testing.T) {
	busy := errors.New("sqlite: step: SQLITE_BUSY: database table is locked")
	locked := fmt.Errorf("exec: %w", errors.New("database is locked (5)"))
	other := errors.New("no such table: profiles")

	tests := []struct {
		name         string
		err          error
		busy, locked bool
	}{
		{"nil", nil, false, false},
		{"busy", busy, true, false},
		{"locked", locked, false, true},
		{"unrelated", other, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSQLiteBusyError(tt.err); got != tt.busy {
				t.Errorf("IsSQLiteBusyError = %v, want %v", got, tt.busy)
			}
			if got := IsSQLiteLockedError(tt.err); got != tt.locked {
				t.Errorf("IsSQLiteLockedError = %v, want %v", got, tt.locked)
			}
			if got := IsSQLiteConflictError(tt.err); got != (tt.busy || tt.locked) {
				t.Errorf("IsSQLiteConflictError = %v", got)
			}
		})
	}
}
