package migrate

import (
	"errors"
	"fmt"
)

// MigrationErrorCode categorizes migration errors.
type MigrationErrorCode string

const (
	// ErrCodeDuplicateLedger indicates more than one table named "migration".
	// The version cannot be determined; this is fatal.
	ErrCodeDuplicateLedger MigrationErrorCode = "DUPLICATE_LEDGER"

	// ErrCodeScriptFailed indicates an up or down script failed to execute.
	ErrCodeScriptFailed MigrationErrorCode = "SCRIPT_FAILED"

	// ErrCodeInvalidMigration indicates a malformed compiled migration table.
	ErrCodeInvalidMigration MigrationErrorCode = "INVALID_MIGRATION"

	// ErrCodeNothingToRollback indicates Rollback was called at version 0.
	ErrCodeNothingToRollback MigrationErrorCode = "NOTHING_TO_ROLLBACK"
)

// MigrationError reports a failure of the migration engine.
type MigrationError struct {
	Code MigrationErrorCode

	// Timestamp identifies the migration involved, 0 if none.
	Timestamp uint64

	Message string
	Err     error
}

func (e *MigrationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Timestamp != 0 {
		msg = fmt.Sprintf("%s: %s (migration=%d)", e.Code, e.Message, e.Timestamp)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Code extracts the code from err, or "" if err is not a MigrationError.
func Code(err error) MigrationErrorCode {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsDuplicateLedger returns true if err is a DUPLICATE_LEDGER error.
func IsDuplicateLedger(err error) bool {
	return Code(err) == ErrCodeDuplicateLedger
}

// IsScriptFailed returns true if err is a SCRIPT_FAILED error.
func IsScriptFailed(err error) bool {
	return Code(err) == ErrCodeScriptFailed
}

// IsInvalidMigration returns true if err is an INVALID_MIGRATION error.
func IsInvalidMigration(err error) bool {
	return Code(err) == ErrCodeInvalidMigration
}

// IsNothingToRollback returns true if err is a NOTHING_TO_ROLLBACK error.
func IsNothingToRollback(err error) bool {
	return Code(err) == ErrCodeNothingToRollback
}

func invalid(ts uint64, format string, args ...any) *MigrationError {
	return &MigrationError{
		Code:      ErrCodeInvalidMigration,
		Timestamp: ts,
		Message:   fmt.Sprintf(format, args...),
	}
}
