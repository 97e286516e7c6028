package storage

import (
	"errors"
	"fmt"
)

// ConnectReason distinguishes connection failures for reporting.
type ConnectReason string

const (
	ReasonAccessDenied    ConnectReason = "access_denied"
	ReasonUnknownDatabase ConnectReason = "unknown_database"
	ReasonOther           ConnectReason = "other"
)

// Classifier maps a driver error to a ConnectReason.
type Classifier func(error) ConnectReason

// ConnectError is returned when no connection could be acquired. No rows were
// attempted.
type ConnectError struct {
	Kind     string
	Database string
	Reason   ConnectReason
	Err      error
}

func (e *ConnectError) Error() string {
	switch e.Reason {
	case ReasonAccessDenied:
		return fmt.Sprintf("%s: connect: access denied (check user/password): %v", e.Kind, e.Err)
	case ReasonUnknownDatabase:
		return fmt.Sprintf("%s: connect: database %q does not exist: %v", e.Kind, e.Database, e.Err)
	default:
		return fmt.Sprintf("%s: connect: %v", e.Kind, e.Err)
	}
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TxError is returned when the transaction failed and was rolled back. Row is
// the 0-based index of the failing record, or -1 when the failure was not
// tied to a record (begin, prepare, commit).
type TxError struct {
	Op          string
	Row         int
	Err         error
	RollbackErr error
}

func (e *TxError) Error() string {
	msg := fmt.Sprintf("storage: %s", e.Op)
	if e.Row >= 0 {
		msg += fmt.Sprintf(" (record %d)", e.Row)
	}
	msg += fmt.Sprintf(": %v", e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf("; rollback: %v", e.RollbackErr)
	}
	return msg
}

func (e *TxError) Unwrap() []error {
	if e.RollbackErr == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.RollbackErr}
}

// IsConnectError reports whether err is (or wraps) a *ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// IsTxError reports whether err is (or wraps) a *TxError.
func IsTxError(err error) bool {
	var te *TxError
	return errors.As(err, &te)
}
