package etl

import (
	"errors"
	"fmt"

	pcsv "magload/internal/parser/csv"
	"magload/internal/storage"
	"magload/internal/transformer/builtin"
)

// Kind classifies a failed run.
type Kind string

const (
	KindConfig      Kind = "config"      // settings that cannot be used
	KindInput       Kind = "input"       // file missing, empty or malformed
	KindSchema      Kind = "schema"      // required columns absent
	KindConnection  Kind = "connection"  // no database connection
	KindTransaction Kind = "transaction" // insert failed, batch rolled back
	KindUnexpected  Kind = "unexpected"
)

// Error is returned by Run for every failure. Row-level coercion failures
// never surface here.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" when err is nil or not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify wraps err from stage in an *Error with the matching Kind.
func classify(stage string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	var (
		missing *builtin.MissingColumnsError
		kind    Kind
	)
	switch {
	case errors.As(err, &missing):
		kind = KindSchema
	case errors.Is(err, pcsv.ErrNoHeader), errors.Is(err, pcsv.ErrRowWidth):
		kind = KindInput
	case storage.IsConnectError(err):
		kind = KindConnection
	case storage.IsTxError(err):
		kind = KindTransaction
	case stage == stageExtract:
		kind = KindInput
	default:
		kind = KindUnexpected
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}
