// Package sqlite registers the "sqlite" storage kind using the pure-Go
// modernc.org/sqlite driver. It is used for local runs and for end-to-end
// tests; the database file must already exist and hold the target table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"magload/internal/storage"
)

// Dialect binds parameters as "?".
var Dialect = storage.Dialect{
	Kind:        "sqlite",
	Placeholder: storage.Question,
	Classify:    Classify,
}

// sqlOpen is a test hook.
var sqlOpen = sql.Open

func init() {
	storage.Register("sqlite", NewRepository)
}

// NewRepository opens cfg.DSN, or the file named by cfg.Database in
// read-write mode so a missing file is reported instead of created.
func NewRepository(_ context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.Database == "" {
			return nil, fmt.Errorf("sqlite: database path is required")
		}
		dsn = FormatDSN(cfg.Database)
	}
	db, err := sqlOpen("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return storage.NewSQLRepository(db, Dialect, cfg), nil
}

// uriEscaper escapes the characters that end or alter the path part of an
// SQLite URI filename.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// FormatDSN returns a URI filename that refuses to create path.
func FormatDSN(path string) string {
	return "file:" + uriEscaper.Replace(path) + "?mode=rw"
}

// Classify maps SQLite result codes to a storage.ConnectReason.
func Classify(err error) storage.ConnectReason {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return storage.ReasonOther
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		return storage.ReasonUnknownDatabase
	case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM:
		return storage.ReasonAccessDenied
	default:
		return storage.ReasonOther
	}
}
