// Package postgres registers the "postgres" storage kind using pgx v5 through
// its database/sql adapter, so the shared single-transaction loader applies.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"magload/internal/storage"
)

// DefaultPort is used when storage.Config.Port is zero.
const DefaultPort = 5432

// SQLSTATE codes for connection failures.
const (
	codeInvalidPassword      = "28P01"
	codeInvalidAuthorization = "28000"
	codeInvalidCatalogName   = "3D000"
)

// Dialect binds parameters as $1..$n.
var Dialect = storage.Dialect{
	Kind:        "postgres",
	Placeholder: storage.Dollar,
	Classify:    Classify,
}

// sqlOpen is a test hook.
var sqlOpen = sql.Open

func init() {
	storage.Register("postgres", NewRepository)
}

// NewRepository opens a pool for cfg without connecting. A malformed DSN is
// reported here rather than at load time.
func NewRepository(_ context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = FormatDSN(cfg)
	}
	pc, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.Database == "" {
		cfg.Database = pc.Database
	}
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return storage.NewSQLRepository(db, Dialect, cfg), nil
}

// FormatDSN builds a postgres:// URL from the discrete connection fields.
func FormatDSN(cfg storage.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.ConnectTimeout > 0 {
		q := url.Values{}
		secs := int(cfg.ConnectTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Classify maps SQLSTATE codes to a storage.ConnectReason.
func Classify(err error) storage.ConnectReason {
	var pe *pgconn.PgError
	if !errors.As(err, &pe) {
		return storage.ReasonOther
	}
	switch pe.Code {
	case codeInvalidPassword, codeInvalidAuthorization:
		return storage.ReasonAccessDenied
	case codeInvalidCatalogName:
		return storage.ReasonUnknownDatabase
	default:
		return storage.ReasonOther
	}
}
