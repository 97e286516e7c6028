// Package mssql registers the "mssql" storage kind on top of
// github.com/microsoft/go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"magload/internal/storage"
)

// DefaultPort is used when storage.Config.Port is zero.
const DefaultPort = 1433

// Server error numbers for connection failures.
const (
	errLoginFailed  = 18456
	errCannotOpenDB = 4060
)

// Dialect binds parameters as @p1..@pn.
var Dialect = storage.Dialect{
	Kind:        "mssql",
	Placeholder: storage.AtP,
	Classify:    Classify,
}

// sqlOpen is a test hook.
var sqlOpen = sql.Open

func init() {
	storage.Register("mssql", NewRepository)
}

// NewRepository opens a pool for cfg without connecting.
func NewRepository(_ context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = FormatDSN(cfg)
	}
	p, err := msdsn.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: parse dsn: %w", err)
	}
	if cfg.Database == "" {
		cfg.Database = p.Database
	}
	db, err := sqlOpen("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	return storage.NewSQLRepository(db, Dialect, cfg), nil
}

// FormatDSN builds a sqlserver:// URL from the discrete connection fields.
func FormatDSN(cfg storage.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	if cfg.ConnectTimeout > 0 {
		q.Set("dial timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Classify maps SQL Server error numbers to a storage.ConnectReason. Login
// errors are sometimes flattened to text by the driver, so the message is
// checked as well.
func Classify(err error) storage.ConnectReason {
	if err == nil {
		return storage.ReasonOther
	}
	var me mssql.Error
	if errors.As(err, &me) {
		switch me.Number {
		case errLoginFailed:
			return storage.ReasonAccessDenied
		case errCannotOpenDB:
			return storage.ReasonUnknownDatabase
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Login failed for user"):
		return storage.ReasonAccessDenied
	case strings.Contains(msg, "Cannot open database"):
		return storage.ReasonUnknownDatabase
	default:
		return storage.ReasonOther
	}
}
