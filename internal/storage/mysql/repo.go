// Package mysql registers the "mysql" storage kind, the default destination
// of the MAG table, on top of github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"magload/internal/storage"
)

// DefaultPort is used when storage.Config.Port is zero.
const DefaultPort = 3306

// Server error numbers that identify connection failures worth naming.
const (
	erDBAccessDenied = 1044
	erAccessDenied   = 1045
	erBadDB          = 1049
)

// Dialect binds parameters as "?".
var Dialect = storage.Dialect{
	Kind:        "mysql",
	Placeholder: storage.Question,
	Classify:    Classify,
}

// sqlOpen is a test hook; sql.Open never dials.
var sqlOpen = sql.Open

func init() {
	storage.Register("mysql", NewRepository)
}

// NewRepository opens a pool for cfg without connecting.
func NewRepository(_ context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = FormatDSN(cfg)
	} else if cfg.Database == "" {
		if parsed, err := mysql.ParseDSN(dsn); err == nil {
			cfg.Database = parsed.DBName
		}
	}
	db, err := sqlOpen("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	return storage.NewSQLRepository(db, Dialect, cfg), nil
}

// FormatDSN builds a go-sql-driver DSN from the discrete connection fields.
func FormatDSN(cfg storage.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	c.DBName = cfg.Database
	c.Timeout = cfg.ConnectTimeout
	return c.FormatDSN()
}

// Classify maps server error numbers to a storage.ConnectReason.
func Classify(err error) storage.ConnectReason {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return storage.ReasonOther
	}
	switch me.Number {
	case erAccessDenied, erDBAccessDenied:
		return storage.ReasonAccessDenied
	case erBadDB:
		return storage.ReasonUnknownDatabase
	default:
		return storage.ReasonOther
	}
}
