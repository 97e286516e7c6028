// Package storage contains the storage-agnostic load contract, the backend
// factory registry, and the single-connection transactional loader shared by
// every database/sql backend.
//
// Backends (mysql, postgres, mssql, sqlite) register a Factory from their
// init functions; import magload/internal/storage/all to enable all of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"magload/internal/records"
)

// Repository loads a batch of payments into the destination table.
type Repository interface {
	// Load inserts every record inside one transaction on one connection.
	// Either all records are committed or none are.
	Load(ctx context.Context, recs []records.Payment) (Result, error)

	// Close releases the connection pool. It never dials.
	Close() error
}

// Config carries everything a backend needs to reach the destination table.
// When DSN is empty, backends build one from the discrete parts.
type Config struct {
	Kind string

	DSN      string
	Host     string
	Port     int // 0 selects the backend's standard port
	User     string
	Password string
	Database string

	// Table is the destination table name; empty means records.DefaultTable.
	Table string

	// ConnectTimeout bounds acquiring and pinging the connection.
	ConnectTimeout time.Duration

	Logger *zap.Logger
}

// TableName returns the configured table or the default.
func (c Config) TableName() string {
	if c.Table == "" {
		return records.DefaultTable
	}
	return c.Table
}

// Factory constructs a Repository for a storage kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New constructs the Repository registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
