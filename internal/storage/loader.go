package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"magload/internal/records"
)

// DefaultConnectTimeout applies when Config.ConnectTimeout is zero.
const DefaultConnectTimeout = 10 * time.Second

// LoadState is a step of a single Load call.
//
//	NotConnected -> Connected -> Committed | RolledBack -> Closed
//	NotConnected -> ConnectFailed
type LoadState int

const (
	StateNotConnected LoadState = iota
	StateConnected
	StateCommitted
	StateRolledBack
	StateClosed
	StateConnectFailed
)

func (s LoadState) String() string {
	switch s {
	case StateNotConnected:
		return "NOT_CONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	case StateClosed:
		return "CLOSED"
	case StateConnectFailed:
		return "CONNECT_FAILED"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// Result reports what a Load call did.
type Result struct {
	// Inserted is the number of rows committed. It is 0 unless the
	// transaction committed.
	Inserted int64

	// Trace lists every state the load passed through, in order.
	Trace []LoadState
}

// Final returns the last state reached.
func (r Result) Final() LoadState {
	if len(r.Trace) == 0 {
		return StateNotConnected
	}
	return r.Trace[len(r.Trace)-1]
}

// Committed reports whether the transaction committed.
func (r Result) Committed() bool {
	for _, s := range r.Trace {
		if s == StateCommitted {
			return true
		}
	}
	return false
}

// Dialect holds the per-backend pieces of SQLRepository.
type Dialect struct {
	Kind        string
	Placeholder Placeholder
	Classify    Classifier
}

//
// Seams over database/sql so the load state machine can be tested without a
// server. Production code wraps *sql.DB, *sql.Conn, *sql.Tx and *sql.Stmt.
//

type stmtCore interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	Close() error
}

type txCore interface {
	PrepareContext(ctx context.Context, query string) (stmtCore, error)
	Commit() error
	Rollback() error
}

type connCore interface {
	PingContext(ctx context.Context) error
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txCore, error)
	Close() error
}

type dbCore interface {
	Conn(ctx context.Context) (connCore, error)
	Close() error
}

type realStmt struct{ s *sql.Stmt }

func (r realStmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	return r.s.ExecContext(ctx, args...)
}
func (r realStmt) Close() error { return r.s.Close() }

type realTx struct{ tx *sql.Tx }

func (r realTx) PrepareContext(ctx context.Context, q string) (stmtCore, error) {
	st, err := r.tx.PrepareContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return realStmt{st}, nil
}
func (r realTx) Commit() error   { return r.tx.Commit() }
func (r realTx) Rollback() error { return r.tx.Rollback() }

type realConn struct{ c *sql.Conn }

func (r realConn) PingContext(ctx context.Context) error { return r.c.PingContext(ctx) }
func (r realConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (txCore, error) {
	tx, err := r.c.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return realTx{tx}, nil
}
func (r realConn) Close() error { return r.c.Close() }

type realDB struct{ db *sql.DB }

func (r realDB) Conn(ctx context.Context) (connCore, error) {
	c, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return realConn{c}, nil
}
func (r realDB) Close() error { return r.db.Close() }

// SQLRepository loads payments over exactly one database/sql connection,
// inside exactly one transaction, using a prepared INSERT built from the
// named template in records.InsertTemplate.
type SQLRepository struct {
	db             dbCore
	dialect        Dialect
	table          string
	database       string
	connectTimeout time.Duration
	log            *zap.Logger
}

var _ Repository = (*SQLRepository)(nil)

// NewSQLRepository wraps an opened (not yet dialed) pool. The pool is capped
// to a single connection.
func NewSQLRepository(db *sql.DB, d Dialect, cfg Config) *SQLRepository {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return newSQLRepository(realDB{db}, d, cfg)
}

func newSQLRepository(db dbCore, d Dialect, cfg Config) *SQLRepository {
	if d.Placeholder == nil {
		d.Placeholder = Question
	}
	if d.Classify == nil {
		d.Classify = func(error) ConnectReason { return ReasonOther }
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLRepository{
		db:             db,
		dialect:        d,
		table:          cfg.TableName(),
		database:       cfg.Database,
		connectTimeout: timeout,
		log:            log.With(zap.String("storage", d.Kind)),
	}
}

// Load connects, inserts every record in one transaction, and commits. Any
// insert failure rolls back the whole batch. The connection is always closed
// once it was opened, including on panic. An empty batch still connects and
// commits zero rows.
func (r *SQLRepository) Load(ctx context.Context, recs []records.Payment) (res Result, err error) {
	res.Trace = []LoadState{StateNotConnected}
	step := func(s LoadState) {
		r.log.Debug("load state", zap.Stringer("from", res.Final()), zap.Stringer("to", s))
		res.Trace = append(res.Trace, s)
	}

	template := records.InsertTemplate(r.table)
	query, names, err := BindNamed(template, r.dialect.Placeholder)
	if err != nil {
		return res, err
	}

	conn, err := r.connect(ctx)
	if err != nil {
		step(StateConnectFailed)
		cerr := &ConnectError{
			Kind:     r.dialect.Kind,
			Database: r.database,
			Reason:   r.dialect.Classify(err),
			Err:      err,
		}
		r.log.Error("database connection failed",
			zap.String("reason", string(cerr.Reason)), zap.Error(err))
		return res, cerr
	}
	step(StateConnected)
	r.log.Info("database connection established", zap.String("database", r.database))

	defer func() {
		if cerr := conn.Close(); cerr != nil {
			r.log.Warn("closing connection failed", zap.Error(cerr))
		}
		step(StateClosed)
		r.log.Info("database connection closed")
	}()

	// A panic out of insert skips both steps below; the rollback still ran.
	settled := false
	defer func() {
		if !settled {
			step(StateRolledBack)
		}
	}()

	r.log.Info("insert statement", zap.String("template", template), zap.String("query", query))

	n, err := r.insert(ctx, conn, query, names, recs)
	settled = true
	if err != nil {
		step(StateRolledBack)
		r.log.Warn("transaction rolled back", zap.Int("records", len(recs)), zap.Error(err))
		return res, err
	}
	step(StateCommitted)
	res.Inserted = n
	r.log.Info("transaction committed", zap.Int64("inserted", n))
	return res, nil
}

func (r *SQLRepository) connect(ctx context.Context) (connCore, error) {
	cctx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	conn, err := r.db.Conn(cctx)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(cctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// insert runs the prepared INSERT for every record. The transaction is rolled
// back on every path that does not reach a successful Commit.
func (r *SQLRepository) insert(ctx context.Context, conn connCore, query string, names []string, recs []records.Payment) (inserted int64, err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, &TxError{Op: "begin tx", Row: -1, Err: err}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		rbErr := tx.Rollback()
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Warn("rollback failed", zap.Error(rbErr))
			var te *TxError
			if errors.As(err, &te) {
				te.RollbackErr = rbErr
			}
		}
		inserted = 0
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, &TxError{Op: "prepare insert", Row: -1, Err: err}
	}
	defer stmt.Close()

	for i, rec := range recs {
		args, err := bindArgs(rec.Named(), names)
		if err != nil {
			return 0, &TxError{Op: "bind", Row: i, Err: err}
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, &TxError{Op: "insert", Row: i, Err: err}
		}
		if n, aerr := res.RowsAffected(); aerr == nil {
			inserted += n
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &TxError{Op: "commit", Row: -1, Err: err}
	}
	committed = true
	return inserted, nil
}

// Close closes the pool.
func (r *SQLRepository) Close() error { return r.db.Close() }
