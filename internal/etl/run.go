// Package etl runs one batch load: extract the payment export, apply the
// payment rules, and load the survivors into the destination table in a
// single transaction.
//
// Stages run strictly in sequence on the calling goroutine. Every failure is
// returned as an *Error carrying its Kind, and a panic anywhere in the run is
// recovered and reported as KindUnexpected.
package etl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"magload/internal/config"
	"magload/internal/datasource"
	"magload/internal/datasource/file"
	"magload/internal/datasource/httpds"
	"magload/internal/metrics"
	pcsv "magload/internal/parser/csv"
	"magload/internal/records"
	"magload/internal/storage"
	"magload/internal/transformer"
)

const (
	stageConfig    = "config"
	stageExtract   = "extract"
	stageTransform = "transform"
	stageLoad      = "load"
)

// previewRecords is how many projected records are logged before loading.
const previewRecords = 3

// Summary describes a finished (or failed) run.
type Summary struct {
	RunID string
	File  string

	// Fingerprint is the xxh3 hash of the raw input bytes. Loading the same
	// export twice yields the same fingerprint; no dedup is performed.
	Fingerprint string

	Columns  []string
	Stats    transformer.Stats
	Inserted int64
	Trace    []storage.LoadState
	Elapsed  time.Duration
}

// downloadRetries bounds retries of transient HTTP failures within one
// download.
const downloadRetries = 2

// NewSource returns the input for path: a download when path is an HTTP(S)
// URL, a local file otherwise.
func NewSource(path string) datasource.Source {
	if httpds.IsURL(path) {
		return httpds.NewSource(path, httpds.Config{MaxRetries: downloadRetries})
	}
	return file.NewLocal(path)
}

// Function variables used to introduce test seams.
var (
	openSourceFn = NewSource

	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	newRunID = uuid.NewString
)

// Run executes one load described by cfg. log may be nil.
func Run(ctx context.Context, cfg config.Config, log *zap.Logger) (sum Summary, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	sum.RunID = newRunID()
	sum.File = cfg.Source.File
	log = log.With(zap.String("run_id", sum.RunID), zap.String("job", cfg.Job))

	stage := stageConfig
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during run", zap.String("stage", stage), zap.Any("panic", r), zap.Stack("stack"))
			err = &Error{Kind: KindUnexpected, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
		sum.Elapsed = time.Since(start)
		metrics.RecordRun(cfg.Job, string(KindOf(err)), err)
		if err != nil {
			log.Error("run failed",
				zap.String("stage", stage),
				zap.String("kind", string(KindOf(err))),
				zap.Duration("elapsed", sum.Elapsed),
				zap.Error(err))
			return
		}
		log.Info("run finished",
			zap.String("fingerprint", sum.Fingerprint),
			zap.Int("rows_read", sum.Stats.Input),
			zap.Int("records", sum.Stats.Output),
			zap.Int64("inserted", sum.Inserted),
			zap.Duration("elapsed", sum.Elapsed))
	}()

	comma, err := cfg.Parser.Comma()
	if err != nil {
		return sum, &Error{Kind: KindConfig, Stage: stage, Err: err}
	}

	log.Info("run started",
		zap.String("file", cfg.Source.File),
		zap.String("delimiter", string(comma)),
		zap.String("encoding", cfg.Parser.Encoding),
		zap.String("storage", cfg.Storage.Kind),
		zap.String("table", cfg.Storage.Table))

	// Extract.
	stage = stageExtract
	t0 := time.Now()
	tbl, fp, err := extract(ctx, cfg, comma)
	metrics.RecordStep(cfg.Job, stage, err, time.Since(t0))
	if err != nil {
		return sum, classify(stage, err)
	}
	sum.Fingerprint = fp
	sum.Columns = tbl.Columns
	metrics.RecordRow(cfg.Job, "read", int64(tbl.Len()))
	log.Info("file extracted",
		zap.Int("rows", tbl.Len()),
		zap.Strings("columns", tbl.Columns),
		zap.String("fingerprint", fp))

	// Transform. The column check inside Payments runs before any
	// connection is attempted.
	stage = stageTransform
	t0 = time.Now()
	payments, st, err := transformer.Payments(tbl, log)
	sum.Stats = st
	metrics.RecordStep(cfg.Job, stage, err, time.Since(t0))
	if err != nil {
		return sum, classify(stage, err)
	}
	metrics.RecordRow(cfg.Job, "remapped", int64(st.Remapped))
	metrics.RecordRow(cfg.Job, "amount_dropped", int64(st.CoerceDropped))
	metrics.RecordRow(cfg.Job, "status_dropped", int64(st.Filtered))
	for i := 0; i < len(payments) && i < previewRecords; i++ {
		log.Debug("record preview", zap.Int("index", i), zap.Stringer("record", payments[i]))
	}

	// Load.
	stage = stageLoad
	t0 = time.Now()
	inserted, trace, err := load(ctx, cfg, log, payments)
	sum.Trace = trace
	metrics.RecordStep(cfg.Job, stage, err, time.Since(t0))
	if err != nil {
		return sum, classify(stage, err)
	}
	sum.Inserted = inserted
	metrics.RecordRow(cfg.Job, "inserted", inserted)
	log.Info("records inserted", zap.Int64("inserted", inserted), zap.String("table", cfg.Storage.Table))
	return sum, nil
}

// extract reads the whole input into memory, fingerprints it, and parses it.
func extract(ctx context.Context, cfg config.Config, comma rune) (records.Table, string, error) {
	rc, err := openSourceFn(cfg.Source.File).Open(ctx)
	if err != nil {
		return records.Table{}, "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return records.Table{}, "", fmt.Errorf("read %s: %w", cfg.Source.File, err)
	}
	fp := fmt.Sprintf("%016x", xxh3.Hash(data))

	p := pcsv.NewParser(pcsv.Options{Comma: comma, Encoding: cfg.Parser.Encoding})
	tbl, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return records.Table{}, fp, fmt.Errorf("parse %s: %w", cfg.Source.File, err)
	}
	return tbl, fp, nil
}

// load opens the repository, loads every record, and always closes it.
func load(ctx context.Context, cfg config.Config, log *zap.Logger, recs []records.Payment) (int64, []storage.LoadState, error) {
	repo, err := newRepositoryFn(ctx, cfg.StorageConfig(log))
	if err != nil {
		return 0, nil, &Error{Kind: KindConfig, Stage: stageLoad, Err: err}
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			log.Warn("closing repository failed", zap.Error(cerr))
		}
	}()

	res, err := repo.Load(ctx, recs)
	if err != nil {
		return 0, res.Trace, err
	}
	return res.Inserted, res.Trace, nil
}
