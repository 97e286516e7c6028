package etl

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"magload/internal/config"
	"magload/internal/datasource"
	pcsv "magload/internal/parser/csv"
	"magload/internal/records"
	"magload/internal/storage"
	_ "magload/internal/storage/sqlite"
	"magload/internal/transformer"
	"magload/internal/transformer/builtin"
)

const header = "DATE_PAY;TIME_PAY;REFERENC;AMOUNT;BANK_ORIGIN;BANK_DESTINATION;STATUS_SWITCHE;CHANNEL\n"

// threeRows: A survives with its origin remapped, B fails the status filter,
// C fails amount parsing.
const threeRows = header +
	"2024-01-02;10:00:00;A;10.5;0007;0102;00;APP\n" +
	"2024-01-02;10:05:00;B;20;0105;0102;01;APP\n" +
	"2024-01-02;10:10:00;C;abc;0105;0102;00;APP\n"

const createMAG = `CREATE TABLE MAG (
	DATE_PAY TEXT,
	TIME_PAY TEXT,
	REFERENC TEXT CHECK (REFERENC <> 'BOOM'),
	AMOUNT TEXT,
	BANK_ORIGIN TEXT,
	BANK_DESTINATION TEXT
)`

type fixture struct {
	dir string
	db  string
	cfg config.Config
}

func newFixture(t *testing.T, input string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{dir: dir, db: filepath.Join(dir, "mag.db")}

	db, err := sql.Open("sqlite", f.db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(createMAG); err != nil {
		t.Fatalf("create table: %v", err)
	}

	csvPath := filepath.Join(dir, "Pago_Movil.csv")
	if err := os.WriteFile(csvPath, []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	f.cfg = config.Default()
	f.cfg.Source.File = csvPath
	f.cfg.Storage.Kind = "sqlite"
	f.cfg.Storage.Database = f.db
	return f
}

func (f *fixture) rows(t *testing.T) [][]string {
	t.Helper()
	db, err := sql.Open("sqlite", f.db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	rs, err := db.Query(`SELECT REFERENC, AMOUNT, BANK_ORIGIN FROM MAG ORDER BY rowid`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rs.Close()
	var out [][]string
	for rs.Next() {
		var ref, amount, origin string
		if err := rs.Scan(&ref, &amount, &origin); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, []string{ref, amount, origin})
	}
	if err := rs.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func TestRun_ThreeRowExample(t *testing.T) {
	t.Parallel()

	f := newFixture(t, threeRows)
	sum, err := Run(context.Background(), f.cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Inserted != 1 {
		t.Fatalf("Inserted=%d want 1", sum.Inserted)
	}
	wantStats := transformer.Stats{Input: 3, Remapped: 1, CoerceDropped: 1, Filtered: 1, Output: 1}
	if diff := cmp.Diff(wantStats, sum.Stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
	wantTrace := []storage.LoadState{
		storage.StateNotConnected, storage.StateConnected, storage.StateCommitted, storage.StateClosed,
	}
	if diff := cmp.Diff(wantTrace, sum.Trace); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
	if len(sum.Fingerprint) != 16 {
		t.Fatalf("fingerprint %q is not 16 hex digits", sum.Fingerprint)
	}
	if sum.RunID == "" {
		t.Fatal("empty run id")
	}

	want := [][]string{{"A", "10.5", "0175"}}
	if diff := cmp.Diff(want, f.rows(t)); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_RerunAppendsDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, threeRows)
	first, err := Run(context.Background(), f.cfg, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Run(context.Background(), f.cfg, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Fatalf("fingerprints differ: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
	if first.RunID == second.RunID {
		t.Fatal("run ids must differ")
	}
	if n := len(f.rows(t)); n != 2 {
		t.Fatalf("rows=%d want 2", n)
	}
}

func TestRun_HeaderOnlyCommitsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, header)
	sum, err := Run(context.Background(), f.cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Inserted != 0 || sum.Stats.Input != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(f.rows(t)) != 0 {
		t.Fatal("table should stay empty")
	}
}

func TestRun_MissingColumnNeverConnects(t *testing.T) {
	f := newFixture(t, "DATE_PAY;TIME_PAY;AMOUNT;BANK_ORIGIN;BANK_DESTINATION;STATUS_SWITCHE\n"+
		"2024-01-02;10:00:00;10.5;0007;0102;00\n")

	called := false
	orig := newRepositoryFn
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		called = true
		return orig(ctx, cfg)
	}
	t.Cleanup(func() { newRepositoryFn = orig })

	_, err := Run(context.Background(), f.cfg, nil)
	if KindOf(err) != KindSchema {
		t.Fatalf("kind=%q err=%v", KindOf(err), err)
	}
	var missing *builtin.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingColumnsError, got %v", err)
	}
	if !strings.Contains(err.Error(), records.ColReferenc) {
		t.Fatalf("error %q does not name the missing column", err)
	}
	if called {
		t.Fatal("repository was opened for a file without the required columns")
	}
}

func TestRun_InputErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		setup func(f *fixture)
		want  error
	}{
		{"missing_file", func(f *fixture) { f.cfg.Source.File = filepath.Join(f.dir, "nope.csv") }, datasource.ErrNotFound},
		{"empty_file", func(f *fixture) {
			_ = os.WriteFile(f.cfg.Source.File, nil, 0o644)
		}, datasource.ErrEmpty},
		{"blank_lines_only", func(f *fixture) {
			_ = os.WriteFile(f.cfg.Source.File, []byte("\n  \n\n"), 0o644)
		}, datasource.ErrEmpty},
		{"row_too_wide", func(f *fixture) {
			_ = os.WriteFile(f.cfg.Source.File, []byte(header+"a;b;c;d;e;f;g;h;i;j\n"), 0o644)
		}, pcsv.ErrRowWidth},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, threeRows)
			tc.setup(f)

			_, err := Run(context.Background(), f.cfg, nil)
			if KindOf(err) != KindInput {
				t.Fatalf("kind=%q err=%v", KindOf(err), err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			for _, other := range []error{datasource.ErrNotFound, datasource.ErrEmpty} {
				if other != tc.want && errors.Is(err, other) {
					t.Fatalf("error %v also matches %v", err, other)
				}
			}
			if len(f.rows(t)) != 0 {
				t.Fatal("nothing should be inserted")
			}
		})
	}
}

func TestRun_ConnectFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, threeRows)
	f.cfg.Storage.Database = filepath.Join(f.dir, "missing", "mag.db")

	sum, err := Run(context.Background(), f.cfg, nil)
	if KindOf(err) != KindConnection {
		t.Fatalf("kind=%q err=%v", KindOf(err), err)
	}
	if !storage.IsConnectError(err) {
		t.Fatalf("want ConnectError in chain, got %v", err)
	}
	if got := sum.Trace[len(sum.Trace)-1]; got != storage.StateConnectFailed {
		t.Fatalf("final state %s", got)
	}
}

func TestRun_InsertFailureRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, header+
		"2024-01-02;10:00:00;A;1;0105;0102;00;APP\n"+
		"2024-01-02;10:00:00;BOOM;2;0105;0102;00;APP\n"+
		"2024-01-02;10:00:00;C;3;0105;0102;00;APP\n")

	sum, err := Run(context.Background(), f.cfg, nil)
	if KindOf(err) != KindTransaction {
		t.Fatalf("kind=%q err=%v", KindOf(err), err)
	}
	var txErr *storage.TxError
	if !errors.As(err, &txErr) || txErr.Row != 1 {
		t.Fatalf("want TxError at record 1, got %v", err)
	}
	if sum.Inserted != 0 {
		t.Fatalf("Inserted=%d want 0", sum.Inserted)
	}
	wantTrace := []storage.LoadState{
		storage.StateNotConnected, storage.StateConnected, storage.StateRolledBack, storage.StateClosed,
	}
	if diff := cmp.Diff(wantTrace, sum.Trace); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
	if n := len(f.rows(t)); n != 0 {
		t.Fatalf("rows=%d want 0 after rollback", n)
	}
}

func TestRun_BadDelimiterIsConfigError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, threeRows)
	f.cfg.Parser.Delimiter = ";;"
	_, err := Run(context.Background(), f.cfg, nil)
	if KindOf(err) != KindConfig {
		t.Fatalf("kind=%q err=%v", KindOf(err), err)
	}
}

func TestRun_UnknownStorageKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t, threeRows)
	f.cfg.Storage.Kind = "oracle"
	_, err := Run(context.Background(), f.cfg, nil)
	if KindOf(err) != KindConfig {
		t.Fatalf("kind=%q err=%v", KindOf(err), err)
	}
}

type closeTracker struct {
	closed bool
}

func (c *closeTracker) Load(context.Context, []records.Payment) (storage.Result, error) {
	panic("boom")
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestRun_PanicIsRecovered(t *testing.T) {
	f := newFixture(t, threeRows)

	repo := &closeTracker{}
	orig := newRepositoryFn
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) { return repo, nil }
	t.Cleanup(func() { newRepositoryFn = orig })

	_, err := Run(context.Background(), f.cfg, nil)
	if KindOf(err) != KindUnexpected {
		t.Fatalf("kind=%q err=%v", KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "boom") || !strings.HasPrefix(err.Error(), "load:") {
		t.Fatalf("unexpected message %q", err)
	}
	if !repo.closed {
		t.Fatal("repository not closed after panic")
	}
}

func TestRun_RunIDSeam(t *testing.T) {
	f := newFixture(t, header)

	orig := newRunID
	newRunID = func() string { return "run-1" }
	t.Cleanup(func() { newRunID = orig })

	sum, err := Run(context.Background(), f.cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RunID != "run-1" {
		t.Fatalf("RunID=%q", sum.RunID)
	}
}

func TestRun_DownloadsURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Pago_Movil.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, threeRows)
	}))
	defer srv.Close()

	f := newFixture(t, "")
	f.cfg.Source.File = srv.URL + "/Pago_Movil.csv"
	sum, err := Run(context.Background(), f.cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Inserted != 1 {
		t.Fatalf("Inserted=%d want 1", sum.Inserted)
	}

	f.cfg.Source.File = srv.URL + "/other.csv"
	_, err = Run(context.Background(), f.cfg, nil)
	if KindOf(err) != KindInput || !errors.Is(err, datasource.ErrNotFound) {
		t.Fatalf("kind=%q err=%v", KindOf(err), err)
	}
}
