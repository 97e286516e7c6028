package csv_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"magload/internal/datasource"
	pcsv "magload/internal/parser/csv"
	"magload/internal/records"
)

const sample = "DATE_PAY;TIME_PAY;REFERENC;AMOUNT;BANK_ORIGIN;BANK_DESTINATION;STATUS_SWITCHE\n" +
	"2024-01-02;10:00:00;000123;10.5;0007;0102;00\n" +
	"2024-01-02;10:05:00;000124;7;0105;0102;01\n"

func parse(t *testing.T, opt pcsv.Options, in string) records.Table {
	t.Helper()
	tbl, err := pcsv.NewParser(opt).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tbl
}

func TestParse_SemicolonDefault(t *testing.T) {
	t.Parallel()

	tbl := parse(t, pcsv.Options{}, sample)

	wantCols := []string{"DATE_PAY", "TIME_PAY", "REFERENC", "AMOUNT", "BANK_ORIGIN", "BANK_DESTINATION", "STATUS_SWITCHE"}
	if diff := cmp.Diff(wantCols, tbl.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows=%d want 2", tbl.Len())
	}
	// Leading zeros survive: cells are text, never inferred.
	if got := tbl.Rows[0]["REFERENC"]; got != "000123" {
		t.Fatalf("REFERENC=%q want 000123", got)
	}
	if got := tbl.Rows[0]["STATUS_SWITCHE"]; got != "00" {
		t.Fatalf("STATUS_SWITCHE=%q want 00", got)
	}
}

func TestParse_CustomDelimiterAndLiteralText(t *testing.T) {
	t.Parallel()

	tbl := parse(t, pcsv.Options{Comma: ','}, "A,B\n  x , 1e3 \n")
	want := records.Row{"A": "  x ", "B": " 1e3 "}
	if diff := cmp.Diff(want, tbl.Rows[0]); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HeaderNormalization(t *testing.T) {
	t.Parallel()

	in := "\uFEFFDATE_PAY;AMOUNT;AMOUNT;;AMOUNT\n1;2;3;4;5\n"
	tbl := parse(t, pcsv.Options{}, in)

	want := []string{"DATE_PAY", "AMOUNT", "AMOUNT.1", "Unnamed: 3", "AMOUNT.2"}
	if diff := cmp.Diff(want, tbl.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if got := tbl.Rows[0]["AMOUNT.2"]; got != "5" {
		t.Fatalf("AMOUNT.2=%q want 5", got)
	}
}

func TestParse_ShortRowsPaddedBlankLinesSkipped(t *testing.T) {
	t.Parallel()

	tbl := parse(t, pcsv.Options{}, "\n\nA;B;C\n1\n\n   \n4;5;6\n")
	want := []records.Row{
		{"A": "1", "B": "", "C": ""},
		{"A": "4", "B": "5", "C": "6"},
	}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HeaderOnlyIsEmptyTable(t *testing.T) {
	t.Parallel()

	tbl := parse(t, pcsv.Options{}, "A;B\n")
	if tbl.Len() != 0 || len(tbl.Columns) != 2 {
		t.Fatalf("got %d rows, %d columns; want 0 rows, 2 columns", tbl.Len(), len(tbl.Columns))
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		opt  pcsv.Options
		want error
	}{
		{name: "no_header_blank_lines", in: "\n  \n\n", want: pcsv.ErrNoHeader},
		{name: "no_header_nothing", in: "", want: pcsv.ErrNoHeader},
		{name: "row_too_wide", in: "A;B\n1;2;3\n", want: pcsv.ErrRowWidth},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := pcsv.NewParser(tc.opt).Parse(strings.NewReader(tc.in))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}

func TestParse_NoHeaderIsEmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "\n  \n\n", "\r\n\t\r\n"} {
		_, err := pcsv.NewParser(pcsv.Options{}).Parse(strings.NewReader(in))
		if !errors.Is(err, datasource.ErrEmpty) {
			t.Errorf("Parse(%q) err=%v; want datasource.ErrEmpty", in, err)
		}
		if errors.Is(err, datasource.ErrNotFound) {
			t.Errorf("Parse(%q) err=%v matches ErrNotFound", in, err)
		}
	}
}

func TestParse_RowTooWideReportsLine(t *testing.T) {
	t.Parallel()

	_, err := pcsv.NewParser(pcsv.Options{}).Parse(strings.NewReader("A;B\n1;2\n1;2;3\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err=%v; want mention of line 3", err)
	}
}

func TestParse_Windows1252(t *testing.T) {
	t.Parallel()

	// 0xC9 is 'É' in Windows-1252 and invalid as a lone byte in UTF-8.
	in := "BANK_NAME;AMOUNT\nBANCO DE VENEZUELA S.A. \xc9\n"
	tbl := parse(t, pcsv.Options{Encoding: "windows-1252"}, in)
	if got, want := tbl.Rows[0]["BANK_NAME"], "BANCO DE VENEZUELA S.A. É"; got != want {
		t.Fatalf("BANK_NAME=%q want %q", got, want)
	}
}

func TestLookupEncoding(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "UTF-8", "latin1", "Windows-1252", "utf-16"} {
		if _, err := pcsv.LookupEncoding(name); err != nil {
			t.Fatalf("LookupEncoding(%q): %v", name, err)
		}
	}
	if _, err := pcsv.LookupEncoding("ebcdic"); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
	if names := pcsv.EncodingNames(); len(names) == 0 || names[0] > names[len(names)-1] {
		t.Fatalf("EncodingNames not sorted: %v", names)
	}
}
