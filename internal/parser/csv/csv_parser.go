// Package csv parses delimited payment exports into an in-memory
// records.Table. Every cell is kept as the literal text from the file; no
// type inference, trimming, or null handling happens here.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/transform"

	"magload/internal/datasource"
	"magload/internal/records"
)

var (
	// ErrNoHeader is returned when the input holds no header row at all
	// (for example only blank lines). Parse wraps it with datasource.ErrEmpty.
	ErrNoHeader = errors.New("csv: no header row")

	// ErrRowWidth is returned when a data row has more cells than the header.
	ErrRowWidth = errors.New("csv: row has more fields than header")
)

// DefaultComma is the delimiter used when Options.Comma is zero.
const DefaultComma = ';'

// Options configures the parser. The zero value reads UTF-8 with ';'.
type Options struct {
	// Comma is the field delimiter.
	Comma rune

	// Encoding names the input charset (see LookupEncoding). Empty means UTF-8.
	Encoding string
}

// Parser reads one export per Parse call. It is not safe for concurrent use.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse consumes r and returns the whole file as a Table.
//
// Rules:
//   - blank lines are skipped; the first non-blank line is the header;
//   - a leading UTF-8 BOM is removed from the first header cell;
//   - empty header cells become "Unnamed: N" and repeated names get ".1",
//     ".2", ... suffixes so every column is addressable;
//   - rows shorter than the header are padded with empty text;
//   - rows longer than the header fail the parse with ErrRowWidth.
func (p *Parser) Parse(r io.Reader) (records.Table, error) {
	enc, err := LookupEncoding(p.opt.Encoding)
	if err != nil {
		return records.Table{}, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.Comma = p.opt.Comma
	if cr.Comma == 0 {
		cr.Comma = DefaultComma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var header []string
	for header == nil {
		rec, err := cr.Read()
		if err == io.EOF {
			return records.Table{}, fmt.Errorf("%w: %w", ErrNoHeader, datasource.ErrEmpty)
		}
		if err != nil {
			return records.Table{}, fmt.Errorf("read csv header: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		header = normalizeHeaders(rec)
	}

	tbl := records.Table{Columns: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records.Table{}, fmt.Errorf("read csv: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return records.Table{}, fmt.Errorf("line %d: expected %d fields, saw %d: %w",
				line, len(header), len(rec), ErrRowWidth)
		}

		row := make(records.Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}

// isBlank reports whether a record came from a whitespace-only line.
func isBlank(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}

// normalizeHeaders strips the BOM and makes every header name unique and
// non-empty. Names are otherwise kept verbatim.
func normalizeHeaders(h []string) []string {
	h = StripHeaderBOM(append([]string(nil), h...))
	res := make([]string, len(h))
	used := make(map[string]bool, len(h))
	suffix := make(map[string]int, len(h))
	for i, col := range h {
		if col == "" {
			col = "Unnamed: " + strconv.Itoa(i)
		}
		name := col
		for used[name] {
			suffix[col]++
			name = col + "." + strconv.Itoa(suffix[col])
		}
		used[name] = true
		res[i] = name
	}
	return res
}
