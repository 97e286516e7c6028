// Package probe samples the head of a payment export and reports what a load
// would do with it, without connecting to any database.
//
// The sample is cut to the last complete line, parsed with the same CSV rules
// as a real run, and passed through the payment transform. The report lists
// each column with an inferred type, the required columns that are missing,
// and how many sampled rows the rules keep.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"magload/internal/datasource"
	pcsv "magload/internal/parser/csv"
	"magload/internal/records"
	"magload/internal/transformer"
	"magload/internal/transformer/builtin"
)

// DefaultMaxBytes is the sample size used when Options.MaxBytes is zero.
const DefaultMaxBytes = 64 << 10

// Options control the sampling.
type Options struct {
	// MaxBytes to sample from the start of the file.
	MaxBytes int
	// Comma is the field delimiter. Zero means pcsv.DefaultComma.
	Comma rune
	// Encoding of the input, as accepted by pcsv.LookupEncoding.
	Encoding string
}

// Column describes one header column of the sample.
type Column struct {
	Name     string
	Type     string
	Required bool
}

// Report is the outcome of a probe.
type Report struct {
	Columns []Column
	Missing []string

	// Truncated is set when the file is larger than the sample.
	Truncated bool

	// Stats is the payment transform applied to the sampled rows. It is zero
	// when required columns are missing.
	Stats transformer.Stats
}

// Loadable reports whether a full run would get past the schema check.
func (r Report) Loadable() bool { return len(r.Missing) == 0 }

// Probe reads up to opt.MaxBytes from src and builds a Report. Input errors
// (missing file, empty file, malformed CSV) are returned as is.
func Probe(ctx context.Context, src datasource.Source, opt Options) (Report, error) {
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = DefaultMaxBytes
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return Report{}, err
	}
	defer rc.Close()

	// Read one byte past the limit to learn whether the file was cut.
	data, err := io.ReadAll(io.LimitReader(rc, int64(opt.MaxBytes)+1))
	if err != nil {
		return Report{}, fmt.Errorf("read sample: %w", err)
	}
	var rep Report
	if len(data) > opt.MaxBytes {
		rep.Truncated = true
		data = data[:opt.MaxBytes]
		// Cut to last newline boundary to avoid a partial record at the end.
		if i := bytes.LastIndexByte(data, '\n'); i > 0 {
			data = data[:i+1]
		}
	}

	tbl, err := pcsv.NewParser(pcsv.Options{Comma: opt.Comma, Encoding: opt.Encoding}).Parse(bytes.NewReader(data))
	if err != nil {
		return Report{}, fmt.Errorf("parse sample: %w", err)
	}

	required := make(map[string]bool, len(transformer.RequiredColumns))
	for _, c := range transformer.RequiredColumns {
		required[c] = true
	}
	for _, name := range tbl.Columns {
		rep.Columns = append(rep.Columns, Column{
			Name:     name,
			Type:     inferType(columnValues(tbl, name)),
			Required: required[name],
		})
	}

	_, st, err := transformer.Payments(tbl, nil)
	var missing *builtin.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		rep.Missing = missing.Missing
	case err != nil:
		return Report{}, err
	default:
		rep.Stats = st
	}
	return rep, nil
}

func columnValues(tbl records.Table, col string) []string {
	out := make([]string, len(tbl.Rows))
	for i, r := range tbl.Rows {
		out[i] = r[col]
	}
	return out
}

// Render writes the report as "column,type[,required]" lines followed by a
// summary.
func (r Report) Render(w io.Writer) error {
	var buf bytes.Buffer
	for _, c := range r.Columns {
		fmt.Fprintf(&buf, "%s,%s", c.Name, c.Type)
		if c.Required {
			buf.WriteString(",required")
		}
		buf.WriteByte('\n')
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&buf, "missing required columns: %s\n", strings.Join(r.Missing, ", "))
	} else {
		fmt.Fprintf(&buf, "sampled %d rows: %d remapped, %d bad amount, %d not approved, %d loadable\n",
			r.Stats.Input, r.Stats.Remapped, r.Stats.CoerceDropped, r.Stats.Filtered, r.Stats.Output)
	}
	if r.Truncated {
		buf.WriteString("sample truncated; counts cover the sampled rows only\n")
	}
	_, err := w.Write(buf.Bytes())
	return err
}
