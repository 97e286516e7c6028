package builtin

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"magload/internal/records"
)

// Rejected describes a row removed by a transformer.
type Rejected struct {
	Row    records.Row
	Field  string
	Value  string
	Reason string
}

// CoerceDecimal parses Field as a decimal number. Rows whose value does not
// parse are dropped; survivors carry the canonical decimal text so the
// projection step can rebuild the number without a second failure path.
//
// Surrounding spaces are ignored. Empty values, words such as "nan" or "inf",
// and comma decimal separators do not parse.
type CoerceDecimal struct {
	Field  string
	Reject func(Rejected) // optional sink for dropped rows
}

// Apply filters in place, preserving the order of surviving rows.
func (c CoerceDecimal) Apply(in []records.Row) []records.Row {
	out := in[:0]
	for _, r := range in {
		raw := r[c.Field]
		d, err := ParseDecimal(raw)
		if err != nil {
			if c.Reject != nil {
				c.Reject(Rejected{Row: r, Field: c.Field, Value: raw, Reason: err.Error()})
			}
			continue
		}
		r[c.Field] = d.String()
		out = append(out, r)
	}
	return out
}

// MaxExponent bounds the decimal exponent ParseDecimal accepts in either
// direction. No DECIMAL column holds values beyond it.
const MaxExponent = 64

// ParseDecimal is the single parsing rule shared by coercion and projection.
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxExponent {
		return decimal.Decimal{}, fmt.Errorf("decimal %q out of range: exponent %d", strings.TrimSpace(s), exp)
	}
	return d, nil
}
