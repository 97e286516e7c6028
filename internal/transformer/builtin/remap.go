// Package builtin contains the transformers used by the payment load.
package builtin

import "magload/internal/records"

// Remap substitutes one exact value of Field with another. Only the single
// From -> To pair is applied; every other value passes through untouched.
type Remap struct {
	Field string
	From  string
	To    string

	// Hits counts rewritten rows across Apply calls when non-nil.
	Hits *int
}

// Apply rewrites matching rows in place and returns the same slice.
func (m Remap) Apply(in []records.Row) []records.Row {
	for _, r := range in {
		if v, ok := r[m.Field]; ok && v == m.From {
			r[m.Field] = m.To
			if m.Hits != nil {
				*m.Hits++
			}
		}
	}
	return in
}
