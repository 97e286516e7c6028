// Package transformer applies ordered, pure transformations to a parsed
// payment table. Nothing in this package performs I/O.
package transformer

import "magload/internal/records"

// Transformer rewrites or filters rows. Implementations may reuse the input
// slice's backing array; callers must use the returned slice.
type Transformer interface{ Apply([]records.Row) []records.Row }

// Chain is an ordered list of transformers applied first to last.
type Chain []Transformer

// Apply runs every step in order, feeding each step the previous output.
func (c Chain) Apply(in []records.Row) []records.Row {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
