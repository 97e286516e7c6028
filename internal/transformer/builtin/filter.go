package builtin

import "magload/internal/records"

// Filter keeps rows whose Field equals Equals exactly. Comparison is on the
// raw text: "0", " 00" and "00.0" do not match "00".
type Filter struct {
	Field  string
	Equals string

	Reject func(Rejected) // optional sink for dropped rows
}

// Apply filters in place, preserving the order of surviving rows.
func (f Filter) Apply(in []records.Row) []records.Row {
	out := in[:0]
	for _, r := range in {
		if v := r[f.Field]; v != f.Equals {
			if f.Reject != nil {
				f.Reject(Rejected{Row: r, Field: f.Field, Value: v, Reason: "not " + f.Equals})
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
