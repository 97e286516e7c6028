package transformer

import (
	"go.uber.org/zap"

	"magload/internal/records"
	"magload/internal/transformer/builtin"
)

// Rule constants for the payment export.
const (
	RemapFrom     = "0007"
	RemapTo       = "0175"
	StatusApplied = "00"
)

// RequiredColumns lists every column the payment transform reads: the six
// output columns plus the status column used by the filter.
var RequiredColumns = append(append([]string(nil), records.OutputColumns...), records.ColStatusSwitche)

// Stats counts rows at each step of Payments.
type Stats struct {
	Input         int // rows in the parsed table
	Remapped      int // rows whose BANK_ORIGIN was rewritten
	CoerceDropped int // rows removed because AMOUNT did not parse
	Filtered      int // rows removed because STATUS_SWITCHE != "00"
	Output        int // records produced
}

// CheckColumns is the schema gate. It only depends on the header, so callers
// run it right after extraction, before any connection is attempted.
func CheckColumns(tbl records.Table) error {
	return builtin.RequireColumns(tbl.Columns, RequiredColumns...)
}

// Payments applies the payment rules to tbl in their fixed order:
//
//  1. BANK_ORIGIN "0007" becomes "0175";
//  2. AMOUNT is parsed as a decimal, rows that fail are dropped;
//  3. only rows with STATUS_SWITCHE == "00" are kept;
//  4. rows are projected to records.Payment.
//
// The input table's rows are modified in place. Output order follows input
// order. A missing required column aborts with *builtin.MissingColumnsError.
func Payments(tbl records.Table, log *zap.Logger) ([]records.Payment, Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	st := Stats{Input: tbl.Len()}

	if err := CheckColumns(tbl); err != nil {
		return nil, st, err
	}

	rows := Chain{
		builtin.Remap{
			Field: records.ColBankOrigin, From: RemapFrom, To: RemapTo, Hits: &st.Remapped,
		},
		builtin.CoerceDecimal{
			Field: records.ColAmount,
			Reject: func(r builtin.Rejected) {
				st.CoerceDropped++
				log.Debug("amount not numeric, row dropped",
					zap.String("referenc", r.Row[records.ColReferenc]),
					zap.String("value", r.Value))
			},
		},
		builtin.Filter{
			Field:  records.ColStatusSwitche,
			Equals: StatusApplied,
			Reject: func(builtin.Rejected) { st.Filtered++ },
		},
	}.Apply(tbl.Rows)

	log.Info("bank origin remapped",
		zap.String("field", records.ColBankOrigin),
		zap.String("from", RemapFrom),
		zap.String("to", RemapTo),
		zap.Int("rows", st.Remapped))
	log.Info("amount coerced to decimal",
		zap.Int("dropped", st.CoerceDropped),
		zap.Int("remaining", st.Input-st.CoerceDropped))
	log.Info("rows filtered",
		zap.String("field", records.ColStatusSwitche),
		zap.String("equals", StatusApplied),
		zap.Int("dropped", st.Filtered),
		zap.Int("remaining", len(rows)))

	out, err := builtin.Project(rows)
	if err != nil {
		return nil, st, err
	}
	st.Output = len(out)
	log.Info("columns selected", zap.Strings("columns", records.OutputColumns), zap.Int("records", st.Output))

	return out, st, nil
}
