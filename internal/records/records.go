// Package records defines the data shapes that flow through a load run.
//
// Raw input is a Table of text-only Rows keyed by header name. After the
// transform stage every surviving row becomes a Payment, whose Amount is a
// decimal rather than text. Keeping the two types apart makes the
// text-to-number boundary explicit.
package records

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Column names referenced by the transform and load stages.
const (
	ColDatePay         = "DATE_PAY"
	ColTimePay         = "TIME_PAY"
	ColReferenc        = "REFERENC"
	ColAmount          = "AMOUNT"
	ColBankOrigin      = "BANK_ORIGIN"
	ColBankDestination = "BANK_DESTINATION"
	ColStatusSwitche   = "STATUS_SWITCHE"
)

// DefaultTable is the destination table name.
const DefaultTable = "MAG"

// OutputColumns is the fixed projection, in insert order.
var OutputColumns = []string{
	ColDatePay,
	ColTimePay,
	ColReferenc,
	ColAmount,
	ColBankOrigin,
	ColBankDestination,
}

// Row is one input line: header name -> literal cell text.
type Row map[string]string

// Table is the whole input file held in memory. Columns keeps the header
// order; every Row carries a value for each column.
type Table struct {
	Columns []string
	Rows    []Row
}

// Has reports whether the table header contains col.
func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Payment is a projected, typed record ready to be persisted.
type Payment struct {
	DatePay         string
	TimePay         string
	Referenc        string
	Amount          decimal.Decimal
	BankOrigin      string
	BankDestination string
}

// Named returns the record's values keyed by column name. It is the argument
// shape expected by a named-parameter INSERT.
func (p Payment) Named() map[string]any {
	return map[string]any{
		ColDatePay:         p.DatePay,
		ColTimePay:         p.TimePay,
		ColReferenc:        p.Referenc,
		ColAmount:          p.Amount,
		ColBankOrigin:      p.BankOrigin,
		ColBankDestination: p.BankDestination,
	}
}

// String renders a compact, log-friendly form.
func (p Payment) String() string {
	return fmt.Sprintf("{%s=%s %s=%s %s=%s %s=%s %s=%s %s=%s}",
		ColDatePay, p.DatePay,
		ColTimePay, p.TimePay,
		ColReferenc, p.Referenc,
		ColAmount, p.Amount.String(),
		ColBankOrigin, p.BankOrigin,
		ColBankDestination, p.BankDestination,
	)
}

// InsertTemplate returns the parameterized INSERT for table using
// ":NAME"-style named parameters, one per output column. Backends rewrite the
// parameters to their own placeholder syntax; values are never spliced in.
func InsertTemplate(table string) string {
	params := make([]string, len(OutputColumns))
	for i, c := range OutputColumns {
		params[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(OutputColumns, ", "),
		strings.Join(params, ", "),
	)
}
