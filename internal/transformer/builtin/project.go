package builtin

import (
	"fmt"

	"magload/internal/records"
)

// Project reduces rows to typed Payments in records.OutputColumns order.
// Rows must already have passed CoerceDecimal on AMOUNT; a value that still
// fails to parse is reported as an error rather than silently dropped.
func Project(in []records.Row) ([]records.Payment, error) {
	out := make([]records.Payment, 0, len(in))
	for i, r := range in {
		amt, err := ParseDecimal(r[records.ColAmount])
		if err != nil {
			return nil, fmt.Errorf("project row %d: %s=%q: %w", i, records.ColAmount, r[records.ColAmount], err)
		}
		out = append(out, records.Payment{
			DatePay:         r[records.ColDatePay],
			TimePay:         r[records.ColTimePay],
			Referenc:        r[records.ColReferenc],
			Amount:          amt,
			BankOrigin:      r[records.ColBankOrigin],
			BankDestination: r[records.ColBankDestination],
		})
	}
	return out, nil
}
