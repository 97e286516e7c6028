package probe

import (
	"strconv"
	"strings"
	"time"

	"magload/internal/transformer/builtin"
)

// Column types reported by inferType, narrowest first.
const (
	TypeEmpty   = "empty"
	TypeInteger = "integer"
	TypeDecimal = "decimal"
	TypeDate    = "date"
	TypeTime    = "time"
	TypeText    = "text"
)

// dateLayouts are common date formats seen in bank exports.
var dateLayouts = []string{
	"2006-01-02", // ISO
	"02/01/2006", // DMY slash
	"02-01-2006", // DMY dash
	"02.01.2006", // DMY dot
	"2006/01/02", // ISO slashy
}

// timeLayouts are time-of-day formats without a date component.
var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
}

// inferType guesses the narrowest type that every non-empty value satisfies.
func inferType(values []string) string {
	nonEmpty := nonEmptyTrimmed(values)
	if len(nonEmpty) == 0 {
		return TypeEmpty
	}
	if allMatch(nonEmpty, isInt) {
		return TypeInteger
	}
	if allMatch(nonEmpty, isDecimal) {
		return TypeDecimal
	}
	if allMatch(nonEmpty, func(s string) bool { return matchesLayout(s, dateLayouts) }) {
		return TypeDate
	}
	if allMatch(nonEmpty, func(s string) bool { return matchesLayout(s, timeLayouts) }) {
		return TypeTime
	}
	return TypeText
}

// nonEmptyTrimmed returns the non-empty, trimmed values.
func nonEmptyTrimmed(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isDecimal uses the same parser as the amount coercion, so "decimal" here
// means "would survive the load".
func isDecimal(s string) bool {
	_, err := builtin.ParseDecimal(s)
	return err == nil
}

func matchesLayout(s string, layouts []string) bool {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
