package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder renders the n-th (1-based) bind parameter named name in a
// driver's syntax.
type Placeholder func(n int, name string) string

// Placeholder styles used by the built-in backends.
var (
	Question Placeholder = func(int, string) string { return "?" }
	Dollar   Placeholder = func(n int, _ string) string { return "$" + strconv.Itoa(n) }
	AtP      Placeholder = func(n int, _ string) string { return "@p" + strconv.Itoa(n) }
)

// BindNamed rewrites ":NAME" parameters in query to the placeholder style
// and returns the parameter names in bind order. Text inside single quotes
// and "::" casts are left alone. Values are never interpolated.
func BindNamed(query string, ph Placeholder) (string, []string, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, fmt.Errorf("storage: empty query")
	}
	var (
		b      strings.Builder
		names  []string
		quoted bool
	)
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == ':' && !quoted && i+1 < len(query) && query[i+1] == ':':
			b.WriteString("::")
			i++
		case c == ':' && !quoted && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			name := query[i+1 : j]
			names = append(names, name)
			b.WriteString(ph(len(names), name))
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	if quoted {
		return "", nil, fmt.Errorf("storage: unterminated quote in query")
	}
	return b.String(), names, nil
}

// bindArgs orders named values by the names returned from BindNamed.
func bindArgs(values map[string]any, names []string) ([]any, error) {
	args := make([]any, len(names))
	for i, n := range names {
		v, ok := values[n]
		if !ok {
			return nil, fmt.Errorf("storage: no value for parameter :%s", n)
		}
		args[i] = v
	}
	return args, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
