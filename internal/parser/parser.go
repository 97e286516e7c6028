// Package parser declares the contract shared by input parsers.
package parser

import (
	"io"

	"magload/internal/records"
)

// Parser turns a raw byte stream into a text-only Table.
type Parser interface {
	Parse(r io.Reader) (records.Table, error)
}
