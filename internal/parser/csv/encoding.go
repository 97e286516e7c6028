package csv

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// encodings maps accepted names to decoders. UTF-8 maps to nil: the bytes are
// read as-is and only the BOM is removed.
var encodings = map[string]encoding.Encoding{
	"":             nil,
	"utf-8":        nil,
	"utf8":         nil,
	"utf-16":       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
}

// LookupEncoding resolves a charset name (case-insensitive). A nil encoding
// with a nil error means the input is UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	enc, ok := encodings[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
	return enc, nil
}

// EncodingNames lists the accepted encoding names, sorted.
func EncodingNames() []string {
	out := make([]string, 0, len(encodings))
	for k := range encodings {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
