// Package formdata wraps the loosely-structured JSON documents that travel
// with a quote or claim: the form data captured from the forms app and the
// calculation result produced by the rating engine.
package formdata

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedDocument is returned when a document cannot be parsed even
// after best-effort repair.
var ErrMalformedDocument = errors.New("malformed JSON document")

// Wrapper caches and lazily re-parses a JSON document, exposing
// value-at-path access. Parsing happens on first access and the validated
// document is cached for subsequent lookups.
//
// A Wrapper is not safe for concurrent use; it is confined to one aggregate
// and one command at a time, matching the aggregate concurrency model.
type Wrapper struct {
	raw      string
	parsed   bool
	valid    string // repaired, validated document
	parseErr error
}

// NewWrapper creates a wrapper around a raw JSON document. The document is
// not parsed until first access.
func NewWrapper(raw string) *Wrapper {
	return &Wrapper{raw: raw}
}

// Raw returns the original document text as supplied.
func (w *Wrapper) Raw() string {
	return w.raw
}

// Value returns the string representation of the value at the given dotted
// path, and whether the path resolved. Objects and arrays are returned as
// their JSON text. A malformed document resolves nothing.
func (w *Wrapper) Value(path string) (string, bool) {
	res := w.Result(path)
	if !res.Exists() {
		return "", false
	}
	if res.Type == gjson.String {
		return res.Str, true
	}
	return res.Raw, true
}

// Result returns the gjson result at the given path. A missing path or a
// malformed document yields a non-existent result.
func (w *Wrapper) Result(path string) gjson.Result {
	doc, err := w.parse()
	if err != nil {
		return gjson.Result{}
	}
	return gjson.Get(doc, path)
}

// Document returns the validated (repaired) document text, parsing it if
// necessary. Returns ErrMalformedDocument when the document is unusable.
func (w *Wrapper) Document() (string, error) {
	return w.parse()
}

// Err reports the cached parse failure, if any, forcing a parse first.
func (w *Wrapper) Err() error {
	_, err := w.parse()
	return err
}

func (w *Wrapper) parse() (string, error) {
	if w.parsed {
		return w.valid, w.parseErr
	}
	w.parsed = true

	candidate := strings.TrimSpace(w.raw)
	if candidate == "" {
		candidate = "{}"
	}
	if !gjson.Valid(candidate) {
		// Calculation results from some rating engines carry trailing
		// commas. Repair before giving up.
		candidate = stripTrailingCommas(candidate)
		if !gjson.Valid(candidate) {
			w.parseErr = ErrMalformedDocument
			return "", w.parseErr
		}
	}
	w.valid = candidate
	return w.valid, nil
}

// stripTrailingCommas removes commas that directly precede a closing brace
// or bracket, outside of string literals.
func stripTrailingCommas(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))

	inString := false
	escaped := false
	pendingComma := -1 // index in b of a comma awaiting a significant character

	for i := 0; i < len(doc); i++ {
		c := doc[i]

		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			pendingComma = -1
			b.WriteByte(c)
		case ',':
			pendingComma = b.Len()
			b.WriteByte(c)
		case '}', ']':
			if pendingComma >= 0 {
				s := b.String()
				b.Reset()
				b.WriteString(s[:pendingComma] + s[pendingComma+1:])
			}
			pendingComma = -1
			b.WriteByte(c)
		case ' ', '\t', '\n', '\r':
			b.WriteByte(c)
		default:
			pendingComma = -1
			b.WriteByte(c)
		}
	}
	return b.String()
}
