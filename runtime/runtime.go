// Package runtime is the support library referenced by generated render
// code: escaping strategies, value formatting, and loop helpers. It has no
// dependency on the compiler packages so generated code pulls in nothing
// but this package and the filter library.
package runtime

import (
	"fmt"
	"strings"
)

// Escaper converts a displayable value into a safe representation for one
// output format.
type Escaper interface {
	Escape(s string) string
}

// HTML escapes for HTML/XML-like output.
var HTML Escaper = htmlEscaper{}

// Text passes values through unchanged.
var Text Escaper = textEscaper{}

type htmlEscaper struct{}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2f;",
)

func (htmlEscaper) Escape(s string) string {
	return htmlReplacer.Replace(s)
}

type textEscaper struct{}

func (textEscaper) Escape(s string) string {
	return s
}

// Safe marks a string as pre-escaped markup; escapers leave it untouched.
type Safe string

// Fmt renders a value for output.
func Fmt(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case Safe:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// EscapeDisplay formats a value and escapes it, unless the value is already
// marked Safe.
func EscapeDisplay(e Escaper, v any) string {
	if s, ok := v.(Safe); ok {
		return string(s)
	}
	return e.Escape(Fmt(v))
}

// Range yields the half-open integer range [start, end).
func Range(start, end int) []int {
	if end < start {
		return nil
	}
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

// RangeInclusive yields the closed integer range [start, end].
func RangeInclusive(start, end int) []int {
	return Range(start, end+1)
}
