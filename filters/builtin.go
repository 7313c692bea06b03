package filters

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/stencilkit/stencil/runtime"
)

// Safe marks a value as already escaped for the active output format.
func Safe(_ runtime.Escaper, v any) runtime.Safe {
	return runtime.Safe(runtime.Fmt(v))
}

// Escape forces escaping with the given escaper and marks the result safe,
// so the surrounding interpolation does not escape twice.
func Escape(e runtime.Escaper, v any) runtime.Safe {
	return runtime.Safe(runtime.EscapeDisplay(e, v))
}

// Lower lowercases the formatted value.
func Lower(v any) string {
	return strings.ToLower(runtime.Fmt(v))
}

// Upper uppercases the formatted value.
func Upper(v any) string {
	return strings.ToUpper(runtime.Fmt(v))
}

// Trim removes leading and trailing whitespace.
func Trim(v any) string {
	return strings.TrimSpace(runtime.Fmt(v))
}

// Capitalize uppercases the first character and lowercases the rest.
func Capitalize(v any) string {
	s := runtime.Fmt(v)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Truncate shortens a value to at most n bytes, never splitting a
// multi-byte character, and appends "..." when something was cut.
func Truncate(v any, n int) string {
	s := runtime.Fmt(v)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Indent prefixes every line after the first with width spaces.
func Indent(v any, width int) string {
	s := runtime.Fmt(v)
	return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", width))
}

// Center pads the value with spaces on both sides up to width.
func Center(v any, width int) string {
	s := runtime.Fmt(v)
	if len(s) >= width {
		return s
	}
	pad := width - len(s)
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

// WordCount counts whitespace-separated words.
func WordCount(v any) int {
	return len(strings.Fields(runtime.Fmt(v)))
}

// Linebreaks wraps blocks separated by blank lines in <p> tags and turns
// single newlines into <br/>.
func Linebreaks(v any) string {
	s := runtime.Fmt(v)
	s = strings.ReplaceAll(s, "\n\n", "</p><p>")
	s = strings.ReplaceAll(s, "\n", "<br/>")
	return "<p>" + s + "</p>"
}

// LinebreaksBr turns newlines into <br/>.
func LinebreaksBr(v any) string {
	return strings.ReplaceAll(runtime.Fmt(v), "\n", "<br/>")
}

// FileSizeFormat renders a byte count in decimal units.
func FileSizeFormat(bytes int) string {
	const unit = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := int64(bytes) / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Join concatenates the elements of a slice or array with a separator.
func Join(v any, sep string) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return runtime.Fmt(v)
	}
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = runtime.Fmt(rv.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}

type number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Abs returns the absolute value of a number.
func Abs[T number](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// IntoF64 converts any numeric value to float64.
func IntoF64(v any) float64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return 0
	}
}

// IntoIsize converts any numeric value to int.
func IntoIsize(v any) int {
	return int(IntoF64(v))
}

// Format renders a format string with its arguments.
func Format(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// JSON serializes a value as JSON markup. The result is safe by
// construction; unserializable values render as null.
func JSON(v any) runtime.Safe {
	data, err := json.Marshal(v)
	if err != nil {
		return runtime.Safe("null")
	}
	return runtime.Safe(data)
}

// YAML serializes a value as YAML markup.
func YAML(v any) runtime.Safe {
	data, err := yaml.Marshal(v)
	if err != nil {
		return runtime.Safe("null")
	}
	return runtime.Safe(data)
}
