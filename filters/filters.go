// Package filters is the built-in filter library. The compiler only needs
// the name catalog and the set of filters whose result is pre-escaped;
// generated code calls the implementations.
package filters

// BuiltIn lists every filter shipped with the library. The code generator
// routes these into this package; any other filter name is emitted against
// a user-provided filters package.
var BuiltIn = map[string]bool{
	"abs":            true,
	"capitalize":     true,
	"center":         true,
	"e":              true,
	"escape":         true,
	"filesizeformat": true,
	"format":         true,
	"fmt":            true,
	"indent":         true,
	"into_f64":       true,
	"into_isize":     true,
	"join":           true,
	"json":           true,
	"linebreaks":     true,
	"linebreaksbr":   true,
	"lower":          true,
	"lowercase":      true,
	"safe":           true,
	"trim":           true,
	"truncate":       true,
	"upper":          true,
	"uppercase":      true,
	"wordcount":      true,
	"yaml":           true,
}

// Escaped lists the filters whose result is already safe for the output
// format; the generator skips the escaper for these.
var Escaped = map[string]bool{
	"e":      true,
	"escape": true,
	"safe":   true,
	"json":   true,
	"yaml":   true,
}

// GoName maps a filter name to its exported function in this package.
var GoName = map[string]string{
	"abs":            "Abs",
	"capitalize":     "Capitalize",
	"center":         "Center",
	"e":              "Escape",
	"escape":         "Escape",
	"filesizeformat": "FileSizeFormat",
	"indent":         "Indent",
	"into_f64":       "IntoF64",
	"into_isize":     "IntoIsize",
	"join":           "Join",
	"json":           "JSON",
	"linebreaks":     "Linebreaks",
	"linebreaksbr":   "LinebreaksBr",
	"lower":          "Lower",
	"lowercase":      "Lower",
	"safe":           "Safe",
	"trim":           "Trim",
	"truncate":       "Truncate",
	"upper":          "Upper",
	"uppercase":      "Upper",
	"wordcount":      "WordCount",
	"yaml":           "YAML",
}
