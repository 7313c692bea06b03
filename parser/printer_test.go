package parser

import (
	"testing"
)

func dump(nodes []Node) string {
	var out string
	for _, n := range nodes {
		out += n.String() + "\n"
	}
	return out
}

// Printing a parsed template and re-parsing the result must yield an equal
// AST, modulo whitespace normalization inside tag bodies.
func TestPrintRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"literal and exprs", `Hello, {{ name }}! {{ a + b * c }}`},
		{"filters", `{{ name|lower|truncate(3) }}`},
		{"if chain", `{% if a %}1{% elif b %}2{% else %}3{% endif %}`},
		{"for with else", `{% for v in items if v %}{{ v }}{% else %}none{% endfor %}`},
		{"match", `{% match n %}{% when 0 %}zero{% when _ %}many{% endmatch %}`},
		{"block and macro", `{% block body %}x{% endblock %}{% macro m(a, b) %}{{ a }}{% endmacro %}`},
		{"imports", `{% extends "base.html" %}{% import "lib.html" as m %}{% call m::greet("hi") %}`},
		{"raw", `{% raw %}{{ x }}{% endraw %}`},
		{"sigils", `a {%- if x +%}b{% endif %} c`},
		{"let and set", `{% let x = 1 %}{% let (a, b) = p %}`},
		{"ranges", `{{ 1..5 }}{{ 1..=9 }}`},
		{"comment", `a{# gone -#}b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := Parse(tt.source, nil, "a")
			if err != nil {
				t.Fatalf("first parse: %v", err)
			}
			printed := PrintNodes(first)
			second, err := Parse(printed, nil, "b")
			if err != nil {
				t.Fatalf("re-parse of %q: %v", printed, err)
			}
			if dump(first) != dump(second) {
				t.Errorf("round trip diverged:\n%s---\n%s\nprinted: %q", dump(first), dump(second), printed)
			}
		})
	}
}

// Parsing the same source twice yields equal trees.
func TestParseIdempotent(t *testing.T) {
	source := `{% for v in items %}{{ loop.index }}:{{ v }} {% endfor %}`
	a, err := Parse(source, nil, "x")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse(source, nil, "x")
	if err != nil {
		t.Fatal(err)
	}
	if dump(a) != dump(b) {
		t.Error("parsing is not deterministic")
	}
}
