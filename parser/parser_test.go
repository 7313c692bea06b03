package parser

import (
	"strings"
	"testing"
)

func parseOne(t *testing.T, source string) []Node {
	t.Helper()
	nodes, err := Parse(source, nil, "test.html")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return nodes
}

func TestParseSimpleTemplate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"text only", "Hello World", 1},
		{"variable", "{{ name }}", 1},
		{"text and variable", "Hello {{ name }}!", 3},
		{"empty template", "", 0},
		{"comment only", "{# note #}", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := parseOne(t, tt.input)
			if len(nodes) != tt.count {
				t.Fatalf("got %d nodes, want %d: %v", len(nodes), tt.count, nodes)
			}
		})
	}
}

func TestParseLitSplit(t *testing.T) {
	nodes := parseOne(t, "  hello  {{ x }}")
	lit, ok := nodes[0].(*Lit)
	if !ok {
		t.Fatalf("expected Lit, got %T", nodes[0])
	}
	if lit.LWS != "  " || lit.Val != "hello" || lit.RWS != "  " {
		t.Errorf("split = %q %q %q", lit.LWS, lit.Val, lit.RWS)
	}
}

func TestParseIfChain(t *testing.T) {
	nodes := parseOne(t, "{% if a %}1{% elif b %}2{% else %}3{% endif %}")
	ifNode, ok := nodes[0].(*If)
	if !ok {
		t.Fatalf("expected If, got %T", nodes[0])
	}
	if len(ifNode.Branches) != 3 {
		t.Fatalf("got %d branches, want 3", len(ifNode.Branches))
	}
	if ifNode.Branches[0].Test == nil || ifNode.Branches[1].Test == nil {
		t.Error("if and elif branches need tests")
	}
	if ifNode.Branches[2].Test != nil {
		t.Error("else branch must have no test")
	}
}

func TestParseIfLet(t *testing.T) {
	nodes := parseOne(t, "{% if let Some with (x) = opt %}{{ x }}{% endif %}")
	ifNode := nodes[0].(*If)
	test := ifNode.Branches[0].Test
	if test.Target == nil {
		t.Fatal("expected a binding target")
	}
	tuple, ok := test.Target.(*TupleTarget)
	if !ok {
		t.Fatalf("expected TupleTarget, got %T", test.Target)
	}
	if len(tuple.Path) != 1 || tuple.Path[0] != "Some" {
		t.Errorf("path = %v", tuple.Path)
	}
}

func TestParseForLoop(t *testing.T) {
	nodes := parseOne(t, "{% for v in items if v %}x{% else %}none{% endfor %}")
	loop, ok := nodes[0].(*Loop)
	if !ok {
		t.Fatalf("expected Loop, got %T", nodes[0])
	}
	if loop.Cond == nil {
		t.Error("expected a guard")
	}
	if loop.ElseBody == nil {
		t.Error("expected an else arm")
	}
	if _, ok := loop.Var.(*NameTarget); !ok {
		t.Errorf("loop var = %T", loop.Var)
	}
}

func TestParseMatch(t *testing.T) {
	nodes := parseOne(t, "{% match n %}{% when 0 %}zero{% when 1 %}one{% else %}many{% endmatch %}")
	m, ok := nodes[0].(*Match)
	if !ok {
		t.Fatalf("expected Match, got %T", nodes[0])
	}
	if len(m.Arms) != 3 {
		t.Fatalf("got %d arms, want 3", len(m.Arms))
	}
	last := m.Arms[2].Target.(*NameTarget)
	if last.Name != "_" {
		t.Errorf("else arm target = %q, want _", last.Name)
	}
}

func TestParseMatchInterWhitespace(t *testing.T) {
	nodes := parseOne(t, "{% match n %}\n  {% when 0 %}zero{% endmatch %}")
	m := nodes[0].(*Match)
	if m.Inter != "\n  " {
		t.Errorf("inter = %q", m.Inter)
	}

	if _, err := Parse("{% match n %}text{% when 0 %}z{% endmatch %}", nil, "t"); err == nil {
		t.Error("expected an error for non-whitespace between match and when")
	}
}

func TestParseMatchRequiresArm(t *testing.T) {
	if _, err := Parse("{% match n %}{% endmatch %}", nil, "t"); err == nil {
		t.Error("expected an error for a match without arms")
	}
}

func TestParseBlockAndMacro(t *testing.T) {
	nodes := parseOne(t, "{% block title %}x{% endblock %}{% macro greet(who, how) %}{{ who }}{% endmacro %}")
	block := nodes[0].(*BlockDef)
	if block.Name != "title" {
		t.Errorf("block name = %q", block.Name)
	}
	macro := nodes[1].(*Macro)
	if macro.Name != "greet" || len(macro.Params) != 2 {
		t.Errorf("macro = %q params %v", macro.Name, macro.Params)
	}
}

func TestParseMacroNamedSuper(t *testing.T) {
	if _, err := Parse("{% macro super() %}{% endmacro %}", nil, "t"); err == nil {
		t.Error("expected an error for a macro named super")
	}
}

func TestParseEndNameMismatch(t *testing.T) {
	if _, err := Parse("{% block a %}{% endblock b %}", nil, "t"); err == nil {
		t.Error("expected an error for a mismatched endblock name")
	}
}

func TestParseCall(t *testing.T) {
	nodes := parseOne(t, `{% call m::greet("world") %}`)
	call := nodes[0].(*CallTag)
	if call.Scope != "m" || call.Name != "greet" || len(call.Args) != 1 {
		t.Errorf("call = %+v", call)
	}

	nodes = parseOne(t, `{% call local(1, 2) %}`)
	call = nodes[0].(*CallTag)
	if call.Scope != "" || call.Name != "local" || len(call.Args) != 2 {
		t.Errorf("call = %+v", call)
	}
}

func TestParseStructureTags(t *testing.T) {
	nodes := parseOne(t, `{% extends "base.html" %}{% import "lib.html" as m %}{% include "part.html" %}`)
	if ext := nodes[0].(*Extends); ext.Path != "base.html" {
		t.Errorf("extends = %q", ext.Path)
	}
	if imp := nodes[1].(*Import); imp.Path != "lib.html" || imp.Scope != "m" {
		t.Errorf("import = %+v", imp)
	}
	if inc := nodes[2].(*Include); inc.Path != "part.html" {
		t.Errorf("include = %q", inc.Path)
	}
}

func TestParseRawPreservesTags(t *testing.T) {
	nodes := parseOne(t, "{% raw %}{{ x }} and {% if %}{% endraw %}")
	raw := nodes[0].(*Raw)
	content := raw.Lit.LWS + raw.Lit.Val + raw.Lit.RWS
	if content != "{{ x }} and {% if %}" {
		t.Errorf("raw content = %q", content)
	}
}

func TestParseBreakContinue(t *testing.T) {
	nodes := parseOne(t, "{% for v in xs %}{% break %}{% continue %}{% endfor %}")
	loop := nodes[0].(*Loop)
	if _, ok := loop.Body[0].(*Break); !ok {
		t.Errorf("expected Break, got %T", loop.Body[0])
	}
	if _, ok := loop.Body[1].(*Continue); !ok {
		t.Errorf("expected Continue, got %T", loop.Body[1])
	}

	for _, src := range []string{"{% break %}", "{% continue %}"} {
		if _, err := Parse(src, nil, "t"); err == nil {
			t.Errorf("%s outside a loop must fail", src)
		}
	}
}

func TestParseLetForms(t *testing.T) {
	nodes := parseOne(t, "{% let x = 1 %}{% set y = 2 %}{% let z %}")
	if let := nodes[0].(*Let); let.Value == nil {
		t.Error("let with value lost it")
	}
	if let := nodes[1].(*Let); let.Value == nil {
		t.Error("set must parse like let")
	}
	if let := nodes[2].(*Let); let.Value != nil {
		t.Error("declaration-only let must have no value")
	}
}

func TestParseWhitespaceSigils(t *testing.T) {
	nodes := parseOne(t, "a {%- if x +%}b{% endif %} c")
	ifNode := nodes[1].(*If)
	ws := ifNode.Branches[0].Ws
	if ws.Pre != WhitespaceSuppress {
		t.Errorf("pre = %v, want suppress", ws.Pre)
	}
	if ws.Post != WhitespacePreserve {
		t.Errorf("post = %v, want preserve", ws.Post)
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("line one\n{{ ) }}", nil, "bad.html")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("expected SyntaxError, got %T", err)
	}
	if se.Line != 2 {
		t.Errorf("line = %d, want 2", se.Line)
	}
	if !strings.Contains(se.Error(), "bad.html") {
		t.Errorf("error %q does not name the template", se.Error())
	}
}

func TestSplitWsPartsProperty(t *testing.T) {
	tests := []string{
		"", " ", "abc", "  abc", "abc  ", "\t a b \r\n", " \n ", "a",
	}
	for _, s := range tests {
		lws, val, rws := SplitWsParts(s)
		if lws+val+rws != s {
			t.Errorf("%q: parts do not concatenate back", s)
		}
		if strings.Trim(val, " \t\r\n") != val {
			t.Errorf("%q: body has surrounding whitespace", s)
		}
	}
}
