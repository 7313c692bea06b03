package stencil

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/stencilkit/stencil/input"
)

func testFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func descriptor(name string, fields ...string) *input.TypeDescriptor {
	desc := &input.TypeDescriptor{Name: name}
	for _, f := range fields {
		desc.Fields = append(desc.Fields, input.Field{Name: f, Type: "string"})
	}
	return desc
}

func testCompiler(t *testing.T, files map[string]string) *Compiler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dirs = []string{"templates"}
	return NewCompiler(cfg, testFs(t, files), nil)
}

func TestCompileHello(t *testing.T) {
	c := testCompiler(t, map[string]string{
		"templates/hello.html": "Hello, {{ name }}!\n",
	})
	result, err := c.Compile(&input.TemplateInput{
		Path:        "hello.html",
		Type:        descriptor("Hello", "Name"),
		PackageName: "web",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if !strings.Contains(result.Methods, `"Hello, %[1]s!"`) {
		t.Errorf("trailing newline must be stripped and writes coalesced:\n%s", result.Methods)
	}
	if !strings.Contains(result.Methods, "stencilrt.EscapeDisplay(stencilrt.HTML, t.Name)") {
		t.Errorf("html extension must select the HTML escaper:\n%s", result.Methods)
	}

	file := result.File()
	if !strings.HasPrefix(file, "// Code generated by stencil. DO NOT EDIT.") {
		t.Error("generated file needs the standard header")
	}
	if !strings.Contains(file, "package web") {
		t.Error("generated file must use the host package")
	}
	if !strings.Contains(file, `stencilrt "github.com/stencilkit/stencil/runtime"`) {
		t.Errorf("runtime import missing:\n%s", file)
	}
}

func TestCompileInlineSource(t *testing.T) {
	c := testCompiler(t, nil)
	result, err := c.Compile(&input.TemplateInput{
		Source:      "[{{ v }}]",
		Ext:         "txt",
		Type:        descriptor("Inline", "V"),
		PackageName: "p",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(result.Methods, "stencilrt.Text") {
		t.Errorf("txt extension must select the text escaper:\n%s", result.Methods)
	}
}

func TestCompileInheritance(t *testing.T) {
	c := testCompiler(t, map[string]string{
		"templates/base.html":  `<h1>{% block title %}default{% endblock %}</h1>`,
		"templates/child.html": `{% extends "base.html" %}{% block title %}Child{% endblock %}`,
	})
	result, err := c.Compile(&input.TemplateInput{
		Path:        "child.html",
		Type:        descriptor("Child"),
		PackageName: "p",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(result.Methods, `"<h1>Child</h1>"`) {
		t.Errorf("override not applied:\n%s", result.Methods)
	}
}

func TestCompileMacroImport(t *testing.T) {
	c := testCompiler(t, map[string]string{
		"templates/lib.html":  `{% macro greet(who) %}Hi {{ who }}{% endmacro %}`,
		"templates/page.html": `{% import "lib.html" as m %}{% call m::greet("world") %}`,
	})
	result, err := c.Compile(&input.TemplateInput{
		Path:        "page.html",
		Type:        descriptor("Page"),
		PackageName: "p",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(result.Methods, `"Hi %[1]s"`) {
		t.Errorf("imported macro not inlined:\n%s", result.Methods)
	}
}

func TestCompileExtendsCycle(t *testing.T) {
	c := testCompiler(t, map[string]string{
		"templates/a.html": `{% extends "b.html" %}`,
		"templates/b.html": `{% extends "a.html" %}`,
	})
	_, err := c.Compile(&input.TemplateInput{
		Path:        "a.html",
		Type:        descriptor("A"),
		PackageName: "p",
	})
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	serr, ok := err.(*Error)
	if !ok || serr.Kind != ErrResolution {
		t.Errorf("err = %v, want a resolution error", err)
	}
}

func TestCompileMissingTemplate(t *testing.T) {
	c := testCompiler(t, nil)
	_, err := c.Compile(&input.TemplateInput{
		Path:        "gone.html",
		Type:        descriptor("X"),
		PackageName: "p",
	})
	serr, ok := err.(*Error)
	if !ok || serr.Kind != ErrResolution {
		t.Errorf("err = %v, want a resolution error", err)
	}
}

func TestCompileSyntaxErrorPosition(t *testing.T) {
	c := testCompiler(t, map[string]string{
		"templates/bad.html": "line one\n{{ ) }}",
	})
	_, err := c.Compile(&input.TemplateInput{
		Path:        "bad.html",
		Type:        descriptor("Bad"),
		PackageName: "p",
	})
	serr, ok := err.(*Error)
	if !ok || serr.Kind != ErrSyntax {
		t.Fatalf("err = %v, want a syntax error", err)
	}
	if serr.Line != 2 {
		t.Errorf("line = %d, want 2", serr.Line)
	}
	if !strings.Contains(serr.SourceContext(), "{{ ) }}") {
		t.Errorf("source context missing the offending line:\n%s", serr.SourceContext())
	}
}

func TestCompileInvalidInput(t *testing.T) {
	c := testCompiler(t, nil)
	tests := []struct {
		name string
		in   *input.TemplateInput
	}{
		{"neither path nor source", &input.TemplateInput{Type: descriptor("X"), PackageName: "p"}},
		{"both path and source", &input.TemplateInput{Path: "a", Source: "b", Ext: "txt", Type: descriptor("X"), PackageName: "p"}},
		{"source without ext", &input.TemplateInput{Source: "x", Type: descriptor("X"), PackageName: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.in)
			serr, ok := err.(*Error)
			if !ok || serr.Kind != ErrConfig {
				t.Errorf("err = %v, want a configuration error", err)
			}
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	files := map[string]string{
		"templates/page.html": `{% for v in items %}{{ loop.index }}:{{ v }} {% endfor %}`,
	}
	in := &input.TemplateInput{
		Path:        "page.html",
		Type:        descriptor("Page", "Items"),
		PackageName: "p",
	}

	a, err := testCompiler(t, files).Compile(in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := testCompiler(t, files).Compile(in)
	if err != nil {
		t.Fatal(err)
	}
	if a.File() != b.File() {
		t.Error("compilation must be deterministic")
	}
}

func TestCompilePrintAST(t *testing.T) {
	c := testCompiler(t, map[string]string{
		"templates/p.html": "x{{ v }}",
	})
	result, err := c.Compile(&input.TemplateInput{
		Path:        "p.html",
		Print:       input.PrintAST,
		Type:        descriptor("P", "V"),
		PackageName: "p",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.AST, "Lit") || !strings.Contains(result.AST, "Expr") {
		t.Errorf("AST dump = %q", result.AST)
	}
}

func TestCompileCustomSyntax(t *testing.T) {
	cfg, err := NewConfig([]byte(`
[general]
dirs = ["templates"]

[[syntax]]
name = "angle"
block_start = "<%"
block_end = "%>"
expr_start = "<<"
expr_end = ">>"
comment_start = "<#"
comment_end = "#>"
`))
	if err != nil {
		t.Fatal(err)
	}
	fs := testFs(t, map[string]string{
		"templates/p.html": "a << v >> b <% if ok %>c<% endif %>",
	})
	c := NewCompiler(cfg, fs, nil)
	result, err := c.Compile(&input.TemplateInput{
		Path:        "p.html",
		Syntax:      "angle",
		Type:        descriptor("P", "V", "Ok"),
		PackageName: "p",
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(result.Methods, "if t.Ok {") {
		t.Errorf("custom syntax not honored:\n%s", result.Methods)
	}

	_, err = c.Compile(&input.TemplateInput{
		Path:        "p.html",
		Syntax:      "nope",
		Type:        descriptor("P"),
		PackageName: "p",
	})
	serr, ok := err.(*Error)
	if !ok || serr.Kind != ErrResolution {
		t.Errorf("unknown syntax: err = %v", err)
	}
}

func TestCompileWhitespaceOverride(t *testing.T) {
	c := testCompiler(t, map[string]string{
		"templates/p.html": "A {% if x %}B{% endif %} C",
	})
	result, err := c.Compile(&input.TemplateInput{
		Path:        "p.html",
		Whitespace:  "suppress",
		Type:        descriptor("P", "X"),
		PackageName: "p",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(result.Methods, `"A "`) {
		t.Errorf("whitespace override not applied:\n%s", result.Methods)
	}
}
