package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotated = `package web

//stencil:template path="hello.html" print="ast" escape="text" syntax="angle" whitespace="minimize"
type Hello struct {
	Name  string
	Count int
}

// Plain is not annotated.
type Plain struct{}

//stencil:template source="{{ v }}" ext="txt"
type Inline struct {
	V string
}
`

func TestParseFileDirectives(t *testing.T) {
	inputs, err := ParseFile("web.go", annotated)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	hello := inputs[0]
	assert.Equal(t, "hello.html", hello.Path)
	assert.Equal(t, PrintAST, hello.Print)
	assert.Equal(t, "text", hello.Escape)
	assert.Equal(t, "angle", hello.Syntax)
	assert.Equal(t, "minimize", hello.Whitespace)
	assert.Equal(t, "web", hello.PackageName)
	assert.Equal(t, "Hello", hello.Type.Name)
	assert.Equal(t, []string{"Name", "Count"}, hello.Type.FieldNames())
	assert.Equal(t, "html", hello.Extension())

	inline := inputs[1]
	assert.Equal(t, "{{ v }}", inline.Source)
	assert.Equal(t, "txt", inline.Ext)
	assert.Equal(t, "txt", inline.Extension())
}

func TestParseFileTypeParams(t *testing.T) {
	src := `package p

//stencil:template path="list.html"
type List[T any] struct {
	Items []T
}
`
	inputs, err := ParseFile("p.go", src)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, []string{"T"}, inputs[0].Type.TypeParams)
}

func TestParseFileEmbeddedAndParent(t *testing.T) {
	src := `package p

//stencil:template path="page.html"
type Page struct {
	Base
	parent *Layout
	Title  string
}

type Base struct{}
type Layout struct{}
`
	inputs, err := ParseFile("p.go", src)
	require.NoError(t, err)
	desc := inputs[0].Type
	assert.Equal(t, []string{"Base", "parent", "Title"}, desc.FieldNames())
	assert.Equal(t, "parent", desc.ParentField)
}

func TestParseFileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			"both path and source",
			"package p\n\n//stencil:template path=\"a.html\" source=\"x\" ext=\"txt\"\ntype X struct{}\n",
		},
		{
			"source without ext",
			"package p\n\n//stencil:template source=\"x\"\ntype X struct{}\n",
		},
		{
			"neither path nor source",
			"package p\n\n//stencil:template print=\"all\"\ntype X struct{}\n",
		},
		{
			"bad print mode",
			"package p\n\n//stencil:template path=\"a.html\" print=\"verbose\"\ntype X struct{}\n",
		},
		{
			"unknown argument",
			"package p\n\n//stencil:template path=\"a.html\" wat=\"x\"\ntype X struct{}\n",
		},
		{
			"unquoted value",
			"package p\n\n//stencil:template path=a.html\ntype X struct{}\n",
		},
		{
			"directive on non-struct",
			"package p\n\n//stencil:template path=\"a.html\"\ntype X int\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile("p.go", tt.src)
			assert.Error(t, err)
		})
	}
}

func TestValidateWhitespace(t *testing.T) {
	in := &TemplateInput{Path: "a.html", Whitespace: "trim", Type: &TypeDescriptor{Name: "X"}}
	assert.Error(t, in.Validate())
	in.Whitespace = "suppress"
	assert.NoError(t, in.Validate())
}
