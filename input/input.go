// Package input extracts template inputs from annotated Go source: the
// //stencil:template directive supplies the template arguments and the
// struct declaration beneath it supplies the host type descriptor.
package input

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// Directive is the comment marker that binds a template to a struct.
const Directive = "//stencil:template"

// PrintMode selects the debugging output emitted during generation.
type PrintMode string

const (
	PrintNone PrintMode = "none"
	PrintAST  PrintMode = "ast"
	PrintCode PrintMode = "code"
	PrintAll  PrintMode = "all"
)

// Field is one field of the host struct.
type Field struct {
	Name string
	Type string
}

// TypeDescriptor describes the annotated host type.
type TypeDescriptor struct {
	Name       string
	TypeParams []string
	Fields     []Field
	// ParentField names the field holding an inherited parent value, when
	// the struct declares one under the conventional name.
	ParentField string
}

// FieldNames lists the field names for the generator.
func (d *TypeDescriptor) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// TemplateInput is one compilation request: the template arguments from
// the directive plus the host type.
type TemplateInput struct {
	Path       string
	Source     string
	Ext        string
	Print      PrintMode
	Escape     string
	Syntax     string
	ConfigPath string
	Whitespace string
	Type       *TypeDescriptor

	// PackageName is the package of the file the directive was found in.
	PackageName string
	// File is the Go source file the directive came from.
	File string
}

// Validate enforces the directive argument rules.
func (in *TemplateInput) Validate() error {
	if (in.Path == "") == (in.Source == "") {
		return fmt.Errorf("%s: exactly one of path or source is required", in.describe())
	}
	if in.Source != "" && in.Ext == "" {
		return fmt.Errorf("%s: ext is required when source is used", in.describe())
	}
	switch in.Print {
	case "", PrintNone, PrintAST, PrintCode, PrintAll:
	default:
		return fmt.Errorf("%s: print must be one of none, ast, code, all", in.describe())
	}
	switch in.Whitespace {
	case "", "preserve", "suppress", "minimize":
	default:
		return fmt.Errorf("%s: whitespace must be one of preserve, suppress, minimize", in.describe())
	}
	return nil
}

func (in *TemplateInput) describe() string {
	if in.Type != nil {
		return in.Type.Name
	}
	return in.File
}

// Extension returns the effective template extension: the explicit ext
// argument, else the extension of the template path.
func (in *TemplateInput) Extension() string {
	if in.Ext != "" {
		return in.Ext
	}
	if idx := strings.LastIndexByte(in.Path, '.'); idx >= 0 {
		return in.Path[idx+1:]
	}
	return ""
}

// ParseFile scans one Go source file for template directives.
func ParseFile(filename string, src any) ([]*TemplateInput, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var inputs []*TemplateInput
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		directive := findDirective(gd.Doc)
		if directive == "" {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				return nil, fmt.Errorf("%s: the stencil directive requires a struct type", ts.Name.Name)
			}

			in, err := parseDirectiveArgs(directive)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ts.Name.Name, err)
			}
			in.Type = describeStruct(ts, st)
			in.PackageName = file.Name.Name
			in.File = filename
			if err := in.Validate(); err != nil {
				return nil, err
			}
			inputs = append(inputs, in)
		}
	}
	return inputs, nil
}

func findDirective(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	for _, c := range doc.List {
		if strings.HasPrefix(c.Text, Directive) {
			return strings.TrimSpace(strings.TrimPrefix(c.Text, Directive))
		}
	}
	return ""
}

// parseDirectiveArgs reads key="value" pairs from the directive text.
func parseDirectiveArgs(args string) (*TemplateInput, error) {
	in := &TemplateInput{Print: PrintNone}
	rest := strings.TrimSpace(args)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed directive argument near %q", rest)
		}
		key := strings.TrimSpace(rest[:eq])
		rest = strings.TrimSpace(rest[eq+1:])
		if rest == "" || rest[0] != '"' {
			return nil, fmt.Errorf("argument %q requires a quoted value", key)
		}
		end := 1
		for end < len(rest) {
			if rest[end] == '\\' {
				end += 2
				continue
			}
			if rest[end] == '"' {
				break
			}
			end++
		}
		if end >= len(rest) {
			return nil, fmt.Errorf("unterminated value for argument %q", key)
		}
		value, err := strconv.Unquote(rest[:end+1])
		if err != nil {
			return nil, fmt.Errorf("invalid value for argument %q: %w", key, err)
		}
		rest = strings.TrimSpace(rest[end+1:])

		switch key {
		case "path":
			in.Path = value
		case "source":
			in.Source = value
		case "ext":
			in.Ext = value
		case "print":
			in.Print = PrintMode(value)
		case "escape":
			in.Escape = value
		case "syntax":
			in.Syntax = value
		case "config":
			in.ConfigPath = value
		case "whitespace":
			in.Whitespace = value
		default:
			return nil, fmt.Errorf("unknown directive argument %q", key)
		}
	}
	return in, nil
}

func describeStruct(ts *ast.TypeSpec, st *ast.StructType) *TypeDescriptor {
	desc := &TypeDescriptor{Name: ts.Name.Name}

	if ts.TypeParams != nil {
		for _, param := range ts.TypeParams.List {
			for _, name := range param.Names {
				desc.TypeParams = append(desc.TypeParams, name.Name)
			}
		}
	}

	for _, field := range st.Fields.List {
		typeStr := types.ExprString(field.Type)
		if len(field.Names) == 0 {
			// embedded field: visible under its type name
			name := typeStr
			if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
				name = name[idx+1:]
			}
			name = strings.TrimPrefix(name, "*")
			desc.Fields = append(desc.Fields, Field{Name: name, Type: typeStr})
			continue
		}
		for _, name := range field.Names {
			desc.Fields = append(desc.Fields, Field{Name: name.Name, Type: typeStr})
			if name.Name == "parent" {
				desc.ParentField = name.Name
			}
		}
	}
	return desc
}
