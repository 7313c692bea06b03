package stencil

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/stencilkit/stencil/generator"
	"github.com/stencilkit/stencil/inheritance"
	"github.com/stencilkit/stencil/input"
	"github.com/stencilkit/stencil/loader"
	"github.com/stencilkit/stencil/parser"
)

// Compiler runs the full pipeline for one or more template inputs against
// a settled configuration. A Compiler is read-only after construction and
// safe to reuse; per-compilation state lives in the call.
type Compiler struct {
	cfg *Config
	fs  afero.Fs
	log *zap.Logger
}

// NewCompiler creates a compiler. A nil fs selects the host filesystem and
// a nil logger disables logging.
func NewCompiler(cfg *Config, fs afero.Fs, log *zap.Logger) *Compiler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{cfg: cfg, fs: fs, log: log}
}

// Result is the outcome of one compilation.
type Result struct {
	// Methods is the generated method set for the host type.
	Methods string
	// Imports are the import specs the generated file needs.
	Imports []generator.Import
	// UsesUserFilters reports references to filters outside the built-in
	// set, which resolve against a caller-provided filters package.
	UsesUserFilters bool
	// SizeHint is the output size estimate baked into the generated code.
	SizeHint int
	// AST is the parse-tree dump, filled for print modes ast and all.
	AST string
	// PackageName is the Go package of the annotated type.
	PackageName string
	// TypeName is the host type the methods belong to.
	TypeName string
}

// File assembles the complete generated Go file.
func (r *Result) File() string {
	var sb strings.Builder
	sb.WriteString("// Code generated by stencil. DO NOT EDIT.\n\n")
	fmt.Fprintf(&sb, "package %s\n\n", r.PackageName)
	if len(r.Imports) > 0 {
		sb.WriteString("import (\n")
		for _, imp := range r.Imports {
			if imp.Alias != "" {
				fmt.Fprintf(&sb, "\t%s %q\n", imp.Alias, imp.Path)
			} else {
				fmt.Fprintf(&sb, "\t%q\n", imp.Path)
			}
		}
		sb.WriteString(")\n\n")
	}
	sb.WriteString(r.Methods)
	return sb.String()
}

// Compile runs the pipeline: load the root template, pull in every
// referenced template, build contexts and heritage, and generate the
// rendering methods.
func (c *Compiler) Compile(in *input.TemplateInput) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, NewConfigError("%s", err)
	}

	syntax, err := c.cfg.SyntaxNamed(in.Syntax)
	if err != nil {
		return nil, err
	}

	whitespace := c.cfg.Whitespace
	switch in.Whitespace {
	case "preserve":
		whitespace = parser.WhitespacePreserve
	case "suppress":
		whitespace = parser.WhitespaceSuppress
	case "minimize":
		whitespace = parser.WhitespaceMinimize
	}

	escaper := in.Escape
	if escaper == "" {
		escaper, err = c.cfg.EscaperFor(in.Extension())
		if err != nil {
			return nil, err
		}
	}

	ld := loader.NewFileSystemLoader(c.fs, c.cfg.Dirs...)

	var rootPath, rootSource string
	if in.Path != "" {
		rootPath, err = ld.Resolve("", in.Path)
		if err != nil {
			return nil, NewResolutionError("%s", err)
		}
		rootSource, err = ld.Load(rootPath)
		if err != nil {
			return nil, NewIOError("%s", err)
		}
	} else {
		rootPath = in.Type.Name + "." + in.Ext
		ld.SetSource(rootPath, in.Source)
		rootSource, _ = ld.Source(rootPath)
	}

	contexts, err := c.loadDependencies(ld, syntax, rootPath, rootSource)
	if err != nil {
		return nil, err
	}
	leaf := contexts[rootPath]

	var heritage *inheritance.Heritage
	if leaf.Extends != "" || len(leaf.Blocks) > 0 {
		heritage, err = inheritance.NewHeritage(leaf, contexts)
		if err != nil {
			return nil, NewResolutionError("%s", err)
		}
		c.log.Debug("resolved heritage",
			zap.String("root", heritage.Root.Path),
			zap.Int("blocks", len(heritage.Blocks)))
	}

	gen := generator.New(contexts, heritage, syntax.LexerConfig(), ld, generator.Options{
		Whitespace: whitespace,
		Escaper:    escaper,
		Ext:        in.Extension(),
		TypeName:   in.Type.Name,
		TypeParams: in.Type.TypeParams,
		Fields:     in.Type.FieldNames(),
	})

	methods, err := gen.Generate(leaf)
	if err != nil {
		return nil, classify(err)
	}

	result := &Result{
		Methods:         methods,
		Imports:         gen.Imports(),
		UsesUserFilters: gen.UsesUserFilters(),
		SizeHint:        gen.SizeHint(),
		PackageName:     in.PackageName,
		TypeName:        in.Type.Name,
	}
	if in.Print == input.PrintAST || in.Print == input.PrintAll {
		result.AST = dumpAST(leaf.Nodes)
	}
	c.log.Debug("generated template",
		zap.String("template", rootPath),
		zap.String("type", in.Type.Name),
		zap.Int("size_hint", result.SizeHint),
		zap.Int("bytes", len(result.Methods)))
	return result, nil
}

// loadDependencies parses the root template and transitively loads every
// extends/import referee, guarding against reference cycles.
func (c *Compiler) loadDependencies(ld *loader.FileSystemLoader, syntax *Syntax, rootPath, rootSource string) (map[string]*inheritance.Context, error) {
	graph := loader.NewGraph()
	contexts := make(map[string]*inheritance.Context)

	type item struct{ path, source string }
	queue := []item{{rootPath, rootSource}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, done := contexts[cur.path]; done {
			continue
		}

		nodes, err := parser.Parse(cur.source, syntax.LexerConfig(), cur.path)
		if err != nil {
			if se, ok := err.(*parser.SyntaxError); ok {
				return nil, NewSyntaxError(se.Template, se.Line, se.Column, "%s", se.Message).WithSource(cur.source)
			}
			return nil, NewSyntaxError(cur.path, 0, 0, "%s", err)
		}

		ctx, err := inheritance.NewContext(cur.path, nodes, ld)
		if err != nil {
			return nil, classify(err)
		}
		contexts[cur.path] = ctx
		c.log.Debug("loaded template", zap.String("path", cur.path), zap.Int("nodes", len(nodes)))

		var refs []string
		if ctx.Extends != "" {
			refs = append(refs, ctx.Extends)
		}
		for _, imported := range ctx.Imports {
			refs = append(refs, imported)
		}
		for _, ref := range refs {
			if err := graph.AddEdge(cur.path, ref); err != nil {
				return nil, NewResolutionError("%s", err)
			}
			if _, done := contexts[ref]; done {
				continue
			}
			source, err := ld.Load(ref)
			if err != nil {
				return nil, NewIOError("%s", err)
			}
			queue = append(queue, item{ref, source})
		}
	}
	return contexts, nil
}

// classify maps a loose pipeline error onto the error taxonomy: names and
// paths that fail to resolve are resolution errors, everything else is
// structural.
func classify(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	if se, ok := err.(*parser.SyntaxError); ok {
		return NewSyntaxError(se.Template, se.Line, se.Column, "%s", se.Message)
	}
	msg := err.Error()
	for _, marker := range []string{"not found", "not defined", "not loaded", "no ancestor", "cyclic"} {
		if strings.Contains(msg, marker) {
			return NewResolutionError("%s", msg)
		}
	}
	return NewStructuralError("%s", msg)
}

func dumpAST(nodes []parser.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(n.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
