// Package generator walks a template AST, together with its heritage, and
// emits Go source implementing the rendering methods for the host type.
// The traversal is a single pass; literal and expression writes are
// buffered and coalesced into as few sink calls as possible.
package generator

import (
	"fmt"
	"strings"

	"github.com/stencilkit/stencil/inheritance"
	"github.com/stencilkit/stencil/lexer"
	"github.com/stencilkit/stencil/parser"
)

// TemplateLoader supplies sources for templates pulled in at generation
// time (include tags).
type TemplateLoader interface {
	Resolve(referrer, name string) (string, error)
	Load(path string) (string, error)
}

// Options configures one generation run.
type Options struct {
	// Whitespace is the configured default handling mode;
	// WhitespaceDefault behaves as preserve.
	Whitespace parser.Whitespace
	// Escaper selects the escaping strategy: "html", "text", or a Go
	// selector expression for a custom escaper value.
	Escaper string
	// Ext is the template file extension reported by Extension().
	Ext string
	// TypeName is the host type the methods are generated for.
	TypeName string
	// TypeParams are the host type's type parameter names, if any.
	TypeParams []string
	// Fields lists the host type's field names; unqualified template
	// variables resolve against them.
	Fields []string
}

type astLevel int

const (
	levelTop astLevel = iota
	levelBlock
	levelNested
)

type writable interface{ writableNode() }

type wLit string

func (wLit) writableNode() {}

type wExpr struct {
	code    string
	wrapped bool
}

func (wExpr) writableNode() {}

type superRef struct {
	name  string
	depth int
}

type loopFrame struct {
	index string // Go expression for the zero-based index
	last  string // Go expression reporting the final iteration
}

// Generator holds the traversal state for one compilation.
type Generator struct {
	contexts map[string]*inheritance.Context
	heritage *inheritance.Heritage
	opts     Options
	syntax   *lexer.Config
	loader   TemplateLoader

	buf    *Buffer
	locals *locals

	// trailing whitespace of the previous literal, not yet flushed
	nextWs    string
	hasNextWs bool
	// mode to apply to the next literal's leading whitespace
	skipWs parser.Whitespace

	superBlock  *superRef
	bufWritable []writable
	pending     []string
	named       int
	loops       []loopFrame

	sizeHint int
	fields   map[string]bool

	usesFmt, usesRuntime, usesFilters, usesUserFilters bool
}

func New(contexts map[string]*inheritance.Context, heritage *inheritance.Heritage, syntax *lexer.Config, loader TemplateLoader, opts Options) *Generator {
	fields := make(map[string]bool, len(opts.Fields))
	for _, f := range opts.Fields {
		fields[f] = true
	}
	return &Generator{
		contexts: contexts,
		heritage: heritage,
		opts:     opts,
		syntax:   syntax,
		loader:   loader,
		skipWs:   parser.WhitespacePreserve,
		fields:   fields,
	}
}

// Generate emits the method set for the leaf template's host type. The
// traversal starts at the heritage root when inheritance is involved.
func (g *Generator) Generate(leaf *inheritance.Context) (string, error) {
	body := NewBuffer()
	body.Indent()
	g.buf = body
	g.locals = newLocals()

	var err error
	if g.heritage != nil {
		err = g.handle(g.heritage.Root, g.heritage.Root.Nodes, levelTop)
	} else {
		err = g.handle(leaf, leaf.Nodes, levelTop)
	}
	if err != nil {
		return "", err
	}
	g.flushWs(parser.Ws{})
	g.writeBufWritable()

	return g.methods(body.String()), nil
}

// SizeHint reports the accumulated output size estimate. Valid after
// Generate.
func (g *Generator) SizeHint() int {
	return g.sizeHint
}

// Import is one import of the generated file.
type Import struct {
	Alias string
	Path  string
}

// Imports lists the imports the generated methods require.
func (g *Generator) Imports() []Import {
	out := []Import{{"", "io"}, {"", "strings"}}
	if g.usesFmt {
		out = append(out, Import{"", "fmt"})
	}
	if g.usesRuntime {
		out = append(out, Import{"stencilrt", "github.com/stencilkit/stencil/runtime"})
	}
	if g.usesFilters {
		out = append(out, Import{"stencilfilters", "github.com/stencilkit/stencil/filters"})
	}
	return out
}

// UsesUserFilters reports whether the template referenced filters outside
// the built-in set; those resolve against a caller-provided filters
// package.
func (g *Generator) UsesUserFilters() bool {
	return g.usesUserFilters
}

func (g *Generator) receiver() string {
	r := g.opts.TypeName
	if len(g.opts.TypeParams) > 0 {
		r += "[" + strings.Join(g.opts.TypeParams, ", ") + "]"
	}
	return r
}

func (g *Generator) methods(body string) string {
	recv := g.receiver()
	var sb strings.Builder

	fmt.Fprintf(&sb, "// Render writes the rendered template to w.\n")
	fmt.Fprintf(&sb, "func (t *%s) Render(w io.Writer) error {\n", recv)
	sb.WriteString(body)
	sb.WriteString("\treturn nil\n}\n\n")

	fmt.Fprintf(&sb, "// String renders the template to a string; a render error collapses\n// to the empty string.\n")
	fmt.Fprintf(&sb, "func (t *%s) String() string {\n", recv)
	sb.WriteString("\tvar sb strings.Builder\n")
	sb.WriteString("\tif err := t.Render(&sb); err != nil {\n\t\treturn \"\"\n\t}\n")
	sb.WriteString("\treturn sb.String()\n}\n\n")

	fmt.Fprintf(&sb, "// Extension returns the template file extension, or an empty string.\n")
	fmt.Fprintf(&sb, "func (t *%s) Extension() string {\n\treturn %q\n}\n\n", recv, g.opts.Ext)

	fmt.Fprintf(&sb, "// SizeHint estimates the output size for buffer preallocation.\n")
	fmt.Fprintf(&sb, "func (t *%s) SizeHint() int {\n\treturn %d\n}\n", recv, g.sizeHint)

	return sb.String()
}

// effective resolves a per-tag opt-in against the configured default.
func (g *Generator) effective(w parser.Whitespace) parser.Whitespace {
	if w != parser.WhitespaceDefault {
		return w
	}
	if g.opts.Whitespace != parser.WhitespaceDefault {
		return g.opts.Whitespace
	}
	return parser.WhitespacePreserve
}

// minimizeWs collapses a whitespace run to a single newline when it
// contains one, else to a single space.
func minimizeWs(s string) string {
	if strings.ContainsAny(s, "\r\n") {
		return "\n"
	}
	return " "
}

// flushWs settles the pending trailing whitespace at a tag's left boundary.
func (g *Generator) flushWs(ws parser.Ws) {
	if !g.hasNextWs {
		return
	}
	switch g.effective(ws.Pre) {
	case parser.WhitespaceSuppress:
	case parser.WhitespaceMinimize:
		if g.nextWs != "" {
			g.pushLit(minimizeWs(g.nextWs))
		}
	default:
		if g.nextWs != "" {
			g.pushLit(g.nextWs)
		}
	}
	g.nextWs, g.hasNextWs = "", false
}

// prepareWs arms the handling of the next literal's leading whitespace from
// a tag's right boundary.
func (g *Generator) prepareWs(ws parser.Ws) {
	g.skipWs = g.effective(ws.Post)
}

func (g *Generator) handleWs(ws parser.Ws) {
	g.flushWs(ws)
	g.prepareWs(ws)
}

func (g *Generator) pushLit(s string) {
	g.bufWritable = append(g.bufWritable, wLit(s))
	g.sizeHint += len(s)
}

func (g *Generator) pushExpr(code string, wrapped bool) {
	g.bufWritable = append(g.bufWritable, wExpr{code, wrapped})
	g.sizeHint += 3
}

func (g *Generator) newTmp(prefix string) string {
	name := fmt.Sprintf("%s%d", prefix, g.named)
	g.named++
	return name
}

func (g *Generator) nodeErr(ctx *inheritance.Context, n parser.Node, format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d:%d: %s", ctx.Path, n.Line(), n.Column(), fmt.Sprintf(format, args...))
}

// handle walks one node list. The level argument rejects constructs that
// are only valid at the top of a template.
func (g *Generator) handle(ctx *inheritance.Context, nodes []parser.Node, level astLevel) error {
	for _, node := range nodes {
		switch n := node.(type) {
		case *parser.Lit:
			g.visitLit(n)

		case *parser.Comment:
			g.handleWs(n.Ws)

		case *parser.ExprTag:
			g.handleWs(n.Ws)
			code, wrapped, err := g.lowerExpr(ctx, n.Expr)
			if err != nil {
				return err
			}
			g.pushExpr(code, wrapped)

		case *parser.Let:
			if err := g.writeLet(ctx, n); err != nil {
				return err
			}

		case *parser.If:
			if err := g.writeIf(ctx, n); err != nil {
				return err
			}

		case *parser.Match:
			if err := g.writeMatch(ctx, n); err != nil {
				return err
			}

		case *parser.Loop:
			if err := g.writeLoop(ctx, n); err != nil {
				return err
			}

		case *parser.BlockDef:
			if err := g.writeBlock(ctx, n); err != nil {
				return err
			}

		case *parser.CallTag:
			if err := g.writeCall(ctx, n); err != nil {
				return err
			}

		case *parser.Include:
			if err := g.writeInclude(ctx, n); err != nil {
				return err
			}

		case *parser.Extends:
			if level != levelTop {
				return g.nodeErr(ctx, n, "extends is only allowed at the top level")
			}
			// heritage construction already consumed it

		case *parser.Import:
			if level != levelTop {
				return g.nodeErr(ctx, n, "import is only allowed at the top level")
			}
			g.handleWs(n.Ws)

		case *parser.Macro:
			if level != levelTop {
				return g.nodeErr(ctx, n, "macro is only allowed at the top level")
			}
			g.handleWs(parser.Ws{Pre: n.Ws1.Pre, Post: n.Ws2.Post})

		case *parser.Raw:
			g.flushWs(n.Ws1)
			g.skipWs = parser.WhitespacePreserve
			if text := n.Lit.LWS + n.Lit.Val + n.Lit.RWS; text != "" {
				g.pushLit(text)
			}
			g.prepareWs(n.Ws2)

		case *parser.Break:
			g.flushWs(n.Ws)
			g.writeBufWritable()
			g.buf.WriteLine("break")
			g.prepareWs(n.Ws)

		case *parser.Continue:
			g.flushWs(n.Ws)
			g.writeBufWritable()
			g.buf.WriteLine("continue")
			g.prepareWs(n.Ws)

		default:
			return g.nodeErr(ctx, node, "unhandled node %T", node)
		}
	}
	return nil
}

func (g *Generator) visitLit(n *parser.Lit) {
	switch g.skipWs {
	case parser.WhitespaceSuppress:
	case parser.WhitespaceMinimize:
		if n.LWS != "" {
			g.pushLit(minimizeWs(n.LWS))
		}
	default:
		if n.LWS != "" {
			g.pushLit(n.LWS)
		}
	}
	g.skipWs = parser.WhitespacePreserve
	if n.Val != "" {
		g.pushLit(n.Val)
	}
	g.nextWs, g.hasNextWs = n.RWS, true
}

func (g *Generator) writeLet(ctx *inheritance.Context, n *parser.Let) error {
	g.handleWs(n.Ws)
	g.writeBufWritable()

	if n.Value == nil {
		name, ok := n.Target.(*parser.NameTarget)
		if !ok {
			return g.nodeErr(ctx, n, "a declaration without value takes a plain name")
		}
		g.buf.WriteLine("var " + goName(name.Name) + " any")
		g.buf.WriteLine("_ = " + goName(name.Name))
		g.locals.insert(name.Name)
		return nil
	}

	code, _, err := g.lowerExpr(ctx, n.Value)
	if err != nil {
		return err
	}
	g.flushPending()
	return g.bindTarget(ctx, n.Target, code)
}

// bindTarget emits the binding statements for a pattern and records the
// bound names as locals.
func (g *Generator) bindTarget(ctx *inheritance.Context, target parser.Target, value string) error {
	switch t := target.(type) {
	case *parser.NameTarget:
		if t.Name == "_" {
			g.buf.WriteLine("_ = " + value)
			return nil
		}
		name := goName(t.Name)
		if g.locals.inCurrent(t.Name) {
			g.buf.WriteLine(name + " = " + value)
			return nil
		}
		g.buf.WriteLine(name + " := " + value)
		g.buf.WriteLine("_ = " + name)
		g.locals.insert(t.Name)
		return nil

	case *parser.TupleTarget:
		tmp := g.newTmp("_b")
		g.buf.WriteLine(tmp + " := " + value)
		for i, sub := range t.Targets {
			if err := g.bindTarget(ctx, sub, fmt.Sprintf("%s[%d]", tmp, i)); err != nil {
				return err
			}
		}
		return nil

	case *parser.StructTarget:
		tmp := g.newTmp("_b")
		g.buf.WriteLine(tmp + " := " + value)
		for _, field := range t.Fields {
			sub := field.Target
			if sub == nil {
				sub = parser.NewNameTarget(field.Name, target.Line(), target.Column())
			}
			if err := g.bindTarget(ctx, sub, tmp+"."+field.Name); err != nil {
				return err
			}
		}
		return nil

	default:
		return g.nodeErr(ctx, target, "pattern %s cannot appear in a binding", target)
	}
}

func (g *Generator) writeIf(ctx *inheritance.Context, n *parser.If) error {
	opened := false
	for _, branch := range n.Branches {
		g.handleWs(branch.Ws)
		g.writeBufWritable()
		if opened {
			g.locals.pop()
		}

		switch {
		case branch.Test == nil:
			g.buf.WriteLine("} else {")
			g.locals.push()

		case branch.Test.Target != nil:
			code, _, err := g.lowerExpr(ctx, branch.Test.Expr)
			if err != nil {
				return err
			}
			g.flushPending()
			mv := g.newTmp("_c")
			cond, err := g.condForTarget(ctx, branch.Test.Target, mv)
			if err != nil {
				return err
			}
			header := fmt.Sprintf("if %s := %s; %s {", mv, code, cond)
			if opened {
				header = "} else " + header
			}
			g.buf.WriteLine(header)
			g.locals.push()
			if err := g.bindCondTarget(ctx, branch.Test.Target, mv); err != nil {
				return err
			}

		default:
			code, _, err := g.lowerExpr(ctx, branch.Test.Expr)
			if err != nil {
				return err
			}
			g.flushPending()
			header := "if " + code + " {"
			if opened {
				header = "} else " + header
			}
			g.buf.WriteLine(header)
			g.locals.push()
		}
		opened = true

		if err := g.handle(ctx, branch.Body, levelNested); err != nil {
			return err
		}
	}

	g.handleWs(n.Ws)
	g.writeBufWritable()
	g.locals.pop()
	g.buf.WriteLine("}")
	return nil
}

// condForTarget builds the test of an if-let. Option-style patterns check
// the scrutinee against nil; literal patterns compare for equality.
func (g *Generator) condForTarget(ctx *inheritance.Context, target parser.Target, mv string) (string, error) {
	switch t := target.(type) {
	case *parser.NameTarget, *parser.TupleTarget:
		return mv + " != nil", nil
	case *parser.LitTarget:
		return mv + " == " + g.litTargetCode(t), nil
	case *parser.PathTarget:
		return mv + " == " + goPath(t.Segments), nil
	default:
		return "", g.nodeErr(ctx, target, "pattern %s is not supported in if let", target)
	}
}

func (g *Generator) bindCondTarget(ctx *inheritance.Context, target parser.Target, mv string) error {
	switch t := target.(type) {
	case *parser.NameTarget:
		if t.Name == "_" {
			return nil
		}
		name := goName(t.Name)
		g.buf.WriteLine(name + " := " + mv)
		g.buf.WriteLine("_ = " + name)
		g.locals.insert(t.Name)
		return nil
	case *parser.TupleTarget:
		if len(t.Targets) != 1 {
			return g.nodeErr(ctx, target, "if let destructuring binds exactly one name")
		}
		return g.bindTarget(ctx, t.Targets[0], "*"+mv)
	default:
		return nil
	}
}

func (g *Generator) writeMatch(ctx *inheritance.Context, n *parser.Match) error {
	g.handleWs(n.Ws1)
	if n.Inter != "" {
		g.nextWs, g.hasNextWs = n.Inter, true
	}
	g.writeBufWritable()

	code, _, err := g.lowerExpr(ctx, n.Expr)
	if err != nil {
		return err
	}
	g.flushPending()
	mv := g.newTmp("_m")

	valueStyle := true
	for _, arm := range n.Arms {
		switch arm.Target.(type) {
		case *parser.LitTarget, *parser.PathTarget, *parser.NameTarget:
		default:
			valueStyle = false
		}
	}

	if valueStyle {
		g.buf.WriteLine(fmt.Sprintf("switch %s := %s; %s {", mv, code, mv))
	} else {
		g.buf.WriteLine(fmt.Sprintf("switch %s := any(%s).(type) {", mv, code))
	}

	for _, arm := range n.Arms {
		g.handleWs(arm.Ws)
		g.locals.push()
		if err := g.writeMatchArm(ctx, arm, mv); err != nil {
			return err
		}
		if err := g.handle(ctx, arm.Body, levelNested); err != nil {
			return err
		}
		g.writeBufWritable()
		g.locals.pop()
	}

	g.buf.WriteLine("}")
	g.handleWs(n.Ws2)
	return nil
}

func (g *Generator) writeMatchArm(ctx *inheritance.Context, arm *parser.When, mv string) error {
	switch t := arm.Target.(type) {
	case *parser.LitTarget:
		g.buf.WriteLine("case " + g.litTargetCode(t) + ":")
		return nil

	case *parser.PathTarget:
		g.buf.WriteLine("case " + goPath(t.Segments) + ":")
		return nil

	case *parser.NameTarget:
		g.buf.WriteLine("default:")
		if t.Name != "_" {
			name := goName(t.Name)
			g.buf.WriteLine(name + " := " + mv)
			g.buf.WriteLine("_ = " + name)
			g.locals.insert(t.Name)
		}
		return nil

	case *parser.TupleTarget:
		g.buf.WriteLine("case " + goPath(t.Path) + ":")
		if len(t.Targets) == 1 {
			return g.bindTarget(ctx, t.Targets[0], mv)
		}
		for i, sub := range t.Targets {
			if err := g.bindTarget(ctx, sub, fmt.Sprintf("%s[%d]", mv, i)); err != nil {
				return err
			}
		}
		return nil

	case *parser.StructTarget:
		g.buf.WriteLine("case " + goPath(t.Path) + ":")
		for _, field := range t.Fields {
			sub := field.Target
			if sub == nil {
				sub = parser.NewNameTarget(field.Name, arm.Line(), arm.Column())
			}
			if err := g.bindTarget(ctx, sub, mv+"."+field.Name); err != nil {
				return err
			}
		}
		return nil

	default:
		return g.nodeErr(ctx, arm, "unsupported match pattern %s", arm.Target)
	}
}

func (g *Generator) litTargetCode(t *parser.LitTarget) string {
	switch t.Kind {
	case parser.LitStr:
		return fmt.Sprintf("%q", t.Value)
	case parser.LitChar:
		return quoteRune(t.Value)
	default:
		return t.Value
	}
}

func (g *Generator) writeLoop(ctx *inheritance.Context, n *parser.Loop) error {
	g.handleWs(n.Ws1)
	g.writeBufWritable()

	iterCode, err := g.lowerIter(ctx, n.Iter)
	if err != nil {
		return err
	}
	g.flushPending()

	it := g.newTmp("_it")
	g.buf.WriteLine(it + " := " + iterCode)

	hasElse := n.ElseBody != nil
	did := ""
	if hasElse {
		did = g.newTmp("_did")
		g.buf.WriteLine(did + " := false")
	}

	// with a guard, loop.last cannot compare against the raw length: a
	// pre-pass records the raw index of the last element passing the
	// guard, and the body compares against that
	cnt, lastVar := "", ""
	if n.Cond != nil {
		cnt = g.newTmp("_n")
		g.buf.WriteLine(cnt + " := 0")

		lastVar = g.newTmp("_last")
		g.buf.WriteLine(lastVar + " := -1")
		pIdx := g.newTmp("_i")
		pElem := g.newTmp("_v")
		g.buf.WriteLine(fmt.Sprintf("for %s, %s := range %s {", pIdx, pElem, it))
		g.locals.push()
		if err := g.bindTarget(ctx, n.Var, pElem); err != nil {
			return err
		}
		cond, _, err := g.lowerExpr(ctx, n.Cond)
		if err != nil {
			return err
		}
		g.flushPending()
		g.buf.WriteLine("if " + cond + " {")
		g.buf.WriteLine(lastVar + " = " + pIdx)
		g.buf.WriteLine("}")
		g.locals.pop()
		g.buf.WriteLine("}")
		g.buf.WriteLine("_ = " + lastVar)
	}

	idx := g.newTmp("_i")
	elem := g.newTmp("_v")
	g.buf.WriteLine(fmt.Sprintf("for %s, %s := range %s {", idx, elem, it))
	g.buf.WriteLine("_ = " + idx)
	g.locals.push()
	if err := g.bindTarget(ctx, n.Var, elem); err != nil {
		return err
	}

	if n.Cond != nil {
		cond, _, err := g.lowerExpr(ctx, n.Cond)
		if err != nil {
			return err
		}
		g.flushPending()
		g.buf.WriteLine("if !(" + cond + ") {")
		g.buf.WriteLine("continue")
		g.buf.WriteLine("}")
	}
	if hasElse {
		g.buf.WriteLine(did + " = true")
	}

	indexExpr := idx
	lastExpr := fmt.Sprintf("(%s == len(%s)-1)", idx, it)
	if cnt != "" {
		indexExpr = cnt
		lastExpr = fmt.Sprintf("(%s == %s)", idx, lastVar)
	}
	g.loops = append(g.loops, loopFrame{index: indexExpr, last: lastExpr})

	if err := g.handle(ctx, n.Body, levelNested); err != nil {
		return err
	}
	g.flushWs(parser.Ws{Pre: n.BodyWs.Pre})
	g.writeBufWritable()
	if cnt != "" {
		g.buf.WriteLine(cnt + "++")
	}

	g.loops = g.loops[:len(g.loops)-1]
	g.locals.pop()
	g.buf.WriteLine("}")

	if hasElse {
		g.prepareWs(parser.Ws{Post: n.BodyWs.Post})
		g.buf.WriteLine("if !" + did + " {")
		g.locals.push()
		if err := g.handle(ctx, n.ElseBody, levelNested); err != nil {
			return err
		}
		g.flushWs(parser.Ws{Pre: n.ElseWs.Pre})
		g.writeBufWritable()
		g.locals.pop()
		g.buf.WriteLine("}")
		g.prepareWs(parser.Ws{Post: n.ElseWs.Post})
		return nil
	}

	g.prepareWs(parser.Ws{Post: n.BodyWs.Post})
	return nil
}

func (g *Generator) writeBlock(ctx *inheritance.Context, n *parser.BlockDef) error {
	if g.heritage == nil {
		g.flushWs(parser.Ws{Pre: n.Ws1.Pre})
		g.prepareWs(parser.Ws{Post: n.Ws1.Post})
		g.locals.push()
		if err := g.handle(ctx, n.Body, levelBlock); err != nil {
			return err
		}
		g.flushWs(parser.Ws{Pre: n.Ws2.Pre})
		g.locals.pop()
		g.prepareWs(parser.Ws{Post: n.Ws2.Post})
		return nil
	}

	ancestry, err := g.heritage.Block(n.Name)
	if err != nil {
		return g.nodeErr(ctx, n, "%s", err)
	}
	return g.renderBlockAt(n.Name, ancestry[0], 0, parser.Ws{Pre: n.Ws1.Pre, Post: n.Ws2.Post})
}

// renderBlockAt emits one definition from a block's ancestry list. The
// outer Ws pair belongs to the tag occurrence that triggered the render.
func (g *Generator) renderBlockAt(name string, def inheritance.BlockAncestor, depth int, outer parser.Ws) error {
	g.flushWs(parser.Ws{Pre: outer.Pre})
	g.prepareWs(parser.Ws{Post: def.Def.Ws1.Post})

	prev := g.superBlock
	g.superBlock = &superRef{name: name, depth: depth}
	g.locals.push()

	if err := g.handle(def.Ctx, def.Def.Body, levelBlock); err != nil {
		return err
	}
	g.flushWs(parser.Ws{Pre: def.Def.Ws2.Pre})

	g.locals.pop()
	g.superBlock = prev
	g.prepareWs(parser.Ws{Post: outer.Post})
	return nil
}

func (g *Generator) writeCall(ctx *inheritance.Context, n *parser.CallTag) error {
	if n.Scope == "" && n.Name == "super" {
		return g.writeSuper(ctx, n)
	}

	defCtx, macro, err := g.resolveMacro(ctx, n)
	if err != nil {
		return err
	}
	if len(n.Args) != len(macro.Params) {
		return g.nodeErr(ctx, n, "macro %q takes %d arguments, got %d", n.Name, len(macro.Params), len(n.Args))
	}

	g.flushWs(n.Ws)
	g.writeBufWritable()
	g.buf.WriteLine("{")

	// arguments are evaluated in the caller's scope before the macro's
	// frame opens
	bindings := make([]string, len(n.Args))
	for i, arg := range n.Args {
		code, _, err := g.lowerExpr(ctx, arg)
		if err != nil {
			return err
		}
		bindings[i] = code
	}
	g.flushPending()
	g.locals.push()
	for i, param := range macro.Params {
		name := goName(param)
		g.buf.WriteLine(name + " := " + bindings[i])
		g.buf.WriteLine("_ = " + name)
		g.locals.insert(param)
	}

	g.prepareWs(parser.Ws{Post: macro.Ws1.Post})
	if err := g.handle(defCtx, macro.Body, levelNested); err != nil {
		return err
	}
	g.flushWs(parser.Ws{Pre: macro.Ws2.Pre})
	g.writeBufWritable()
	g.locals.pop()
	g.buf.WriteLine("}")
	g.prepareWs(n.Ws)
	return nil
}

func (g *Generator) resolveMacro(ctx *inheritance.Context, n *parser.CallTag) (*inheritance.Context, *parser.Macro, error) {
	if n.Scope != "" {
		path, ok := ctx.Imports[n.Scope]
		if !ok {
			return nil, nil, g.nodeErr(ctx, n, "import scope %q is not defined", n.Scope)
		}
		defCtx, ok := g.contexts[path]
		if !ok {
			return nil, nil, g.nodeErr(ctx, n, "imported template %q was not loaded", path)
		}
		macro, ok := defCtx.Macros[n.Name]
		if !ok {
			return nil, nil, g.nodeErr(ctx, n, "macro %q is not defined in scope %q", n.Name, n.Scope)
		}
		return defCtx, macro, nil
	}
	macro, ok := ctx.Macros[n.Name]
	if !ok {
		return nil, nil, g.nodeErr(ctx, n, "macro %q is not defined", n.Name)
	}
	return ctx, macro, nil
}

func (g *Generator) writeSuper(ctx *inheritance.Context, n *parser.CallTag) error {
	if g.superBlock == nil {
		return g.nodeErr(ctx, n, "super() is only allowed inside a block")
	}
	if g.heritage == nil {
		return g.nodeErr(ctx, n, "super() requires template inheritance")
	}
	name, depth := g.superBlock.name, g.superBlock.depth
	ancestry, err := g.heritage.Block(name)
	if err != nil {
		return g.nodeErr(ctx, n, "%s", err)
	}
	if depth+1 >= len(ancestry) {
		return g.nodeErr(ctx, n, "no ancestor definition of block %q for super()", name)
	}
	return g.renderBlockAt(name, ancestry[depth+1], depth+1, n.Ws)
}

func (g *Generator) writeInclude(ctx *inheritance.Context, n *parser.Include) error {
	g.flushWs(n.Ws)

	path, err := g.loader.Resolve(ctx.Path, n.Path)
	if err != nil {
		return g.nodeErr(ctx, n, "%s", err)
	}
	source, err := g.loader.Load(path)
	if err != nil {
		return g.nodeErr(ctx, n, "%s", err)
	}
	nodes, err := parser.Parse(source, g.syntax, path)
	if err != nil {
		return err
	}
	childCtx, err := inheritance.NewContext(path, nodes, g.loader)
	if err != nil {
		return err
	}

	// the included template renders through a child scope rooted at the
	// including one; output goes to the same buffer
	saved := g.locals
	g.locals = withParent(saved)
	err = g.handle(childCtx, nodes, levelNested)
	g.locals = saved
	if err != nil {
		return err
	}

	g.prepareWs(n.Ws)
	return nil
}

func (g *Generator) flushPending() {
	for _, stmt := range g.pending {
		g.buf.WriteLine(stmt)
	}
	g.pending = nil
}

// writeBufWritable merges the pending writes into a minimal number of sink
// calls: a run of literals becomes one WriteString, a mix becomes a single
// Fprintf with one slot per unique expression.
func (g *Generator) writeBufWritable() {
	g.flushPending()
	if len(g.bufWritable) == 0 {
		return
	}

	allLit := true
	for _, wr := range g.bufWritable {
		if _, ok := wr.(wLit); !ok {
			allLit = false
			break
		}
	}

	if allLit {
		var sb strings.Builder
		for _, wr := range g.bufWritable {
			sb.WriteString(string(wr.(wLit)))
		}
		if sb.Len() > 0 {
			g.emitWriteString(sb.String())
		}
		g.bufWritable = nil
		return
	}

	var format strings.Builder
	slots := make(map[string]int)
	var args []string
	for _, wr := range g.bufWritable {
		switch v := wr.(type) {
		case wLit:
			format.WriteString(strings.ReplaceAll(string(v), "%", "%%"))
		case wExpr:
			key := v.code
			if v.wrapped {
				key = "!" + key
			}
			idx, ok := slots[key]
			if !ok {
				name := fmt.Sprintf("_s%d", g.named)
				g.named++
				g.buf.WriteLine(name + " := " + g.displayExpr(v))
				args = append(args, name)
				idx = len(args)
				slots[key] = idx
			}
			fmt.Fprintf(&format, "%%[%d]s", idx)
		}
	}

	g.usesFmt = true
	g.buf.WriteLine(fmt.Sprintf("if _, err := fmt.Fprintf(w, %q, %s); err != nil {", format.String(), strings.Join(args, ", ")))
	g.buf.WriteLine("return err")
	g.buf.WriteLine("}")
	g.bufWritable = nil
}

func (g *Generator) emitWriteString(s string) {
	g.buf.WriteLine(fmt.Sprintf("if _, err := io.WriteString(w, %q); err != nil {", s))
	g.buf.WriteLine("return err")
	g.buf.WriteLine("}")
}

func (g *Generator) displayExpr(v wExpr) string {
	g.usesRuntime = true
	if v.wrapped {
		return "stencilrt.Fmt(" + v.code + ")"
	}
	return "stencilrt.EscapeDisplay(" + g.escaperExpr() + ", " + v.code + ")"
}

func (g *Generator) escaperExpr() string {
	switch g.opts.Escaper {
	case "", "html":
		return "stencilrt.HTML"
	case "text":
		return "stencilrt.Text"
	default:
		return g.opts.Escaper
	}
}

// fieldRef resolves an unqualified template name against the host type's
// fields: an exact match wins, else the exported spelling.
func (g *Generator) fieldRef(name string) string {
	if g.fields[name] {
		return "t." + name
	}
	if exported := exportName(name); g.fields[exported] {
		return "t." + exported
	}
	return "t." + name
}

func exportName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func goPath(segments []string) string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ".")
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// goName escapes identifiers that collide with Go keywords; Go has no raw
// identifiers, so a trailing underscore stands in.
func goName(name string) string {
	if goKeywords[name] {
		return name + "_"
	}
	return name
}
