package generator

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/stencilkit/stencil/filters"
	"github.com/stencilkit/stencil/inheritance"
	"github.com/stencilkit/stencil/parser"
)

// lowerExpr turns an expression AST into a Go expression fragment. The
// second result reports whether the value is pre-wrapped markup, so the
// caller skips the escaper. Try operands hoist into pending statements
// flushed before the consuming write.
func (g *Generator) lowerExpr(ctx *inheritance.Context, e parser.Expr) (string, bool, error) {
	switch n := e.(type) {
	case *parser.BoolLit:
		return fmt.Sprintf("%v", n.Value), false, nil

	case *parser.NumLit:
		return n.Value, false, nil

	case *parser.StrLit:
		return fmt.Sprintf("%q", n.Value), false, nil

	case *parser.CharLit:
		return quoteRune(n.Value), false, nil

	case *parser.Var:
		return g.visitVar(n.Name), false, nil

	case *parser.Path:
		return goPath(n.Segments), false, nil

	case *parser.Array:
		elems, err := g.lowerExprList(ctx, n.Elems)
		if err != nil {
			return "", false, err
		}
		return "[]any{" + strings.Join(elems, ", ") + "}", false, nil

	case *parser.Group:
		inner, wrapped, err := g.lowerExpr(ctx, n.Inner)
		if err != nil {
			return "", false, err
		}
		return "(" + inner + ")", wrapped, nil

	case *parser.Tuple:
		elems, err := g.lowerExprList(ctx, n.Elems)
		if err != nil {
			return "", false, err
		}
		return "[]any{" + strings.Join(elems, ", ") + "}", false, nil

	case *parser.Attr:
		if code, ok := g.loopAttr(n); ok {
			return code, false, nil
		}
		obj, _, err := g.lowerExpr(ctx, n.Obj)
		if err != nil {
			return "", false, err
		}
		return obj + "." + n.Name, false, nil

	case *parser.Index:
		obj, _, err := g.lowerExpr(ctx, n.Obj)
		if err != nil {
			return "", false, err
		}
		if r, ok := n.Key.(*parser.Range); ok {
			return g.lowerSlice(ctx, obj, r)
		}
		key, _, err := g.lowerExpr(ctx, n.Key)
		if err != nil {
			return "", false, err
		}
		return obj + "[" + key + "]", false, nil

	case *parser.Call:
		callee, _, err := g.lowerExpr(ctx, n.Callee)
		if err != nil {
			return "", false, err
		}
		args, err := g.lowerExprList(ctx, n.Args)
		if err != nil {
			return "", false, err
		}
		return callee + "(" + strings.Join(args, ", ") + ")", false, nil

	case *parser.MethodCall:
		obj, _, err := g.lowerExpr(ctx, n.Obj)
		if err != nil {
			return "", false, err
		}
		args, err := g.lowerExprList(ctx, n.Args)
		if err != nil {
			return "", false, err
		}
		return obj + "." + n.Name + "(" + strings.Join(args, ", ") + ")", false, nil

	case *parser.RawCall:
		callee := rawCallee(n.Callee)
		return callee + "(" + n.RawArgs + ")", false, nil

	case *parser.Try:
		operand, _, err := g.lowerExpr(ctx, n.Operand)
		if err != nil {
			return "", false, err
		}
		val := g.newTmp("_t")
		errName := g.newTmp("_e")
		g.pending = append(g.pending,
			fmt.Sprintf("%s, %s := %s", val, errName, operand),
			fmt.Sprintf("if %s != nil {", errName),
			fmt.Sprintf("return %s", errName),
			"}",
		)
		return val, false, nil

	case *parser.Unary:
		operand, _, err := g.lowerExpr(ctx, n.Operand)
		if err != nil {
			return "", false, err
		}
		return n.Op + operand, false, nil

	case *parser.BinOp:
		lhs, _, err := g.lowerExpr(ctx, n.LHS)
		if err != nil {
			return "", false, err
		}
		rhs, _, err := g.lowerExpr(ctx, n.RHS)
		if err != nil {
			return "", false, err
		}
		return lhs + " " + n.Op + " " + rhs, false, nil

	case *parser.Filter:
		return g.lowerFilter(ctx, n)

	case *parser.Range:
		return g.lowerRange(ctx, n)

	default:
		return "", false, fmt.Errorf("%s: unhandled expression %T", ctx.Path, e)
	}
}

func (g *Generator) lowerExprList(ctx *inheritance.Context, exprs []parser.Expr) ([]string, error) {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		code, _, err := g.lowerExpr(ctx, e)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// visitVar resolves an unqualified name: a local binding is emitted as-is,
// anything else reads a field of the context value.
func (g *Generator) visitVar(name string) string {
	if g.locals.contains(name) {
		return goName(name)
	}
	return g.fieldRef(name)
}

// loopAttr special-cases the synthetic loop object inside for bodies.
func (g *Generator) loopAttr(n *parser.Attr) (string, bool) {
	v, ok := n.Obj.(*parser.Var)
	if !ok || v.Name != "loop" || len(g.loops) == 0 || g.locals.contains("loop") {
		return "", false
	}
	frame := g.loops[len(g.loops)-1]
	switch n.Name {
	case "index":
		return "(" + frame.index + " + 1)", true
	case "index0":
		return frame.index, true
	case "first":
		return "(" + frame.index + " == 0)", true
	case "last":
		return frame.last, true
	default:
		return "", false
	}
}

func (g *Generator) lowerSlice(ctx *inheritance.Context, obj string, r *parser.Range) (string, bool, error) {
	lo, hi := "", ""
	var err error
	if r.LHS != nil {
		lo, _, err = g.lowerExpr(ctx, r.LHS)
		if err != nil {
			return "", false, err
		}
	}
	if r.RHS != nil {
		hi, _, err = g.lowerExpr(ctx, r.RHS)
		if err != nil {
			return "", false, err
		}
		if r.Op == "..=" {
			hi = "(" + hi + ")+1"
		}
	}
	return obj + "[" + lo + ":" + hi + "]", false, nil
}

func (g *Generator) lowerRange(ctx *inheritance.Context, n *parser.Range) (string, bool, error) {
	lo := "0"
	var err error
	if n.LHS != nil {
		lo, _, err = g.lowerExpr(ctx, n.LHS)
		if err != nil {
			return "", false, err
		}
	}
	if n.RHS == nil {
		return "", false, fmt.Errorf("%s:%d:%d: a range without an upper bound cannot be materialized", ctx.Path, n.Line(), n.Column())
	}
	hi, _, err := g.lowerExpr(ctx, n.RHS)
	if err != nil {
		return "", false, err
	}
	g.usesRuntime = true
	if n.Op == "..=" {
		return "stencilrt.RangeInclusive(" + lo + ", " + hi + ")", false, nil
	}
	return "stencilrt.Range(" + lo + ", " + hi + ")", false, nil
}

// lowerIter lowers a for-loop iterable.
func (g *Generator) lowerIter(ctx *inheritance.Context, e parser.Expr) (string, error) {
	code, _, err := g.lowerExpr(ctx, e)
	return code, err
}

// lowerFilter routes a filter application: built-in names call into the
// filter library, the format/fmt/join trio has bespoke lowerings, and
// unknown names resolve against a caller-provided filters package.
func (g *Generator) lowerFilter(ctx *inheritance.Context, n *parser.Filter) (string, bool, error) {
	args, err := g.lowerExprList(ctx, n.Args)
	if err != nil {
		return "", false, err
	}
	wrapped := filters.Escaped[n.Name]

	switch n.Name {
	case "format":
		// the piped value is the format string
		if len(args) < 1 {
			return "", false, fmt.Errorf("%s:%d:%d: format needs a format string", ctx.Path, n.Line(), n.Column())
		}
		g.usesFmt = true
		return "fmt.Sprintf(" + strings.Join(args, ", ") + ")", false, nil

	case "fmt":
		if len(args) != 2 {
			return "", false, fmt.Errorf("%s:%d:%d: fmt takes exactly one format argument", ctx.Path, n.Line(), n.Column())
		}
		g.usesFmt = true
		return "fmt.Sprintf(" + args[1] + ", " + args[0] + ")", false, nil

	case "join":
		if len(args) != 2 {
			return "", false, fmt.Errorf("%s:%d:%d: join takes exactly one separator argument", ctx.Path, n.Line(), n.Column())
		}
		g.usesFilters = true
		return "stencilfilters.Join(" + args[0] + ", " + args[1] + ")", false, nil

	case "safe", "escape", "e":
		g.usesFilters = true
		g.usesRuntime = true
		name := filters.GoName[n.Name]
		all := append([]string{g.escaperExpr()}, args...)
		return "stencilfilters." + name + "(" + strings.Join(all, ", ") + ")", true, nil
	}

	if filters.BuiltIn[n.Name] {
		g.usesFilters = true
		name, ok := filters.GoName[n.Name]
		if !ok {
			name = exportName(n.Name)
		}
		return "stencilfilters." + name + "(" + strings.Join(args, ", ") + ")", wrapped, nil
	}

	g.usesUserFilters = true
	return "filters." + n.Name + "(" + strings.Join(args, ", ") + ")", false, nil
}

// rawCallee prints the callee of a raw-argument invocation verbatim: a
// plain name or a path, never a context field access.
func rawCallee(e parser.Expr) string {
	switch n := e.(type) {
	case *parser.Var:
		return n.Name
	case *parser.Path:
		return goPath(n.Segments)
	default:
		return n.String()
	}
}

func quoteRune(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && len(s) == 0 {
		return "' '"
	}
	return strconv.QuoteRune(r)
}
