package parser

import (
	"fmt"
	"strings"
)

// PrintNodes renders an AST back to template source using the default
// delimiters. The output re-parses to an equal AST, modulo whitespace
// normalization inside tag bodies (set prints as let, a match else arm
// prints as "when _").
func PrintNodes(nodes []Node) string {
	var sb strings.Builder
	for _, node := range nodes {
		printNode(&sb, node)
	}
	return sb.String()
}

func openTag(sb *strings.Builder, ws Whitespace) {
	sb.WriteString("{%")
	if s := ws.Sigil(); s != 0 {
		sb.WriteByte(s)
	}
	sb.WriteByte(' ')
}

func closeTag(sb *strings.Builder, ws Whitespace) {
	sb.WriteByte(' ')
	if s := ws.Sigil(); s != 0 {
		sb.WriteByte(s)
	}
	sb.WriteString("%}")
}

func printTag(sb *strings.Builder, ws Ws, body string) {
	openTag(sb, ws.Pre)
	sb.WriteString(body)
	closeTag(sb, ws.Post)
}

func printNode(sb *strings.Builder, node Node) {
	switch n := node.(type) {
	case *Lit:
		sb.WriteString(n.LWS + n.Val + n.RWS)

	case *Comment:
		sb.WriteString("{#")
		if s := n.Ws.Pre.Sigil(); s != 0 {
			sb.WriteByte(s)
		}
		sb.WriteByte(' ')
		if s := n.Ws.Post.Sigil(); s != 0 {
			sb.WriteByte(s)
		}
		sb.WriteString("#}")

	case *ExprTag:
		sb.WriteString("{{")
		if s := n.Ws.Pre.Sigil(); s != 0 {
			sb.WriteByte(s)
		}
		sb.WriteByte(' ')
		sb.WriteString(n.Expr.String())
		sb.WriteByte(' ')
		if s := n.Ws.Post.Sigil(); s != 0 {
			sb.WriteByte(s)
		}
		sb.WriteString("}}")

	case *Let:
		body := "let " + n.Target.String()
		if n.Value != nil {
			body += " = " + n.Value.String()
		}
		printTag(sb, n.Ws, body)

	case *If:
		for i, branch := range n.Branches {
			var body string
			switch {
			case branch.Test == nil:
				body = "else"
			case i == 0:
				body = "if " + condTestString(branch.Test)
			default:
				body = "elif " + condTestString(branch.Test)
			}
			printTag(sb, branch.Ws, body)
			for _, child := range branch.Body {
				printNode(sb, child)
			}
		}
		printTag(sb, n.Ws, "endif")

	case *Match:
		printTag(sb, n.Ws1, "match "+n.Expr.String())
		sb.WriteString(n.Inter)
		for _, arm := range n.Arms {
			printTag(sb, arm.Ws, "when "+arm.Target.String())
			for _, child := range arm.Body {
				printNode(sb, child)
			}
		}
		printTag(sb, n.Ws2, "endmatch")

	case *Loop:
		body := "for " + n.Var.String() + " in " + n.Iter.String()
		if n.Cond != nil {
			body += " if " + n.Cond.String()
		}
		printTag(sb, n.Ws1, body)
		for _, child := range n.Body {
			printNode(sb, child)
		}
		if n.ElseBody != nil {
			printTag(sb, n.BodyWs, "else")
			for _, child := range n.ElseBody {
				printNode(sb, child)
			}
			printTag(sb, n.ElseWs, "endfor")
		} else {
			printTag(sb, n.BodyWs, "endfor")
		}

	case *Extends:
		printTag(sb, Ws{}, fmt.Sprintf("extends %q", n.Path))

	case *Include:
		printTag(sb, n.Ws, fmt.Sprintf("include %q", n.Path))

	case *Import:
		printTag(sb, n.Ws, fmt.Sprintf("import %q as %s", n.Path, n.Scope))

	case *BlockDef:
		printTag(sb, n.Ws1, "block "+n.Name)
		for _, child := range n.Body {
			printNode(sb, child)
		}
		printTag(sb, n.Ws2, "endblock")

	case *Macro:
		printTag(sb, n.Ws1, "macro "+n.Name+"("+strings.Join(n.Params, ", ")+")")
		for _, child := range n.Body {
			printNode(sb, child)
		}
		printTag(sb, n.Ws2, "endmacro")

	case *CallTag:
		name := n.Name
		if n.Scope != "" {
			name = n.Scope + "::" + name
		}
		printTag(sb, n.Ws, "call "+name+"("+joinExprs(n.Args, ", ")+")")

	case *Raw:
		printTag(sb, n.Ws1, "raw")
		sb.WriteString(n.Lit.LWS + n.Lit.Val + n.Lit.RWS)
		printTag(sb, n.Ws2, "endraw")

	case *Break:
		printTag(sb, n.Ws, "break")

	case *Continue:
		printTag(sb, n.Ws, "continue")
	}
}

func condTestString(test *CondTest) string {
	if test.Target != nil {
		return "let " + test.Target.String() + " = " + test.Expr.String()
	}
	return test.Expr.String()
}
