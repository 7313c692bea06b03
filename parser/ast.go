package parser

import (
	"fmt"
	"strings"
)

// Whitespace is the tri-state handling mode for text adjacent to a tag.
// WhitespaceDefault means no per-tag opt-in was given and the configured
// default applies.
type Whitespace int8

const (
	WhitespaceDefault Whitespace = iota
	WhitespacePreserve
	WhitespaceSuppress
	WhitespaceMinimize
)

func (w Whitespace) String() string {
	switch w {
	case WhitespacePreserve:
		return "preserve"
	case WhitespaceSuppress:
		return "suppress"
	case WhitespaceMinimize:
		return "minimize"
	default:
		return "default"
	}
}

// Sigil returns the in-template sigil character for the mode, or 0 for
// WhitespaceDefault.
func (w Whitespace) Sigil() byte {
	switch w {
	case WhitespacePreserve:
		return '+'
	case WhitespaceSuppress:
		return '-'
	case WhitespaceMinimize:
		return '~'
	default:
		return 0
	}
}

// WhitespaceFromSigil maps a tag sigil to its mode. Any byte that is not a
// recognized sigil yields WhitespaceDefault.
func WhitespaceFromSigil(b byte) Whitespace {
	switch b {
	case '-':
		return WhitespaceSuppress
	case '+':
		return WhitespacePreserve
	case '~':
		return WhitespaceMinimize
	default:
		return WhitespaceDefault
	}
}

// Ws records the whitespace opt-ins at a tag's two boundaries: Pre applies
// to the text before the tag, Post to the text after it.
type Ws struct {
	Pre  Whitespace
	Post Whitespace
}

func (ws Ws) String() string {
	if ws.Pre == WhitespaceDefault && ws.Post == WhitespaceDefault {
		return ""
	}
	return fmt.Sprintf("[%s,%s]", ws.Pre, ws.Post)
}

// Node is implemented by every element of the template AST.
type Node interface {
	String() string
	Line() int
	Column() int
}

type baseNode struct {
	line   int
	column int
}

func (n *baseNode) Line() int {
	return n.line
}

func (n *baseNode) Column() int {
	return n.column
}

// SplitWsParts splits a literal text span into leading whitespace, body and
// trailing whitespace. The three parts concatenate back to the input and the
// body has no leading or trailing whitespace character. Whitespace here is
// the template set: space, tab, CR and LF.
func SplitWsParts(s string) (lws, val, rws string) {
	const ws = " \t\r\n"
	trimmed := strings.TrimLeft(s, ws)
	lws = s[:len(s)-len(trimmed)]
	val = strings.TrimRight(trimmed, ws)
	rws = trimmed[len(val):]
	return lws, val, rws
}

// Expr is the interface of all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// BoolLit is a boolean literal.
type BoolLit struct {
	baseNode
	Value bool
}

func NewBoolLit(v bool, line, column int) *BoolLit {
	return &BoolLit{baseNode: baseNode{line: line, column: column}, Value: v}
}

func (n *BoolLit) String() string { return fmt.Sprintf("%v", n.Value) }
func (n *BoolLit) exprNode()      {}

// NumLit is a numeric literal, kept in source form.
type NumLit struct {
	baseNode
	Value string
}

func NewNumLit(v string, line, column int) *NumLit {
	return &NumLit{baseNode: baseNode{line: line, column: column}, Value: v}
}

func (n *NumLit) String() string { return n.Value }
func (n *NumLit) exprNode()      {}

// StrLit is a string literal. Value holds the unescaped content.
type StrLit struct {
	baseNode
	Value string
}

func NewStrLit(v string, line, column int) *StrLit {
	return &StrLit{baseNode: baseNode{line: line, column: column}, Value: v}
}

func (n *StrLit) String() string { return fmt.Sprintf("%q", n.Value) }
func (n *StrLit) exprNode()      {}

// CharLit is a character literal. Value holds the unescaped content.
type CharLit struct {
	baseNode
	Value string
}

func NewCharLit(v string, line, column int) *CharLit {
	return &CharLit{baseNode: baseNode{line: line, column: column}, Value: v}
}

func (n *CharLit) String() string { return "'" + n.Value + "'" }
func (n *CharLit) exprNode()      {}

// Var is an unqualified identifier. At generation time it resolves either
// to a local binding or to a field of the context type.
type Var struct {
	baseNode
	Name string
}

func NewVar(name string, line, column int) *Var {
	return &Var{baseNode: baseNode{line: line, column: column}, Name: name}
}

func (n *Var) String() string { return n.Name }
func (n *Var) exprNode()      {}

// Path is a "::"-separated item path. A leading separator is represented by
// an empty first segment.
type Path struct {
	baseNode
	Segments []string
}

func NewPath(segments []string, line, column int) *Path {
	return &Path{baseNode: baseNode{line: line, column: column}, Segments: segments}
}

func (n *Path) String() string { return strings.Join(n.Segments, "::") }
func (n *Path) exprNode()      {}

// Array is a bracketed expression list.
type Array struct {
	baseNode
	Elems []Expr
}

func NewArray(elems []Expr, line, column int) *Array {
	return &Array{baseNode: baseNode{line: line, column: column}, Elems: elems}
}

func (n *Array) String() string {
	return "[" + joinExprs(n.Elems, ", ") + "]"
}
func (n *Array) exprNode() {}

// Group is a parenthesized expression without a trailing comma.
type Group struct {
	baseNode
	Inner Expr
}

func NewGroup(inner Expr, line, column int) *Group {
	return &Group{baseNode: baseNode{line: line, column: column}, Inner: inner}
}

func (n *Group) String() string { return "(" + n.Inner.String() + ")" }
func (n *Group) exprNode()      {}

// Tuple is a parenthesized expression list: "()", "(e,)" or "(a, b)".
type Tuple struct {
	baseNode
	Elems []Expr
}

func NewTuple(elems []Expr, line, column int) *Tuple {
	return &Tuple{baseNode: baseNode{line: line, column: column}, Elems: elems}
}

func (n *Tuple) String() string {
	if len(n.Elems) == 1 {
		return "(" + n.Elems[0].String() + ",)"
	}
	return "(" + joinExprs(n.Elems, ", ") + ")"
}
func (n *Tuple) exprNode() {}

// Attr is a field access: obj.name.
type Attr struct {
	baseNode
	Obj  Expr
	Name string
}

func NewAttr(obj Expr, name string, line, column int) *Attr {
	return &Attr{baseNode: baseNode{line: line, column: column}, Obj: obj, Name: name}
}

func (n *Attr) String() string { return n.Obj.String() + "." + n.Name }
func (n *Attr) exprNode()      {}

// Index is a subscript access: obj[key].
type Index struct {
	baseNode
	Obj Expr
	Key Expr
}

func NewIndex(obj, key Expr, line, column int) *Index {
	return &Index{baseNode: baseNode{line: line, column: column}, Obj: obj, Key: key}
}

func (n *Index) String() string { return n.Obj.String() + "[" + n.Key.String() + "]" }
func (n *Index) exprNode()      {}

// Call is a call of an arbitrary callee expression.
type Call struct {
	baseNode
	Callee Expr
	Args   []Expr
}

func NewCall(callee Expr, args []Expr, line, column int) *Call {
	return &Call{baseNode: baseNode{line: line, column: column}, Callee: callee, Args: args}
}

func (n *Call) String() string {
	return n.Callee.String() + "(" + joinExprs(n.Args, ", ") + ")"
}
func (n *Call) exprNode() {}

// MethodCall is a call through a field selector: obj.name(args).
type MethodCall struct {
	baseNode
	Obj  Expr
	Name string
	Args []Expr
}

func NewMethodCall(obj Expr, name string, args []Expr, line, column int) *MethodCall {
	return &MethodCall{baseNode: baseNode{line: line, column: column}, Obj: obj, Name: name, Args: args}
}

func (n *MethodCall) String() string {
	return n.Obj.String() + "." + n.Name + "(" + joinExprs(n.Args, ", ") + ")"
}
func (n *MethodCall) exprNode() {}

// RawCall is a suffix of the form name!(...). The argument text between the
// parentheses is carried verbatim, uninterpreted.
type RawCall struct {
	baseNode
	Callee  Expr
	RawArgs string
}

func NewRawCall(callee Expr, rawArgs string, line, column int) *RawCall {
	return &RawCall{baseNode: baseNode{line: line, column: column}, Callee: callee, RawArgs: rawArgs}
}

func (n *RawCall) String() string { return n.Callee.String() + "!(" + n.RawArgs + ")" }
func (n *RawCall) exprNode()      {}

// Try is the "expr?" suffix: the operand yields a value and an error, and
// the error propagates out of the render operation.
type Try struct {
	baseNode
	Operand Expr
}

func NewTry(operand Expr, line, column int) *Try {
	return &Try{baseNode: baseNode{line: line, column: column}, Operand: operand}
}

func (n *Try) String() string { return n.Operand.String() + "?" }
func (n *Try) exprNode()      {}

// Unary is a prefix operator application: "!" or "-".
type Unary struct {
	baseNode
	Op      string
	Operand Expr
}

func NewUnary(op string, operand Expr, line, column int) *Unary {
	return &Unary{baseNode: baseNode{line: line, column: column}, Op: op, Operand: operand}
}

func (n *Unary) String() string { return n.Op + n.Operand.String() }
func (n *Unary) exprNode()      {}

// BinOp is a binary operator application.
type BinOp struct {
	baseNode
	Op  string
	LHS Expr
	RHS Expr
}

func NewBinOp(op string, lhs, rhs Expr, line, column int) *BinOp {
	return &BinOp{baseNode: baseNode{line: line, column: column}, Op: op, LHS: lhs, RHS: rhs}
}

func (n *BinOp) String() string {
	return n.LHS.String() + " " + n.Op + " " + n.RHS.String()
}
func (n *BinOp) exprNode() {}

// Filter is a filter application. Args[0] is the piped value; further
// entries are the call arguments.
type Filter struct {
	baseNode
	Name string
	Args []Expr
}

func NewFilter(name string, args []Expr, line, column int) *Filter {
	return &Filter{baseNode: baseNode{line: line, column: column}, Name: name, Args: args}
}

func (n *Filter) String() string {
	s := n.Args[0].String() + "|" + n.Name
	if len(n.Args) > 1 {
		s += "(" + joinExprs(n.Args[1:], ", ") + ")"
	}
	return s
}
func (n *Filter) exprNode() {}

// Range is "a..b" or "a..=b"; either side may be absent.
type Range struct {
	baseNode
	Op  string // ".." or "..="
	LHS Expr   // may be nil
	RHS Expr   // may be nil
}

func NewRange(op string, lhs, rhs Expr, line, column int) *Range {
	return &Range{baseNode: baseNode{line: line, column: column}, Op: op, LHS: lhs, RHS: rhs}
}

func (n *Range) String() string {
	var sb strings.Builder
	if n.LHS != nil {
		sb.WriteString(n.LHS.String())
	}
	sb.WriteString(n.Op)
	if n.RHS != nil {
		sb.WriteString(n.RHS.String())
	}
	return sb.String()
}
func (n *Range) exprNode() {}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}

// Target is the interface of destructuring patterns used by let, for and
// match arms.
type Target interface {
	Node
	targetNode()
}

// NameTarget binds a single name. The name "_" discards the value.
type NameTarget struct {
	baseNode
	Name string
}

func NewNameTarget(name string, line, column int) *NameTarget {
	return &NameTarget{baseNode: baseNode{line: line, column: column}, Name: name}
}

func (n *NameTarget) String() string { return n.Name }
func (n *NameTarget) targetNode()    {}

// TupleTarget destructures a tuple, optionally introduced by a variant path.
type TupleTarget struct {
	baseNode
	Path    []string // empty for a plain tuple
	Targets []Target
}

func NewTupleTarget(path []string, targets []Target, line, column int) *TupleTarget {
	return &TupleTarget{baseNode: baseNode{line: line, column: column}, Path: path, Targets: targets}
}

func (n *TupleTarget) String() string {
	parts := make([]string, len(n.Targets))
	for i, t := range n.Targets {
		parts[i] = t.String()
	}
	prefix := strings.Join(n.Path, "::")
	if prefix != "" {
		prefix += " with "
	}
	return prefix + "(" + strings.Join(parts, ", ") + ")"
}
func (n *TupleTarget) targetNode() {}

// StructField is one field pattern inside a StructTarget. A nil Target is
// the shorthand form binding the field under its own name.
type StructField struct {
	Name   string
	Target Target
}

// StructTarget destructures named fields of a struct value.
type StructTarget struct {
	baseNode
	Path   []string
	Fields []StructField
}

func NewStructTarget(path []string, fields []StructField, line, column int) *StructTarget {
	return &StructTarget{baseNode: baseNode{line: line, column: column}, Path: path, Fields: fields}
}

func (n *StructTarget) String() string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		if f.Target == nil {
			parts[i] = f.Name
		} else {
			parts[i] = f.Name + ": " + f.Target.String()
		}
	}
	prefix := strings.Join(n.Path, "::")
	if prefix != "" {
		prefix += " with "
	}
	return prefix + "{" + strings.Join(parts, ", ") + "}"
}
func (n *StructTarget) targetNode() {}

// LitKind enumerates the literal classes a LitTarget can hold.
type LitKind int8

const (
	LitNum LitKind = iota
	LitStr
	LitChar
	LitBool
)

// LitTarget matches a literal value.
type LitTarget struct {
	baseNode
	Kind  LitKind
	Value string
}

func NewLitTarget(kind LitKind, value string, line, column int) *LitTarget {
	return &LitTarget{baseNode: baseNode{line: line, column: column}, Kind: kind, Value: value}
}

func (n *LitTarget) String() string {
	switch n.Kind {
	case LitStr:
		return fmt.Sprintf("%q", n.Value)
	case LitChar:
		return "'" + n.Value + "'"
	default:
		return n.Value
	}
}
func (n *LitTarget) targetNode() {}

// PathTarget matches a path constant, e.g. an enum-like variant.
type PathTarget struct {
	baseNode
	Segments []string
}

func NewPathTarget(segments []string, line, column int) *PathTarget {
	return &PathTarget{baseNode: baseNode{line: line, column: column}, Segments: segments}
}

func (n *PathTarget) String() string { return strings.Join(n.Segments, "::") }
func (n *PathTarget) targetNode()    {}

// Lit is a literal text span, split into leading whitespace, body and
// trailing whitespace so the generator can apply per-tag whitespace rules.
type Lit struct {
	baseNode
	LWS string
	Val string
	RWS string
}

func NewLit(text string, line, column int) *Lit {
	lws, val, rws := SplitWsParts(text)
	return &Lit{baseNode: baseNode{line: line, column: column}, LWS: lws, Val: val, RWS: rws}
}

func (n *Lit) String() string { return fmt.Sprintf("Lit(%q)", n.LWS+n.Val+n.RWS) }

// Comment is a comment tag. It renders nothing but still takes part in
// whitespace handling.
type Comment struct {
	baseNode
	Ws Ws
}

func NewComment(ws Ws, line, column int) *Comment {
	return &Comment{baseNode: baseNode{line: line, column: column}, Ws: ws}
}

func (n *Comment) String() string { return "Comment" + n.Ws.String() }

// ExprTag is an interpolation tag: {{ expr }}.
type ExprTag struct {
	baseNode
	Ws   Ws
	Expr Expr
}

func NewExprTag(ws Ws, expr Expr, line, column int) *ExprTag {
	return &ExprTag{baseNode: baseNode{line: line, column: column}, Ws: ws, Expr: expr}
}

func (n *ExprTag) String() string { return fmt.Sprintf("Expr%s(%s)", n.Ws, n.Expr) }

// Let is a binding tag. A nil Value is a declaration without initializer.
type Let struct {
	baseNode
	Ws     Ws
	Target Target
	Value  Expr
}

func NewLet(ws Ws, target Target, value Expr, line, column int) *Let {
	return &Let{baseNode: baseNode{line: line, column: column}, Ws: ws, Target: target, Value: value}
}

func (n *Let) String() string {
	if n.Value == nil {
		return fmt.Sprintf("Let%s(%s)", n.Ws, n.Target)
	}
	return fmt.Sprintf("Let%s(%s = %s)", n.Ws, n.Target, n.Value)
}

// CondTest is the test of an if/elif branch. A non-nil Target makes the
// branch an if-let, binding names from the pattern.
type CondTest struct {
	Target Target
	Expr   Expr
}

// Cond is one branch of an If chain. A nil Test is the else branch. The Ws
// belongs to the tag that opens the branch.
type Cond struct {
	baseNode
	Ws   Ws
	Test *CondTest
	Body []Node
}

func NewCond(ws Ws, test *CondTest, body []Node, line, column int) *Cond {
	return &Cond{baseNode: baseNode{line: line, column: column}, Ws: ws, Test: test, Body: body}
}

func (n *Cond) String() string {
	if n.Test == nil {
		return fmt.Sprintf("Else%s", n.Ws)
	}
	if n.Test.Target != nil {
		return fmt.Sprintf("Cond%s(let %s = %s)", n.Ws, n.Test.Target, n.Test.Expr)
	}
	return fmt.Sprintf("Cond%s(%s)", n.Ws, n.Test.Expr)
}

// If is a chain of conditional branches. Ws belongs to the endif tag.
type If struct {
	baseNode
	Ws       Ws
	Branches []*Cond
}

func NewIf(ws Ws, branches []*Cond, line, column int) *If {
	return &If{baseNode: baseNode{line: line, column: column}, Ws: ws, Branches: branches}
}

func (n *If) String() string {
	parts := make([]string, len(n.Branches))
	for i, b := range n.Branches {
		parts[i] = b.String()
	}
	return "If(" + strings.Join(parts, "; ") + ")"
}

// When is one arm of a Match.
type When struct {
	baseNode
	Ws     Ws
	Target Target
	Body   []Node
}

func NewWhen(ws Ws, target Target, body []Node, line, column int) *When {
	return &When{baseNode: baseNode{line: line, column: column}, Ws: ws, Target: target, Body: body}
}

func (n *When) String() string { return fmt.Sprintf("When%s(%s)", n.Ws, n.Target) }

// Match is a multi-way branch on an expression. Ws1 belongs to the match
// tag, Ws2 to endmatch.
type Match struct {
	baseNode
	Ws1  Ws
	Expr Expr
	// Inter is the literal span between the match tag and the first arm.
	// Only whitespace is allowed there; it becomes pending trailing
	// whitespace rather than content.
	Inter string
	Arms  []*When
	Ws2   Ws
}

func NewMatch(ws1 Ws, expr Expr, arms []*When, ws2 Ws, line, column int) *Match {
	return &Match{baseNode: baseNode{line: line, column: column}, Ws1: ws1, Expr: expr, Arms: arms, Ws2: ws2}
}

func (n *Match) String() string {
	parts := make([]string, len(n.Arms))
	for i, a := range n.Arms {
		parts[i] = a.String()
	}
	return fmt.Sprintf("Match%s(%s: %s)%s", n.Ws1, n.Expr, strings.Join(parts, "; "), n.Ws2)
}

// Loop is a for tag with optional guard and else arm. Ws1 belongs to the
// for tag, BodyWs to the tag that ends the body (else or endfor), ElseWs to
// the endfor tag when an else arm is present.
type Loop struct {
	baseNode
	Ws1      Ws
	Var      Target
	Iter     Expr
	Cond     Expr // optional "if" guard
	Body     []Node
	BodyWs   Ws
	ElseBody []Node
	ElseWs   Ws
}

func NewLoop(line, column int) *Loop {
	return &Loop{baseNode: baseNode{line: line, column: column}}
}

func (n *Loop) String() string {
	s := fmt.Sprintf("For%s(%s in %s", n.Ws1, n.Var, n.Iter)
	if n.Cond != nil {
		s += " if " + n.Cond.String()
	}
	return s + ")"
}

// Extends names the parent template. Path holds the reference as written in
// the source.
type Extends struct {
	baseNode
	Path string
}

func NewExtends(path string, line, column int) *Extends {
	return &Extends{baseNode: baseNode{line: line, column: column}, Path: path}
}

func (n *Extends) String() string { return fmt.Sprintf("Extends(%q)", n.Path) }

// Include splices another template at the tag position.
type Include struct {
	baseNode
	Ws   Ws
	Path string
}

func NewInclude(ws Ws, path string, line, column int) *Include {
	return &Include{baseNode: baseNode{line: line, column: column}, Ws: ws, Path: path}
}

func (n *Include) String() string { return fmt.Sprintf("Include%s(%q)", n.Ws, n.Path) }

// Import makes another template's macros available under a scope alias.
type Import struct {
	baseNode
	Ws    Ws
	Path  string
	Scope string
}

func NewImport(ws Ws, path, scope string, line, column int) *Import {
	return &Import{baseNode: baseNode{line: line, column: column}, Ws: ws, Path: path, Scope: scope}
}

func (n *Import) String() string { return fmt.Sprintf("Import%s(%q as %s)", n.Ws, n.Path, n.Scope) }

// BlockDef is a named, overridable region. Ws1 belongs to the block tag,
// Ws2 to endblock.
type BlockDef struct {
	baseNode
	Ws1  Ws
	Name string
	Body []Node
	Ws2  Ws
}

func NewBlockDef(ws1 Ws, name string, body []Node, ws2 Ws, line, column int) *BlockDef {
	return &BlockDef{baseNode: baseNode{line: line, column: column}, Ws1: ws1, Name: name, Body: body, Ws2: ws2}
}

func (n *BlockDef) String() string { return fmt.Sprintf("Block%s(%s)%s", n.Ws1, n.Name, n.Ws2) }

// Macro is a reusable parameterized body, inlined at call sites.
type Macro struct {
	baseNode
	Ws1    Ws
	Name   string
	Params []string
	Body   []Node
	Ws2    Ws
}

func NewMacro(ws1 Ws, name string, params []string, body []Node, ws2 Ws, line, column int) *Macro {
	return &Macro{baseNode: baseNode{line: line, column: column}, Ws1: ws1, Name: name, Params: params, Body: body, Ws2: ws2}
}

func (n *Macro) String() string {
	return fmt.Sprintf("Macro%s(%s(%s))%s", n.Ws1, n.Name, strings.Join(n.Params, ", "), n.Ws2)
}

// CallTag invokes a macro, optionally through an import scope. The special
// name "super" invokes the next ancestor of the enclosing block.
type CallTag struct {
	baseNode
	Ws    Ws
	Scope string // empty for an unscoped call
	Name  string
	Args  []Expr
}

func NewCallTag(ws Ws, scope, name string, args []Expr, line, column int) *CallTag {
	return &CallTag{baseNode: baseNode{line: line, column: column}, Ws: ws, Scope: scope, Name: name, Args: args}
}

func (n *CallTag) String() string {
	name := n.Name
	if n.Scope != "" {
		name = n.Scope + "::" + name
	}
	return fmt.Sprintf("Call%s(%s(%s))", n.Ws, name, joinExprs(n.Args, ", "))
}

// Raw passes its literal content through without interpretation. Ws1
// belongs to the raw tag, Ws2 to endraw.
type Raw struct {
	baseNode
	Ws1 Ws
	Lit *Lit
	Ws2 Ws
}

func NewRaw(ws1 Ws, lit *Lit, ws2 Ws, line, column int) *Raw {
	return &Raw{baseNode: baseNode{line: line, column: column}, Ws1: ws1, Lit: lit, Ws2: ws2}
}

func (n *Raw) String() string { return fmt.Sprintf("Raw%s(%s)%s", n.Ws1, n.Lit, n.Ws2) }

// Break exits the innermost loop.
type Break struct {
	baseNode
	Ws Ws
}

func NewBreak(ws Ws, line, column int) *Break {
	return &Break{baseNode: baseNode{line: line, column: column}, Ws: ws}
}

func (n *Break) String() string { return "Break" + n.Ws.String() }

// Continue starts the next iteration of the innermost loop.
type Continue struct {
	baseNode
	Ws Ws
}

func NewContinue(ws Ws, line, column int) *Continue {
	return &Continue{baseNode: baseNode{line: line, column: column}, Ws: ws}
}

func (n *Continue) String() string { return "Continue" + n.Ws.String() }
