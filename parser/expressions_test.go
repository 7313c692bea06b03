package parser

import (
	"testing"
)

func parseExprString(t *testing.T, expr string) Expr {
	t.Helper()
	nodes := parseOne(t, "{{ "+expr+" }}")
	tag, ok := nodes[0].(*ExprTag)
	if !ok {
		t.Fatalf("expected ExprTag, got %T", nodes[0])
	}
	return tag.Expr
}

func TestExprPrecedence(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"mul binds tighter than add", "a + b * c", "a + b * c"},
		{"left assoc add", "a - b + c", "a - b + c"},
		{"comparison above or", "a == b || c == d", "a == b || c == d"},
		{"and above or", "a || b && c", "a || b && c"},
		{"shift above add", "a << b + c", "a << b + c"},
		{"unary binds suffix", "-a.b", "-a.b"},
		{"group", "(a + b) * c", "(a + b) * c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseExprString(t, tt.expr).String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExprPrecedenceShape(t *testing.T) {
	// a + b * c parses as a + (b * c)
	e := parseExprString(t, "a + b * c").(*BinOp)
	if e.Op != "+" {
		t.Fatalf("root op = %q", e.Op)
	}
	rhs, ok := e.RHS.(*BinOp)
	if !ok || rhs.Op != "*" {
		t.Fatalf("rhs = %v", e.RHS)
	}

	// a || b && c parses as a || (b && c)
	e = parseExprString(t, "a || b && c").(*BinOp)
	if e.Op != "||" {
		t.Fatalf("root op = %q", e.Op)
	}
	if rhs, ok := e.RHS.(*BinOp); !ok || rhs.Op != "&&" {
		t.Fatalf("rhs = %v", e.RHS)
	}
}

func TestExprFilterVersusBitOr(t *testing.T) {
	// touching identifier forms a filter
	e := parseExprString(t, "name|lower")
	filter, ok := e.(*Filter)
	if !ok {
		t.Fatalf("expected Filter, got %T", e)
	}
	if filter.Name != "lower" || len(filter.Args) != 1 {
		t.Errorf("filter = %v", filter)
	}

	// spaced pipe is bitwise-or
	e = parseExprString(t, "a | b")
	binop, ok := e.(*BinOp)
	if !ok || binop.Op != "|" {
		t.Fatalf("expected bitor, got %v", e)
	}
}

func TestExprFilterChain(t *testing.T) {
	e := parseExprString(t, `name|truncate(3)|upper`)
	outer, ok := e.(*Filter)
	if !ok || outer.Name != "upper" {
		t.Fatalf("outer = %v", e)
	}
	inner, ok := outer.Args[0].(*Filter)
	if !ok || inner.Name != "truncate" || len(inner.Args) != 2 {
		t.Fatalf("inner = %v", outer.Args[0])
	}
}

func TestExprSuffixChain(t *testing.T) {
	e := parseExprString(t, "user.names[0].first(1, 2)?")
	try, ok := e.(*Try)
	if !ok {
		t.Fatalf("expected Try, got %T", e)
	}
	call, ok := try.Operand.(*MethodCall)
	if !ok || call.Name != "first" || len(call.Args) != 2 {
		t.Fatalf("method call = %v", try.Operand)
	}
}

func TestExprRanges(t *testing.T) {
	tests := []struct {
		expr    string
		op      string
		hasLHS  bool
		hasRHS  bool
	}{
		{"1..5", "..", true, true},
		{"1..=5", "..=", true, true},
		{"..5", "..", false, true},
		{"1..", "..", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r, ok := parseExprString(t, tt.expr).(*Range)
			if !ok {
				t.Fatalf("expected Range")
			}
			if r.Op != tt.op || (r.LHS != nil) != tt.hasLHS || (r.RHS != nil) != tt.hasRHS {
				t.Errorf("range = %v", r)
			}
		})
	}
}

func TestExprPathHeuristics(t *testing.T) {
	if _, ok := parseExprString(t, "name").(*Var); !ok {
		t.Error("lowercase identifier must be a Var")
	}
	if p, ok := parseExprString(t, "Color").(*Path); !ok || len(p.Segments) != 1 {
		t.Error("capitalized identifier must be a one-segment Path")
	}
	p, ok := parseExprString(t, "color::red").(*Path)
	if !ok || len(p.Segments) != 2 {
		t.Errorf("separated path = %v", p)
	}
	p, ok = parseExprString(t, "::std::cmp").(*Path)
	if !ok || p.Segments[0] != "" {
		t.Errorf("leading separator must give an empty first segment: %v", p)
	}
}

func TestExprGroupVersusTuple(t *testing.T) {
	if _, ok := parseExprString(t, "(a)").(*Group); !ok {
		t.Error("(a) must be a Group")
	}
	if tup, ok := parseExprString(t, "(a,)").(*Tuple); !ok || len(tup.Elems) != 1 {
		t.Error("(a,) must be a one-element Tuple")
	}
	if tup, ok := parseExprString(t, "()").(*Tuple); !ok || len(tup.Elems) != 0 {
		t.Error("() must be an empty Tuple")
	}
	if tup, ok := parseExprString(t, "(a, b)").(*Tuple); !ok || len(tup.Elems) != 2 {
		t.Error("(a, b) must be a two-element Tuple")
	}
}

func TestExprArrayTrailingComma(t *testing.T) {
	arr, ok := parseExprString(t, "[1, 2, 3,]").(*Array)
	if !ok || len(arr.Elems) != 3 {
		t.Errorf("array = %v", arr)
	}
}

func TestExprRawCall(t *testing.T) {
	e := parseExprString(t, `vec!(1, 2)`)
	raw, ok := e.(*RawCall)
	if !ok {
		t.Fatalf("expected RawCall, got %T", e)
	}
	if raw.RawArgs != "1, 2" {
		t.Errorf("raw args = %q", raw.RawArgs)
	}
}

func TestTargetForms(t *testing.T) {
	tests := []struct {
		name   string
		source string
		check  func(t *testing.T, target Target)
	}{
		{
			name:   "bare name",
			source: "{% let x = 1 %}",
			check: func(t *testing.T, target Target) {
				if n, ok := target.(*NameTarget); !ok || n.Name != "x" {
					t.Errorf("target = %v", target)
				}
			},
		},
		{
			name:   "tuple",
			source: "{% let (a, b) = pair %}",
			check: func(t *testing.T, target Target) {
				tup, ok := target.(*TupleTarget)
				if !ok || len(tup.Targets) != 2 || len(tup.Path) != 0 {
					t.Errorf("target = %v", target)
				}
			},
		},
		{
			name:   "variant tuple with keyword",
			source: "{% let Some with (v) = opt %}",
			check: func(t *testing.T, target Target) {
				tup, ok := target.(*TupleTarget)
				if !ok || len(tup.Path) != 1 || tup.Path[0] != "Some" {
					t.Errorf("target = %v", target)
				}
			},
		},
		{
			name:   "struct shorthand and nested",
			source: "{% let Point with {x, y: py} = p %}",
			check: func(t *testing.T, target Target) {
				st, ok := target.(*StructTarget)
				if !ok || len(st.Fields) != 2 {
					t.Fatalf("target = %v", target)
				}
				if st.Fields[0].Target != nil {
					t.Error("shorthand field must have nil target")
				}
				if st.Fields[1].Target == nil {
					t.Error("renamed field must carry a target")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := parseOne(t, tt.source)
			tt.check(t, nodes[0].(*Let).Target)
		})
	}
}

func TestWhenTargetLiterals(t *testing.T) {
	nodes := parseOne(t, `{% match n %}{% when "a" %}s{% when 'c' %}c{% when true %}b{% when Color::Red %}p{% endmatch %}`)
	m := nodes[0].(*Match)
	if lt := m.Arms[0].Target.(*LitTarget); lt.Kind != LitStr {
		t.Errorf("arm 0 kind = %v", lt.Kind)
	}
	if lt := m.Arms[1].Target.(*LitTarget); lt.Kind != LitChar {
		t.Errorf("arm 1 kind = %v", lt.Kind)
	}
	if lt := m.Arms[2].Target.(*LitTarget); lt.Kind != LitBool {
		t.Errorf("arm 2 kind = %v", lt.Kind)
	}
	if pt := m.Arms[3].Target.(*PathTarget); len(pt.Segments) != 2 {
		t.Errorf("arm 3 = %v", pt)
	}
}
