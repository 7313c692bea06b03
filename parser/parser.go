// Package parser turns template source into the typed AST consumed by the
// context builder and the code generator. Parsing is a recursive descent
// over the token stream produced by the lexer.
//
// Two identifier forms exist at the expression level: a "::"-separated
// sequence always parses as a path, and a bare identifier containing an
// uppercase letter is treated as a one-segment path rather than a variable.
package parser

import (
	"fmt"
	"strings"

	"github.com/stencilkit/stencil/lexer"
)

// SyntaxError is a parse failure with its position in the template.
type SyntaxError struct {
	Message  string
	Template string
	Line     int
	Column   int
}

func (e *SyntaxError) Error() string {
	if e.Template != "" {
		return fmt.Sprintf("syntax error in %s at line %d, column %d: %s", e.Template, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// Parse lexes and parses one template. The name is used in error messages
// only. A nil config selects the default delimiters.
func Parse(source string, config *lexer.Config, name string) ([]Node, error) {
	l := lexer.NewLexer(source, config)
	tokens, err := l.Tokenize()
	if err != nil {
		return nil, &SyntaxError{Message: err.Error(), Template: name, Line: 1, Column: 1}
	}
	p := NewParser(tokens, name)
	return p.Parse()
}

// Parser consumes a token stream and produces the node list of a template.
type Parser struct {
	tokens []*lexer.Token
	pos    int
	name   string

	// loopDepth gates break/continue: they only parse inside a loop body.
	loopDepth int
}

func NewParser(tokens []*lexer.Token, name string) *Parser {
	return &Parser{tokens: tokens, name: name}
}

// Parse consumes the whole stream and returns the top-level node list.
func (p *Parser) Parse() ([]Node, error) {
	nodes, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != lexer.TokenEOF {
		return nil, p.errorAt(p.cur(), "unexpected %s", p.cur().Type)
	}
	return nodes, nil
}

func (p *Parser) cur() *lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) *lexer.Token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) next() *lexer.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) accept(typ lexer.TokenType) *lexer.Token {
	if p.cur().Type == typ {
		return p.next()
	}
	return nil
}

func (p *Parser) expect(typ lexer.TokenType) (*lexer.Token, error) {
	tok := p.cur()
	if tok.Type != typ {
		return nil, p.errorAt(tok, "expected %s, found %s", typ, tok.Type)
	}
	return p.next(), nil
}

func (p *Parser) errorAt(tok *lexer.Token, format string, args ...interface{}) error {
	return &SyntaxError{
		Message:  fmt.Sprintf(format, args...),
		Template: p.name,
		Line:     tok.Line,
		Column:   tok.Column,
	}
}

// parseNodes parses a node sequence until EOF or until the next block tag
// opens with one of the stop keywords. The stopping tag is left unconsumed.
func (p *Parser) parseNodes(stops ...lexer.TokenType) ([]Node, error) {
	var nodes []Node
	for {
		tok := p.cur()
		switch tok.Type {
		case lexer.TokenEOF:
			return nodes, nil

		case lexer.TokenText:
			p.next()
			nodes = append(nodes, NewLit(tok.Value, tok.Line, tok.Column))

		case lexer.TokenComment:
			p.next()
			ws := Ws{WhitespaceFromSigil(tok.Sigil), WhitespaceFromSigil(tok.EndSigil)}
			nodes = append(nodes, NewComment(ws, tok.Line, tok.Column))

		case lexer.TokenVarStart:
			node, err := p.parseExprTag()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)

		case lexer.TokenBlockStart:
			kw := p.peek(1)
			for _, stop := range stops {
				if kw.Type == stop {
					return nodes, nil
				}
			}
			node, err := p.parseBlockTag()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)

		default:
			return nil, p.errorAt(tok, "unexpected %s", tok.Type)
		}
	}
}

func (p *Parser) parseExprTag() (Node, error) {
	start := p.next() // VarStart
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(lexer.TokenVarEnd)
	if err != nil {
		return nil, err
	}
	ws := Ws{WhitespaceFromSigil(start.Sigil), WhitespaceFromSigil(end.Sigil)}
	return NewExprTag(ws, expr, start.Line, start.Column), nil
}

// openTag consumes a BlockStart plus the expected keyword and returns the
// pre-sigil mode and the keyword token.
func (p *Parser) openTag(kw lexer.TokenType) (Whitespace, *lexer.Token, error) {
	start, err := p.expect(lexer.TokenBlockStart)
	if err != nil {
		return WhitespaceDefault, nil, err
	}
	tok, err := p.expect(kw)
	if err != nil {
		return WhitespaceDefault, nil, err
	}
	return WhitespaceFromSigil(start.Sigil), tok, nil
}

// closeTag consumes the BlockEnd of the current tag and returns its
// post-sigil mode.
func (p *Parser) closeTag() (Whitespace, error) {
	end, err := p.expect(lexer.TokenBlockEnd)
	if err != nil {
		return WhitespaceDefault, err
	}
	return WhitespaceFromSigil(end.Sigil), nil
}

func (p *Parser) parseBlockTag() (Node, error) {
	start := p.cur()
	kw := p.peek(1)

	switch kw.Type {
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenMatch:
		return p.parseMatch()
	case lexer.TokenBlock:
		return p.parseBlockDef()
	case lexer.TokenMacro:
		return p.parseMacro()
	case lexer.TokenCall:
		return p.parseCall()
	case lexer.TokenInclude:
		return p.parseInclude()
	case lexer.TokenImport:
		return p.parseImport()
	case lexer.TokenExtends:
		return p.parseExtends()
	case lexer.TokenRaw:
		return p.parseRaw()
	case lexer.TokenLet, lexer.TokenSet:
		return p.parseLet()
	case lexer.TokenBreak:
		if p.loopDepth == 0 {
			return nil, p.errorAt(kw, "break is only allowed inside a loop")
		}
		return p.parseLoopControl(lexer.TokenBreak)
	case lexer.TokenContinue:
		if p.loopDepth == 0 {
			return nil, p.errorAt(kw, "continue is only allowed inside a loop")
		}
		return p.parseLoopControl(lexer.TokenContinue)
	default:
		return nil, p.errorAt(start, "unexpected tag %q", kw.Value)
	}
}

func (p *Parser) parseLoopControl(kw lexer.TokenType) (Node, error) {
	pre, tok, err := p.openTag(kw)
	if err != nil {
		return nil, err
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	ws := Ws{pre, post}
	if kw == lexer.TokenBreak {
		return NewBreak(ws, tok.Line, tok.Column), nil
	}
	return NewContinue(ws, tok.Line, tok.Column), nil
}

func (p *Parser) parseIf() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenIf)
	if err != nil {
		return nil, err
	}

	var branches []*Cond
	branchWs := pre
	branchTok := tok

	for {
		test, err := p.parseCondTest()
		if err != nil {
			return nil, err
		}
		post, err := p.closeTag()
		if err != nil {
			return nil, err
		}
		body, err := p.parseNodes(lexer.TokenElif, lexer.TokenElse, lexer.TokenEndif)
		if err != nil {
			return nil, err
		}
		branches = append(branches, NewCond(Ws{branchWs, post}, test, body, branchTok.Line, branchTok.Column))

		kw := p.peek(1)
		switch kw.Type {
		case lexer.TokenElif:
			branchWs, branchTok, err = p.openTag(lexer.TokenElif)
			if err != nil {
				return nil, err
			}

		case lexer.TokenElse:
			elsePre, elseTok, err := p.openTag(lexer.TokenElse)
			if err != nil {
				return nil, err
			}
			elsePost, err := p.closeTag()
			if err != nil {
				return nil, err
			}
			body, err := p.parseNodes(lexer.TokenEndif)
			if err != nil {
				return nil, err
			}
			branches = append(branches, NewCond(Ws{elsePre, elsePost}, nil, body, elseTok.Line, elseTok.Column))
			endWs, err := p.closeIf()
			if err != nil {
				return nil, err
			}
			return NewIf(endWs, branches, tok.Line, tok.Column), nil

		case lexer.TokenEndif:
			endWs, err := p.closeIf()
			if err != nil {
				return nil, err
			}
			return NewIf(endWs, branches, tok.Line, tok.Column), nil

		default:
			return nil, p.errorAt(kw, "expected elif, else or endif, found %q", kw.Value)
		}
	}
}

// closeIf consumes the endif tag. The Ws values of an if chain are rotated
// by one: each branch's pair belongs to the tag closing the previous
// branch, so the endif contributes its leading opt-in and its trailing
// opt-in rotates out of the chain; text after the chain follows the
// configured default.
func (p *Parser) closeIf() (Ws, error) {
	endPre, _, err := p.openTag(lexer.TokenEndif)
	if err != nil {
		return Ws{}, err
	}
	if _, err := p.closeTag(); err != nil {
		return Ws{}, err
	}
	return Ws{Pre: endPre}, nil
}

// parseCondTest parses the test of an if or elif tag. A leading "let"
// keyword makes it an if-let with a binding pattern.
func (p *Parser) parseCondTest() (*CondTest, error) {
	if p.accept(lexer.TokenLet) != nil {
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenAssign); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &CondTest{Target: target, Expr: expr}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &CondTest{Expr: expr}, nil
}

func (p *Parser) parseFor() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenFor)
	if err != nil {
		return nil, err
	}

	loop := NewLoop(tok.Line, tok.Column)

	loop.Var, err = p.parseTarget()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenIn); err != nil {
		return nil, err
	}
	loop.Iter, err = p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.accept(lexer.TokenIf) != nil {
		loop.Cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	loop.Ws1 = Ws{pre, post}

	p.loopDepth++
	loop.Body, err = p.parseNodes(lexer.TokenElse, lexer.TokenEndfor)
	p.loopDepth--
	if err != nil {
		return nil, err
	}

	if p.peek(1).Type == lexer.TokenElse {
		elsePre, _, err := p.openTag(lexer.TokenElse)
		if err != nil {
			return nil, err
		}
		elsePost, err := p.closeTag()
		if err != nil {
			return nil, err
		}
		loop.BodyWs = Ws{elsePre, elsePost}
		loop.ElseBody, err = p.parseNodes(lexer.TokenEndfor)
		if err != nil {
			return nil, err
		}
		endPre, _, err := p.openTag(lexer.TokenEndfor)
		if err != nil {
			return nil, err
		}
		endPost, err := p.closeTag()
		if err != nil {
			return nil, err
		}
		loop.ElseWs = Ws{endPre, endPost}
		return loop, nil
	}

	endPre, _, err := p.openTag(lexer.TokenEndfor)
	if err != nil {
		return nil, err
	}
	endPost, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	loop.BodyWs = Ws{endPre, endPost}
	return loop, nil
}

func (p *Parser) parseMatch() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenMatch)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}

	// Only whitespace and comments may sit between match and the first
	// arm; the whitespace becomes pending rather than content.
	var inter string
	for {
		if txt := p.accept(lexer.TokenText); txt != nil {
			if strings.TrimLeft(txt.Value, " \t\r\n") != "" {
				return nil, p.errorAt(txt, "only whitespace is allowed between match and its first arm")
			}
			inter += txt.Value
			continue
		}
		if p.accept(lexer.TokenComment) != nil {
			continue
		}
		break
	}

	var arms []*When
	for {
		kw := p.peek(1)
		switch kw.Type {
		case lexer.TokenWhen:
			whenPre, whenTok, err := p.openTag(lexer.TokenWhen)
			if err != nil {
				return nil, err
			}
			target, err := p.parseTarget()
			if err != nil {
				return nil, err
			}
			whenPost, err := p.closeTag()
			if err != nil {
				return nil, err
			}
			body, err := p.parseNodes(lexer.TokenWhen, lexer.TokenElse, lexer.TokenEndmatch)
			if err != nil {
				return nil, err
			}
			arms = append(arms, NewWhen(Ws{whenPre, whenPost}, target, body, whenTok.Line, whenTok.Column))

		case lexer.TokenElse:
			elsePre, elseTok, err := p.openTag(lexer.TokenElse)
			if err != nil {
				return nil, err
			}
			elsePost, err := p.closeTag()
			if err != nil {
				return nil, err
			}
			body, err := p.parseNodes(lexer.TokenEndmatch)
			if err != nil {
				return nil, err
			}
			wildcard := NewNameTarget("_", elseTok.Line, elseTok.Column)
			arms = append(arms, NewWhen(Ws{elsePre, elsePost}, wildcard, body, elseTok.Line, elseTok.Column))

		case lexer.TokenEndmatch:
			if len(arms) == 0 {
				return nil, p.errorAt(kw, "match requires at least one when arm")
			}
			endPre, _, err := p.openTag(lexer.TokenEndmatch)
			if err != nil {
				return nil, err
			}
			endPost, err := p.closeTag()
			if err != nil {
				return nil, err
			}
			m := NewMatch(Ws{pre, post}, expr, arms, Ws{endPre, endPost}, tok.Line, tok.Column)
			m.Inter = inter
			return m, nil

		default:
			return nil, p.errorAt(kw, "expected when, else or endmatch, found %q", kw.Value)
		}
	}
}

func (p *Parser) parseBlockDef() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenBlock)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}

	body, err := p.parseNodes(lexer.TokenEndblock)
	if err != nil {
		return nil, err
	}

	endPre, _, err := p.openTag(lexer.TokenEndblock)
	if err != nil {
		return nil, err
	}
	if trailer := p.accept(lexer.TokenIdentifier); trailer != nil && trailer.Value != nameTok.Value {
		return nil, p.errorAt(trailer, "endblock name %q does not match block %q", trailer.Value, nameTok.Value)
	}
	endPost, err := p.closeTag()
	if err != nil {
		return nil, err
	}

	return NewBlockDef(Ws{pre, post}, nameTok.Value, body, Ws{endPre, endPost}, tok.Line, tok.Column), nil
}

func (p *Parser) parseMacro() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenMacro)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}
	if nameTok.Value == "super" {
		return nil, p.errorAt(nameTok, "a macro may not be named super")
	}

	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return nil, err
	}
	var params []string
	for p.cur().Type != lexer.TokenRParen {
		param, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		params = append(params, param.Value)
		if p.accept(lexer.TokenComma) == nil {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}

	body, err := p.parseNodes(lexer.TokenEndmacro)
	if err != nil {
		return nil, err
	}

	endPre, _, err := p.openTag(lexer.TokenEndmacro)
	if err != nil {
		return nil, err
	}
	if trailer := p.accept(lexer.TokenIdentifier); trailer != nil && trailer.Value != nameTok.Value {
		return nil, p.errorAt(trailer, "endmacro name %q does not match macro %q", trailer.Value, nameTok.Value)
	}
	endPost, err := p.closeTag()
	if err != nil {
		return nil, err
	}

	return NewMacro(Ws{pre, post}, nameTok.Value, params, body, Ws{endPre, endPost}, tok.Line, tok.Column), nil
}

func (p *Parser) parseCall() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenCall)
	if err != nil {
		return nil, err
	}

	first, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}
	scope, name := "", first.Value
	if p.accept(lexer.TokenColonColon) != nil {
		nameTok, err := p.expect(lexer.TokenIdentifier)
		if err != nil {
			return nil, err
		}
		scope, name = first.Value, nameTok.Value
	}

	var args []Expr
	if p.accept(lexer.TokenLParen) != nil {
		for p.cur().Type != lexer.TokenRParen {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.accept(lexer.TokenComma) == nil {
				break
			}
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
	}

	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	return NewCallTag(Ws{pre, post}, scope, name, args, tok.Line, tok.Column), nil
}

func (p *Parser) parseInclude() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenInclude)
	if err != nil {
		return nil, err
	}
	pathTok, err := p.expect(lexer.TokenString)
	if err != nil {
		return nil, err
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	return NewInclude(Ws{pre, post}, pathTok.Value, tok.Line, tok.Column), nil
}

func (p *Parser) parseImport() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenImport)
	if err != nil {
		return nil, err
	}
	pathTok, err := p.expect(lexer.TokenString)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenAs); err != nil {
		return nil, err
	}
	scopeTok, err := p.expect(lexer.TokenIdentifier)
	if err != nil {
		return nil, err
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	return NewImport(Ws{pre, post}, pathTok.Value, scopeTok.Value, tok.Line, tok.Column), nil
}

func (p *Parser) parseExtends() (Node, error) {
	_, tok, err := p.openTag(lexer.TokenExtends)
	if err != nil {
		return nil, err
	}
	pathTok, err := p.expect(lexer.TokenString)
	if err != nil {
		return nil, err
	}
	if _, err := p.closeTag(); err != nil {
		return nil, err
	}
	return NewExtends(pathTok.Value, tok.Line, tok.Column), nil
}

func (p *Parser) parseRaw() (Node, error) {
	pre, tok, err := p.openTag(lexer.TokenRaw)
	if err != nil {
		return nil, err
	}
	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}

	content := ""
	if txt := p.accept(lexer.TokenText); txt != nil {
		content = txt.Value
	}

	endPre, _, err := p.openTag(lexer.TokenEndraw)
	if err != nil {
		return nil, err
	}
	endPost, err := p.closeTag()
	if err != nil {
		return nil, err
	}

	lit := NewLit(content, tok.Line, tok.Column)
	return NewRaw(Ws{pre, post}, lit, Ws{endPre, endPost}, tok.Line, tok.Column), nil
}

func (p *Parser) parseLet() (Node, error) {
	start, err := p.expect(lexer.TokenBlockStart)
	if err != nil {
		return nil, err
	}
	tok := p.next() // let or set
	pre := WhitespaceFromSigil(start.Sigil)

	target, err := p.parseTarget()
	if err != nil {
		return nil, err
	}

	var value Expr
	if p.accept(lexer.TokenAssign) != nil {
		value, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}

	post, err := p.closeTag()
	if err != nil {
		return nil, err
	}
	return NewLet(Ws{pre, post}, target, value, tok.Line, tok.Column), nil
}
